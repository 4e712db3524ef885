/*
 *     Copyright 2023 The Stitch Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

const (
	// EnvChannelPrefix prefixes the environment variable binding a data
	// channel name to its resolved local directory. The channel name is
	// upper-cased, so channel "training" becomes STITCH_CHANNEL_TRAINING.
	EnvChannelPrefix = "STITCH_CHANNEL_"

	// EnvModelDir names the directory the trained artifact is written to
	// and read from.
	EnvModelDir = "STITCH_MODEL_DIR"

	// EnvOutputDataDir names the directory for auxiliary, non-model
	// output artifacts.
	EnvOutputDataDir = "STITCH_OUTPUT_DATA_DIR"

	// EnvCurrentHost is the host identifier carried in metric log lines.
	EnvCurrentHost = "STITCH_CURRENT_HOST"

	// EnvImageSize overrides the feature grid size at inference time.
	EnvImageSize = "STITCH_IMAGE_SIZE"
)

const (
	// TrainingChannelName is the default data channel.
	TrainingChannelName = "training"

	// DefaultModelDir is the model output directory inside the container.
	DefaultModelDir = "/opt/stitch/model"

	// DefaultOutputDataDir is the auxiliary output directory inside the
	// container. Never receives model artifacts.
	DefaultOutputDataDir = "/opt/stitch/output/data"
)

const (
	// DefaultEpochs is the default number of training epochs.
	DefaultEpochs = 2

	// DefaultBatchSize is the default training batch size.
	DefaultBatchSize = 64

	// DefaultLearningRate is the default learning rate.
	DefaultLearningRate = 0.001

	// DefaultImageSize is the default feature grid size. Images are pooled
	// to DefaultImageSize x DefaultImageSize luminance values.
	DefaultImageSize = 8
)
