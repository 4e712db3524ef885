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

import (
	"fmt"
	"sort"
	"strconv"
)

// HyperparameterSet is the driver-side view of hyperparameters: an opaque
// mapping from parameter name to stringified value, immutable for the
// duration of one job.
type HyperparameterSet map[string]string

// NewHyperparameterSet returns the defaults of the training container.
func NewHyperparameterSet() HyperparameterSet {
	return HyperparameterSet{
		"epochs":        strconv.Itoa(DefaultEpochs),
		"batch-size":    strconv.Itoa(DefaultBatchSize),
		"learning-rate": strconv.FormatFloat(DefaultLearningRate, 'f', -1, 64),
		"image-size":    strconv.Itoa(DefaultImageSize),
	}
}

// Args serializes the set as the container's argument list, one flag per
// key in stable order.
func (h HyperparameterSet) Args() []string {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, fmt.Sprintf("--%s", key), h[key])
	}

	return args
}
