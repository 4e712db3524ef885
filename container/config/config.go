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

// Package config resolves the environment a training or serving container
// runs under: data channels, artifact directories and hyperparameters.
// Everything comes from environment variables and process arguments; the
// container never consults ambient session state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/stitchml/stitch/internal/sterrors"
)

type Config struct {
	// Channels maps channel names to resolved local directories.
	Channels map[string]string `yaml:"channels" mapstructure:"channels"`

	// ModelDir is the model artifact directory.
	ModelDir string `yaml:"modelDir" mapstructure:"modelDir"`

	// OutputDataDir is the auxiliary output directory.
	OutputDataDir string `yaml:"outputDataDir" mapstructure:"outputDataDir"`

	// CurrentHost identifies this container in metric log lines.
	CurrentHost string `yaml:"currentHost" mapstructure:"currentHost"`

	// Hyperparameters of the training run.
	Hyperparameters Hyperparameters `yaml:"hyperparameters" mapstructure:"hyperparameters"`
}

type Hyperparameters struct {
	// Epochs is the number of passes over the training split.
	Epochs int `yaml:"epochs" mapstructure:"epochs"`

	// BatchSize is the number of samples per gradient update.
	BatchSize int `yaml:"batchSize" mapstructure:"batchSize"`

	// LearningRate is the gradient step size.
	LearningRate float64 `yaml:"learningRate" mapstructure:"learningRate"`

	// ImageSize is the feature grid size.
	ImageSize int `yaml:"imageSize" mapstructure:"imageSize"`
}

// New default configuration resolved from the container environment.
func New() *Config {
	cfg := &Config{
		Channels:      ChannelsFromEnv(os.Environ()),
		ModelDir:      DefaultModelDir,
		OutputDataDir: DefaultOutputDataDir,
		Hyperparameters: Hyperparameters{
			Epochs:       DefaultEpochs,
			BatchSize:    DefaultBatchSize,
			LearningRate: DefaultLearningRate,
			ImageSize:    DefaultImageSize,
		},
	}

	if dir := os.Getenv(EnvModelDir); dir != "" {
		cfg.ModelDir = dir
	}

	if dir := os.Getenv(EnvOutputDataDir); dir != "" {
		cfg.OutputDataDir = dir
	}

	if host := os.Getenv(EnvCurrentHost); host != "" {
		cfg.CurrentHost = host
	} else if hostname, err := os.Hostname(); err == nil {
		cfg.CurrentHost = hostname
	}

	if raw := os.Getenv(EnvImageSize); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			cfg.Hyperparameters.ImageSize = size
		}
	}

	return cfg
}

// ChannelsFromEnv extracts channel bindings from an environment list.
func ChannelsFromEnv(environ []string) map[string]string {
	channels := map[string]string{}
	for _, kv := range environ {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(key, EnvChannelPrefix) {
			continue
		}

		name := strings.ToLower(strings.TrimPrefix(key, EnvChannelPrefix))
		if name == "" || value == "" {
			continue
		}

		channels[name] = value
	}

	return channels
}

// ChannelEnv renders a channel binding back into environment form.
func ChannelEnv(name, dir string) string {
	return fmt.Sprintf("%s%s=%s", EnvChannelPrefix, strings.ToUpper(name), dir)
}

// Validate config parameters. A declared channel whose directory is missing
// or empty is a provisioning error, not a job failure.
func (cfg *Config) Validate() error {
	var result *multierror.Error

	if len(cfg.Channels) == 0 {
		result = multierror.Append(result, sterrors.Provisioningf("no data channels declared"))
	}

	for name, dir := range cfg.Channels {
		entries, err := os.ReadDir(dir)
		if err != nil {
			result = multierror.Append(result, sterrors.Provisioningf("channel %s: %s", name, err))
			continue
		}

		if len(entries) == 0 {
			result = multierror.Append(result, sterrors.Provisioningf("channel %s resolved to empty directory %s", name, dir))
		}
	}

	if cfg.ModelDir == "" {
		result = multierror.Append(result, errors.New("container requires parameter modelDir"))
	}

	if cfg.OutputDataDir == "" {
		result = multierror.Append(result, errors.New("container requires parameter outputDataDir"))
	}

	if err := cfg.Hyperparameters.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Convert prepares the output directories.
func (cfg *Config) Convert() error {
	if err := os.MkdirAll(cfg.ModelDir, 0700); err != nil {
		return err
	}

	return os.MkdirAll(cfg.OutputDataDir, 0700)
}

// Validate hyperparameter values.
func (h Hyperparameters) Validate() error {
	if h.Epochs <= 0 {
		return errors.New("hyperparameters require positive epochs")
	}

	if h.BatchSize <= 0 {
		return errors.New("hyperparameters require positive batch-size")
	}

	if h.LearningRate <= 0 {
		return errors.New("hyperparameters require positive learning-rate")
	}

	if h.ImageSize <= 0 {
		return errors.New("hyperparameters require positive image-size")
	}

	return nil
}
