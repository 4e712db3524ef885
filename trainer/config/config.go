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
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/stitchml/stitch/pkg/objectstorage"
)

type Config struct {
	// WorkDir is the root directory for job workspaces.
	WorkDir string `yaml:"workDir" mapstructure:"workDir"`

	// BinPath is the container binary launched for each job.
	BinPath string `yaml:"binPath" mapstructure:"binPath"`

	// JobTimeout bounds the runtime of a single attempt.
	JobTimeout time.Duration `yaml:"jobTimeout" mapstructure:"jobTimeout"`

	// ObjectStorage configuration.
	ObjectStorage ObjectStorageConfig `yaml:"objectStorage" mapstructure:"objectStorage"`
}

type ObjectStorageConfig struct {
	// Enable object storage for channel staging and artifact upload.
	Enable bool `yaml:"enable" mapstructure:"enable"`

	// Name is object storage name of type, it can optionally be s3 or local.
	Name string `yaml:"name" mapstructure:"name"`

	// Region is storage region.
	Region string `yaml:"region" mapstructure:"region"`

	// Endpoint is datacenter endpoint, or the base directory for the local type.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// AccessKey is access key ID.
	AccessKey string `yaml:"accessKey" mapstructure:"accessKey"`

	// SecretKey is access key secret.
	SecretKey string `yaml:"secretKey" mapstructure:"secretKey"`

	// Bucket holds job inputs and artifacts.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
}

// New default configuration.
func New() *Config {
	return &Config{
		WorkDir:    filepath.Join(os.TempDir(), "stitch", "jobs"),
		BinPath:    "stitch",
		JobTimeout: 30 * time.Minute,
		ObjectStorage: ObjectStorageConfig{
			Enable: false,
			Name:   objectstorage.ServiceNameLocal,
		},
	}
}

// Validate config values.
func (cfg *Config) Validate() error {
	if cfg.WorkDir == "" {
		return errors.New("config requires parameter workDir")
	}

	if cfg.BinPath == "" {
		return errors.New("config requires parameter binPath")
	}

	if cfg.JobTimeout <= 0 {
		return errors.New("config requires parameter jobTimeout")
	}

	if cfg.ObjectStorage.Enable {
		if cfg.ObjectStorage.Name == "" {
			return errors.New("objectStorage requires parameter name")
		}

		if cfg.ObjectStorage.Bucket == "" {
			return errors.New("objectStorage requires parameter bucket")
		}
	}

	return nil
}
