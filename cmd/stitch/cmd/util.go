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

package cmd

import (
	"github.com/spf13/pflag"

	"github.com/stitchml/stitch/pkg/objectstorage"
	"github.com/stitchml/stitch/trainer/config"
)

// bindObjectStorageFlags binds the artifact store flags shared by submit and
// deploy.
func bindObjectStorageFlags(flags *pflag.FlagSet, cfg *config.ObjectStorageConfig) {
	flags.BoolVar(&cfg.Enable, "storage", cfg.Enable, "enable the artifact store")
	flags.StringVar(&cfg.Name, "storage-name", cfg.Name, "artifact store type, s3 or local")
	flags.StringVar(&cfg.Region, "storage-region", cfg.Region, "artifact store region")
	flags.StringVar(&cfg.Endpoint, "storage-endpoint", cfg.Endpoint, "artifact store endpoint, or base directory for the local type")
	flags.StringVar(&cfg.AccessKey, "storage-access-key", cfg.AccessKey, "artifact store access key")
	flags.StringVar(&cfg.SecretKey, "storage-secret-key", cfg.SecretKey, "artifact store secret key")
	flags.StringVar(&cfg.Bucket, "storage-bucket", cfg.Bucket, "artifact store bucket")
}

// newObjectStorage builds the configured artifact store, nil when disabled.
func newObjectStorage(cfg config.ObjectStorageConfig) (objectstorage.ObjectStorage, error) {
	if !cfg.Enable {
		return nil, nil
	}
	return objectstorage.New(cfg.Name, cfg.Region, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
}
