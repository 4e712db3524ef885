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

package objectstorage

import (
	"context"
	"fmt"
	"io"
)

type ObjectMetadata struct {
	// Key is object key.
	Key string

	// ContentLength is Content-Length header.
	ContentLength int64

	// ContentType is Content-Type header.
	ContentType string

	// Digest is object digest.
	Digest string
}

// ObjectStorage is the artifact store adapter. Datasets are read by prefix
// and model artifacts are written back under a job-scoped prefix.
type ObjectStorage interface {
	// GetObject returns data of object.
	GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error)

	// CreateObject creates data of object.
	CreateObject(ctx context.Context, bucketName, objectKey, digest string, reader io.Reader) error

	// DeleteObject deletes data of object.
	DeleteObject(ctx context.Context, bucketName, objectKey string) error

	// ListObjectMetadatas returns metadata of objects under the prefix.
	ListObjectMetadatas(ctx context.Context, bucketName, prefix, marker string, limit int64) ([]*ObjectMetadata, error)

	// IsObjectExist returns whether the object exists.
	IsObjectExist(ctx context.Context, bucketName, objectKey string) (bool, error)
}

// New object storage interface.
func New(name, region, endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	switch name {
	case ServiceNameS3:
		return newS3(region, endpoint, accessKey, secretKey)
	case ServiceNameLocal:
		return newLocal(endpoint)
	}

	return nil, fmt.Errorf("unknow service name %s", name)
}
