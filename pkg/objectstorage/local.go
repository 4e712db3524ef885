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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type local struct {
	// Base directory holding bucket subdirectories.
	baseDir string
}

// New local instance.
func newLocal(baseDir string) (ObjectStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local object storage requires a base directory")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &local{baseDir: baseDir}, nil
}

func (l *local) objectPath(bucketName, objectKey string) string {
	return filepath.Join(l.baseDir, bucketName, filepath.FromSlash(objectKey))
}

// GetObject returns data of object.
func (l *local) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	return os.Open(l.objectPath(bucketName, objectKey))
}

// CreateObject creates data of object.
func (l *local) CreateObject(ctx context.Context, bucketName, objectKey, digest string, reader io.Reader) error {
	path := l.objectPath(bucketName, objectKey)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}

	return nil
}

// DeleteObject deletes data of object.
func (l *local) DeleteObject(ctx context.Context, bucketName, objectKey string) error {
	return os.Remove(l.objectPath(bucketName, objectKey))
}

// ListObjectMetadatas returns metadata of objects under the prefix.
func (l *local) ListObjectMetadatas(ctx context.Context, bucketName, prefix, marker string, limit int64) ([]*ObjectMetadata, error) {
	bucketDir := filepath.Join(l.baseDir, bucketName)

	var metadatas []*ObjectMetadata
	err := filepath.WalkDir(bucketDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bucketDir, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || key <= marker {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		metadatas = append(metadatas, &ObjectMetadata{
			Key:           key,
			ContentLength: info.Size(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	sort.Slice(metadatas, func(i, j int) bool { return metadatas[i].Key < metadatas[j].Key })
	if limit > 0 && int64(len(metadatas)) > limit {
		metadatas = metadatas[:limit]
	}

	return metadatas, nil
}

// IsObjectExist returns whether the object exists.
func (l *local) IsObjectExist(ctx context.Context, bucketName, objectKey string) (bool, error) {
	info, err := os.Stat(l.objectPath(bucketName, objectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return info.Mode().IsRegular(), nil
}
