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

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/stitchml/stitch/container/training"
)

const (
	// MetricsFilePrefix is prefix of metrics file name.
	MetricsFilePrefix = "metrics"

	// CSVFileExt is extension of file name.
	CSVFileExt = "csv"
)

// Storage is the interface used for persisting the metric observations a
// job emits, keyed by job name.
type Storage interface {
	// CreateObservations appends observations to the csv file of the given job.
	CreateObservations(string, []training.Observation) error

	// ListObservations returns the observations recorded for the given job.
	ListObservations(string) ([]training.Observation, error)

	// OpenObservations opens the observation file of the given job for read.
	OpenObservations(string) (io.ReadCloser, error)

	// ClearObservations removes the observations of the given job.
	ClearObservations(string) error

	// Clear removes all observation files.
	Clear() error
}

type storage struct {
	baseDir string

	mu       sync.Mutex
	jobNames map[string]struct{}
}

// New returns a new Storage instance.
func New(baseDir string) Storage {
	return &storage{
		baseDir:  baseDir,
		jobNames: map[string]struct{}{},
	}
}

// CreateObservations appends observations to the csv file of the given job.
func (s *storage) CreateObservations(jobName string, observations []training.Observation) error {
	file, err := os.OpenFile(s.metricsFilename(jobName), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := gocsv.MarshalWithoutHeaders(observations, file); err != nil {
		if err := os.Remove(s.metricsFilename(jobName)); err != nil {
			return err
		}

		return err
	}

	s.mu.Lock()
	s.jobNames[jobName] = struct{}{}
	s.mu.Unlock()
	return nil
}

// ListObservations returns the observations recorded for the given job.
func (s *storage) ListObservations(jobName string) ([]training.Observation, error) {
	file, err := os.Open(s.metricsFilename(jobName))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var observations []training.Observation
	if err := gocsv.UnmarshalWithoutHeaders(file, &observations); err != nil {
		return nil, err
	}

	return observations, nil
}

// OpenObservations opens the observation file of the given job for read.
func (s *storage) OpenObservations(jobName string) (io.ReadCloser, error) {
	file, err := os.Open(s.metricsFilename(jobName))
	if err != nil {
		return nil, err
	}

	return file, nil
}

// ClearObservations removes the observations of the given job.
func (s *storage) ClearObservations(jobName string) error {
	if err := os.Remove(s.metricsFilename(jobName)); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.jobNames, jobName)
	s.mu.Unlock()
	return nil
}

// Clear removes all observation files.
func (s *storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jobName := range s.jobNames {
		if err := os.Remove(s.metricsFilename(jobName)); err != nil {
			return err
		}
	}

	s.jobNames = map[string]struct{}{}
	return nil
}

// metricsFilename generates the metrics file name of the given job.
func (s *storage) metricsFilename(jobName string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.%s", MetricsFilePrefix, jobName, CSVFileExt))
}
