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

package trainer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	containerconfig "github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/training"
	"github.com/stitchml/stitch/internal/sterrors"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/pkg/digest"
	"github.com/stitchml/stitch/pkg/idgen"
	"github.com/stitchml/stitch/pkg/objectstorage"
	"github.com/stitchml/stitch/trainer/config"
	"github.com/stitchml/stitch/trainer/metrics"
	"github.com/stitchml/stitch/trainer/storage"
)

const (
	// CurrentHostName is the host label the launched process reports in
	// metric lines.
	CurrentHostName = "algo-1"

	// ArtifactPrefix is the store prefix artifacts are uploaded under.
	ArtifactPrefix = "jobs"

	// storePrefixScheme marks a channel URI that points into the store.
	storePrefixScheme = "store://"
)

// JobSpec describes a submission. Channels map channel names to either a
// local directory or a store://<prefix> URI staged from the artifact store.
type JobSpec struct {
	BaseName        string
	Channels        map[string]string
	Hyperparameters containerconfig.HyperparameterSet
}

// Driver launches training jobs as child processes of the container binary
// and tracks their lifecycle.
type Driver struct {
	config  *config.Config
	store   objectstorage.ObjectStorage
	storage storage.Storage

	// jobName generates the unique job name of a submission.
	jobName func(baseName string) string

	// jobs maps the timestamped job name to its Job, guaranteeing a name
	// is only ever launched once.
	jobs sync.Map
}

// DriverOption is a functional option for configuring the driver.
type DriverOption func(d *Driver)

// WithObjectStorage sets the artifact store.
func WithObjectStorage(store objectstorage.ObjectStorage) DriverOption {
	return func(d *Driver) {
		d.store = store
	}
}

// WithJobNamer overrides job name generation.
func WithJobNamer(jobName func(baseName string) string) DriverOption {
	return func(d *Driver) {
		d.jobName = jobName
	}
}

// NewDriver returns a driver rooted at the configured work directory.
func NewDriver(cfg *config.Config, options ...DriverOption) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, err
	}
	metricsDir := filepath.Join(cfg.WorkDir, "metrics")
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return nil, err
	}

	d := &Driver{
		config:  cfg,
		storage: storage.New(metricsDir),
		jobName: idgen.JobName,
	}
	for _, opt := range options {
		opt(d)
	}

	if d.store == nil && cfg.ObjectStorage.Enable {
		store, err := objectstorage.New(
			cfg.ObjectStorage.Name,
			cfg.ObjectStorage.Region,
			cfg.ObjectStorage.Endpoint,
			cfg.ObjectStorage.AccessKey,
			cfg.ObjectStorage.SecretKey,
		)
		if err != nil {
			return nil, err
		}
		d.store = store
	}

	return d, nil
}

// Submit names the job, registers it, and launches the attempt in the
// background. A name collision rejects the submission, resubmitting the same
// base name always yields a distinct job.
func (d *Driver) Submit(ctx context.Context, spec JobSpec) (*Job, error) {
	if spec.BaseName == "" {
		metrics.JobSubmittedFailureCount.Inc()
		return nil, sterrors.Provisioningf("submission requires a base name")
	}
	if len(spec.Channels) == 0 {
		metrics.JobSubmittedFailureCount.Inc()
		return nil, sterrors.Provisioningf("submission requires at least one channel")
	}
	if spec.Hyperparameters == nil {
		spec.Hyperparameters = containerconfig.NewHyperparameterSet()
	}

	name := d.jobName(spec.BaseName)
	job := NewJob(name, spec.BaseName, spec.Hyperparameters)
	if _, loaded := d.jobs.LoadOrStore(name, job); loaded {
		metrics.JobSubmittedFailureCount.Inc()
		return nil, sterrors.Provisioningf("job %s already exists", name)
	}
	metrics.JobSubmittedCount.Inc()
	job.Log.Infof("job submitted with base name %s", spec.BaseName)

	go d.runJob(ctx, job, spec)
	return job, nil
}

// LoadJob returns the job of the given name.
func (d *Driver) LoadJob(name string) (*Job, bool) {
	v, ok := d.jobs.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Jobs returns all registered jobs.
func (d *Driver) Jobs() []*Job {
	var jobs []*Job
	d.jobs.Range(func(_, v any) bool {
		jobs = append(jobs, v.(*Job))
		return true
	})
	return jobs
}

// Observations returns the metric observations recorded for the job.
func (d *Driver) Observations(jobName string) ([]training.Observation, error) {
	return d.storage.ListObservations(jobName)
}

// ModelDir returns the directory the job's model artifact lands in.
func (d *Driver) ModelDir(jobName string) string {
	return filepath.Join(d.config.WorkDir, jobName, "model")
}

// OutputDataDir returns the job's auxiliary output directory.
func (d *Driver) OutputDataDir(jobName string) string {
	return filepath.Join(d.config.WorkDir, jobName, "output", "data")
}

func (d *Driver) runJob(ctx context.Context, job *Job, spec JobSpec) {
	ctx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	channelDirs, err := d.stageChannels(ctx, job, spec.Channels)
	if err != nil {
		d.failJob(job, err)
		return
	}

	modelDir := d.ModelDir(job.Name)
	outputDataDir := d.OutputDataDir(job.Name)
	for _, dir := range []string{modelDir, outputDataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			d.failJob(job, sterrors.Provisioningf("create job directory %s: %v", dir, err))
			return
		}
	}

	if err := job.run(); err != nil {
		d.failJob(job, err)
		return
	}

	if err := d.launch(ctx, job, channelDirs, modelDir, outputDataDir); err != nil {
		d.failJob(job, err)
		return
	}

	// A run only succeeds with exactly one model artifact laid down.
	matches, err := filepath.Glob(filepath.Join(modelDir, "*.json"))
	if err != nil {
		d.failJob(job, err)
		return
	}
	if len(matches) != 1 {
		d.failJob(job, sterrors.JobFailedf("job %s produced %d model artifacts, want 1", job.Name, len(matches)))
		return
	}

	if d.store != nil {
		if err := d.uploadArtifacts(ctx, job, matches[0], outputDataDir); err != nil {
			d.failJob(job, err)
			return
		}
	}

	metrics.JobSucceededCount.Inc()
	if err := job.succeed(); err != nil {
		job.Log.Errorf("job transition failed: %v", err)
	}
}

func (d *Driver) failJob(job *Job, cause error) {
	metrics.JobFailedCount.Inc()
	job.Log.Errorf("job failed: %v", cause)
	if err := job.fail(cause); err != nil {
		job.Log.Errorf("job transition failed: %v", err)
	}
}

// stageChannels resolves every channel to a local directory, pulling
// store:// prefixes down into the job workspace.
func (d *Driver) stageChannels(ctx context.Context, job *Job, channels map[string]string) (map[string]string, error) {
	channelDirs := map[string]string{}
	for name, uri := range channels {
		if !strings.HasPrefix(uri, storePrefixScheme) {
			entries, err := os.ReadDir(uri)
			if err != nil {
				return nil, sterrors.Provisioningf("channel %s directory %s is not usable", name, uri)
			}
			if len(entries) == 0 {
				return nil, sterrors.Provisioningf("channel %s resolved to empty directory %s", name, uri)
			}
			channelDirs[name] = uri
			continue
		}

		if d.store == nil {
			return nil, sterrors.Provisioningf("channel %s needs an artifact store", name)
		}

		dir := filepath.Join(d.config.WorkDir, job.Name, "input", name)
		if err := d.downloadPrefix(ctx, strings.TrimPrefix(uri, storePrefixScheme), dir); err != nil {
			return nil, sterrors.Provisioningf("stage channel %s: %v", name, err)
		}
		channelDirs[name] = dir
	}
	return channelDirs, nil
}

func (d *Driver) downloadPrefix(ctx context.Context, prefix, dir string) error {
	bucket := d.config.ObjectStorage.Bucket
	var marker string
	for {
		meta, err := d.store.ListObjectMetadatas(ctx, bucket, prefix, marker, 100)
		if err != nil {
			return err
		}
		if len(meta) == 0 {
			break
		}

		for _, m := range meta {
			rel := strings.TrimPrefix(strings.TrimPrefix(m.Key, prefix), "/")
			path := filepath.Join(dir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}

			rc, err := d.store.GetObject(ctx, bucket, m.Key)
			if err != nil {
				return err
			}
			file, err := os.Create(path)
			if err != nil {
				rc.Close()
				return err
			}
			_, err = io.Copy(file, rc)
			rc.Close()
			file.Close()
			if err != nil {
				return err
			}
			marker = m.Key
		}
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("prefix %s holds no objects", prefix)
	}
	return nil
}

// launch execs the container binary and scans its output for metric lines.
func (d *Driver) launch(ctx context.Context, job *Job, channelDirs map[string]string, modelDir, outputDataDir string) error {
	args := append([]string{"train"}, job.Hyperparameters.Args()...)
	cmd := exec.CommandContext(ctx, d.config.BinPath, args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", containerconfig.EnvModelDir, modelDir),
		fmt.Sprintf("%s=%s", containerconfig.EnvOutputDataDir, outputDataDir),
		fmt.Sprintf("%s=%s", containerconfig.EnvCurrentHost, CurrentHostName),
	)
	for name, dir := range channelDirs {
		cmd.Env = append(cmd.Env, containerconfig.ChannelEnv(name, dir))
	}
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return sterrors.JobFailedf("launch %s: %v", d.config.BinPath, err)
	}
	job.Log.Infof("launched %s %v as pid %d", d.config.BinPath, args, cmd.Process.Pid)

	var observations []training.Observation
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		logger.JobLogger.Infof("[%s] %s", job.Name, line)

		if obs, ok := training.ParseMetricLine(line); ok {
			obs.SeenAt = time.Now().Unix()
			observations = append(observations, obs)
		}
	}
	if err := scanner.Err(); err != nil {
		job.Log.Errorf("scan job output: %v", err)
	}

	waitErr := cmd.Wait()
	if len(observations) > 0 {
		if err := d.storage.CreateObservations(job.Name, observations); err != nil {
			job.Log.Errorf("record observations: %v", err)
		}
	}
	if waitErr != nil {
		return sterrors.JobFailedf("job process exited: %v", waitErr)
	}
	return nil
}

// uploadArtifacts pushes the model bundle under the job's model prefix and
// the report under its output prefix, keeping the model prefix loadable on
// its own at deploy time.
func (d *Driver) uploadArtifacts(ctx context.Context, job *Job, modelPath, outputDataDir string) error {
	uploads := map[string]string{modelPath: "model"}
	reportPath := filepath.Join(outputDataDir, training.ReportFileName)
	if _, err := os.Stat(reportPath); err == nil {
		uploads[reportPath] = "output"
	}

	for path, kind := range uploads {
		if err := d.uploadFile(ctx, job, path, kind); err != nil {
			metrics.UploadArtifactFailureCount.Inc()
			return sterrors.JobFailedf("upload %s: %v", path, err)
		}
		metrics.UploadArtifactCount.Inc()
	}
	return nil
}

func (d *Driver) uploadFile(ctx context.Context, job *Job, path, kind string) error {
	dgst, err := digest.SHA256FromFile(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s/%s/%s", ArtifactPrefix, job.Name, kind, filepath.Base(path))
	if err := d.store.CreateObject(ctx, d.config.ObjectStorage.Bucket, key, dgst, file); err != nil {
		return err
	}
	job.Log.Infof("uploaded artifact %s with digest %s", key, dgst)
	return nil
}
