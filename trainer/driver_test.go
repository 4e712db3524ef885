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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	containerconfig "github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/training"
	"github.com/stitchml/stitch/internal/sterrors"
	"github.com/stitchml/stitch/pkg/objectstorage"
	"github.com/stitchml/stitch/trainer/config"
)

const trainScript = `#!/bin/sh
echo "[algo-1] Epoch[0] train:accuracy=0.750000"
echo "[algo-1] Epoch[0] valid:accuracy=0.900000"
echo '{"arch":"logit8"}' > "$STITCH_MODEL_DIR/logit8.json"
echo '{"arch":"logit8"}' > "$STITCH_OUTPUT_DATA_DIR/training-report.json"
`

const noArtifactScript = `#!/bin/sh
echo "started without writing a model"
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func testDriverConfig(t *testing.T, binPath string) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.WorkDir = t.TempDir()
	cfg.BinPath = binPath
	cfg.JobTimeout = time.Minute
	return cfg
}

func testChannels(t *testing.T) map[string]string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "coat"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tee"), 0755))
	return map[string]string{containerconfig.TrainingChannelName: dir}
}

func TestDriver_Submit(t *testing.T) {
	d, err := NewDriver(testDriverConfig(t, writeScript(t, trainScript)))
	require.NoError(t, err)

	job, err := d.Submit(context.Background(), JobSpec{
		BaseName: "garments-train",
		Channels: testChannels(t),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^garments-train-\d{8}-\d{6}$`, job.Name)

	assert.NoError(t, job.Wait(context.Background()))
	assert.Equal(t, JobStateSucceeded, job.State())

	// artifact landed in the job's model dir
	_, err = os.Stat(filepath.Join(d.ModelDir(job.Name), "logit8.json"))
	assert.NoError(t, err)

	// metric lines were recorded as observations
	observations, err := d.Observations(job.Name)
	assert.NoError(t, err)
	assert.Len(t, observations, 2)
	assert.Equal(t, training.ValidSplit, observations[1].Split)
	assert.Equal(t, 0.9, observations[1].Value)

	loaded, ok := d.LoadJob(job.Name)
	assert.True(t, ok)
	assert.Equal(t, job, loaded)
	assert.Len(t, d.Jobs(), 1)
}

func TestDriver_SubmitRejections(t *testing.T) {
	tests := []struct {
		name string
		spec JobSpec
	}{
		{
			name: "missing base name",
			spec: JobSpec{Channels: map[string]string{"training": os.TempDir()}},
		},
		{
			name: "missing channels",
			spec: JobSpec{BaseName: "garments-train"},
		},
	}

	d, err := NewDriver(testDriverConfig(t, "/bin/true"))
	require.NoError(t, err)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Submit(context.Background(), tc.spec)
			assert.Error(t, err)
			assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
		})
	}
}

func TestDriver_SubmitDuplicateName(t *testing.T) {
	cfg := testDriverConfig(t, writeScript(t, trainScript))
	d, err := NewDriver(cfg, WithJobNamer(func(baseName string) string {
		return baseName + "-20230401-120000"
	}))
	require.NoError(t, err)

	spec := JobSpec{BaseName: "garments-train", Channels: testChannels(t)}
	first, err := d.Submit(context.Background(), spec)
	require.NoError(t, err)

	_, err = d.Submit(context.Background(), spec)
	assert.Error(t, err)
	assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
	assert.NoError(t, first.Wait(context.Background()))
}

func TestDriver_JobFailures(t *testing.T) {
	tests := []struct {
		name     string
		binPath  func(t *testing.T) string
		channels func(t *testing.T) map[string]string
		kind     sterrors.Kind
	}{
		{
			name:     "process exits nonzero",
			binPath:  func(t *testing.T) string { return "/bin/false" },
			channels: testChannels,
			kind:     sterrors.KindJobFailed,
		},
		{
			name:     "no artifact produced",
			binPath:  func(t *testing.T) string { return writeScript(t, noArtifactScript) },
			channels: testChannels,
			kind:     sterrors.KindJobFailed,
		},
		{
			name:    "missing channel directory",
			binPath: func(t *testing.T) string { return writeScript(t, trainScript) },
			channels: func(t *testing.T) map[string]string {
				return map[string]string{"training": filepath.Join(t.TempDir(), "missing")}
			},
			kind: sterrors.KindProvisioning,
		},
		{
			name:    "empty channel directory",
			binPath: func(t *testing.T) string { return writeScript(t, trainScript) },
			channels: func(t *testing.T) map[string]string {
				return map[string]string{"training": t.TempDir()}
			},
			kind: sterrors.KindProvisioning,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDriver(testDriverConfig(t, tc.binPath(t)))
			require.NoError(t, err)

			job, err := d.Submit(context.Background(), JobSpec{
				BaseName: "garments-train",
				Channels: tc.channels(t),
			})
			require.NoError(t, err)

			err = job.Wait(context.Background())
			assert.Error(t, err)
			assert.True(t, sterrors.IsKind(err, tc.kind))
			assert.Equal(t, JobStateFailed, job.State())
		})
	}
}

func TestDriver_StoreChannelsAndUpload(t *testing.T) {
	storeDir := t.TempDir()
	store, err := objectstorage.New(objectstorage.ServiceNameLocal, "", storeDir, "", "")
	require.NoError(t, err)

	cfg := testDriverConfig(t, writeScript(t, trainScript))
	cfg.ObjectStorage.Enable = true
	cfg.ObjectStorage.Bucket = "artifacts"

	// seed the dataset under the staged prefix
	for _, key := range []string{"datasets/garments/coat/a.jpg", "datasets/garments/tee/b.jpg"} {
		require.NoError(t, store.CreateObject(context.Background(), "artifacts", key, "", bytes.NewReader([]byte("jpegbytes"))))
	}

	d, err := NewDriver(cfg, WithObjectStorage(store))
	require.NoError(t, err)

	job, err := d.Submit(context.Background(), JobSpec{
		BaseName: "garments-train",
		Channels: map[string]string{containerconfig.TrainingChannelName: "store://datasets/garments"},
	})
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background()))

	// dataset was staged into the job workspace
	staged := filepath.Join(cfg.WorkDir, job.Name, "input", containerconfig.TrainingChannelName)
	_, err = os.Stat(filepath.Join(staged, "coat", "a.jpg"))
	assert.NoError(t, err)

	// artifact and report were uploaded under the job's prefixes
	for _, key := range []string{"model/logit8.json", "output/" + training.ReportFileName} {
		exists, err := store.IsObjectExist(context.Background(), "artifacts", "jobs/"+job.Name+"/"+key)
		assert.NoError(t, err)
		assert.True(t, exists, key)
	}
}
