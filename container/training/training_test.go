package training

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/models"
	"github.com/stitchml/stitch/internal/sterrors"
)

// writeImageDataset lays down a two-label channel directory with count
// uniform images per label, bright for the second label and dark for the
// first so a linear model can tell them apart.
func writeImageDataset(t *testing.T, dir string, count int) {
	t.Helper()
	shades := map[string]uint8{"coat": 30, "tee": 220}
	for _, label := range []string{"coat", "tee"} {
		labelDir := filepath.Join(dir, label)
		assert.NoError(t, os.MkdirAll(labelDir, 0755))
		for i := 0; i < count; i++ {
			img := image.NewRGBA(image.Rect(0, 0, 16, 16))
			shade := shades[label] + uint8(i%8)
			for y := 0; y < 16; y++ {
				for x := 0; x < 16; x++ {
					img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
				}
			}
			var buf bytes.Buffer
			assert.NoError(t, png.Encode(&buf, img))
			name := filepath.Join(labelDir, "img"+strconv.Itoa(i)+".png")
			assert.NoError(t, os.WriteFile(name, buf.Bytes(), 0644))
		}
	}
}

func testConfig(t *testing.T, channelDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Channels:      map[string]string{config.TrainingChannelName: channelDir},
		ModelDir:      t.TempDir(),
		OutputDataDir: t.TempDir(),
		CurrentHost:   "algo-1",
		Hyperparameters: config.Hyperparameters{
			Epochs:       20,
			BatchSize:    8,
			LearningRate: 0.5,
			ImageSize:    4,
		},
	}
}

func TestLoadDataset(t *testing.T) {
	tests := []struct {
		name    string
		mock    func(t *testing.T) string
		expect  func(t *testing.T, ds *Dataset, err error)
	}{
		{
			name: "two labels load in sorted order",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				writeImageDataset(t, dir, 3)
				return dir
			},
			expect: func(t *testing.T, ds *Dataset, err error) {
				assert.NoError(t, err)
				assert.Equal(t, []string{"coat", "tee"}, ds.Labels)
				cols, rows := ds.Instances.Size()
				assert.Equal(t, 6, rows)
				assert.Equal(t, 4*4+1, cols)
			},
		},
		{
			name: "one label directory rejected",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				assert.NoError(t, os.MkdirAll(filepath.Join(dir, "coat"), 0755))
				return dir
			},
			expect: func(t *testing.T, ds *Dataset, err error) {
				assert.Error(t, err)
				assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
			},
		},
		{
			name: "no decodable images rejected",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				for _, label := range []string{"coat", "tee"} {
					labelDir := filepath.Join(dir, label)
					assert.NoError(t, os.MkdirAll(labelDir, 0755))
					assert.NoError(t, os.WriteFile(filepath.Join(labelDir, "junk.png"), []byte("junk"), 0644))
				}
				return dir
			},
			expect: func(t *testing.T, ds *Dataset, err error) {
				assert.Error(t, err)
				assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
			},
		},
		{
			name: "missing directory rejected",
			mock: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "no-such-channel")
			},
			expect: func(t *testing.T, ds *Dataset, err error) {
				assert.Error(t, err)
				assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := LoadDataset(tc.mock(t), 4)
			tc.expect(t, ds, err)
		})
	}
}

func TestTraining_Run(t *testing.T) {
	channelDir := t.TempDir()
	writeImageDataset(t, channelDir, 12)
	cfg := testConfig(t, channelDir)

	var metricOut bytes.Buffer
	run := New(cfg, WithMetricWriter(&metricOut))
	assert.NoError(t, run.Run(context.Background()))

	// model bundle lands in the model dir under the architecture name
	bundle, err := models.LoadBundle(cfg.ModelDir)
	assert.NoError(t, err)
	assert.Equal(t, models.DefaultArch, bundle.Arch)
	assert.Equal(t, []string{"coat", "tee"}, bundle.Labels)
	assert.Equal(t, 4, bundle.ImageSize)

	// one metric line per split per epoch
	trainPattern := MetricPattern(TrainSplit, AccuracyMetric)
	validPattern := MetricPattern(ValidSplit, AccuracyMetric)
	assert.Len(t, trainPattern.FindAllString(metricOut.String(), -1), cfg.Hyperparameters.Epochs)
	assert.Len(t, validPattern.FindAllString(metricOut.String(), -1), cfg.Hyperparameters.Epochs)

	// report goes to the auxiliary output dir, not the model dir
	data, err := os.ReadFile(filepath.Join(cfg.OutputDataDir, ReportFileName))
	assert.NoError(t, err)
	var report Report
	assert.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, models.DefaultArch, report.Arch)
	assert.Equal(t, cfg.Hyperparameters.Epochs, report.Epochs)
	assert.Equal(t, 24, report.Samples)
	assert.GreaterOrEqual(t, report.TrainAccuracy, 0.5)
}

func TestTraining_RunCanceled(t *testing.T) {
	channelDir := t.TempDir()
	writeImageDataset(t, channelDir, 4)
	cfg := testConfig(t, channelDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(cfg, WithMetricWriter(&bytes.Buffer{})).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraining_RunMissingChannel(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	err := New(cfg, WithMetricWriter(&bytes.Buffer{})).Run(context.Background())
	assert.Error(t, err)
	assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
}
