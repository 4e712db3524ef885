package training

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/sjwhitworth/golearn/base"

	"github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/models"
	"github.com/stitchml/stitch/internal/sterrors"
	logger "github.com/stitchml/stitch/internal/stlog"
)

// ReportFileName is the auxiliary artifact written next to the metrics, not
// into the model directory.
const ReportFileName = "training-report.json"

// Report summarizes a finished run for the auxiliary output channel.
type Report struct {
	Arch          string   `json:"arch"`
	Labels        []string `json:"labels"`
	Epochs        int      `json:"epochs"`
	BatchSize     int      `json:"batch_size"`
	LearningRate  float64  `json:"learning_rate"`
	ImageSize     int      `json:"image_size"`
	Samples       int      `json:"samples"`
	TrainAccuracy float64  `json:"train_accuracy"`
	ValidAccuracy float64  `json:"valid_accuracy"`
}

// Training implements the train entrypoint of the container.
type Training struct {
	config *config.Config

	// metric lines go here so the launching process can grep them.
	out io.Writer
}

// Option is a functional option for configuring the training run.
type Option func(t *Training)

// WithMetricWriter redirects metric lines, used by tests.
func WithMetricWriter(w io.Writer) Option {
	return func(t *Training) {
		t.out = w
	}
}

// New returns a training run over the given resolved config.
func New(cfg *config.Config, options ...Option) *Training {
	t := &Training{
		config: cfg,
		out:    os.Stdout,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Run loads the training channel, fits the model for the configured number
// of epochs emitting accuracy metrics per epoch, and lays down the model
// bundle and the training report.
func (t *Training) Run(ctx context.Context) error {
	hp := t.config.Hyperparameters
	dataset, err := LoadDataset(t.config.Channels[config.TrainingChannelName], hp.ImageSize)
	if err != nil {
		return err
	}

	trainSet, validSet := base.InstancesTrainTestSplit(dataset.Instances, 0.2)
	model := models.NewLogisticRegression()
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := model.Fit(trainSet, hp.BatchSize, hp.LearningRate); err != nil {
			return sterrors.JobFailedf("fit epoch %d: %v", epoch, err)
		}

		trainAcc, err := accuracy(model, trainSet)
		if err != nil {
			return sterrors.JobFailedf("evaluate train split: %v", err)
		}
		validAcc, err := accuracy(model, validSet)
		if err != nil {
			return sterrors.JobFailedf("evaluate valid split: %v", err)
		}

		EmitMetric(t.out, t.config.CurrentHost, epoch, TrainSplit, AccuracyMetric, trainAcc)
		EmitMetric(t.out, t.config.CurrentHost, epoch, ValidSplit, AccuracyMetric, validAcc)
	}

	bundle := &models.Bundle{
		Arch:      models.DefaultArch,
		Labels:    dataset.Labels,
		ImageSize: hp.ImageSize,
		Model:     model,
	}
	if err := bundle.Save(t.config.ModelDir); err != nil {
		return sterrors.JobFailedf("save model bundle: %v", err)
	}
	logger.Infof("saved model bundle %s to %s", bundle.Arch, t.config.ModelDir)

	trainAcc, err := accuracy(model, trainSet)
	if err != nil {
		return sterrors.JobFailedf("evaluate train split: %v", err)
	}
	validAcc, err := accuracy(model, validSet)
	if err != nil {
		return sterrors.JobFailedf("evaluate valid split: %v", err)
	}
	_, samples := dataset.Instances.Size()
	report := &Report{
		Arch:          bundle.Arch,
		Labels:        dataset.Labels,
		Epochs:        hp.Epochs,
		BatchSize:     hp.BatchSize,
		LearningRate:  hp.LearningRate,
		ImageSize:     hp.ImageSize,
		Samples:       samples,
		TrainAccuracy: trainAcc,
		ValidAccuracy: validAcc,
	}
	if err := writeReport(t.config.OutputDataDir, report); err != nil {
		return sterrors.JobFailedf("write training report: %v", err)
	}
	return nil
}

// accuracy scores the model over the grid, thresholding the positive-class
// probability at 0.5.
func accuracy(model *models.LogisticRegression, grid base.FixedDataGrid) (float64, error) {
	predictions, err := model.Predict(grid)
	if err != nil {
		return 0, err
	}

	classAttrs := grid.AllClassAttributes()
	wantSpecs := base.ResolveAttributes(grid, classAttrs)
	gotSpecs := base.ResolveAttributes(predictions, predictions.AllClassAttributes())

	_, rows := grid.Size()
	if rows == 0 {
		return 0, nil
	}
	correct := 0
	for i := 0; i < rows; i++ {
		want := base.UnpackBytesToFloat(grid.Get(wantSpecs[0], i))
		got := 0.0
		if base.UnpackBytesToFloat(predictions.Get(gotSpecs[0], i)) > 0.5 {
			got = 1.0
		}
		if want == got {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

func writeReport(dir string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ReportFileName), data, 0644)
}
