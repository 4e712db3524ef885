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
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/training"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/version"
)

var trainCmd = &cobra.Command{
	Use:               "train [flags]",
	Short:             "run a training job inside the container",
	Long:              `Train reads its data channels and output directories from the environment, takes hyperparameters as flags, fits the classifier, and lays down the model artifact.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}

		// Resolve config from the environment.
		cfg := config.New()

		// Hyperparameter flags override the environment.
		if cmd.Flags().Changed("epochs") {
			cfg.Hyperparameters.Epochs, _ = cmd.Flags().GetInt("epochs")
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Hyperparameters.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		}
		if cmd.Flags().Changed("learning-rate") {
			cfg.Hyperparameters.LearningRate, _ = cmd.Flags().GetFloat64("learning-rate")
		}
		if cmd.Flags().Changed("image-size") {
			cfg.Hyperparameters.ImageSize, _ = cmd.Flags().GetInt("image-size")
		}

		// Convert config.
		if err := cfg.Convert(); err != nil {
			return err
		}

		// Validate config.
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Infof("version:\n%s", version.Version())
		return training.New(cfg).Run(ctx)
	},
}

func init() {
	flags := trainCmd.Flags()
	flags.Int("epochs", config.DefaultEpochs, "number of passes over the training split")
	flags.Int("batch-size", config.DefaultBatchSize, "number of samples per gradient update")
	flags.Float64("learning-rate", config.DefaultLearningRate, "gradient step size")
	flags.Int("image-size", config.DefaultImageSize, "feature grid size images are pooled to")
}
