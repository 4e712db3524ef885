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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	containerconfig "github.com/stitchml/stitch/container/config"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/trainer"
	"github.com/stitchml/stitch/trainer/config"
)

var submitCfg = config.New()

var submitCmd = &cobra.Command{
	Use:               "submit [flags]",
	Short:             "submit a training job and wait for it",
	Long:              `Submit names a new training job, launches the container's train entrypoint against the given channels, records its metrics, and waits for a terminal state.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}

		baseName, _ := cmd.Flags().GetString("name")
		channels, _ := cmd.Flags().GetStringToString("channel")

		hyperparameters := containerconfig.NewHyperparameterSet()
		if cmd.Flags().Changed("epochs") {
			epochs, _ := cmd.Flags().GetInt("epochs")
			hyperparameters["epochs"] = strconv.Itoa(epochs)
		}
		if cmd.Flags().Changed("batch-size") {
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			hyperparameters["batch-size"] = strconv.Itoa(batchSize)
		}
		if cmd.Flags().Changed("learning-rate") {
			learningRate, _ := cmd.Flags().GetFloat64("learning-rate")
			hyperparameters["learning-rate"] = strconv.FormatFloat(learningRate, 'f', -1, 64)
		}
		if cmd.Flags().Changed("image-size") {
			imageSize, _ := cmd.Flags().GetInt("image-size")
			hyperparameters["image-size"] = strconv.Itoa(imageSize)
		}

		if submitCfg.BinPath == "" {
			bin, err := os.Executable()
			if err != nil {
				return err
			}
			submitCfg.BinPath = bin
		}

		driver, err := trainer.NewDriver(submitCfg)
		if err != nil {
			return errors.Wrap(err, "create training driver")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		job, err := driver.Submit(ctx, trainer.JobSpec{
			BaseName:        baseName,
			Channels:        channels,
			Hyperparameters: hyperparameters,
		})
		if err != nil {
			return err
		}
		fmt.Printf("job %s submitted\n", job.Name)

		if err := job.Wait(ctx); err != nil {
			return errors.Wrapf(err, "job %s %s", job.Name, job.State())
		}
		fmt.Printf("job %s %s, model dir %s\n", job.Name, job.State(), driver.ModelDir(job.Name))

		observations, err := driver.Observations(job.Name)
		if err != nil {
			logger.Warnf("no observations recorded for %s: %v", job.Name, err)
			return nil
		}
		for _, obs := range observations {
			fmt.Printf("epoch %d %s:%s=%f\n", obs.Epoch, obs.Split, obs.Name, obs.Value)
		}
		return nil
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.String("name", "garments-train", "base name of the job")
	flags.StringToString("channel", map[string]string{}, "channel name to directory or store:// prefix")
	flags.Int("epochs", containerconfig.DefaultEpochs, "number of passes over the training split")
	flags.Int("batch-size", containerconfig.DefaultBatchSize, "number of samples per gradient update")
	flags.Float64("learning-rate", containerconfig.DefaultLearningRate, "gradient step size")
	flags.Int("image-size", containerconfig.DefaultImageSize, "feature grid size images are pooled to")
	flags.StringVar(&submitCfg.WorkDir, "work-dir", submitCfg.WorkDir, "root directory for job workspaces")
	flags.StringVar(&submitCfg.BinPath, "bin", "", "container binary to launch, defaults to this executable")
	flags.DurationVar(&submitCfg.JobTimeout, "timeout", submitCfg.JobTimeout, "job runtime bound")
	bindObjectStorageFlags(flags, &submitCfg.ObjectStorage)
}
