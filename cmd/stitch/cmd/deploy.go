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
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/predictor"
	"github.com/stitchml/stitch/trainer/config"
)

var deployStorageCfg = config.New().ObjectStorage

var deployCmd = &cobra.Command{
	Use:               "deploy [flags]",
	Short:             "deploy a model artifact behind an endpoint",
	Long:              `Deploy names a new endpoint, stages the model artifact, warms it, and serves invocations until stopped. The endpoint is drained and deleted on shutdown.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}

		baseName, _ := cmd.Flags().GetString("name")
		model, _ := cmd.Flags().GetString("model")
		addr, _ := cmd.Flags().GetString("addr")
		workDir, _ := cmd.Flags().GetString("work-dir")

		store, err := newObjectStorage(deployStorageCfg)
		if err != nil {
			return errors.Wrap(err, "create artifact store")
		}

		var options []predictor.DriverOption
		if store != nil {
			options = append(options, predictor.WithObjectStorage(store, deployStorageCfg.Bucket))
		}
		driver, err := predictor.NewDriver(workDir, options...)
		if err != nil {
			return errors.Wrap(err, "create endpoint driver")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		endpoint, err := driver.Deploy(ctx, predictor.DeploySpec{
			BaseName:   baseName,
			Model:      model,
			ListenAddr: addr,
		})
		if err != nil {
			return err
		}
		fmt.Printf("endpoint %s %s on %s\n", endpoint.Name, endpoint.State(), endpoint.Addr)

		<-ctx.Done()
		deleteCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := driver.Delete(deleteCtx, endpoint.Name); err != nil {
			logger.Errorf("delete endpoint %s: %v", endpoint.Name, err)
			return err
		}
		fmt.Printf("endpoint %s deleted\n", endpoint.Name)
		return nil
	},
}

func init() {
	flags := deployCmd.Flags()
	flags.String("name", "garments-endpoint", "base name of the endpoint")
	flags.String("model", "", "model directory or store:// prefix")
	flags.String("addr", "127.0.0.1:8080", "listen address of the endpoint")
	flags.String("work-dir", filepath.Join(os.TempDir(), "stitch", "endpoints"), "root directory for staged models")
	bindObjectStorageFlags(flags, &deployStorageCfg)
}
