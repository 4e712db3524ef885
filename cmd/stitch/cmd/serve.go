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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stitchml/stitch/container/config"
	"github.com/stitchml/stitch/container/serving"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/version"
)

var serveCmd = &cobra.Command{
	Use:               "serve [flags]",
	Short:             "serve the model artifact inside the container",
	Long:              `Serve loads the model bundle from the model directory, warms it, and answers invocations until stopped.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}

		modelDir, _ := cmd.Flags().GetString("model-dir")
		if dir := os.Getenv(config.EnvModelDir); dir != "" && !cmd.Flags().Changed("model-dir") {
			modelDir = dir
		}
		addr, _ := cmd.Flags().GetString("addr")

		logger.Infof("version:\n%s", version.Version())
		handler := serving.NewHandler(modelDir)
		if err := handler.Warmup(); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: serving.NewRouter(handler, verbose),
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("server shutdown: %v", err)
			}
		}()

		logger.Infof("serving invocations on %s with model dir %s", addr, modelDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address of the inference server")
	flags.String("model-dir", config.DefaultModelDir, "directory holding the model bundle")
}
