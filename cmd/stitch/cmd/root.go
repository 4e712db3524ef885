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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/version"
)

var (
	verbose bool
	console bool
	logDir  string
)

var stitchDescription = `
stitch trains and serves a binary garment image classifier. The train and
serve commands are the container entrypoints of a job, submit and deploy
drive the container lifecycle from the outside.
`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:               "stitch <command> [flags]",
	Short:             "garment classifier lifecycle tool",
	Long:              stitchDescription,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "show version",
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&verbose, "verbose", false, "enable debug level logging")
	flags.BoolVar(&console, "console", true, "log to console instead of files")
	flags.StringVar(&logDir, "log-dir", "", "log directory when console logging is off")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	// Add sub command.
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(deployCmd)
}

// initLogger sets the process loggers up from the persistent flags.
func initLogger() error {
	if err := logger.Init(verbose, console, logDir); err != nil {
		return errors.Wrap(err, "init logger")
	}
	return nil
}
