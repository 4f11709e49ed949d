/***************************************************************
 *
 * Copyright (C) 2024, Quattor Community
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quattor/scdbtools/cmd/config_printer"
	"github.com/quattor/scdbtools/config"
	"github.com/quattor/scdbtools/logging"
	"github.com/quattor/scdbtools/metrics"
	"github.com/quattor/scdbtools/param"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "scdb",
		Short: "Build tools for a Quattor configuration database",
		Long: `scdb generates and maintains the pan templates of a Quattor
configuration database: VO parameters from the VO ID cards, RPM repository
templates, the profile index, SVN tags and working copies, and client
notifications.`,
		SilenceUsage:      true,
		PersistentPreRunE: initCommand,
	}
)

// initCommand loads the configuration and flushes the log entries buffered
// while doing so to their final destination.
func initCommand(cmd *cobra.Command, _ []string) error {
	err := config.InitConfig(cfgFile)
	config.InitLogging()
	logging.FlushLogs(true)
	return err
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exeErr := rootCmd.ExecuteContext(ctx)
	if exeErr != nil {
		log.Errorln("Fatal error:", exeErr)
	}

	if err := metrics.WriteTextfile(param.Metrics_TextfilePath.GetString()); err != nil {
		log.Warningln("Failed to write metrics:", err)
	}
	return exeErr
}

func init() {
	logging.SetupLogBuffering()

	rootCmd.AddCommand(voCmd)
	rootCmd.AddCommand(repositoryCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(svnCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(config_printer.ConfigCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/scdb/scdb.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logs")
	rootCmd.PersistentFlags().StringP("log", "l", "", "Specified log output file")
	rootCmd.PersistentFlags().BoolP("dry-run", "n", false, "Print the changes instead of writing them")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write run metrics to this file in the Prometheus text format")
	// Register the version flag here just so --help will show this flag
	rootCmd.PersistentFlags().Bool("version", false, "Print the version and exit")

	bindFlag(rootCmd.PersistentFlags().Lookup("debug"), param.Debug.GetName())
	bindFlag(rootCmd.PersistentFlags().Lookup("log"), param.Logging_LogLocation.GetName())
	bindFlag(rootCmd.PersistentFlags().Lookup("dry-run"), param.DryRun.GetName())
	bindFlag(rootCmd.PersistentFlags().Lookup("metrics-file"), param.Metrics_TextfilePath.GetName())
}
