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

// Package config_printer implements the "config" command family, which
// prints the effective scdb configuration.
package config_printer

import (
	"github.com/spf13/cobra"
)

var (
	ConfigCmd = &cobra.Command{
		Use:   "config",
		Short: "View and search for configuration parameters",
	}

	configDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dump all configuration parameters",
		Long: `The 'dump' command outputs all current configuration parameters and their
values, including default values that have not been explicitly set.`,
		Args: cobra.NoArgs,
		RunE: configDump,
	}

	configGetCmd = &cobra.Command{
		Use:   "get [pattern...]",
		Short: "Retrieve config parameters that match any of the given arguments",
		Long: `The 'get' command prints, one per line, the configuration parameters
whose name or value contains any of the given patterns, ignoring case. Without
patterns, every parameter is printed.`,
		Example: `# Show everything about the svn workspace and the VO branches
scdb config get workspace branches`,
		RunE: configGet,
	}

	configSummaryCmd = &cobra.Command{
		Use:     "summary",
		Short:   "Print config parameters that differ from the default values",
		Aliases: []string{"sum"},
		Args:    cobra.NoArgs,
		RunE:    configSummary,
	}

	format string
)

func init() {
	ConfigCmd.AddCommand(configDumpCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSummaryCmd)

	configDumpCmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format (yaml or json)")
	configSummaryCmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format (yaml or json)")
}
