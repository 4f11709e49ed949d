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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quattor/scdbtools/pan"
	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/profileinfo"
)

var (
	profilesCmd = &cobra.Command{
		Use:   "profiles",
		Short: "Maintain the compiled profiles directory",
	}

	profilesInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Write the index of the profiles directory",
		Long: `Write the profile index listing every profile of the profiles
directory with its modification time. Nothing is done when no directory is
configured.`,
		Args: cobra.NoArgs,
		RunE: runProfilesInfo,
	}
)

func init() {
	profilesCmd.AddCommand(profilesInfoCmd)

	flags := profilesInfoCmd.Flags()
	flags.String("dir", "", "Profiles directory")
	flags.String("index-name", "", "File name of the index")
	bindFlag(flags.Lookup("dir"), param.Profiles_Dir.GetName())
	bindFlag(flags.Lookup("index-name"), param.Profiles_IndexName.GetName())
}

func runProfilesInfo(cmd *cobra.Command, _ []string) error {
	path, err := profileinfo.Update(param.Profiles_Dir.GetString(), param.Profiles_IndexName.GetString(),
		pan.NewWriter(param.DryRun.GetBool()))
	if err != nil {
		return err
	}
	if path != "" {
		log.Debugf("Profile index is %s", path)
	}
	return nil
}
