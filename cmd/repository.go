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

	"github.com/quattor/scdbtools/config"
	"github.com/quattor/scdbtools/pan"
	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/repository"
	"github.com/quattor/scdbtools/utils"
)

var (
	repositoryCmd = &cobra.Command{
		Use:   "repository",
		Short: "Maintain the RPM repository templates",
	}

	repositoryUpdateCmd = &cobra.Command{
		Use:   "update [template...]",
		Short: "Update the package list of RPM repository templates",
		Long: `Fetch the listing of every repository template's URL and rewrite
the templates whose package list changed. Without arguments, the templates
are selected below --templates-dir with the configured include and exclude
patterns. Files that are not repository templates are ignored.`,
		Example: `# Update all repository templates and the list of repositories
scdb repository update --templates-dir cfg/sites/example/repository --gen-list --list-dir cfg/sites/example`,
		RunE: runRepositoryUpdate,
	}
)

func init() {
	repositoryCmd.AddCommand(repositoryUpdateCmd)

	flags := repositoryUpdateCmd.Flags()
	flags.String("templates-dir", "", "Directory holding the repository templates")
	flags.Bool("gen-list", false, "Also write the template listing every repository")
	flags.String("list-dir", "", "Directory of the repository list template")
	flags.String("list-name", "", "Namespace of the repository list template")
	bindFlag(flags.Lookup("templates-dir"), param.Repository_TemplatesDir.GetName())
	bindFlag(flags.Lookup("gen-list"), param.Repository_GenList.GetName())
	bindFlag(flags.Lookup("list-dir"), param.Repository_ListDir.GetName())
	bindFlag(flags.Lookup("list-name"), param.Repository_ListName.GetName())
}

func runRepositoryUpdate(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		dir := param.Repository_TemplatesDir.GetString()
		if err := requireParam(dir, "templates-dir", param.Repository_TemplatesDir.GetName()); err != nil {
			return err
		}
		var err error
		fileSet := utils.FileSet{
			Dir:      dir,
			Includes: param.Repository_Includes.GetStringSlice(),
			Excludes: param.Repository_Excludes.GetStringSlice(),
		}
		if files, err = fileSet.Files(); err != nil {
			return err
		}
	}

	updater, err := repository.NewUpdater(repository.UpdaterOptions{
		Lister:   repository.NewLister(config.GetHTTPClient(), param.Repository_CacheTTL.GetDuration()),
		Writer:   pan.NewWriter(param.DryRun.GetBool()),
		GenList:  param.Repository_GenList.GetBool(),
		ListDir:  param.Repository_ListDir.GetString(),
		ListName: param.Repository_ListName.GetString(),
	})
	if err != nil {
		return err
	}

	result, err := updater.Update(cmd.Context(), files)
	if err != nil {
		return err
	}
	log.Infof("Checked %d repository templates, %d updated", len(result.Repositories), len(result.Updated))
	return nil
}
