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
	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/svn"
)

var (
	svnCmd = &cobra.Command{
		Use:   "svn",
		Short: "Manage the configuration database repository",
	}

	svnTagCmd = &cobra.Command{
		Use:   "tag <tag>",
		Short: "Tag the trunk the workspace is a working copy of",
		Long: `Copy the trunk to tags/<tag> on the server. The working copy must be
a checkout of the trunk, without local modifications and up to date with the
repository. A tag of the form <branch>/<name> creates the branch directory
under tags/ when needed.`,
		Args: cobra.ExactArgs(1),
		RunE: runSvnTag,
	}

	svnCacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Switch or check out the workspace to the trunk or a tag",
		Long: `Make the workspace a working copy of the trunk (--tag trunk) or of
tags/<tag>, switching an existing working copy of the repository or checking
out a fresh one.`,
		Args: cobra.NoArgs,
		RunE: runSvnCache,
	}
)

func init() {
	svnCmd.AddCommand(svnTagCmd)
	svnCmd.AddCommand(svnCacheCmd)

	persistent := svnCmd.PersistentFlags()
	persistent.StringP("workspace", "w", "", "Path of the working copy")
	persistent.String("svn", "", "svn client binary")
	persistent.String("svn-args", "", "Extra arguments passed to every svn command")
	bindFlag(persistent.Lookup("workspace"), param.Svn_Workspace.GetName())
	bindFlag(persistent.Lookup("svn"), param.Svn_Binary.GetName())
	bindFlag(persistent.Lookup("svn-args"), param.Svn_ExtraArgs.GetName())

	flags := svnCacheCmd.Flags()
	flags.String("repository", "", "Repository URL, the parent of trunk and tags")
	flags.String("tag", "", "Tag to switch to, or trunk")
	flags.Int("recovery-limit", 0, "Number of update attempts when the switch fails")
	bindFlag(flags.Lookup("repository"), param.Svn_RepositoryURL.GetName())
	bindFlag(flags.Lookup("tag"), param.Svn_Tag.GetName())
	bindFlag(flags.Lookup("recovery-limit"), param.Svn_RecoveryLimit.GetName())
}

func newSvnClient() (*svn.Client, error) {
	password := param.Svn_Password.GetString()
	config.RedactSecret("svn-password", password)
	runner, err := svn.NewCLIRunner(param.Svn_Binary.GetString(), param.Svn_ExtraArgs.GetString(),
		param.Svn_Username.GetString(), password)
	if err != nil {
		return nil, err
	}
	return svn.NewClient(runner), nil
}

func runSvnTag(cmd *cobra.Command, args []string) error {
	workspace := param.Svn_Workspace.GetString()
	if err := requireParam(workspace, "workspace", param.Svn_Workspace.GetName()); err != nil {
		return err
	}
	client, err := newSvnClient()
	if err != nil {
		return err
	}
	tagURL, err := svn.Tag(cmd.Context(), client, workspace, args[0])
	if err != nil {
		return err
	}
	log.Infof("Created tag %s", tagURL)
	return nil
}

func runSvnCache(cmd *cobra.Command, _ []string) error {
	client, err := newSvnClient()
	if err != nil {
		return err
	}
	opts := svn.CacheOptions{
		Workspace:     param.Svn_Workspace.GetString(),
		RepositoryURL: param.Svn_RepositoryURL.GetString(),
		Tag:           param.Svn_Tag.GetString(),
		RecoveryLimit: param.Svn_RecoveryLimit.GetInt(),
	}
	if err := svn.UpdateCache(cmd.Context(), client, opts); err != nil {
		return err
	}
	log.Infof("Workspace %s is a working copy of %s", opts.Workspace, opts.TargetURL())
	return nil
}
