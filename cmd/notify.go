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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quattor/scdbtools/notify"
	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/utils"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [profile...]",
	Short: "Notify the clients that their profile changed",
	Long: `Send a UDP datagram to the host described by every selected XML
profile, so that its configuration agent fetches the new profile. Without
arguments, the profiles are selected below --profiles-dir with the configured
include and exclude patterns.`,
	RunE: runNotify,
}

func init() {
	flags := notifyCmd.Flags()
	flags.String("message", "", "Message sent to the clients, ccm or cdb")
	flags.Int("port", 0, "UDP port the clients listen on")
	flags.String("profiles-dir", "", "Directory holding the XML profiles")
	bindFlag(flags.Lookup("message"), param.Notify_Message.GetName())
	bindFlag(flags.Lookup("port"), param.Notify_Port.GetName())
	bindFlag(flags.Lookup("profiles-dir"), param.Notify_ProfilesDir.GetName())
}

func runNotify(cmd *cobra.Command, args []string) error {
	notifier, err := notify.NewNotifier(param.Notify_Message.GetString(), param.Notify_Port.GetInt())
	if err != nil {
		return err
	}

	profiles := args
	if len(profiles) == 0 {
		dir := param.Notify_ProfilesDir.GetString()
		if err := requireParam(dir, "profiles-dir", param.Notify_ProfilesDir.GetName()); err != nil {
			return err
		}
		fileSet := utils.FileSet{
			Dir:      dir,
			Includes: param.Notify_Includes.GetStringSlice(),
			Excludes: param.Notify_Excludes.GetStringSlice(),
		}
		if profiles, err = fileSet.Files(); err != nil {
			return err
		}
	}

	if param.DryRun.GetBool() {
		for _, profile := range profiles {
			log.Infof("Would notify the host of %s", profile)
		}
		return nil
	}

	result, err := notifier.Notify(cmd.Context(), profiles)
	if err != nil {
		return err
	}
	log.Infof("Notified %d hosts (%d failed, %d skipped)", result.Sent, result.Failed, result.Skipped)
	if result.Sent == 0 && result.Failed > 0 {
		return errors.New("no host could be notified")
	}
	return nil
}
