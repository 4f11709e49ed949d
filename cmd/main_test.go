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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/param"
	"github.com/quattor/scdbtools/test_utils"
)

func emptyConfig(t *testing.T) string {
	cfgPath := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(""), 0644))
	return cfgPath
}

func TestHandleCLIVersionFlag(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	err = handleCLI([]string{"scdb", "vo", "generate", "--version"})
	w.Close()
	os.Stdout = oldStdout
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	assert.Equal(t, "Version: dev\nBuild Date: unknown\nBuild Commit: none\nBuilt By: unknown\n", buf.String())
}

func TestFlagsRefreshParamCache(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	oldRunE := voGenerateCmd.RunE
	voGenerateCmd.RunE = func(cmd *cobra.Command, args []string) error {
		require.Equal(t, "https://cic.example.org/cards.xml", param.VO_IdCardsUri.GetString())
		require.Equal(t, []string{"cfg/one", "cfg/two"}, param.VO_Branches.GetStringSlice())
		require.True(t, param.VO_LegacySuffixAlgorithm.GetBool())
		require.Equal(t, "vo/params", param.VO_ParamsNamespace.GetString())
		return nil
	}
	t.Cleanup(func() { voGenerateCmd.RunE = oldRunE })

	rootCmd.SetArgs([]string{
		"--config", emptyConfig(t),
		"vo", "generate",
		"--cards", "https://cic.example.org/cards.xml",
		"--branch", "cfg/one",
		"--branch", "cfg/two",
		"--legacy-suffixes",
	})
	require.NoError(t, rootCmd.Execute())
}

func TestProfilesInfoCommand(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))

	profilesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(profilesDir, "node01.example.org.xml"), []byte("<profile/>"), 0644))
	metricsFile := filepath.Join(t.TempDir(), "scdb.prom")

	err := handleCLI([]string{"scdb", "--config", emptyConfig(t), "--metrics-file", metricsFile,
		"profiles", "info", "--dir", profilesDir})
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(profilesDir, "profiles-info.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "node01.example.org.xml")

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `scdb_templates_total{kind="profile_info",outcome="written"} 1`)
}

func TestMissingWorkspace(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"--config", emptyConfig(t), "svn", "tag", "release-1"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--workspace (or Svn.Workspace in the configuration) must be set")
}
