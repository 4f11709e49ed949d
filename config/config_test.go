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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/param"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitConfig(t *testing.T) {
	oldLevel := logrus.GetLevel()
	t.Cleanup(func() {
		ResetConfig()
		logrus.SetLevel(oldLevel)
	})

	t.Run("defaults", func(t *testing.T) {
		ResetConfig()
		t.Setenv(ConfigFileEnv, "")
		require.NoError(t, param.Set(param.ConfigDir.GetName(), t.TempDir()))
		require.NoError(t, InitConfig(""))

		assert.Equal(t, "ccm", param.Notify_Message.GetString())
		assert.Equal(t, 7777, param.Notify_Port.GetInt())
		assert.Equal(t, "vo/params", param.VO_ParamsNamespace.GetString())
		assert.Equal(t, 1000, param.VO_LegacySuffixMaxAttempts.GetInt())
		assert.Equal(t, time.Hour, param.Repository_CacheTTL.GetDuration())
		assert.Equal(t, []string{"*.xml"}, param.Notify_Includes.GetStringSlice())
		assert.False(t, param.Svn_Workspace.IsSet())
		assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	})

	t.Run("config-file", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, `
VO:
  IdCardsUri: https://cic.example.org/cards.xml
  Branches: [cfg/one, cfg/two]
Svn:
  RecoveryLimit: 5
Logging:
  Level: warn
`)
		require.NoError(t, InitConfig(path))

		assert.Equal(t, "https://cic.example.org/cards.xml", param.VO_IdCardsUri.GetString())
		assert.Equal(t, []string{"cfg/one", "cfg/two"}, param.VO_Branches.GetStringSlice())
		assert.Equal(t, 5, param.Svn_RecoveryLimit.GetInt())
		assert.Equal(t, "svn", param.Svn_Binary.GetString())
		assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	})

	t.Run("config-file-from-env", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, "Profiles:\n  Dir: /srv/profiles\n")
		t.Setenv(ConfigFileEnv, path)
		require.NoError(t, InitConfig(""))
		assert.Equal(t, "/srv/profiles", param.Profiles_Dir.GetString())
	})

	t.Run("env-overrides-file", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, "Svn:\n  Workspace: /from/file\n")
		t.Setenv("SCDB_SVN_WORKSPACE", "/from/env")
		t.Setenv("SCDB_DEBUG", "true")
		require.NoError(t, InitConfig(path))
		assert.Equal(t, "/from/env", param.Svn_Workspace.GetString())
		assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	})

	t.Run("missing-explicit-file", func(t *testing.T) {
		ResetConfig()
		err := InitConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read configuration file")
	})

	t.Run("invalid-log-level", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, "Logging:\n  Level: chatty\n")
		err := InitConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Logging.Level")
	})
}

// Test that scdb notifies users about unrecognized configuration keys.
func TestBadConfigKeys(t *testing.T) {
	t.Cleanup(ResetConfig)

	setupFunc := func(t *testing.T, content string) (*test.Hook, string) {
		ResetConfig()
		hook := test.NewLocal(logrus.StandardLogger())
		return hook, writeConfig(t, content)
	}

	t.Run("recognized-file-key", func(t *testing.T) {
		hook, path := setupFunc(t, "Notify:\n  Port: 7778\n")
		require.NoError(t, InitConfig(path))
		for _, entry := range hook.AllEntries() {
			assert.NotContains(t, entry.Message, "Unknown configuration keys")
		}
	})

	t.Run("bad-file-key", func(t *testing.T) {
		hook, path := setupFunc(t, "Notify:\n  Prot: 7778\n")
		require.NoError(t, InitConfig(path))
		var found *logrus.Entry
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.WarnLevel {
				found = entry
			}
		}
		require.NotNil(t, found)
		assert.Contains(t, found.Message, "Unknown configuration keys found")
		assert.Contains(t, found.Message, "notify.prot")
	})

	t.Run("bad-env-key", func(t *testing.T) {
		hook, path := setupFunc(t, "")
		t.Setenv("SCDB_SVN_BAD_KEY", "x")
		require.NoError(t, InitConfig(path))
		var found *logrus.Entry
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.WarnLevel {
				found = entry
			}
		}
		require.NotNil(t, found)
		assert.Contains(t, found.Message, "svn.bad.key")
	})
}
