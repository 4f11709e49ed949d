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

package pan

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	tpl := Structure("site/repository/base")
	tpl.Linef("'name' = %s;", Quote("base"))
	assert.Equal(t, "structure template site/repository/base;\n\n'name' = 'base';\n", tpl.String())
	assert.Equal(t, filepath.Join("/branch", "site", "repository", "base.tpl"), tpl.Path("/branch", ".tpl"))

	plain := NewTemplate(KindPlain, "repository_list")
	assert.Equal(t, "template repository_list;\n\n", plain.String())
	assert.Equal(t, "unique template vo/allvos;\n\n", Unique("vo/allvos").String())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'Production jobs'", Quote("Production jobs"))
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, `"Nick's \"jobs\""`, Quote(`Nick's "jobs"`))
	assert.Equal(t, `"it's\na\\b"`, Quote("it's\na\\b"))
}

func TestWriterWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vo", "params", "atlas.tpl")
	writer := NewWriter(false)

	changed, err := writer.WriteFile(path, []byte("first\n"), "vo")
	require.NoError(t, err)
	assert.True(t, changed)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	t.Run("unchanged-content-is-not-rewritten", func(t *testing.T) {
		before, err := os.Stat(path)
		require.NoError(t, err)
		changed, err := writer.WriteFile(path, []byte("first\n"), "vo")
		require.NoError(t, err)
		assert.False(t, changed)
		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, os.SameFile(before, after))
	})

	t.Run("changed-content-replaces-file", func(t *testing.T) {
		changed, err := writer.WriteFile(path, []byte("second\n"), "vo")
		require.NoError(t, err)
		assert.True(t, changed)
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second\n", string(content))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary files must not be left behind")
	})
}

func TestWriterDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allvos.tpl")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0644))

	var diff bytes.Buffer
	writer := NewWriter(true)
	writer.DiffOutput = &diff

	changed, err := writer.WriteFile(path, []byte("a\nc\n"), "vo_list")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, diff.String(), "-b\n")
	assert.Contains(t, diff.String(), "+c\n")
	assert.Contains(t, diff.String(), "--- "+path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(content))

	diff.Reset()
	_, changed, err = writer.WriteTemplate(dir, Unique("missing"), "vo_list")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoFileExists(t, filepath.Join(dir, "missing.tpl"))
	assert.Contains(t, diff.String(), "+unique template missing;")
}
