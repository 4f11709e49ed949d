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

package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/test_utils"
)

func writeTemplate(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseTemplate(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	dir := t.TempDir()

	t.Run("repository-template", func(t *testing.T) {
		path := writeTemplate(t, dir, "base.tpl", `#
# name = old
# name = base
#  owner = admin@example.org
# url = http://mirror.example.org/base/
# pkg = foo-1.0-1-x86_64
# pkg = bar-2-3-noarch
#

structure template site/repository/base;

'name' = 'base';
`)
		repo, err := ParseTemplate(path)
		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.Equal(t, "base", repo.Name)
		assert.Equal(t, "admin@example.org", repo.Owner)
		assert.Equal(t, "http://mirror.example.org/base/", repo.URL.String())
		assert.Equal(t, "site/repository/base", repo.TemplateName)
		assert.Equal(t, "site/repository/base", repo.Namespace())
		assert.Equal(t, "base", repo.NameProperty)
		assert.Equal(t, []string{"bar-2-3-noarch", "foo-1.0-1-x86_64"}, repo.Packages())
	})

	t.Run("missing-owner", func(t *testing.T) {
		path := writeTemplate(t, dir, "noowner.tpl", "# name = base\n# url = http://mirror.example.org/base/\n")
		repo, err := ParseTemplate(path)
		require.NoError(t, err)
		assert.Nil(t, repo)
	})

	t.Run("invalid-url", func(t *testing.T) {
		path := writeTemplate(t, dir, "badurl.tpl", "# name = base\n# owner = me\n# url = mirror\n")
		repo, err := ParseTemplate(path)
		require.NoError(t, err)
		assert.Nil(t, repo)
	})

	t.Run("missing-file", func(t *testing.T) {
		_, err := ParseTemplate(filepath.Join(dir, "missing.tpl"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading template")
	})
}

func TestNeedsUpdate(t *testing.T) {
	dir := t.TempDir()
	listing := NewListing()
	listing.Add(Package{Name: "foo", Version: "1.0-1", Arch: "x86_64"})

	parse := func(t *testing.T, content string) *Repository {
		repo, err := ParseTemplate(writeTemplate(t, dir, "repo.tpl", content))
		require.NoError(t, err)
		require.NotNil(t, repo)
		return repo
	}
	header := "# name = base\n# owner = me\n# url = http://mirror.example.org/\n"

	repo := parse(t, header+"# pkg = foo-1.0-1-x86_64\nstructure template repository/base;\n\"name\" = \"base\";\n")
	update, _ := repo.NeedsUpdate(listing)
	assert.False(t, update)

	repo = parse(t, header+"# pkg = foo-1.0-1-x86_64\n\"name\" = \"base\";\n")
	update, reason := repo.NeedsUpdate(listing)
	assert.True(t, update)
	assert.Contains(t, reason, "structure template")
	assert.Equal(t, "repository/base", repo.Namespace())

	repo = parse(t, header+"# pkg = foo-1.0-1-x86_64\nstructure template repository/base;\n\"name\" = \"other\";\n")
	update, reason = repo.NeedsUpdate(listing)
	assert.True(t, update)
	assert.Contains(t, reason, "doesn't match 'name' property (other)")

	repo = parse(t, header+"structure template repository/base;\n'name' = 'base';\n")
	update, reason = repo.NeedsUpdate(listing)
	assert.True(t, update)
	assert.Equal(t, "package list changed", reason)
}
