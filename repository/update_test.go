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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/pan"
	"github.com/quattor/scdbtools/test_utils"
)

const expectedRepositoryTemplate = `#
# Generated by scdb on 2024-01-02 03:04:05 UTC
#
# name = base
# owner = admin@example.org
# url = URL
#

structure template repository/base;

"name" = "base";
"owner" = "admin@example.org";
"protocols" = list(
  nlist("name","http",
        "url","URL")
);

"contents" = nlist(
# pkg = bar-2-3-noarch
escape("bar-2-3-noarch"),nlist("name","bar","version","2-3","arch","noarch"),
# pkg = foo-1.0-1.el9-x86_64
escape("foo-1.0-1.el9-x86_64"),nlist("name","foo","version","1.0-1.el9","arch","x86_64"),
# pkg = qux+plus-1-1-i686
escape("qux+plus-1-1-i686"),nlist("name","qux+plus","version","1-1","arch","i686"),
);
`

const expectedRepositoryList = `template repository/allrepositories;

variable ALL_REPOSITORIES = nlist(
    'base', create('repository/base'),
    'updates', create('site/repository/updates'),
);
`

func TestUpdate(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	server := test_utils.ServeContent(t, "text/html", listingFixture)
	repoURL := server.URL + "/base/"
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	templates, listDir := t.TempDir(), t.TempDir()
	base := writeTemplate(t, templates, "base.tpl", "# name = base\n# owner = admin@example.org\n# url = "+repoURL+"\n# pkg = old-1-1-noarch\n")
	// Up to date, with a custom namespace
	updatesContent := strings.ReplaceAll(strings.ReplaceAll(expectedRepositoryTemplate, "URL", repoURL), "base", "updates")
	updatesContent = strings.Replace(updatesContent, "repository/updates", "site/repository/updates", 1)
	updates := writeTemplate(t, templates, "updates.tpl", updatesContent)
	other := writeTemplate(t, templates, "other.tpl", "structure template other;\n")

	updater, err := NewUpdater(UpdaterOptions{
		Lister:  NewLister(server.Client(), time.Hour),
		Now:     func() time.Time { return now },
		GenList: true,
		ListDir: listDir,
	})
	require.NoError(t, err)

	result, err := updater.Update(context.Background(), []string{base, updates, other})
	require.NoError(t, err)
	assert.Len(t, result.Repositories, 2)
	assert.Equal(t, []string{base}, result.Updated)

	content, err := os.ReadFile(base)
	require.NoError(t, err)
	assert.Equal(t, strings.ReplaceAll(expectedRepositoryTemplate, "URL", repoURL), string(content))

	content, err = os.ReadFile(updates)
	require.NoError(t, err)
	assert.Equal(t, updatesContent, string(content))

	content, err = os.ReadFile(filepath.Join(listDir, "repository", "allrepositories.pan"))
	require.NoError(t, err)
	assert.Equal(t, expectedRepositoryList, string(content))

	t.Run("second-run-is-a-no-op", func(t *testing.T) {
		updater, err := NewUpdater(UpdaterOptions{
			Lister: NewLister(server.Client(), time.Hour),
			Now:    func() time.Time { return now.Add(time.Hour) },
		})
		require.NoError(t, err)
		result, err := updater.Update(context.Background(), []string{base, updates, other})
		require.NoError(t, err)
		assert.Empty(t, result.Updated)
	})

	t.Run("dry-run", func(t *testing.T) {
		require.NoError(t, os.WriteFile(base, []byte("# name = base\n# owner = admin@example.org\n# url = "+repoURL+"\n"), 0644))
		var diff bytes.Buffer
		writer := pan.NewWriter(true)
		writer.DiffOutput = &diff
		updater, err := NewUpdater(UpdaterOptions{Lister: NewLister(server.Client(), time.Hour), Writer: writer, Now: func() time.Time { return now }})
		require.NoError(t, err)
		result, err := updater.Update(context.Background(), []string{base})
		require.NoError(t, err)
		assert.Equal(t, []string{base}, result.Updated)
		assert.Contains(t, diff.String(), `+"name" = "base";`)

		content, err := os.ReadFile(base)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "structure template")
	})
}

func TestNewUpdaterRequiresListDir(t *testing.T) {
	_, err := NewUpdater(UpdaterOptions{GenList: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list directory undefined")
}

func TestRenderListDuplicateNames(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	repos := []*Repository{
		{Path: "a.tpl", Name: "base"},
		{Path: "b.tpl", Name: "base", TemplateName: "other/base"},
	}
	tpl := RenderList(repos, "site/repositories")
	assert.Equal(t, "template site/repositories;\n\nvariable ALL_REPOSITORIES = nlist(\n    'base', create('repository/base'),\n);\n", tpl.String())
}

func TestUpdateFetchesListingsFirst(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	var baseFetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/base/" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&baseFetches, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingFixture))
	}))
	t.Cleanup(server.Close)

	templates := t.TempDir()
	repoHeader := func(name string, path string) string {
		return fmt.Sprintf("# name = %s\n# owner = admin@example.org\n# url = %s%s\n", name, server.URL, path)
	}
	base := writeTemplate(t, templates, "base.tpl", repoHeader("base", "/base/"))
	mirror := writeTemplate(t, templates, "mirror.tpl", repoHeader("mirror", "/base/"))
	missing := writeTemplate(t, templates, "missing.tpl", repoHeader("missing", "/missing/"))

	t.Run("failed-fetch-writes-nothing", func(t *testing.T) {
		before, err := os.ReadFile(base)
		require.NoError(t, err)
		updater, err := NewUpdater(UpdaterOptions{Lister: NewLister(server.Client(), time.Hour), FetchConcurrency: 2})
		require.NoError(t, err)
		_, err = updater.Update(context.Background(), []string{base, mirror, missing})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/missing/")

		after, err := os.ReadFile(base)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("shared-url-is-fetched-once", func(t *testing.T) {
		atomic.StoreInt32(&baseFetches, 0)
		updater, err := NewUpdater(UpdaterOptions{Lister: NewLister(server.Client(), time.Hour)})
		require.NoError(t, err)
		result, err := updater.Update(context.Background(), []string{base, mirror})
		require.NoError(t, err)
		assert.Equal(t, []string{base, mirror}, result.Updated)
		assert.Equal(t, int32(1), atomic.LoadInt32(&baseFetches))
	})
}
