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
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/test_utils"
)

const listingFixture = `<html><head><title>Index of /base</title></head>
<body>
<a href="../">Parent Directory</a>
<a href="foo-1.0-1.el9.x86_64.rpm">foo-1.0-1.el9.x86_64.rpm</a>
<A HREF="sub/bar-2-3.noarch.rpm">bar</A>
<a class="pkg" href="http://mirror.example.org/x/qux%2Bplus-1-1.i686.rpm">qux</a>
<a href="baz-1.0-1.src.RPM">baz</a>
<a href="repodata/">repodata/</a>
<a name="anchor">no href</a>
</body></html>
`

func TestParsePackage(t *testing.T) {
	tests := []struct {
		filename string
		ok       bool
		pkg      Package
	}{
		{"foo-1.0-1.el9.x86_64.rpm", true, Package{"foo", "1.0-1.el9", "x86_64"}},
		{"kernel-devel-5.14.0-70.el9.noarch.rpm", true, Package{"kernel-devel", "5.14.0-70.el9", "noarch"}},
		{" ncm-ccm-24.10.0-1.noarch.rpm ", true, Package{"ncm-ccm", "24.10.0-1", "noarch"}},
		{"foo.rpm", false, Package{}},
		{"foo-1.x86_64.rpm", false, Package{}},
		{"README.txt", false, Package{}},
	}
	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			pkg, ok := ParsePackage(tc.filename)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.pkg, pkg)
		})
	}

	pkg, _ := ParsePackage("foo-1.0-1.el9.x86_64.rpm")
	assert.Equal(t, "foo-1.0-1.el9-x86_64", pkg.Key())
	assert.Equal(t, "foo-1.0-1.el9.x86_64.rpm", pkg.String())
}

func TestParseListing(t *testing.T) {
	listing, err := ParseListing(strings.NewReader(listingFixture))
	require.NoError(t, err)
	assert.Equal(t, []Package{
		{"bar", "2-3", "noarch"},
		{"foo", "1.0-1.el9", "x86_64"},
		{"qux+plus", "1-1", "i686"},
	}, listing.Packages())
	assert.True(t, listing.SameKeys([]string{"bar-2-3-noarch", "foo-1.0-1.el9-x86_64", "qux+plus-1-1-i686"}))
	assert.False(t, listing.SameKeys([]string{"bar-2-3-noarch", "foo-1.0-1.el9-x86_64"}))
	assert.False(t, listing.SameKeys([]string{"bar-2-3-noarch", "foo-1.0-1.el9-x86_64", "other"}))

	empty, err := ParseListing(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.SameKeys(nil))
}

func TestListerCache(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path == "/missing/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	lister := NewLister(server.Client(), time.Hour)
	base, err := url.Parse(server.URL + "/base/")
	require.NoError(t, err)

	first, err := lister.List(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Len())
	second, err := lister.List(context.Background(), base)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), requests.Load())

	missing, err := url.Parse(server.URL + "/missing/")
	require.NoError(t, err)
	_, err = lister.List(context.Background(), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error getting RPM list from URL")
	assert.Contains(t, err.Error(), "404")
}
