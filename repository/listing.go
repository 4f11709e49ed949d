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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/quattor/scdbtools/metrics"
)

var rpmFilename = regexp.MustCompile(`^\s*(.+)-([^-]+-[^-]+)\.([^.]+)\.rpm\s*$`)

type (
	Package struct {
		Name    string
		Version string // version-release
		Arch    string
	}

	// Listing is the set of packages published by a repository, keyed and
	// sorted by Package.Key.
	Listing struct {
		packages *treemap.Map
	}

	// Lister fetches repository listings, remembering each one for the
	// lifetime of its cache entries.
	Lister struct {
		client *http.Client
		cache  *ttlcache.Cache[string, *Listing]
	}
)

// ParsePackage splits an RPM file name of the form
// name-version-release.arch.rpm.
func ParsePackage(filename string) (Package, bool) {
	m := rpmFilename.FindStringSubmatch(filename)
	if m == nil {
		return Package{}, false
	}
	return Package{Name: m[1], Version: m[2], Arch: m[3]}, true
}

func (p Package) Key() string {
	return p.Name + "-" + p.Version + "-" + p.Arch
}

func (p Package) String() string {
	return fmt.Sprintf("%s-%s.%s.rpm", p.Name, p.Version, p.Arch)
}

func NewListing() *Listing {
	return &Listing{packages: treemap.NewWithStringComparator()}
}

func (l *Listing) Add(pkg Package) {
	l.packages.Put(pkg.Key(), pkg)
}

func (l *Listing) Len() int {
	return l.packages.Size()
}

// Packages returns the listed packages sorted by key.
func (l *Listing) Packages() []Package {
	pkgs := make([]Package, 0, l.packages.Size())
	for _, value := range l.packages.Values() {
		pkgs = append(pkgs, value.(Package))
	}
	return pkgs
}

// SameKeys reports whether keys is exactly the set of listed package keys.
// keys must be sorted and free of duplicates.
func (l *Listing) SameKeys(keys []string) bool {
	if len(keys) != l.packages.Size() {
		return false
	}
	for i, key := range l.packages.Keys() {
		if key.(string) != keys[i] {
			return false
		}
	}
	return true
}

// ParseListing extracts the RPM packages linked from an HTML directory
// listing. Anchors whose target is not an RPM file name are ignored.
func ParseListing(r io.Reader) (*Listing, error) {
	listing := NewListing()
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return listing, nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "href" {
					continue
				}
				if pkg, ok := packageFromHref(string(val)); ok {
					listing.Add(pkg)
				}
			}
		}
	}
}

func packageFromHref(href string) (Package, bool) {
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".rpm") {
		return Package{}, false
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		log.Debugf("Ignoring invalid link %q: %v", href, err)
		return Package{}, false
	}
	return ParsePackage(path.Base(u.Path))
}

// NewLister returns a Lister using client, or a pooled cleanhttp client when
// client is nil. Listings are kept for ttl.
func NewLister(client *http.Client, ttl time.Duration) *Lister {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Lister{
		client: client,
		cache:  ttlcache.New[string, *Listing](ttlcache.WithTTL[string, *Listing](ttl)),
	}
}

// List returns the packages published at u.
func (l *Lister) List(ctx context.Context, u *url.URL) (*Listing, error) {
	key := u.String()
	if item := l.cache.Get(key); item != nil {
		metrics.ScdbListingCache.WithLabelValues("hits").Inc()
		return item.Value(), nil
	}
	metrics.ScdbListingCache.WithLabelValues("misses").Inc()

	listing, err := l.fetch(ctx, key)
	if err != nil {
		metrics.ScdbFetchesTotal.WithLabelValues("repository_listing", "error").Inc()
		return nil, errors.Wrapf(err, "error getting RPM list from URL %s", key)
	}
	metrics.ScdbFetchesTotal.WithLabelValues("repository_listing", "success").Inc()
	l.cache.Set(key, listing, ttlcache.DefaultTTL)
	return listing, nil
}

func (l *Lister) fetch(ctx context.Context, location string) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	log.Debugf("Fetching repository listing %s", location)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}
	return ParseListing(resp.Body)
}
