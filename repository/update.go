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
	"strings"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quattor/scdbtools/pan"
)

const (
	DefaultListName = "repository/allrepositories"

	defaultFetchConcurrency = 4
)

type (
	UpdaterOptions struct {
		Lister *Lister
		Writer *pan.Writer
		Now    func() time.Time
		// FetchConcurrency bounds the number of listings fetched at once.
		FetchConcurrency int

		// GenList enables the template listing every repository, written
		// as ListDir/ListName.pan.
		GenList  bool
		ListDir  string
		ListName string
	}

	Updater struct {
		opts UpdaterOptions
	}

	UpdateResult struct {
		Repositories []*Repository
		// Updated holds the paths of the rewritten templates.
		Updated []string
	}
)

func NewUpdater(opts UpdaterOptions) (*Updater, error) {
	if opts.GenList && opts.ListDir == "" {
		return nil, errors.New("cannot build template with list of repositories: list directory undefined")
	}
	if opts.ListName == "" {
		opts.ListName = DefaultListName
	}
	if opts.Lister == nil {
		opts.Lister = NewLister(nil, time.Hour)
	}
	if opts.Writer == nil {
		opts.Writer = pan.NewWriter(false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = defaultFetchConcurrency
	}
	return &Updater{opts: opts}, nil
}

// Update rewrites every repository template among files whose package list
// is out of date or whose header is malformed. Files that are not
// repository templates are skipped. All listings are fetched before any
// template is written, so a failed fetch leaves every template untouched.
func (u *Updater) Update(ctx context.Context, files []string) (*UpdateResult, error) {
	result := &UpdateResult{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		repo, err := ParseTemplate(file)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			continue
		}
		result.Repositories = append(result.Repositories, repo)
	}

	listings, err := u.fetchListings(ctx, result.Repositories)
	if err != nil {
		return nil, err
	}

	for _, repo := range result.Repositories {
		listing := listings[repo.URL.String()]
		update, reason := repo.NeedsUpdate(listing)
		if !update {
			log.Debugf("Repository template %s is up to date", repo)
			continue
		}
		log.Debugf("%s: %s", repo, reason)

		content := Render(repo, listing, u.opts.Now())
		if _, err := u.opts.Writer.WriteFile(repo.Path, []byte(content), "repository"); err != nil {
			return nil, errors.Wrapf(err, "error writing template %s", repo.Path)
		}
		log.Infof("Updating: %s", repo)
		result.Updated = append(result.Updated, repo.Path)
	}

	if u.opts.GenList {
		listPath := pan.NamespacePath(u.opts.ListDir, u.opts.ListName, ".pan")
		log.Debugf("Generating template with list of repositories (%s)", listPath)
		changed, err := u.opts.Writer.WriteFile(listPath, RenderList(result.Repositories, u.opts.ListName).Bytes(), "repository_list")
		if err != nil {
			return nil, errors.Wrap(err, "error creating list of all configured repositories")
		}
		if changed {
			log.Infof("Updating %s", listPath)
		}
	}
	return result, nil
}

func (u *Updater) fetchListings(ctx context.Context, repos []*Repository) (map[string]*Listing, error) {
	egrp, egrpCtx := errgroup.WithContext(ctx)
	egrp.SetLimit(u.opts.FetchConcurrency)

	var mu sync.Mutex
	listings := make(map[string]*Listing, len(repos))
	requested := make(map[string]bool, len(repos))
	for _, repo := range repos {
		key := repo.URL.String()
		if requested[key] {
			continue
		}
		requested[key] = true

		repoURL := repo.URL
		egrp.Go(func() error {
			listing, err := u.opts.Lister.List(egrpCtx, repoURL)
			if err != nil {
				return err
			}
			mu.Lock()
			listings[key] = listing
			mu.Unlock()
			return nil
		})
	}
	if err := egrp.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

// Render produces the repository template describing listing.
func Render(repo *Repository, listing *Listing, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("#\n")
	fmt.Fprintf(&sb, "# Generated by scdb on %s\n", now.Format("2006-01-02 15:04:05 MST"))
	sb.WriteString("#\n")
	fmt.Fprintf(&sb, "# name = %s\n", repo.Name)
	fmt.Fprintf(&sb, "# owner = %s\n", repo.Owner)
	fmt.Fprintf(&sb, "# url = %s\n", repo.URL)
	sb.WriteString("#\n\n")

	tpl := pan.Structure(repo.Namespace())
	tpl.Linef(`"name" = "%s";`, repo.Name)
	tpl.Linef(`"owner" = "%s";`, repo.Owner)
	tpl.Line(`"protocols" = list(`)
	tpl.Line(`  nlist("name","http",`)
	tpl.Linef(`        "url","%s")`, repo.URL)
	tpl.Line(");")
	tpl.Line("")
	tpl.Line(`"contents" = nlist(`)
	for _, pkg := range listing.Packages() {
		tpl.Linef("# pkg = %s", pkg.Key())
		tpl.Linef(`escape("%s"),nlist("name","%s","version","%s","arch","%s"),`, pkg.Key(), pkg.Name, pkg.Version, pkg.Arch)
	}
	tpl.Line(");")

	sb.WriteString(tpl.String())
	return sb.String()
}

// RenderList produces the template defining ALL_REPOSITORIES, one entry per
// repository name. When two templates share a name, the first one wins.
func RenderList(repos []*Repository, listName string) *pan.Template {
	byName := treemap.NewWithStringComparator()
	for _, repo := range repos {
		if previous, found := byName.Get(repo.Name); found {
			log.Warningf("Repository %s is defined by both %s and %s, ignoring the latter", repo.Name, previous, repo)
			continue
		}
		byName.Put(repo.Name, repo)
	}

	tpl := pan.NewTemplate(pan.KindPlain, listName)
	tpl.Line("variable ALL_REPOSITORIES = nlist(")
	it := byName.Iterator()
	for it.Next() {
		repo := it.Value().(*Repository)
		tpl.Linef("    %s, create(%s),", pan.Quote(repo.Name), pan.Quote(repo.Namespace()))
	}
	tpl.Line(");")
	return tpl
}
