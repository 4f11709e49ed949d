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

// Package repository keeps RPM repository templates in sync with the
// packages published by the repositories they describe.
package repository

import (
	"bufio"
	"net/url"
	"os"
	"regexp"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	nameTag       = regexp.MustCompile(`^\s*#\s*name\s*=\s*(\S+)\s*$`)
	ownerTag      = regexp.MustCompile(`^\s*#\s*owner\s*=\s*(\S+)\s*$`)
	urlTag        = regexp.MustCompile(`^\s*#\s*url\s*=\s*(\S+)\s*$`)
	pkgTag        = regexp.MustCompile(`^\s*#\s*pkg\s*=\s*(\S+)\s*$`)
	structureLine = regexp.MustCompile(`^\s*structure\s*template\s*(\S+)\s*;\s*$`)
	nameProperty  = regexp.MustCompile(`^\s*["']name["']\s*=\s*["'](\S+)["']\s*;\s*$`)
)

const defaultNamespacePrefix = "repository/"

// Repository is a repository template recognized by its comment header.
type Repository struct {
	Path  string
	Name  string
	Owner string
	URL   *url.URL

	// TemplateName is the namespace of the structure template line, empty
	// when the template has none.
	TemplateName string
	// NameProperty is the value of the 'name' property, empty when missing.
	NameProperty string

	packages *treeset.Set
}

// ParseTemplate reads the comment header of the template at path. It
// returns nil without error when the file is not a repository template.
// When a tag appears more than once, the last occurrence wins.
func ParseTemplate(path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading template %s", path)
	}
	defer f.Close()

	repo := &Repository{Path: path, packages: treeset.NewWithStringComparator()}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := nameTag.FindStringSubmatch(line); m != nil {
			repo.Name = m[1]
		}
		if m := ownerTag.FindStringSubmatch(line); m != nil {
			repo.Owner = m[1]
		}
		if m := urlTag.FindStringSubmatch(line); m != nil {
			if u, err := url.Parse(m[1]); err == nil && u.Scheme != "" && u.Host != "" {
				repo.URL = u
			}
		}
		if m := pkgTag.FindStringSubmatch(line); m != nil {
			repo.packages.Add(m[1])
		}
		if m := structureLine.FindStringSubmatch(line); m != nil {
			repo.TemplateName = m[1]
		}
		if m := nameProperty.FindStringSubmatch(line); m != nil {
			repo.NameProperty = m[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading template %s", path)
	}

	if repo.Name == "" || repo.Owner == "" || repo.URL == nil {
		log.WithFields(log.Fields{
			"template": path,
			"name":     repo.Name,
			"owner":    repo.Owner,
			"url":      repo.URL,
		}).Debug("Not recognized as a repository template")
		return nil, nil
	}
	return repo, nil
}

// Packages returns the package keys recorded in the template, sorted.
func (r *Repository) Packages() []string {
	keys := make([]string, 0, r.packages.Size())
	for _, value := range r.packages.Values() {
		keys = append(keys, value.(string))
	}
	return keys
}

// Namespace is the template namespace to write, defaulting to
// repository/<name> when the template has no structure line.
func (r *Repository) Namespace() string {
	if r.TemplateName != "" {
		return r.TemplateName
	}
	return defaultNamespacePrefix + r.Name
}

// NeedsUpdate reports whether the template must be rewritten to describe
// listed, and why.
func (r *Repository) NeedsUpdate(listed *Listing) (bool, string) {
	switch {
	case r.TemplateName == "":
		return true, "no 'structure template' line found"
	case r.Name != r.NameProperty:
		return true, "'name' tag (" + r.Name + ") doesn't match 'name' property (" + r.NameProperty + ")"
	case !listed.SameKeys(r.Packages()):
		return true, "package list changed"
	}
	return false, ""
}

func (r *Repository) String() string {
	return r.Path
}
