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

// Package profileinfo maintains the index of compiled profiles read by
// clients to find out which profiles changed.
package profileinfo

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/pan"
)

const DefaultIndexName = "profiles-info.xml"

// Profile is an entry of the index.
type Profile struct {
	Name string
	// MTime is the modification time in milliseconds since the epoch.
	MTime int64
}

// List returns the visible entries of dir, except the index itself, sorted
// by name.
func List(dir string, indexName string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list profiles in %s", dir)
	}
	profiles := make([]Profile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == indexName || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed while listing
			log.Debugf("Skipping profile %s: %v", name, err)
			continue
		}
		profiles = append(profiles, Profile{Name: name, MTime: info.ModTime().UnixMilli()})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Render produces the index document.
func Render(profiles []Profile) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<?xml version='1.0' encoding='utf-8'?>\n")
	buf.WriteString("<profiles>\n")
	for _, profile := range profiles {
		buf.WriteString("<profile mtime='")
		buf.WriteString(strconv.FormatInt(profile.MTime, 10))
		buf.WriteString("'>")
		if err := xml.EscapeText(&buf, []byte(profile.Name)); err != nil {
			return nil, errors.Wrapf(err, "invalid profile name %q", profile.Name)
		}
		buf.WriteString("</profile>\n")
	}
	buf.WriteString("</profiles>\n")
	return buf.Bytes(), nil
}

// Update writes the index of the profiles in dir. An empty dir means there
// is nothing to do. It returns the index path, empty when nothing was done.
func Update(dir string, indexName string, writer *pan.Writer) (string, error) {
	if dir == "" {
		log.Debug("Profiles directory is an empty string: nothing to do")
		return "", nil
	}
	if indexName == "" {
		indexName = DefaultIndexName
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.Errorf("profiles directory (%s) does not exist", dir)
		}
		return "", errors.Wrapf(err, "invalid profiles directory (%s)", dir)
	}
	if !info.IsDir() {
		return "", errors.Errorf("profiles directory (%s) is not a directory", dir)
	}

	profiles, err := List(dir, indexName)
	if err != nil {
		return "", err
	}
	content, err := Render(profiles)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, indexName)
	log.Infof("Updating %s in %s", indexName, dir)
	if writer == nil {
		writer = pan.NewWriter(false)
	}
	if _, err := writer.WriteFile(path, content, "profile_info"); err != nil {
		return "", errors.Wrap(err, "can't write profile info file")
	}
	return path, nil
}
