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

package svn

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotWorkingCopy     = errors.New("not a working copy")
	ErrLocalModifications = errors.New("workspace has local modifications; tag aborted")
	ErrOutOfDate          = errors.New("workspace needs to be updated; tag aborted")
)

// TagURL returns the URL of tag next to a working copy URL ending in trunk.
func TagURL(trunkURL string, tag string) (string, error) {
	trunkURL = strings.TrimSuffix(trunkURL, "/")
	if !strings.HasSuffix(trunkURL, "trunk") {
		return "", errors.Errorf("working copy must be from repository trunk: %s", trunkURL)
	}
	i := strings.LastIndex(trunkURL, "/")
	if i < 0 {
		return "", errors.Errorf("found invalid SVN URL: %s", trunkURL)
	}
	return trunkURL[:i] + "/tags/" + tag, nil
}

// Tag copies the trunk working copy at workspace to tags/<tag> after
// checking it is in sync with the repository. A tag of the form
// <branch>/<name> creates the branch directory when missing. It returns the
// URL of the new tag.
func Tag(ctx context.Context, client *Client, workspace string, tag string) (string, error) {
	tag = strings.Trim(tag, "/")
	if tag == "" {
		return "", errors.New("tag not specified")
	}
	if workspace == "" {
		return "", errors.New("workspace path not specified")
	}

	src, ok, err := client.URL(ctx, workspace)
	if err != nil {
		return "", errors.Wrap(err, "can't determine working copy URL")
	}
	if !ok {
		return "", errors.Wrapf(ErrNotWorkingCopy, "can't determine working copy URL of %s", workspace)
	}
	dst, err := TagURL(src, tag)
	if err != nil {
		return "", err
	}

	log.Info("Checking for local modifications...")
	if err := checkStatus(ctx, client, workspace, false); err != nil {
		return "", err
	}
	log.Info("Checking for remote modifications...")
	if err := checkStatus(ctx, client, workspace, true); err != nil {
		return "", err
	}

	exists, err := client.Exists(ctx, dst)
	if err != nil {
		return "", errors.Wrapf(err, "failed to check for tag %s", tag)
	}
	if exists {
		return "", errors.Errorf("tag %s already exists (%s)", tag, dst)
	}

	message := "scdb tag " + tag
	if i := strings.LastIndex(dst, "/"); strings.Contains(tag, "/") {
		branch := dst[:i]
		exists, err := client.Exists(ctx, branch)
		if err != nil {
			return "", errors.Wrapf(err, "failed to check for branch %s", branch)
		}
		if !exists {
			log.Infof("Creating branch directory %s", branch)
			if err := client.Mkdir(ctx, branch, message); err != nil {
				return "", errors.Wrapf(err, "failed to create branch directory %s", branch)
			}
		}
	}

	log.Infof("Making tag: %s", tag)
	if err := client.Copy(ctx, src, dst, message); err != nil {
		return "", errors.Wrap(err, "tag failed")
	}
	return dst, nil
}

func checkStatus(ctx context.Context, client *Client, workspace string, remote bool) error {
	where := "local"
	if remote {
		where = "remote"
	}
	entries, err := client.Status(ctx, workspace, remote)
	if err != nil {
		return errors.Wrapf(err, "svn status (%s) failed", where)
	}
	modified := false
	for _, entry := range entries {
		if (!remote && entry.LocallyModified()) || (remote && entry.RemotelyModified()) {
			log.Warningf("modified (%s): %s", where, entry.Path)
			modified = true
		}
	}
	if !modified {
		return nil
	}
	if remote {
		return ErrOutOfDate
	}
	return ErrLocalModifications
}
