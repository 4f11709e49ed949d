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
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type CacheOptions struct {
	Workspace     string
	RepositoryURL string
	// Tag is trunk or the name of a tag.
	Tag string
	// RecoveryLimit is the number of updates tried when the switch or
	// checkout fails.
	RecoveryLimit int
}

// TargetURL is the repository URL the workspace must point at.
func (o CacheOptions) TargetURL() string {
	base := strings.TrimSuffix(o.RepositoryURL, "/")
	if o.Tag == "trunk" {
		return base + "/trunk"
	}
	return base + "/tags/" + o.Tag
}

// UpdateCache makes the workspace a working copy of the configured tag,
// switching an existing working copy of the same repository or checking
// out a new one.
func UpdateCache(ctx context.Context, client *Client, opts CacheOptions) error {
	if opts.Tag == "" {
		return errors.New("tag must be specified")
	}
	if opts.RepositoryURL == "" {
		return errors.New("repository URL must be specified")
	}
	if u, err := url.Parse(opts.RepositoryURL); err != nil || u.Scheme == "" {
		return errors.Errorf("malformed URL: %s", opts.RepositoryURL)
	}
	if err := verifyWorkspace(opts.Workspace); err != nil {
		return err
	}

	current, switchable, err := client.URL(ctx, opts.Workspace)
	if err != nil {
		return errors.Wrapf(err, "failed to check working copy %s", opts.Workspace)
	}
	if switchable && !inRepository(current, opts.RepositoryURL) {
		return errors.Errorf("working space (%s) is not in the correct repository (%s)", opts.Workspace, opts.RepositoryURL)
	}

	target := opts.TargetURL()
	if switchable {
		log.Infof("Switching %s to %s", opts.Workspace, target)
		err = client.Switch(ctx, opts.Workspace, target)
	} else {
		log.Infof("Checking out %s into %s", target, opts.Workspace)
		err = client.Checkout(ctx, target, opts.Workspace)
	}
	if err == nil {
		return nil
	}
	log.Warningf("Switch or checkout of %s failed: %v", opts.Workspace, err)
	recovered, attempts := recoverWorkspace(ctx, client, opts, target)
	if recovered {
		return nil
	}
	if attempts.len() > 0 {
		return errors.Wrapf(err, "switch or checkout failed: %s %s; recovery failed: %s", target, opts.Workspace, attempts)
	}
	return errors.Wrapf(err, "switch or checkout failed: %s %s", target, opts.Workspace)
}

// recoverWorkspace retries update when the working copy already points at
// target. It reports whether the working copy is now usable, along with the
// failed attempts.
func recoverWorkspace(ctx context.Context, client *Client, opts CacheOptions, target string) (bool, *attemptErrors) {
	attempts := newAttemptErrors()
	current, ok, err := client.URL(ctx, opts.Workspace)
	if err != nil || !ok {
		return false, attempts
	}
	if current != target {
		log.Errorf("Update to correct tag impossible: working copy points at %s", current)
		return false, attempts
	}
	for attempt := 1; attempt <= opts.RecoveryLimit; attempt++ {
		log.Warningf("Recovery attempt: %d", attempt)
		if err := client.Update(ctx, opts.Workspace); err != nil {
			log.Warningf("Recovery attempt %d failed: %v", attempt, err)
			attempts.add(err)
			continue
		}
		log.Info("Recovery successful")
		return true, attempts
	}
	return false, attempts
}

func verifyWorkspace(path string) error {
	if path == "" {
		return errors.New("workspace path is not specified")
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return errors.Wrapf(err, "workspace path could not be created: %s", path)
		}
		info, err = os.Stat(path)
	}
	if err != nil {
		return errors.Wrapf(err, "invalid workspace path %s", path)
	}
	if !info.IsDir() {
		return errors.Errorf("workspace path is not a directory: %s", path)
	}
	probe, err := os.CreateTemp(path, ".scdb-write-test-")
	if err != nil {
		return errors.Errorf("cannot write to workspace path: %s", path)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// inRepository reports whether the working copy URL current lies within
// repositoryURL.
func inRepository(current string, repositoryURL string) bool {
	base := strings.TrimSuffix(repositoryURL, "/")
	return current == base || strings.HasPrefix(current, base+"/")
}
