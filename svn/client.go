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
	"encoding/xml"

	"github.com/pkg/errors"
)

// absentCodes are reported when a path is not a working copy or a URL does
// not exist.
var absentCodes = []string{"E155007", "E155010", "W155010", "E170000", "W170000", "E200009"}

type (
	// Client wraps the svn subcommands used by the workflows.
	Client struct {
		runner Runner
	}

	// StatusEntry is the status of a single path, as reported by svn status.
	StatusEntry struct {
		Path string
		// Item is the working copy status (modified, added, normal...).
		Item string
		// ReposItem is the repository status, only set when checking the
		// repository.
		ReposItem string
	}

	infoDocument struct {
		Entries []struct {
			URL string `xml:"url"`
		} `xml:"entry"`
	}

	statusDocument struct {
		Targets []struct {
			Entries []struct {
				Path     string `xml:"path,attr"`
				WCStatus struct {
					Item string `xml:"item,attr"`
				} `xml:"wc-status"`
				ReposStatus struct {
					Item string `xml:"item,attr"`
				} `xml:"repos-status"`
			} `xml:"entry"`
		} `xml:"target"`
	}
)

func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// URL returns the repository URL of target, a working copy path or a URL.
// ok is false when target is not a working copy or does not exist, which
// is not an error.
func (c *Client) URL(ctx context.Context, target string) (url string, ok bool, err error) {
	out, err := c.runner.Run(ctx, "info", "--xml", target)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasCode(absentCodes...) {
			return "", false, nil
		}
		return "", false, err
	}
	var doc infoDocument
	if err := xml.Unmarshal(out, &doc); err != nil {
		return "", false, errors.Wrapf(err, "invalid svn info output for %s", target)
	}
	if len(doc.Entries) == 0 || doc.Entries[0].URL == "" {
		return "", false, nil
	}
	return doc.Entries[0].URL, true, nil
}

// Exists reports whether url exists in the repository.
func (c *Client) Exists(ctx context.Context, url string) (bool, error) {
	_, ok, err := c.URL(ctx, url)
	return ok, err
}

// Status returns the status of every path of the working copy. With remote
// set, the repository is checked for newer revisions too.
func (c *Client) Status(ctx context.Context, path string, remote bool) ([]StatusEntry, error) {
	args := []string{"status", "--xml"}
	if remote {
		args = append(args, "--show-updates")
	}
	out, err := c.runner.Run(ctx, append(args, path)...)
	if err != nil {
		return nil, err
	}
	var doc statusDocument
	if err := xml.Unmarshal(out, &doc); err != nil {
		return nil, errors.Wrapf(err, "invalid svn status output for %s", path)
	}
	var entries []StatusEntry
	for _, target := range doc.Targets {
		for _, entry := range target.Entries {
			entries = append(entries, StatusEntry{Path: entry.Path, Item: entry.WCStatus.Item, ReposItem: entry.ReposStatus.Item})
		}
	}
	return entries, nil
}

// LocallyModified reports a working copy change. Ignored and external
// paths do not count.
func (e StatusEntry) LocallyModified() bool {
	switch e.Item {
	case "", "normal", "ignored", "external", "none":
		return false
	}
	return true
}

// RemotelyModified reports a newer revision of the path in the repository.
func (e StatusEntry) RemotelyModified() bool {
	switch e.ReposItem {
	case "", "none", "normal":
		return false
	}
	return true
}

// Copy makes a server side copy of the HEAD revision of src.
func (c *Client) Copy(ctx context.Context, src string, dst string, message string) error {
	_, err := c.runner.Run(ctx, "copy", "--revision", "HEAD", "--message", message, src, dst)
	return err
}

// Mkdir creates url and its missing parents in the repository.
func (c *Client) Mkdir(ctx context.Context, url string, message string) error {
	_, err := c.runner.Run(ctx, "mkdir", "--parents", "--message", message, url)
	return err
}

func (c *Client) Checkout(ctx context.Context, url string, path string) error {
	_, err := c.runner.Run(ctx, "checkout", "--revision", "HEAD", url, path)
	return err
}

func (c *Client) Switch(ctx context.Context, path string, url string) error {
	_, err := c.runner.Run(ctx, "switch", "--revision", "HEAD", url, path)
	return err
}

func (c *Client) Update(ctx context.Context, path string) error {
	_, err := c.runner.Run(ctx, "update", "--revision", "HEAD", path)
	return err
}
