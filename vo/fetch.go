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

package vo

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliercoder/grab"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/metrics"
)

// OpenCards opens the VO ID card document at uri, which may be an http(s)
// URL, a file URL or a local path. Remote documents are downloaded to
// tmpDir first.
func OpenCards(ctx context.Context, uri string, client *http.Client, tmpDir string) (io.ReadCloser, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid format used for specifying the source of VO ID cards: %s", uri)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		filename, err := download(ctx, uri, client, tmpDir)
		if err != nil {
			metrics.ScdbFetchesTotal.WithLabelValues("vo_cards", "error").Inc()
			return nil, err
		}
		metrics.ScdbFetchesTotal.WithLabelValues("vo_cards", "success").Inc()
		return openFile(filename, uri)
	case "file":
		return openFile(parsed.Path, uri)
	case "":
		return openFile(uri, uri)
	default:
		return nil, errors.Errorf("unsupported scheme '%s' for VO ID cards source %s", parsed.Scheme, uri)
	}
}

func openFile(name string, uri string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open VO ID card source (%s)", uri)
	}
	return f, nil
}

func download(ctx context.Context, uri string, client *http.Client, tmpDir string) (string, error) {
	grabClient := grab.NewClient()
	if client != nil {
		grabClient.HTTPClient = client
	}
	req, err := grab.NewRequest(filepath.Join(tmpDir, "vo-cards.xml"), uri)
	if err != nil {
		return "", errors.Wrapf(err, "invalid VO ID cards URL %s", uri)
	}
	req.NoResume = true
	req = req.WithContext(ctx)

	log.Debugf("Downloading VO ID cards from %s", uri)
	resp := grabClient.Do(req)
	if err := resp.Err(); err != nil {
		return "", errors.Wrapf(err, "failed to download VO ID cards (%s)", uri)
	}
	log.Debugf("Downloaded %d bytes from %s", resp.BytesComplete(), uri)
	return resp.Filename, nil
}
