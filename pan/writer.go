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

package pan

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	difflib "github.com/ianbruene/go-difflib/difflib"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/metrics"
)

// Writer writes generated templates, leaving files untouched when their
// content has not changed.
type Writer struct {
	// DryRun prints a unified diff of every change to DiffOutput instead of
	// writing it.
	DryRun     bool
	DiffOutput io.Writer
	// Mode applies to newly created files.
	Mode os.FileMode
}

func NewWriter(dryRun bool) *Writer {
	return &Writer{DryRun: dryRun, DiffOutput: os.Stdout, Mode: 0644}
}

// WriteTemplate writes tpl to its namespace path under branch. kind labels
// the metrics.
func (w *Writer) WriteTemplate(branch string, tpl *Template, kind string) (string, bool, error) {
	path := tpl.Path(branch, ".tpl")
	changed, err := w.WriteFile(path, tpl.Bytes(), kind)
	return path, changed, err
}

// WriteFile replaces path with content unless it already holds exactly that
// content, and reports whether a change was (or, in dry-run mode, would
// have been) made.
func (w *Writer) WriteFile(path string, content []byte, kind string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, errors.Wrapf(err, "failed to read existing %s", path)
	}
	if err == nil && bytes.Equal(existing, content) {
		log.Debugf("%s is up to date", path)
		metrics.ScdbTemplatesTotal.WithLabelValues(kind, string(metrics.TemplateUnchanged)).Inc()
		return false, nil
	}

	if w.DryRun {
		if err := w.printDiff(path, existing, content); err != nil {
			return true, err
		}
		metrics.ScdbTemplatesTotal.WithLabelValues(kind, string(metrics.TemplateDryRun)).Inc()
		return true, nil
	}

	if err := writeAtomic(path, content, w.mode()); err != nil {
		return false, err
	}
	metrics.ScdbTemplatesTotal.WithLabelValues(kind, string(metrics.TemplateWritten)).Inc()
	return true, nil
}

func (w *Writer) mode() os.FileMode {
	if w.Mode == 0 {
		return 0644
	}
	return w.Mode
}

func (w *Writer) printDiff(path string, existing []byte, content []byte) error {
	out := w.DiffOutput
	if out == nil {
		out = os.Stdout
	}
	diff, err := Diff(path, string(existing), string(content))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, diff)
	return errors.Wrap(err, "failed to print template diff")
}

// Diff returns the unified diff turning before into after.
func Diff(path string, before string, after string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.LineDiffParams{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path + " (generated)",
		Context:  3,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to compute diff of %s", path)
	}
	return diff, nil
}

// writeAtomic writes content to a temporary file next to path and renames it
// into place, so readers never see a partially written template.
func writeAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", tmpName)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to set permissions on %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to move template into place at %s", path)
	}
	return nil
}
