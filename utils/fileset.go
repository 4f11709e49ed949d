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

package utils

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// DefaultExcludes are never selected by a FileSet, whatever its patterns.
var DefaultExcludes = []string{"**/.svn/**", "**/.git/**", "**/CVS/**", "**/*~", "**/.#*", "**/#*#"}

// FileSet selects the regular files below Dir matching one of Includes and
// none of Excludes. Patterns are slash separated and relative to Dir; "*"
// and "?" match within a path element, "**" matches any number of
// elements, and a pattern ending with "/" matches everything below it.
// An empty Includes selects every file.
type FileSet struct {
	Dir      string
	Includes []string
	Excludes []string
}

// Files returns the selected files in lexical order, joined with Dir.
func (s FileSet) Files() ([]string, error) {
	if s.Dir == "" {
		return nil, errors.New("no base directory defined for the file set")
	}
	includes := s.Includes
	if len(includes) == 0 {
		includes = []string{"**"}
	}
	includeMatchers, err := compilePatterns(includes)
	if err != nil {
		return nil, err
	}
	excludeMatchers, err := compilePatterns(append(append([]string{}, DefaultExcludes...), s.Excludes...))
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchAny(includeMatchers, rel) && !matchAny(excludeMatchers, rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", s.Dir)
	}
	return files, nil
}

// Pattern is a compiled FileSet pattern.
type Pattern struct {
	source string
	globs  []glob.Glob
}

// CompilePattern compiles a slash separated FileSet pattern. A "**" element
// followed by more elements may also match no element at all, so each such
// element yields an extra glob with it removed.
func CompilePattern(pattern string) (Pattern, error) {
	normalized := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	if strings.HasSuffix(normalized, "/") {
		normalized += "**"
	}
	compiled := Pattern{source: pattern}
	for _, alternative := range doubleStarAlternatives(strings.Split(normalized, "/")) {
		g, err := glob.Compile(alternative, '/')
		if err != nil {
			return Pattern{}, errors.Wrapf(err, "invalid file pattern %q", pattern)
		}
		compiled.globs = append(compiled.globs, g)
	}
	return compiled, nil
}

func doubleStarAlternatives(elements []string) []string {
	if len(elements) == 0 {
		return []string{""}
	}
	var result []string
	for _, rest := range doubleStarAlternatives(elements[1:]) {
		if rest == "" {
			result = append(result, elements[0])
			continue
		}
		result = append(result, elements[0]+"/"+rest)
		if elements[0] == "**" {
			result = append(result, rest)
		}
	}
	return result
}

// Match reports whether the slash separated relative path matches.
func (p Pattern) Match(rel string) bool {
	for _, g := range p.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (p Pattern) String() string {
	return p.source
}

func compilePatterns(patterns []string) ([]Pattern, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

func matchAny(patterns []Pattern, rel string) bool {
	for _, pattern := range patterns {
		if pattern.Match(rel) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether the slash separated relative path matches
// pattern. Malformed patterns match nothing.
func MatchPattern(pattern string, rel string) bool {
	compiled, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return compiled.Match(rel)
}
