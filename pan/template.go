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

// Package pan builds pan template text and writes template files.
package pan

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Kind string

const (
	KindStructure Kind = "structure"
	KindUnique    Kind = "unique"
	KindPlain     Kind = ""
)

// Template accumulates the text of a single template. The header line is
// emitted when the template is created.
type Template struct {
	Kind      Kind
	Namespace string

	sb strings.Builder
}

func NewTemplate(kind Kind, namespace string) *Template {
	tpl := &Template{Kind: kind, Namespace: namespace}
	if kind == KindPlain {
		tpl.Linef("template %s;", namespace)
	} else {
		tpl.Linef("%s template %s;", kind, namespace)
	}
	tpl.Line("")
	return tpl
}

// Structure starts a structure template.
func Structure(namespace string) *Template {
	return NewTemplate(KindStructure, namespace)
}

// Unique starts a unique template.
func Unique(namespace string) *Template {
	return NewTemplate(KindUnique, namespace)
}

func (t *Template) Line(s string) {
	t.sb.WriteString(s)
	t.sb.WriteString("\n")
}

func (t *Template) Linef(format string, args ...interface{}) {
	t.Line(fmt.Sprintf(format, args...))
}

// Raw appends s verbatim.
func (t *Template) Raw(s string) {
	t.sb.WriteString(s)
}

func (t *Template) String() string {
	return t.sb.String()
}

func (t *Template) Bytes() []byte {
	return []byte(t.sb.String())
}

// Path returns the file holding the template namespace under branch.
func (t *Template) Path(branch string, ext string) string {
	return NamespacePath(branch, t.Namespace, ext)
}

// NamespacePath maps a template namespace such as "vo/params/atlas" to its
// file under branch.
func NamespacePath(branch string, namespace string, ext string) string {
	return filepath.Join(branch, filepath.FromSlash(namespace)+ext)
}

// Quote returns s as a single-quoted pan string. Pan single-quoted strings
// have no escapes, so embedded quotes switch to a double-quoted string.
func Quote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s)
	return `"` + escaped + `"`
}
