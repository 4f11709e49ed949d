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
	"net/http"
	"os"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/metrics"
	"github.com/quattor/scdbtools/pan"
)

type (
	GeneratorOptions struct {
		CardsURI string
		// Branches are the template branches updated with the same content.
		Branches                []string
		Namespaces              Namespaces
		LegacySuffixes          bool
		LegacySuffixMaxAttempts int

		Writer     *pan.Writer
		HTTPClient *http.Client
		Now        func() time.Time
	}

	Generator struct {
		opts GeneratorOptions
	}

	GeneratorResult struct {
		VOs     int
		Servers int
		// PrefixConflicts maps an account prefix to the VOs sharing it.
		PrefixConflicts map[string][]string
	}
)

// NewGenerator checks opts for configuration errors, before any work is done.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	if opts.CardsURI == "" {
		return nil, errors.New("the source of VO ID cards is not defined")
	}
	if opts.Namespaces.Params == "" {
		return nil, errors.New("the namespace of VO parameter templates is not defined")
	}
	if opts.Namespaces.Certs == "" {
		return nil, errors.New("the namespace of VOMS server certificate templates is not defined")
	}
	if opts.Namespaces.AllVOs == "" {
		opts.Namespaces.AllVOs = "allvos"
	}
	if opts.Namespaces.DNList == "" {
		opts.Namespaces.DNList = "voms_dn_list"
	}
	if len(opts.Branches) == 0 {
		return nil, errors.New("no template branch to update")
	}
	for _, branch := range opts.Branches {
		info, err := os.Stat(branch)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid template branch %s", branch)
		}
		if !info.IsDir() {
			return nil, errors.Errorf("template branch %s is not a directory", branch)
		}
	}
	if opts.Writer == nil {
		opts.Writer = pan.NewWriter(false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{opts: opts}, nil
}

// Load fetches and parses the VO ID cards.
func (g *Generator) Load(ctx context.Context) (*Catalog, error) {
	tmpDir, err := os.MkdirTemp("", "scdb-vo-cards-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	cards, err := OpenCards(ctx, g.opts.CardsURI, g.opts.HTTPClient, tmpDir)
	if err != nil {
		return nil, err
	}
	defer cards.Close()

	parser := NewCardParser(g.opts.CardsURI)
	parser.Now = g.opts.Now
	return parser.Parse(cards)
}

// Run loads the VO ID cards and writes every template in every branch.
func (g *Generator) Run(ctx context.Context) (*GeneratorResult, error) {
	catalog, err := g.Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ScdbVOsTotal.Set(float64(len(catalog.VOs())))
	metrics.ScdbVOMSServersTotal.Set(float64(len(catalog.Servers())))

	alloc := NewSuffixAllocator(g.opts.LegacySuffixes, g.opts.LegacySuffixMaxAttempts)
	for _, branch := range g.opts.Branches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Infof("Updating templates in branch %s", branch)
		if err := g.WriteBranch(catalog, alloc, branch); err != nil {
			return nil, err
		}
	}

	result := &GeneratorResult{
		VOs:             len(catalog.VOs()),
		Servers:         len(catalog.Servers()),
		PrefixConflicts: AccountPrefixConflicts(catalog),
	}
	reportPrefixConflicts(result.PrefixConflicts)
	return result, nil
}

// pendingTemplate is a rendered template waiting to be written.
type pendingTemplate struct {
	tpl  *pan.Template
	kind string
	what string
}

// WriteBranch writes the VO, VOMS server, VO list and DN list templates into
// branch. Old certificates are looked up in the branch itself. Every
// template is rendered before the first one is written, so a rendering
// error leaves the branch untouched.
func (g *Generator) WriteBranch(catalog *Catalog, alloc *SuffixAllocator, branch string) error {
	pending, err := g.renderBranch(catalog, alloc, branch)
	if err != nil {
		return err
	}
	for _, p := range pending {
		path, changed, err := g.opts.Writer.WriteTemplate(branch, p.tpl, p.kind)
		if err != nil {
			return errors.Wrapf(err, "error writing template for %s", p.what)
		}
		logWrite(p.what, path, changed)
	}
	return nil
}

func (g *Generator) renderBranch(catalog *Catalog, alloc *SuffixAllocator, branch string) ([]pendingTemplate, error) {
	ns := g.opts.Namespaces
	pending := make([]pendingTemplate, 0, len(catalog.VOs())+len(catalog.Servers())+2)

	for _, vo := range catalog.VOs() {
		tpl, err := RenderVOTemplate(vo, ns, alloc)
		if err != nil {
			return nil, err
		}
		pending = append(pending, pendingTemplate{tpl: tpl, kind: "vo", what: "VO " + vo.Name})
	}

	oldCerts := make(map[string]*Certificate)
	for _, server := range catalog.Servers() {
		tplPath := pan.NamespacePath(branch, ns.Server(server.Host), ".tpl")
		oldCert, err := FindOldCertificate(tplPath, server.Cert, g.opts.Now())
		if err != nil {
			return nil, err
		}
		if oldCert != nil {
			oldCerts[server.Key()] = oldCert
		}
		pending = append(pending, pendingTemplate{
			tpl:  RenderServerTemplate(server, oldCert, ns),
			kind: "voms_server",
			what: "VOMS server " + server.Host,
		})
	}

	pending = append(pending,
		pendingTemplate{tpl: RenderVOList(catalog, ns), kind: "vo_list", what: "the list of defined VOs"},
		pendingTemplate{tpl: RenderDNList(catalog, oldCerts, ns), kind: "dn_list", what: "the list of VOMS server DNs"},
	)
	return pending, nil
}

func logWrite(what string, path string, changed bool) {
	if changed {
		log.Infof("Writing template for %s (%s)", what, path)
	} else {
		log.Debugf("Template for %s unchanged (%s)", what, path)
	}
}

// AccountPrefixConflicts returns the account prefixes generated for more
// than one VO.
func AccountPrefixConflicts(catalog *Catalog) map[string][]string {
	owners := treemap.NewWithStringComparator()
	for _, vo := range catalog.VOs() {
		prefix := vo.AccountPrefix()
		var names []string
		if value, found := owners.Get(prefix); found {
			names = value.([]string)
			log.Debugf("VO %s: generated account prefix (%s) already used by another VO", vo.Name, prefix)
		}
		owners.Put(prefix, append(names, vo.Name))
	}

	conflicts := make(map[string][]string)
	it := owners.Iterator()
	for it.Next() {
		names := it.Value().([]string)
		if len(names) > 1 {
			conflicts[it.Key().(string)] = names
		}
	}
	return conflicts
}

func reportPrefixConflicts(conflicts map[string][]string) {
	if len(conflicts) == 0 {
		return
	}
	sorted := treemap.NewWithStringComparator()
	for prefix, names := range conflicts {
		sorted.Put(prefix, names)
	}
	log.Warningln("The following account prefixes are used by several VOs:")
	it := sorted.Iterator()
	for it.Next() {
		log.Warningf("    %s: %v", it.Key(), it.Value())
	}
	log.Warningln("Should you use several conflicting VOs, be sure to define their account prefix explicitly.")
}
