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
	"fmt"
	"path"

	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/pan"
)

// Namespaces locates the generated templates within a template branch.
type Namespaces struct {
	// Params holds one structure template per VO.
	Params string
	// Certs holds one structure template per VOMS server.
	Certs string
	// SiteParams, if set, is included by every VO template so that sites
	// can override the generated values.
	SiteParams string
	AllVOs     string
	DNList     string
}

func (ns Namespaces) VO(name string) string {
	return path.Join(ns.Params, name)
}

func (ns Namespaces) Server(host string) string {
	return path.Join(ns.Certs, host)
}

func (ns Namespaces) VOList() string {
	return path.Join(ns.Params, ns.AllVOs)
}

func (ns Namespaces) ServerDNList() string {
	return path.Join(ns.Certs, ns.DNList)
}

// RenderVOTemplate produces the parameter template of vo. Suffixes not yet
// allocated are allocated on the way, pilot role first.
func RenderVOTemplate(vo *VOConfig, ns Namespaces, alloc *SuffixAllocator) (*pan.Template, error) {
	log.Debugf("VO configuration for %s", vo)

	tpl := pan.Structure(ns.VO(vo.Name))
	if ns.SiteParams != "" {
		tpl.Linef("include {if_exists('%s')};", path.Join(ns.SiteParams, vo.Name))
		tpl.Line("")
	}
	tpl.Linef("'name' ?= %s;", pan.Quote(vo.Name))
	tpl.Linef("'account_prefix' ?= %s;", pan.Quote(vo.AccountPrefix()))
	tpl.Line("")

	tpl.Line("'voms_servers' ?= list(")
	if len(vo.Endpoints) == 0 {
		log.Warningf("VO %s has no VOMS endpoint defined", vo.Name)
	}
	forceAdmin := len(vo.Endpoints) == 1
	for _, endpoint := range vo.Endpoints {
		writeEndpoint(tpl, endpoint, forceAdmin)
	}
	tpl.Line(");")
	tpl.Line("")

	tpl.Line("'voms_mappings' ?= list(")
	fqans := vo.Fqans(alloc.Legacy)
	if len(fqans) == 0 {
		log.Debugf("VO %s has no specific FQAN defined", vo.Name)
	}
	// The pilot mapping goes first so that it gets the first UID after the
	// reserved ones.
	pilot, hasPilot := vo.Fqan(vo.PilotFqan)
	if hasPilot && vo.PilotFqan != "" {
		if err := writeMapping(tpl, pilot, vo, alloc); err != nil {
			return nil, err
		}
	}
	for _, fqan := range fqans {
		if hasPilot && fqan.Fqan == vo.PilotFqan {
			continue
		}
		if err := writeMapping(tpl, fqan, vo, alloc); err != nil {
			return nil, err
		}
	}
	tpl.Line(");")
	tpl.Line("")
	tpl.Linef("'base_uid' ?= %d;", vo.BaseUID())
	return tpl, nil
}

func writeEndpoint(tpl *pan.Template, endpoint *VOMSEndpoint, forceAdmin bool) {
	host := pan.Quote(endpoint.Server.Host)
	tpl.Linef("    nlist('name', %s,", host)
	tpl.Linef("          'host', %s,", host)
	tpl.Linef("          'port', %d,", endpoint.Port)
	tpl.Linef("          'adminport', %d,", endpoint.Server.Port)
	if !endpoint.AdminEnabled {
		if forceAdmin {
			log.Warningf("voms-admin enabled on %s as this is the only VOMS server (VO card inconsistency)", endpoint.Server.Host)
		} else {
			tpl.Line("          'type', list('voms-only'),")
		}
	}
	tpl.Line("         ),")
}

func writeMapping(tpl *pan.Template, fqan *VOMSFqan, vo *VOConfig, alloc *SuffixAllocator) error {
	suffix, err := alloc.Allocate(fqan, vo)
	if err != nil {
		return err
	}
	prefix := ""
	if !fqan.MappingRequested {
		prefix = "#"
	}
	description := fqan.Description
	if fixed := fqan.Role.Description(); fixed != "" {
		description = fixed
	}
	tpl.Linef("%s    nlist('description', %s,", prefix, pan.Quote(description))
	tpl.Linef("%s          'fqan', %s,", prefix, pan.Quote(fqan.Fqan))
	tpl.Linef("%s          'suffix', %s,", prefix, pan.Quote(suffix))
	tpl.Linef("%s         ),", prefix)
	return nil
}

// RenderServerTemplate produces the certificate template of a VOMS server.
// oldCert, if not nil, is kept next to the current certificate during a
// rotation.
func RenderServerTemplate(server *VOMSServer, oldCert *Certificate, ns Namespaces) *pan.Template {
	tpl := pan.Structure(ns.Server(server.Host))
	tpl.Line("'cert' ?= <<EOF;")
	tpl.Raw(server.CertText())
	tpl.Line("EOF")
	tpl.Line("")
	if oldCert != nil {
		tpl.Line("'oldcert' ?= <<EOF;")
		tpl.Raw(oldCert.Text)
		tpl.Line("EOF")
		tpl.Line("")
	}
	return tpl
}

// RenderVOList produces the template listing every VO.
func RenderVOList(catalog *Catalog, ns Namespaces) *pan.Template {
	tpl := pan.Unique(ns.VOList())
	tpl.Line("variable ALLVOS ?= list(")
	for _, vo := range catalog.VOs() {
		tpl.Linef("        %s,", pan.Quote(vo.Name))
	}
	tpl.Line(");")
	tpl.Line("")
	return tpl
}

// RenderDNList produces the template listing subject and issuer of every
// valid VOMS server certificate, as needed to build .lsc files. oldCerts is
// keyed by host:port.
func RenderDNList(catalog *Catalog, oldCerts map[string]*Certificate, ns Namespaces) *pan.Template {
	tpl := pan.Unique(ns.ServerDNList())
	tpl.Line("variable VOMS_SERVER_DN ?= list(")
	for _, server := range catalog.Servers() {
		writeCertInfo(tpl, server, oldCerts[server.Key()])
	}
	tpl.Line(");")
	tpl.Line("")
	return tpl
}

func writeCertInfo(tpl *pan.Template, server *VOMSServer, oldCert *Certificate) {
	certs := make([]*Certificate, 0, 2)
	if server.Cert != nil {
		certs = append(certs, server.Cert)
	}
	if oldCert != nil {
		certs = append(certs, oldCert)
	}

	entrySuffix := ""
	var subject, issuer string
	for _, cert := range certs {
		if cert.Subject == subject && cert.Issuer == issuer {
			continue
		}
		if entrySuffix != "" {
			log.Infof("VOMS server %s: new certificate subject/issuer found (%s, %s)", server.Host, cert.Subject, cert.Issuer)
		}
		subject, issuer = cert.Subject, cert.Issuer
		tpl.Linef("%-36s%s", fmt.Sprintf("    %s, ", pan.Quote(server.Host+entrySuffix)), fmt.Sprintf("nlist('subject', %s,", pan.Quote(subject)))
		tpl.Linef("%-42s%s", "", fmt.Sprintf("'issuer', %s,", pan.Quote(issuer)))
		tpl.Linef("%-41s%s", "", "),")
		entrySuffix = "_2"
	}
}
