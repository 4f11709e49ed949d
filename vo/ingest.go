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
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type section int

const (
	sectionIdle section = iota
	sectionVO
	sectionVOMSServers
	sectionVOMSServer
	sectionGroupsAndRoles
	sectionFqan
)

const (
	fieldHost        = "host"
	fieldServerPort  = "serverPort"
	fieldVomsesPort  = "vomsesPort"
	fieldAdmin       = "admin"
	fieldCert        = "cert"
	fieldDN          = "dn"
	fieldExpiry      = "expiry"
	fieldFqan        = "fqan"
	fieldDescription = "description"
	fieldGroupUsed   = "groupUsed"
	fieldGroupType   = "groupType"
)

// Both the plain card schema and the CIC portal export are accepted; each
// element or attribute name maps to a section or to a record field.
var (
	sectionElements = map[string]section{
		"VO":             sectionVO,
		"IDCard":         sectionVO,
		"VOMSServers":    sectionVOMSServers,
		"VOMSServer":     sectionVOMSServer,
		"VOMS_Server":    sectionVOMSServer,
		"GroupsAndRoles": sectionGroupsAndRoles,
		"FQANs":          sectionGroupsAndRoles,
		"GroupAndRole":   sectionFqan,
		"FQAN":           sectionFqan,
	}

	// Each section may only be opened from its parent.
	sectionParents = map[section]section{
		sectionVO:             sectionIdle,
		sectionVOMSServers:    sectionVO,
		sectionVOMSServer:     sectionVOMSServers,
		sectionGroupsAndRoles: sectionVO,
		sectionFqan:           sectionGroupsAndRoles,
	}

	serverFields = map[string]string{
		"hostname":             fieldHost,
		"Hostname":             fieldHost,
		"HttpsPort":            fieldServerPort,
		"AdminPort":            fieldServerPort,
		"VomsesPort":           fieldVomsesPort,
		"VOMS_PORT":            fieldVomsesPort,
		"Port":                 fieldVomsesPort,
		"port":                 fieldVomsesPort,
		"IsVomsAdminServer":    fieldAdmin,
		"X509PublicKey":        fieldCert,
		"CertificatePublicKey": fieldCert,
		"DN":                   fieldDN,
		"ExpiryDate":           fieldExpiry,
	}

	fqanFields = map[string]string{
		"FqanExpr":    fieldFqan,
		"GROUP_ROLE":  fieldFqan,
		"GroupRole":   fieldFqan,
		"Fqan":        fieldFqan,
		"Description": fieldDescription,
		"IsGroupUsed": fieldGroupUsed,
		"GroupType":   fieldGroupType,
	}
)

// CardParser turns a VO ID card document into a Catalog. All parse state
// lives in the parser and is reset by every call to Parse.
type CardParser struct {
	// Source names the document in error messages.
	Source string
	// Now is the reference time for certificate validity checks.
	Now func() time.Time

	catalog  *Catalog
	sections []section
	vo       *VOConfig
	server   *VOMSServer
	endpoint *VOMSEndpoint
	fqan     *VOMSFqan
	rawFqan  string

	leaf       string
	collecting bool
	data       strings.Builder
}

func NewCardParser(source string) *CardParser {
	return &CardParser{Source: source, Now: time.Now}
}

func (p *CardParser) reset() {
	p.catalog = NewCatalog()
	p.sections = []section{sectionIdle}
	p.vo = nil
	p.server = nil
	p.endpoint = nil
	p.fqan = nil
	p.rawFqan = ""
	p.leaf = ""
	p.collecting = false
	p.data.Reset()
}

func (p *CardParser) current() section {
	return p.sections[len(p.sections)-1]
}

// Parse reads the whole document. Structural problems (malformed XML, a VO
// without name or with an invalid ID) are fatal; problems limited to a VOMS
// server or certificate are logged and the record skipped.
func (p *CardParser) Parse(r io.Reader) (*Catalog, error) {
	p.reset()
	if p.Now == nil {
		p.Now = time.Now
	}

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "error parsing VO ID cards (%s)", p.Source)
		}

		switch elem := token.(type) {
		case xml.StartElement:
			if err := p.startElement(elem); err != nil {
				return nil, errors.Wrapf(err, "invalid VO ID cards (%s)", p.Source)
			}
		case xml.EndElement:
			if err := p.endElement(elem); err != nil {
				return nil, errors.Wrapf(err, "invalid VO ID cards (%s)", p.Source)
			}
		case xml.CharData:
			if p.collecting {
				p.data.Write(elem)
			}
		}
	}

	if p.current() != sectionIdle {
		return nil, errors.Errorf("VO ID cards (%s) ended in the middle of a VO", p.Source)
	}
	return p.catalog, nil
}

func (p *CardParser) startElement(elem xml.StartElement) error {
	name := elem.Name.Local
	if next, ok := sectionElements[name]; ok && sectionParents[next] == p.current() {
		p.sections = append(p.sections, next)
		return p.openSection(next, elem.Attr)
	}

	switch p.current() {
	case sectionVOMSServer, sectionFqan:
		p.leaf = name
		p.collecting = true
		p.data.Reset()
	}
	return nil
}

func (p *CardParser) openSection(next section, attrs []xml.Attr) error {
	switch next {
	case sectionVO:
		return p.openVO(attrs)
	case sectionVOMSServer:
		p.server = &VOMSServer{Port: DefaultVOMSPort}
		p.endpoint = &VOMSEndpoint{AdminEnabled: true}
		for _, attr := range attrs {
			if field, ok := serverFields[attr.Name.Local]; ok {
				p.setServerField(field, attr.Value)
			}
		}
	case sectionFqan:
		p.fqan = &VOMSFqan{}
		p.rawFqan = ""
		for _, attr := range attrs {
			if field, ok := fqanFields[attr.Name.Local]; ok {
				p.setFqanField(field, attr.Value)
			}
		}
	}
	return nil
}

func (p *CardParser) openVO(attrs []xml.Attr) error {
	var name, id string
	var hasName, hasID bool
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "Name":
			name, hasName = attr.Value, true
		case "ID", "CIC_ID":
			id, hasID = attr.Value, true
		}
	}
	name = cases.Lower(language.Und).String(strings.TrimSpace(name))
	if !hasName || name == "" {
		return errors.New("VO has no name")
	}
	if !hasID {
		return errors.Errorf("VO %s has no ID", name)
	}
	voID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 32)
	if err != nil {
		return errors.Wrapf(err, "VO %s has an invalid ID '%s'", name, id)
	}
	if voID <= 0 {
		return errors.Errorf("VO %s has a non-positive ID (%d)", name, voID)
	}

	log.Infof("Retrieving configuration for VO %s", name)
	p.vo = NewVOConfig(name, int32(voID))
	return nil
}

func (p *CardParser) endElement(elem xml.EndElement) error {
	name := elem.Name.Local
	if closing, ok := sectionElements[name]; ok && closing == p.current() {
		p.sections = p.sections[:len(p.sections)-1]
		return p.closeSection(closing)
	}

	if p.collecting && name == p.leaf {
		value := p.data.String()
		switch p.current() {
		case sectionVOMSServer:
			if field, ok := serverFields[name]; ok {
				p.setServerField(field, value)
			}
		case sectionFqan:
			if field, ok := fqanFields[name]; ok {
				p.setFqanField(field, value)
			}
		}
	}
	p.collecting = false
	p.leaf = ""
	return nil
}

func (p *CardParser) closeSection(closing section) error {
	switch closing {
	case sectionVO:
		p.catalog.AddVO(p.vo)
		log.Debugf("Finished processing VO %s", p.vo.Name)
		p.vo = nil
	case sectionVOMSServer:
		p.closeServer()
		p.server, p.endpoint = nil, nil
	case sectionFqan:
		p.closeFqan()
		p.fqan = nil
	}
	return nil
}

func (p *CardParser) closeServer() {
	server, endpoint := p.server, p.endpoint
	switch {
	case server.Host == "":
		log.Warningf("VO %s: a VOMS server has no hostname defined, ignoring it", p.vo.Name)
		return
	case server.Port == 0:
		log.Warningf("VO %s: VOMS server %s has no port defined, ignoring it", p.vo.Name, server.Host)
		return
	case endpoint.Port == 0:
		log.Warningf("VO %s: VOMS server %s has no VOMS port defined, ignoring it", p.vo.Name, server.Host)
		return
	}
	if server.Cert != nil && server.DeclaredDN != "" && server.DeclaredDN != server.Cert.Subject {
		log.Warningf("VO %s: VOMS server %s certificate subject (%s) does not match the declared DN (%s)",
			p.vo.Name, server.Host, server.Cert.Subject, server.DeclaredDN)
	}

	endpoint.Server = p.catalog.ReconcileServer(server)
	p.vo.Endpoints = append(p.vo.Endpoints, endpoint)
}

func (p *CardParser) closeFqan() {
	fqan := p.fqan
	fqan.Fqan = NormalizeFqan(p.rawFqan, p.vo.Name)
	if fqan.Fqan == "" {
		return
	}
	if fqan.Role != RoleNone {
		log.Debugf("FQAN %s specific role already set from VO ID card (%s)", fqan.Fqan, fqan.Role)
	} else {
		fqan.Role = Classify(RelativeFqan(fqan.Fqan, p.vo.Name))
	}
	p.vo.AddFqan(fqan)
}

func (p *CardParser) setServerField(field string, value string) {
	switch field {
	case fieldHost:
		p.server.Host = strings.TrimSpace(value)
	case fieldServerPort:
		p.server.Port = parsePort(value, "https", p.vo.Name)
	case fieldVomsesPort:
		p.endpoint.Port = parsePort(value, "VOMS", p.vo.Name)
	case fieldAdmin:
		p.endpoint.AdminEnabled = parseFlag(value)
	case fieldCert:
		if strings.TrimSpace(value) == "" {
			return
		}
		cert, err := ParseCertificate(value, p.Now())
		if err != nil {
			log.Warningf("VO %s: ignoring VOMS server certificate: %v", p.vo.Name, err)
			p.server.Cert = nil
			return
		}
		p.server.Cert = cert
	case fieldDN:
		p.server.DeclaredDN = strings.TrimSpace(value)
	case fieldExpiry:
		p.server.DeclaredExpiry = strings.TrimSpace(value)
		if _, ok := ParseDeclaredExpiry(value); !ok && p.server.DeclaredExpiry != "" {
			log.Warningf("VO %s: ignoring invalid VOMS server expiry date '%s'", p.vo.Name, p.server.DeclaredExpiry)
			p.server.DeclaredExpiry = ""
		}
	}
}

func (p *CardParser) setFqanField(field string, value string) {
	switch field {
	case fieldFqan:
		p.rawFqan = value
	case fieldDescription:
		p.fqan.Description = strings.TrimSpace(value)
	case fieldGroupUsed:
		p.fqan.MappingRequested = parseFlag(value)
	case fieldGroupType:
		if role := RoleFromGroupType(strings.TrimSpace(value)); role != RoleNone {
			log.Debugf("VO %s: FQAN declared as the VO %s", p.vo.Name, role)
			p.fqan.Role = role
		}
	}
}

// parseFlag follows the card convention where "0" means false and any other
// value means true; "false" is accepted too.
func parseFlag(value string) bool {
	value = strings.TrimSpace(value)
	return value != "0" && !strings.EqualFold(value, "false")
}

func parsePort(value string, kind string, voName string) int {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port < 0 || port > 65535 {
		log.Warningf("VO %s: invalid %s port '%s'", voName, kind, value)
		return 0
	}
	return port
}
