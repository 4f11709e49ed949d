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
	"sort"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/hashset"
	log "github.com/sirupsen/logrus"
)

const DefaultVOMSPort = 8443

var declaredExpiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan _2 15:04:05 2006 MST",
}

// ParseDeclaredExpiry parses an ExpiryDate card leaf.
func ParseDeclaredExpiry(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range declaredExpiryLayouts {
		if expiry, err := time.Parse(layout, value); err == nil {
			return expiry, true
		}
	}
	return time.Time{}, false
}

type (
	// VOMSServer is shared by every VO declaring the same host and port.
	VOMSServer struct {
		Host string
		Port int
		Cert *Certificate

		// DeclaredDN and DeclaredExpiry hold the DN and ExpiryDate leaves of
		// the card, when present. DeclaredExpiry stands in for the
		// certificate expiry when no certificate was parsed.
		DeclaredDN     string
		DeclaredExpiry string
	}

	// VOMSEndpoint is the VO-specific view of a VOMS server.
	VOMSEndpoint struct {
		Server       *VOMSServer
		Port         int
		AdminEnabled bool
	}

	VOMSFqan struct {
		Fqan             string
		Description      string
		MappingRequested bool
		Role             Role

		suffix string
	}

	VOConfig struct {
		Name      string
		ID        int32
		Endpoints []*VOMSEndpoint
		PilotFqan string

		fqans         *linkedhashmap.Map
		usedSuffixes  *hashset.Set
		accountPrefix string
	}

	// Catalog holds everything read from the VO cards, with VOs and VOMS
	// servers kept sorted by key.
	Catalog struct {
		vos     *treemap.Map
		servers *treemap.Map
	}
)

func NewVOConfig(name string, id int32) *VOConfig {
	return &VOConfig{
		Name:         name,
		ID:           id,
		fqans:        linkedhashmap.New(),
		usedSuffixes: hashset.New(),
	}
}

// AddFqan records fqan under its normalized name, replacing an earlier entry
// with the same name while keeping its position.
func (vo *VOConfig) AddFqan(fqan *VOMSFqan) {
	vo.fqans.Put(fqan.Fqan, fqan)
	if fqan.Role == RolePilot {
		vo.PilotFqan = fqan.Fqan
	} else if vo.PilotFqan == fqan.Fqan {
		vo.PilotFqan = ""
	}
}

func (vo *VOConfig) Fqan(name string) (*VOMSFqan, bool) {
	value, found := vo.fqans.Get(name)
	if !found {
		return nil, false
	}
	return value.(*VOMSFqan), true
}

// Fqans returns the FQANs in card order, or sorted by name when sorted is set.
func (vo *VOConfig) Fqans(sorted bool) []*VOMSFqan {
	keys := make([]string, 0, vo.fqans.Size())
	for _, key := range vo.fqans.Keys() {
		keys = append(keys, key.(string))
	}
	if sorted {
		sort.Strings(keys)
	}
	result := make([]*VOMSFqan, 0, len(keys))
	for _, key := range keys {
		fqan, _ := vo.Fqan(key)
		result = append(result, fqan)
	}
	return result
}

func (vo *VOConfig) SuffixUsed(suffix string) bool {
	return vo.usedSuffixes.Contains(suffix)
}

func (vo *VOConfig) useSuffix(suffix string) {
	vo.usedSuffixes.Add(suffix)
}

// BaseUID is the first UID of the VO pool accounts.
func (vo *VOConfig) BaseUID() int64 {
	return int64(vo.ID) * 1000
}

// AccountPrefix is the first three alphanumeric characters of the VO name,
// without a leading "vo.", followed by the base-26 encoding of the VO ID.
func (vo *VOConfig) AccountPrefix() string {
	if vo.accountPrefix == "" {
		name := strings.TrimPrefix(vo.Name, "vo.")
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, name)
		if len(name) > 3 {
			name = name[:3]
		}
		vo.accountPrefix = name + EncodeBase26(vo.ID)
	}
	return vo.accountPrefix
}

func (vo *VOConfig) String() string {
	lines := make([]string, 0, len(vo.Endpoints)+1)
	lines = append(lines, fmt.Sprintf("VO %s (ID=%d)", vo.Name, vo.ID))
	for _, endpoint := range vo.Endpoints {
		lines = append(lines, fmt.Sprintf("    VOMS Server: %s (VOMS port=%d, voms-admin=%t)",
			endpoint.Server.Key(), endpoint.Port, endpoint.AdminEnabled))
	}
	return strings.Join(lines, "\n")
}

// Key identifies a VOMS server across VOs.
func (s *VOMSServer) Key() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Expiry returns the certificate expiry. Without a certificate it falls
// back to the declared expiry date, or the zero time.
func (s *VOMSServer) Expiry() time.Time {
	if s.Cert != nil {
		return s.Cert.NotAfter
	}
	expiry, _ := ParseDeclaredExpiry(s.DeclaredExpiry)
	return expiry
}

// CertText returns the PEM text of the current certificate or "".
func (s *VOMSServer) CertText() string {
	if s.Cert == nil {
		return ""
	}
	return s.Cert.Text
}

func NewCatalog() *Catalog {
	return &Catalog{
		vos:     treemap.NewWithStringComparator(),
		servers: treemap.NewWithStringComparator(),
	}
}

// AddVO commits a fully parsed VO, replacing any VO with the same name.
func (c *Catalog) AddVO(vo *VOConfig) {
	if _, exists := c.vos.Get(vo.Name); exists {
		log.Warningf("VO %s is defined more than once; keeping the last definition", vo.Name)
	}
	c.vos.Put(vo.Name, vo)
}

func (c *Catalog) VO(name string) (*VOConfig, bool) {
	value, found := c.vos.Get(name)
	if !found {
		return nil, false
	}
	return value.(*VOConfig), true
}

// VOs returns all VOs sorted by name.
func (c *Catalog) VOs() []*VOConfig {
	result := make([]*VOConfig, 0, c.vos.Size())
	for _, value := range c.vos.Values() {
		result = append(result, value.(*VOConfig))
	}
	return result
}

// Servers returns all VOMS servers sorted by host:port.
func (c *Catalog) Servers() []*VOMSServer {
	result := make([]*VOMSServer, 0, c.servers.Size())
	for _, value := range c.servers.Values() {
		result = append(result, value.(*VOMSServer))
	}
	return result
}

// ReconcileServer returns the canonical record for candidate's host:port.
// The first declaration becomes canonical. Later declarations may only
// replace its certificate with one that expires later. Declarations without
// any certificate are compared by their declared expiry date.
func (c *Catalog) ReconcileServer(candidate *VOMSServer) *VOMSServer {
	key := candidate.Key()
	value, found := c.servers.Get(key)
	if !found {
		log.Debugf("Adding VOMS server '%s' to global VOMS server list", key)
		c.servers.Put(key, candidate)
		return candidate
	}

	canonical := value.(*VOMSServer)
	log.Debugf("VOMS server '%s' already defined: checking attribute consistency", key)
	if candidate.Cert == nil {
		reconcileDeclaredExpiry(canonical, candidate)
		return canonical
	}
	if candidate.Cert.Equal(canonical.Cert) {
		return canonical
	}
	switch {
	case canonical.Cert == nil:
		log.Warningf("VOMS server '%s' already defined but without certificate, updating it", key)
		canonical.Cert = candidate.Cert
	case candidate.Expiry().After(canonical.Expiry()):
		log.Warningf("VOMS server '%s' already defined with an older certificate, updating it", key)
		canonical.Cert = candidate.Cert
	case candidate.Expiry().Before(canonical.Expiry()):
		log.Warningf("VOMS server '%s' already defined with a newer certificate, keeping previous one", key)
	default:
		log.Warningf("VOMS server '%s' declared with two certificates sharing the same expiry, keeping the first one", key)
	}
	return canonical
}

func reconcileDeclaredExpiry(canonical *VOMSServer, candidate *VOMSServer) {
	if canonical.Cert != nil || candidate.DeclaredExpiry == "" {
		return
	}
	key := candidate.Key()
	switch {
	case candidate.Expiry().After(canonical.Expiry()):
		log.Warningf("VOMS server '%s' already defined with an older expiry date, updating it", key)
		canonical.DeclaredExpiry = candidate.DeclaredExpiry
		if candidate.DeclaredDN != "" {
			canonical.DeclaredDN = candidate.DeclaredDN
		}
	case candidate.Expiry().Before(canonical.Expiry()):
		log.Warningf("VOMS server '%s' already defined with a later expiry date, keeping previous one", key)
	}
}
