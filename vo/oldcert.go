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
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Matches the opening of 'cert' ?= <<EOF; or 'oldcert' = {<<EOF}; with the
// heredoc delimiter in the last group.
var certDeclaration = regexp.MustCompile(`\s*(?:'(old)?cert'|"(old)?cert")\s*\??=\s*\{*\s*<<(\w+)\s*\}*\s*;(?:\n|\r)+`)

// ExistingCertificates returns the still valid certificates declared as
// 'cert' and 'oldcert' in the text of a server template.
func ExistingCertificates(content string, now time.Time) map[string]*Certificate {
	certs := make(map[string]*Certificate)
	pos := 0
	for pos < len(content) {
		loc := certDeclaration.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		certType := "cert"
		if loc[2] >= 0 || loc[4] >= 0 {
			certType = "oldcert"
		}
		delimiter := content[pos+loc[6] : pos+loc[7]]
		bodyStart := pos + loc[1]

		end := heredocEnd(content[bodyStart:], delimiter)
		if end < 0 {
			log.Warningf("Invalid format of certificate declaration ('%s') in existing template", certType)
			break
		}
		body := content[bodyStart : bodyStart+end]
		pos = bodyStart + end + len(delimiter)

		cert, err := ParseCertificate(body, now)
		if err != nil {
			log.Infof("Existing certificate ('%s') no longer valid, ignoring it: %v", certType, err)
			continue
		}
		certs[certType] = cert
	}
	return certs
}

// heredocEnd returns the offset of the line starting with delimiter, or -1.
func heredocEnd(text string, delimiter string) int {
	if strings.HasPrefix(text, delimiter) {
		return 0
	}
	if idx := strings.Index(text, "\n"+delimiter); idx >= 0 {
		return idx + 1
	}
	return -1
}

// FindOldCertificate looks in the existing server template at path for a
// valid certificate different from current. 'cert' is preferred over
// 'oldcert'. A missing template is not an error.
func FindOldCertificate(path string, current *Certificate, now time.Time) (*Certificate, error) {
	if current == nil {
		log.Debugf("No certificate in VO ID card for %s, ignoring existing certificate", path)
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debugf("No certificate previously defined in %s: 'oldcert' not defined", path)
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read existing certificate template %s", path)
	}

	existing := ExistingCertificates(string(content), now)
	if cert, ok := existing["cert"]; ok && !cert.Equal(current) {
		log.Debugf("Existing certificate ('cert') in %s differs from VO ID card: 'oldcert' defined", path)
		return cert, nil
	}
	if cert, ok := existing["oldcert"]; ok && !cert.Equal(current) {
		log.Debugf("Existing certificate ('oldcert') in %s differs from VO ID card: 'oldcert' defined", path)
		return cert, nil
	}
	return nil, nil
}
