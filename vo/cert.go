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
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrCertificateExpired     = errors.New("certificate has expired")
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")

	dnSeparator = regexp.MustCompile(`,\s*`)
)

// Certificate is a VOMS server host certificate as published in a VO card.
type Certificate struct {
	// Text is the PEM encoding, normalized to end with exactly one newline.
	Text     string
	Serial   *big.Int
	Subject  string
	Issuer   string
	NotAfter time.Time
}

// ParseCertificate decodes a PEM (or bare base64 DER) certificate and checks
// that it is valid at the given time.
func ParseCertificate(text string, now time.Time) (*Certificate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty certificate")
	}

	var der []byte
	if block, _ := pem.Decode([]byte(text)); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if err != nil {
			return nil, errors.Wrap(err, "certificate is neither PEM nor base64")
		}
		der = decoded
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate")
	}
	if now.After(cert.NotAfter) {
		return nil, errors.Wrapf(ErrCertificateExpired, "expired on %s", cert.NotAfter.UTC().Format(time.RFC3339))
	}
	if now.Before(cert.NotBefore) {
		return nil, errors.Wrapf(ErrCertificateNotYetValid, "valid from %s", cert.NotBefore.UTC().Format(time.RFC3339))
	}

	return &Certificate{
		Text:     text + "\n",
		Serial:   cert.SerialNumber,
		Subject:  slashDN(cert.Subject.String()),
		Issuer:   slashDN(cert.Issuer.String()),
		NotAfter: cert.NotAfter,
	}, nil
}

// Equal reports whether both certificates carry the same serial number.
func (c *Certificate) Equal(other *Certificate) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Serial.Cmp(other.Serial) == 0
}

// slashDN turns an RFC 2253 distinguished name ("CN=a,O=b,C=c") into the
// slash-separated form used by grid middleware ("/C=c/O=b/CN=a").
func slashDN(dn string) string {
	if dn == "" {
		return ""
	}
	parts := dnSeparator.Split(dn, -1)
	var sb strings.Builder
	for idx := len(parts) - 1; idx >= 0; idx-- {
		sb.WriteString("/")
		sb.WriteString(parts[idx])
	}
	return sb.String()
}
