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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultLegacySuffixMaxAttempts = 1000

// SuffixAllocator derives the account suffix of each FQAN, unique within
// its VO.
type SuffixAllocator struct {
	// Legacy selects the length/ID based algorithm kept for sites whose
	// accounts were created with it.
	Legacy bool

	// MaxLegacyAttempts bounds the legacy retry loop.
	MaxLegacyAttempts int

	// Hash defaults to LegacyStringHash.
	Hash func(string) int32
}

func NewSuffixAllocator(legacy bool, maxLegacyAttempts int) *SuffixAllocator {
	if maxLegacyAttempts <= 0 {
		maxLegacyAttempts = DefaultLegacySuffixMaxAttempts
	}
	return &SuffixAllocator{
		Legacy:            legacy,
		MaxLegacyAttempts: maxLegacyAttempts,
		Hash:              LegacyStringHash,
	}
}

// Allocate returns the suffix of fqan within vo, deriving and registering it
// on first use.
func (a *SuffixAllocator) Allocate(fqan *VOMSFqan, vo *VOConfig) (string, error) {
	if fqan.suffix != "" {
		return fqan.suffix, nil
	}
	if suffix := fqan.Role.Suffix(); suffix != "" {
		fqan.suffix = suffix
		return suffix, nil
	}

	var suffix string
	var err error
	if a.Legacy {
		suffix, err = a.legacySuffix(fqan, vo)
	} else {
		suffix, err = a.hashSuffix(fqan, vo)
	}
	if err != nil {
		return "", err
	}
	vo.useSuffix(suffix)
	fqan.suffix = suffix
	return suffix, nil
}

func (a *SuffixAllocator) hash(s string) int32 {
	if a.Hash == nil {
		return LegacyStringHash(s)
	}
	return a.Hash(s)
}

func (a *SuffixAllocator) hashSuffix(fqan *VOMSFqan, vo *VOConfig) (string, error) {
	relative := RelativeFqan(fqan.Fqan, vo.Name)
	suffix := EncodeBase26(a.hash(relative))
	if !vo.SuffixUsed(suffix) {
		return suffix, nil
	}
	log.Debugf("Suffix '%s' not unique for FQAN '%s': retrying adding VO name", suffix, relative)
	suffix = EncodeBase26(a.hash(relative + "/" + vo.Name))
	if vo.SuffixUsed(suffix) {
		return "", errors.Errorf("VO %s FQAN '%s': failed to generate a unique account suffix", vo.Name, fqan.Fqan)
	}
	return suffix, nil
}

func (a *SuffixAllocator) legacySuffix(fqan *VOMSFqan, vo *VOConfig) (string, error) {
	maxAttempts := a.MaxLegacyAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultLegacySuffixMaxAttempts
	}
	voID := EncodeBase26(vo.ID)
	length := utf16Length(fqan.Fqan)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		suffix := EncodeBase26(int32(length+100*attempt)) + voID
		if !vo.SuffixUsed(suffix) {
			return suffix, nil
		}
		log.Debugf("Suffix '%s' not unique for FQAN %s (attempt %d)", suffix, fqan.Fqan, attempt)
	}
	return "", errors.Errorf("VO %s FQAN '%s': no unique legacy account suffix after %d attempts", vo.Name, fqan.Fqan, maxAttempts)
}
