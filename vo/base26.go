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
	"strconv"
	"strings"
	"unicode/utf16"
)

// Base-26 digits 0-9 are shifted past 'P' so that the encoded form only
// contains letters.
const base26DigitOffset = 'P' - '0' + 1

// EncodeBase26 converts n, read as an unsigned 32-bit value, to a lower-case
// base-26 string in which the digits 0-9 are replaced by the letters q-z.
func EncodeBase26(n int32) string {
	encoded := []byte(strconv.FormatUint(uint64(uint32(n)), 26))
	for idx, c := range encoded {
		if c >= '0' && c <= '9' {
			encoded[idx] = c + base26DigitOffset
		}
	}
	return strings.ToLower(string(encoded))
}

// LegacyStringHash is the 31-multiplier polynomial hash of the UTF-16 code
// units of s, wrapping at 32 bits.
// Account suffixes already deployed on sites were derived from this hash, so
// it must be reproduced exactly, including over UTF-16 surrogate pairs.
func LegacyStringHash(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(unit)
	}
	return h
}

// utf16Length is the length of s in UTF-16 code units.
func utf16Length(s string) int {
	return len(utf16.Encode([]rune(s)))
}
