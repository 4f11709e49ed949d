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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateHashSuffix(t *testing.T) {
	atlas := NewVOConfig("atlas", 1)
	alloc := NewSuffixAllocator(false, 0)

	higgs := &VOMSFqan{Fqan: "/atlas/higgs"}
	suffix, err := alloc.Allocate(higgs, atlas)
	require.NoError(t, err)
	assert.Equal(t, "uhfjhst", suffix)
	assert.True(t, atlas.SuffixUsed("uhfjhst"))

	user := &VOMSFqan{Fqan: "/atlas/Role=user"}
	suffix, err = alloc.Allocate(user, atlas)
	require.NoError(t, err)
	assert.Equal(t, "vznnfth", suffix)

	t.Run("memoized", func(t *testing.T) {
		again, err := alloc.Allocate(higgs, atlas)
		require.NoError(t, err)
		assert.Equal(t, "uhfjhst", again)
	})

	t.Run("scoped-to-vo", func(t *testing.T) {
		cms := NewVOConfig("cms", 2)
		suffix, err := alloc.Allocate(&VOMSFqan{Fqan: "/cms/higgs"}, cms)
		require.NoError(t, err)
		assert.Equal(t, "uhfjhst", suffix)
	})
}

func TestAllocateReservedSuffix(t *testing.T) {
	alloc := NewSuffixAllocator(false, 0)
	for _, name := range []string{"atlas", "cms", "dteam"} {
		vo := NewVOConfig(name, 3)
		production := &VOMSFqan{Fqan: "/" + name + "/Role=production", Role: RoleProductionManager, Description: "card text"}
		suffix, err := alloc.Allocate(production, vo)
		require.NoError(t, err)
		assert.Equal(t, "p", suffix)
		assert.False(t, vo.SuffixUsed("p"), "reserved suffixes are not registered")

		// A second FQAN with the same reserved role gets the same suffix
		prod := &VOMSFqan{Fqan: "/" + name + "/Role=prod", Role: RoleProductionManager}
		suffix, err = alloc.Allocate(prod, vo)
		require.NoError(t, err)
		assert.Equal(t, "p", suffix)
	}
}

func TestAllocateHashCollision(t *testing.T) {
	vo := NewVOConfig("atlas", 1)
	alloc := NewSuffixAllocator(false, 0)
	alloc.Hash = func(s string) int32 {
		if s == "/b/atlas" {
			return 2
		}
		return 1
	}

	first, err := alloc.Allocate(&VOMSFqan{Fqan: "/atlas/a"}, vo)
	require.NoError(t, err)
	assert.Equal(t, "r", first)

	second, err := alloc.Allocate(&VOMSFqan{Fqan: "/atlas/b"}, vo)
	require.NoError(t, err)
	assert.Equal(t, "s", second)
	assert.NotEqual(t, first, second)

	_, err = alloc.Allocate(&VOMSFqan{Fqan: "/atlas/c"}, vo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VO atlas FQAN '/atlas/c'")
}

func TestAllocateLegacySuffix(t *testing.T) {
	vo := NewVOConfig("atlas", 1)
	alloc := NewSuffixAllocator(true, 0)
	assert.Equal(t, DefaultLegacySuffixMaxAttempts, alloc.MaxLegacyAttempts)

	suffix, err := alloc.Allocate(&VOMSFqan{Fqan: "/atlas/higgs"}, vo)
	require.NoError(t, err)
	assert.Equal(t, "cr", suffix)

	// Same length as /atlas/higgs: second attempt adds 100 to the length
	suffix, err = alloc.Allocate(&VOMSFqan{Fqan: "/atlas/susyx"}, vo)
	require.NoError(t, err)
	assert.Equal(t, "uyr", suffix)

	t.Run("exhausted", func(t *testing.T) {
		vo := NewVOConfig("atlas", 1)
		alloc := NewSuffixAllocator(true, 1)
		_, err := alloc.Allocate(&VOMSFqan{Fqan: "/atlas/higgs"}, vo)
		require.NoError(t, err)
		_, err = alloc.Allocate(&VOMSFqan{Fqan: "/atlas/susyx"}, vo)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 1 attempts")
	})
}
