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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/test_utils"
)

func TestFindOldCertificate(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	now := time.Now()
	previousPEM := testCertificate(t, "voms.example.org", 1, now.Add(10*24*time.Hour))
	currentPEM := testCertificate(t, "voms.example.org", 2, now.Add(300*24*time.Hour))
	expiredPEM := testCertificate(t, "voms.example.org", 3, now.Add(-time.Minute))
	current, err := ParseCertificate(currentPEM, now)
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(t *testing.T, content string) string {
		path := filepath.Join(dir, t.Name()+".tpl")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("missing-template", func(t *testing.T) {
		old, err := FindOldCertificate(filepath.Join(dir, "missing.tpl"), current, now)
		require.NoError(t, err)
		assert.Nil(t, old)
	})

	t.Run("no-current-certificate", func(t *testing.T) {
		path := write(t, "structure template x;\n\n'cert' ?= <<EOF;\n"+previousPEM+"EOF\n")
		old, err := FindOldCertificate(path, nil, now)
		require.NoError(t, err)
		assert.Nil(t, old)
	})

	t.Run("cert-differs", func(t *testing.T) {
		path := write(t, "structure template x;\n\n'cert' ?= <<EOF;\n"+previousPEM+"EOF\n\n")
		old, err := FindOldCertificate(path, current, now)
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.Equal(t, int64(1), old.Serial.Int64())
	})

	t.Run("cert-unchanged-keeps-oldcert", func(t *testing.T) {
		path := write(t, "structure template x;\n\n'cert' ?= <<EOF;\n"+currentPEM+"EOF\n\n'oldcert' ?= <<EOF;\n"+previousPEM+"EOF\n\n")
		old, err := FindOldCertificate(path, current, now)
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.Equal(t, int64(1), old.Serial.Int64())
	})

	t.Run("only-current", func(t *testing.T) {
		path := write(t, "structure template x;\n\n'cert' ?= <<EOF;\n"+currentPEM+"EOF\n\n")
		old, err := FindOldCertificate(path, current, now)
		require.NoError(t, err)
		assert.Nil(t, old)
	})

	t.Run("expired-existing", func(t *testing.T) {
		path := write(t, "structure template x;\n\n'cert' ?= <<EOF;\n"+expiredPEM+"EOF\n\n")
		old, err := FindOldCertificate(path, current, now)
		require.NoError(t, err)
		assert.Nil(t, old)
	})

	t.Run("legacy-syntax", func(t *testing.T) {
		path := write(t, "structure template x;\n\n\"cert\" = {<<END};\n"+previousPEM+"END\n")
		old, err := FindOldCertificate(path, current, now)
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.Equal(t, int64(1), old.Serial.Int64())
	})
}

func TestExistingCertificates(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	now := time.Now()
	certPEM := testCertificate(t, "voms.example.org", 4, now.Add(time.Hour))

	certs := ExistingCertificates("'oldcert' ?= <<EOF;\n"+certPEM+"EOF\n", now)
	require.Len(t, certs, 1)
	assert.Contains(t, certs, "oldcert")

	assert.Empty(t, ExistingCertificates("'cert' ?= <<EOF;\nnot a certificate\nEOF\n", now))
	assert.Empty(t, ExistingCertificates("'cert' ?= <<EOF;\n"+certPEM, now), "unterminated heredoc")
	assert.Empty(t, ExistingCertificates("'name' ?= 'voms';\n", now))
}
