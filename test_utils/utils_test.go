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

package test_utils

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/vo"
)

func TestGenerateCertificatePEM(t *testing.T) {
	t.Cleanup(SetupTestLogging(t))
	notAfter := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	certPEM := GenerateCertificatePEM(t, CertificateOptions{
		CommonName: "voms.example.org",
		Serial:     42,
		NotAfter:   notAfter,
	})

	cert, err := vo.ParseCertificate(certPEM, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "/C=NL/O=Example Grid/CN=voms.example.org", cert.Subject)
	assert.Equal(t, cert.Subject, cert.Issuer)
	assert.Equal(t, int64(42), cert.Serial.Int64())
	assert.True(t, notAfter.Equal(cert.NotAfter))
}

func TestServeContent(t *testing.T) {
	server := ServeContent(t, "text/plain", "hello")
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

// TestSetupTestLogging verifies that the test logging hook is properly configured
func TestSetupTestLogging(t *testing.T) {
	t.Cleanup(SetupTestLogging(t))
	cleanup := SetupTestLogging(t)
	defer cleanup()

	logrus.Info("This message should only appear if the test fails")
	logrus.Warn("This warning should only appear if the test fails")

	assert.Equal(t, 1, len(logrus.StandardLogger().Hooks[logrus.InfoLevel]), "Expected one hook to be installed")
}
