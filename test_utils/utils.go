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
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type testLogHook struct {
	mu      sync.Mutex
	entries []string
}

func (h *testLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *testLogHook) Fire(entry *logrus.Entry) error {
	formatted, err := entry.String()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, formatted)
	return nil
}

// SetupTestLogging captures the standard logger output and only prints it
// when the test fails. The returned function restores the logger.
func SetupTestLogging(t *testing.T) func() {
	logger := logrus.StandardLogger()
	oldOut := logger.Out
	oldHooks := logger.ReplaceHooks(make(logrus.LevelHooks))
	hook := &testLogHook{}
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	return func() {
		if t.Failed() {
			hook.mu.Lock()
			for _, entry := range hook.entries {
				t.Log(entry)
			}
			hook.mu.Unlock()
		}
		logger.ReplaceHooks(oldHooks)
		logger.SetOutput(oldOut)
	}
}

// TestContext derives a context from ictx that ends with the test deadline.
func TestContext(ictx context.Context, t *testing.T) (ctx context.Context, cancel context.CancelFunc) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ictx, deadline)
	}
	return context.WithCancel(ictx)
}

// CertificateOptions describes a self-signed host certificate for tests.
type CertificateOptions struct {
	CommonName   string
	Organization string
	Serial       int64
	NotBefore    time.Time
	NotAfter     time.Time
}

// GenerateCertificatePEM returns a PEM encoded self-signed certificate. The
// subject is "/C=NL/O=<Organization>/CN=<CommonName>" in slash notation.
func GenerateCertificatePEM(t *testing.T, opts CertificateOptions) string {
	t.Helper()
	if opts.Organization == "" {
		opts.Organization = "Example Grid"
	}
	if opts.Serial == 0 {
		opts.Serial = 1
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = time.Now().Add(365 * 24 * time.Hour)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(opts.Serial),
		Subject: pkix.Name{
			Country:      []string{"NL"},
			Organization: []string{opts.Organization},
			CommonName:   opts.CommonName,
		},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{opts.CommonName},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate for %s: %v", opts.CommonName, err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// ServeContent starts a test HTTP server answering every request with body.
func ServeContent(t *testing.T, contentType string, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}
