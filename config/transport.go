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

package config

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/quattor/scdbtools/param"
)

var (
	// Our global transport; built on first use from the Transport.* parameters
	transport *http.Transport

	onceTransport sync.Once
	transportMu   sync.Mutex
)

// function to get/setup the transport (only once)
func GetTransport() *http.Transport {
	transportMu.Lock()
	defer transportMu.Unlock()
	onceTransport.Do(func() {
		transport = setupTransport()
	})
	return transport
}

// GetHTTPClient returns a client sharing the global transport. Requests are
// bounded by their context and the transport timeouts.
func GetHTTPClient() *http.Client {
	return &http.Client{Transport: GetTransport()}
}

// ResetTransport drops the global transport so that the next GetTransport
// picks up changed parameters.
func ResetTransport() {
	transportMu.Lock()
	defer transportMu.Unlock()
	if transport != nil {
		transport.CloseIdleConnections()
	}
	transport = nil
	onceTransport = sync.Once{}
}

func setupTransport() *http.Transport {
	t := cleanhttp.DefaultPooledTransport()

	if timeout := param.Transport_DialerTimeout.GetDuration(); timeout > 0 {
		dialer := &net.Dialer{
			Timeout:   timeout,
			KeepAlive: param.Transport_DialerKeepAlive.GetDuration(),
		}
		t.DialContext = dialer.DialContext
	}
	if maxIdleConns := param.Transport_MaxIdleConns.GetInt(); maxIdleConns > 0 {
		t.MaxIdleConns = maxIdleConns
	}
	if timeout := param.Transport_IdleConnTimeout.GetDuration(); timeout > 0 {
		t.IdleConnTimeout = timeout
	}
	if timeout := param.Transport_TLSHandshakeTimeout.GetDuration(); timeout > 0 {
		t.TLSHandshakeTimeout = timeout
	}
	t.ResponseHeaderTimeout = param.Transport_ResponseHeaderTimeout.GetDuration()

	if param.TLSSkipVerify.GetBool() {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}
