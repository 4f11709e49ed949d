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

package notify

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quattor/scdbtools/test_utils"
)

const panProfile = `<?xml version="1.0" encoding="utf-8"?>
<nlist format="pan" name="profile">
  <nlist name="software"><string name="hostname">wrong</string></nlist>
  <nlist name="system">
    <nlist name="network">
      <string name="hostname">node1</string>
      <string name="domainname">example.org</string>
      <nlist name="interfaces"><string name="hostname">eth0-name</string></nlist>
    </nlist>
  </nlist>
</nlist>
`

const xmldbProfile = `<?xml version="1.0" encoding="utf-8"?>
<profile format="xmldb">
  <system>
    <network>
      <domainname> example.org </domainname>
      <hostname>node2</hostname>
    </network>
  </system>
</profile>
`

const incompleteProfile = `<nlist format="pan" name="profile">
  <nlist name="system"><nlist name="network"><string name="hostname">node3</string></nlist></nlist>
</nlist>
`

func TestHostname(t *testing.T) {
	tests := []struct {
		name     string
		profile  string
		expected string
	}{
		{"pan", panProfile, "node1.example.org"},
		{"pan-without-format", strings.Replace(panProfile, `format="pan" `, "", 1), "node1.example.org"},
		{"xmldb", xmldbProfile, "node2.example.org"},
		{"missing-domain", incompleteProfile, ""},
		{"unknown-format", strings.Replace(panProfile, `format="pan"`, `format="json"`, 1), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			host, err := Hostname(strings.NewReader(tc.profile))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, host)
		})
	}

	_, err := Hostname(strings.NewReader("<nlist><string>"))
	require.Error(t, err)
}

func TestPayload(t *testing.T) {
	assert.Equal(t, []byte("cdb\x001700000000"), Payload("cdb", 1700000000))
}

func TestNewNotifier(t *testing.T) {
	_, err := NewNotifier("other", DefaultPort)
	assert.EqualError(t, err, "message must be 'ccm' or 'cdb', not 'other'")
	_, err = NewNotifier("ccm", 0)
	require.Error(t, err)

	n, err := NewNotifier(DefaultMessage, DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, "ccm", n.Message)
	assert.NotNil(t, n.Dial)
}

func TestNotify(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	dir := t.TempDir()
	mtime := time.Unix(1700000000, 0)
	writeProfile := func(name string, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}
	profiles := []string{
		writeProfile("node1.xml", panProfile),
		writeProfile("node2.xml", xmldbProfile),
		writeProfile("node3.xml", incompleteProfile),
		writeProfile("broken.xml", "<nlist"),
		writeProfile("unreachable.xml", strings.Replace(panProfile, "node1", "unreachable", 1)),
	}

	var mu sync.Mutex
	var addresses []string
	n, err := NewNotifier("cdb", DefaultPort)
	require.NoError(t, err)
	n.Dial = func(ctx context.Context, network string, address string) (net.Conn, error) {
		mu.Lock()
		addresses = append(addresses, address)
		mu.Unlock()
		if strings.HasPrefix(address, "unreachable.") {
			return nil, errors.New("no route to host")
		}
		return (&net.Dialer{}).DialContext(ctx, network, listener.LocalAddr().String())
	}

	result, err := n.Notify(context.Background(), profiles)
	require.NoError(t, err)
	assert.Equal(t, &Result{Sent: 2, Failed: 2, Skipped: 1}, result)
	assert.Equal(t, []string{"node1.example.org:7777", "node2.example.org:7777", "unreachable.example.org:7777"}, addresses)

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1024)
	for i := 0; i < 2; i++ {
		size, _, err := listener.ReadFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, "cdb\x001700000000", string(buf[:size]))
	}
}

func TestNotifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := NewNotifier("ccm", DefaultPort)
	require.NoError(t, err)
	_, err = n.Notify(ctx, []string{"any.xml"})
	assert.ErrorIs(t, err, context.Canceled)
}
