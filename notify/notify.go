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

// Package notify tells clients that a new profile is available, using the
// UDP notification protocol of the configuration daemons.
package notify

import (
	"context"
	"encoding/xml"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/metrics"
)

const (
	DefaultPort    = 7777
	DefaultMessage = "ccm"
)

type (
	// DialFunc opens the connection used to send a datagram to address.
	DialFunc func(ctx context.Context, network string, address string) (net.Conn, error)

	Notifier struct {
		Message string
		Port    int
		Dial    DialFunc
	}

	Result struct {
		Sent   int
		Failed int
		// Skipped counts the profiles without a usable host name.
		Skipped int
	}

	pathElement struct {
		local string
		name  string
	}
)

var (
	panNetworkPath   = []pathElement{{"nlist", "profile"}, {"nlist", "system"}, {"nlist", "network"}}
	xmldbNetworkPath = []pathElement{{"profile", ""}, {"system", ""}, {"network", ""}}
	hostnameFields   = map[string]bool{"hostname": true, "domainname": true}
)

// NewNotifier checks that message is one of the notifications understood by
// the clients: ccm or cdb.
func NewNotifier(message string, port int) (*Notifier, error) {
	if message != "ccm" && message != "cdb" {
		return nil, errors.Errorf("message must be 'ccm' or 'cdb', not '%s'", message)
	}
	if port <= 0 || port > 65535 {
		return nil, errors.Errorf("invalid notification port %d", port)
	}
	dialer := &net.Dialer{}
	return &Notifier{Message: message, Port: port, Dial: dialer.DialContext}, nil
}

// Payload is the datagram content: the message, a NUL byte and the profile
// modification time in seconds.
func Payload(message string, mtime int64) []byte {
	return []byte(message + "\x00" + strconv.FormatInt(mtime, 10))
}

// Hostname extracts the fully qualified host name from an XML profile, in
// either pan or xmldb format. It returns an empty string when the profile
// does not define both the host and domain names.
func Hostname(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var stack []pathElement
	values := make(map[string]string)
	format := ""
	var current string
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "invalid XML profile")
		}
		switch t := token.(type) {
		case xml.StartElement:
			elem := pathElement{local: t.Name.Local}
			for _, attr := range t.Attr {
				switch attr.Name.Local {
				case "name":
					elem.name = attr.Value
				case "format":
					if len(stack) == 0 {
						format = attr.Value
					}
				}
			}
			stack = append(stack, elem)
			current = hostField(stack, format)
			text.Reset()
		case xml.CharData:
			if current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if current != "" {
				if _, seen := values[current]; !seen {
					values[current] = strings.TrimSpace(text.String())
				}
				current = ""
			}
			stack = stack[:len(stack)-1]
		}
	}

	host, domain := values["hostname"], values["domainname"]
	if host == "" || domain == "" {
		return "", nil
	}
	return host + "." + domain, nil
}

// hostField returns hostname or domainname when stack points at one of
// those fields of the network configuration.
func hostField(stack []pathElement, format string) string {
	switch format {
	case "", "pan":
		if len(stack) != len(panNetworkPath)+1 {
			return ""
		}
		for i, expected := range panNetworkPath {
			if stack[i] != expected {
				return ""
			}
		}
		last := stack[len(stack)-1]
		if last.local == "string" && hostnameFields[last.name] {
			return last.name
		}
	case "xmldb":
		if len(stack) != len(xmldbNetworkPath)+1 {
			return ""
		}
		for i, expected := range xmldbNetworkPath {
			if stack[i].local != expected.local {
				return ""
			}
		}
		if last := stack[len(stack)-1].local; hostnameFields[last] {
			return last
		}
	}
	return ""
}

// Notify sends one datagram per profile to the host it describes. Failures
// are logged and counted, they do not stop the other notifications.
func (n *Notifier) Notify(ctx context.Context, profiles []string) (*Result, error) {
	result := &Result{}
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		host, mtime, err := readProfile(profile)
		if err != nil {
			log.Errorf("Failed to read profile %s: %v", profile, err)
			metrics.ScdbNotificationsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		if host == "" {
			log.Warningf("Profile %s does not define a host and domain name, skipping it", profile)
			metrics.ScdbNotificationsTotal.WithLabelValues("skipped").Inc()
			result.Skipped++
			continue
		}
		if err := n.send(ctx, host, Payload(n.Message, mtime)); err != nil {
			log.Errorf("Failed to notify %s: %v", host, err)
			metrics.ScdbNotificationsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		metrics.ScdbNotificationsTotal.WithLabelValues("sent").Inc()
		result.Sent++
	}
	return result, nil
}

func readProfile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	host, err := Hostname(f)
	if err != nil {
		return "", 0, err
	}
	return host, info.ModTime().Unix(), nil
}

func (n *Notifier) send(ctx context.Context, host string, payload []byte) error {
	address := net.JoinHostPort(host, strconv.Itoa(n.Port))
	log.Infof("Notifying: %s", address)
	conn, err := n.Dial(ctx, "udp", address)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}
