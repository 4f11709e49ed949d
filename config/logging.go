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
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/logging"
	"github.com/quattor/scdbtools/metrics"
)

type (
	RegexpFilter struct {
		Regexp *regexp.Regexp
		Name   string
		Fire   func(*log.Entry) error
	}

	// A logrus hook that carries a list of regexp-based "filters".
	// If any of the filters matches the incoming log line, the corresponding
	// callback is invoked.
	RegexpFilterHook struct {
		filters atomic.Pointer[[]*RegexpFilter]
	}
)

var (
	globalFilters   RegexpFilterHook
	initLoggingOnce sync.Once

	// Repository and card URLs may carry credentials in their user info.
	urlCredentials = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.-]*://[^/\s:@]+):[^@\s/]+@`)
)

func (fh *RegexpFilterHook) Levels() []log.Level {
	return log.AllLevels
}

// Process a single log entry coming from logrus; iterate through the
// internal list of regexp filters and invoke any callbacks for regexps
// that match the entry.Message.
func (fh *RegexpFilterHook) Fire(entry *log.Entry) (err error) {
	filters := fh.filters.Load()
	if filters == nil {
		return nil
	}
	for _, filter := range *filters {
		if filter.Regexp.MatchString(entry.Message) {
			curErr := filter.Fire(entry)
			if curErr != nil && err == nil {
				err = curErr
			}
		}
	}
	return
}

func redactURLCredentials(entry *log.Entry) error {
	entry.Message = urlCredentials.ReplaceAllString(entry.Message, "${1}:REDACTED@")
	return nil
}

// InitLogging installs the global log hooks: the regexp filters, which
// start out redacting passwords embedded in URLs, and the per-level message
// counter. Log output itself is handled by the logging package.
func InitLogging() {
	initLoggingOnce.Do(func() {
		filters := []*RegexpFilter{{
			Regexp: urlCredentials,
			Name:   "url-credentials",
			Fire:   redactURLCredentials,
		}}
		globalFilters.filters.Store(&filters)
		logging.AddHook(&globalFilters)
		logging.AddHook(metrics.LogHook{})
	})
}

func AddFilter(newFilter *RegexpFilter) {
	filters := globalFilters.filters.Load()
	var newFilters []*RegexpFilter
	if filters != nil {
		newFilters = append(newFilters, *filters...)
	}
	newFilters = append(newFilters, newFilter)
	globalFilters.filters.Store(&newFilters)
}

func RemoveFilter(name string) {
	filters := globalFilters.filters.Load()
	if filters == nil {
		return
	}
	result := make([]*RegexpFilter, 0, len(*filters))
	for _, filter := range *filters {
		if filter.Name != name {
			result = append(result, filter)
		}
	}
	globalFilters.filters.Store(&result)
}

// RedactSecret hides every occurrence of secret in log messages. Empty
// secrets are ignored.
func RedactSecret(name string, secret string) {
	if secret == "" {
		return
	}
	AddFilter(&RegexpFilter{
		Regexp: regexp.MustCompile(regexp.QuoteMeta(secret)),
		Name:   name,
		Fire: func(entry *log.Entry) error {
			entry.Message = strings.ReplaceAll(entry.Message, secret, "REDACTED")
			return nil
		},
	})
}
