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

package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

type (
	TemplateOutcome string

	// LogHook counts every log entry by level.
	LogHook struct{}
)

const (
	TemplateWritten   TemplateOutcome = "written"
	TemplateUnchanged TemplateOutcome = "unchanged"
	TemplateDryRun    TemplateOutcome = "dry_run"
)

var (
	// Registry only holds the scdb collectors so that it can be dumped for
	// the node exporter textfile collector without clashing with its own
	// Go runtime metrics.
	Registry = prometheus.NewRegistry()

	ScdbTemplatesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_templates_total",
		Help: "The number of templates generated, by template kind and outcome",
	}, []string{"kind", "outcome"}) // kind: vo, voms_server, vo_list, dn_list, repository, repository_list, profile_info

	ScdbVOsTotal = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "scdb_vos",
		Help: "The number of VOs read from the VO ID cards",
	})

	ScdbVOMSServersTotal = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "scdb_voms_servers",
		Help: "The number of distinct VOMS servers read from the VO ID cards",
	})

	ScdbFetchesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_fetches_total",
		Help: "The number of remote documents fetched, by document type and status",
	}, []string{"type", "status"}) // type: vo_cards, repository_listing; status: success, error

	ScdbListingCache = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_listing_cache_total",
		Help: "The statistics of the repository listing cache",
	}, []string{"type"}) // type: hits, misses

	ScdbSvnCommandsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_svn_commands_total",
		Help: "The number of svn commands run, by subcommand and status",
	}, []string{"command", "status"})

	ScdbNotificationsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_notifications_total",
		Help: "The number of client notifications sent, by status",
	}, []string{"status"})

	ScdbLogMessagesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "scdb_log_messages_total",
		Help: "The number of log messages emitted, by level",
	}, []string{"level"})
)

func (LogHook) Levels() []log.Level {
	return log.AllLevels
}

func (LogHook) Fire(entry *log.Entry) error {
	ScdbLogMessagesTotal.WithLabelValues(entry.Level.String()).Inc()
	return nil
}

// WriteTextfile dumps the registry in the text exposition format. The file
// is replaced atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
