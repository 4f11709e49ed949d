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

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log/term"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quattor/scdbtools/param"
)

// BufferedLogHook buffers log entries until they are flushed
type BufferedLogHook struct {
	mu      sync.Mutex
	entries []*log.Entry
	flushed atomic.Bool
}

var (
	bufferedHook atomic.Pointer[BufferedLogHook]
	flushOnce    sync.Once
	logFHandle   *os.File

	hooksMu         sync.Mutex
	persistentHooks []log.Hook
)

// Reset function intended for unit tests to be able to
// reset log flush state.
func ResetLogFlush() {
	flushOnce = sync.Once{}
	bufferedHook.Store(nil)
}

func NewBufferedLogHook() *BufferedLogHook {
	return &BufferedLogHook{
		entries: make([]*log.Entry, 0),
	}
}

// Fire is called on every log entry
func (hook *BufferedLogHook) Fire(entry *log.Entry) error {
	if hook.flushed.Load() {
		return nil
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	hook.entries = append(hook.entries, entry)
	return nil
}

// Levels defines which log levels this hook applies to
func (hook *BufferedLogHook) Levels() []log.Level {
	return log.AllLevels
}

// AddHook installs h on the standard logger. Unlike log.AddHook, the hook
// stays installed when FlushLogs drops the buffering hook.
func AddHook(h log.Hook) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	persistentHooks = append(persistentHooks, h)
	log.AddHook(h)
}

// ResetHooks forgets every hook added with AddHook; for tests.
func ResetHooks() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	persistentHooks = nil
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
}

// removeBufferedHook removes the buffered hook (used after flushing)
func removeBufferedHook() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks := make(log.LevelHooks)
	for _, h := range persistentHooks {
		hooks.Add(h)
	}
	log.StandardLogger().ReplaceHooks(hooks)
}

// FlushLogs flushes buffered logs and switches to direct logging, either to
// Logging.LogLocation (when pushToFile is set) or to stderr.
func FlushLogs(pushToFile bool) {
	flushOnce.Do(func() {
		hook := bufferedHook.Load()
		if hook == nil {
			fmt.Fprintln(os.Stderr, "FlushLogs called but no bufferedHook exists")
			return
		}

		if hook.flushed.Load() {
			return
		}

		hook.flushed.Store(true)

		logLocation := param.Logging_LogLocation.GetString()
		if pushToFile && logLocation != "" {
			dir := filepath.Dir(logLocation)
			if dir != "" {
				if err := os.MkdirAll(dir, 0750); err != nil {
					cobra.CheckErr(fmt.Errorf("failed to access/create specified directory: %w", err))
				}
			}

			f, err := os.OpenFile(logLocation, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to access specified log file: %w", err))
			}
			logFHandle = f
			log.SetOutput(f)

			log.SetFormatter(&log.TextFormatter{
				FullTimestamp:          true,
				DisableColors:          true,
				DisableLevelTruncation: true,
			})
		} else {
			log.SetOutput(os.Stderr)

			log.SetFormatter(&log.TextFormatter{
				FullTimestamp:          true,
				ForceColors:            term.IsTerminal(log.StandardLogger().Out),
				DisableLevelTruncation: true,
			})
		}

		hook.mu.Lock()
		for _, entry := range hook.entries {
			if !log.IsLevelEnabled(entry.Level) {
				continue
			}
			formatted, err := entry.String()
			if err == nil {
				_, _ = log.StandardLogger().Out.Write([]byte(formatted))
			}
		}
		hook.entries = nil
		hook.mu.Unlock()

		removeBufferedHook()

		if out, ok := log.StandardLogger().Out.(*os.File); ok {
			_ = out.Sync()
		}
	})
}

// For unit tests, guarantees the filehandle is closed so tests can clean up
// after themselves.
func CloseLogger() {
	if logFHandle != nil {
		_ = logFHandle.Close()
		logFHandle = nil
	}
}

// SetupLogBuffering holds log entries back until FlushLogs is called, so that
// messages emitted while the configuration is read end up in the configured
// destination.
func SetupLogBuffering() {
	log.SetOutput(io.Discard)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})

	hook := NewBufferedLogHook()
	if bufferedHook.CompareAndSwap(nil, hook) {
		log.AddHook(hook)
	}
}
