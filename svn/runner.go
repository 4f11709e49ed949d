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

// Package svn drives the subversion command line client for the tag and
// workspace cache workflows of a configuration database.
package svn

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quattor/scdbtools/metrics"
)

type (
	// Runner runs one svn subcommand and returns its standard output.
	// Failures of the command itself are reported as *CommandError.
	Runner interface {
		Run(ctx context.Context, args ...string) ([]byte, error)
	}

	CommandError struct {
		Command  string
		ExitCode int
		Stderr   string
	}

	// CLIRunner runs the svn binary non-interactively.
	CLIRunner struct {
		Binary   string
		Username string
		Password string
		// ExtraArgs are appended to every command, e.g. --config-dir.
		ExtraArgs []string
	}
)

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// HasCode reports whether the svn error output mentions one of the given
// error or warning codes, such as E155007.
func (e *CommandError) HasCode(codes ...string) bool {
	for _, code := range codes {
		if strings.Contains(e.Stderr, code) {
			return true
		}
	}
	return false
}

// NewCLIRunner returns a runner for binary (svn when empty). extraArgs is
// split with shell quoting rules.
func NewCLIRunner(binary string, extraArgs string, username string, password string) (*CLIRunner, error) {
	if binary == "" {
		binary = "svn"
	}
	extra, err := shlex.Split(extraArgs, true)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid extra svn arguments %q", extraArgs)
	}
	if (username == "") != (password == "") {
		return nil, errors.New("username and password must be set together")
	}
	return &CLIRunner{Binary: binary, Username: username, Password: password, ExtraArgs: extra}, nil
}

func (r *CLIRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("no svn subcommand provided")
	}
	full := append([]string{}, args...)
	full = append(full, "--non-interactive")
	if r.Username != "" {
		full = append(full, "--username", r.Username, "--password", r.Password, "--no-auth-cache")
	}
	full = append(full, r.ExtraArgs...)
	command := shellquote.Join(append([]string{r.Binary}, r.redact(full)...)...)
	log.Debugf("Running %s", command)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		metrics.ScdbSvnCommandsTotal.WithLabelValues(args[0], "error").Inc()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{Command: command, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, errors.Wrapf(err, "failed to run %s", command)
	}
	metrics.ScdbSvnCommandsTotal.WithLabelValues(args[0], "success").Inc()
	return stdout.Bytes(), nil
}

func (r *CLIRunner) redact(args []string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i := 0; i < len(redacted)-1; i++ {
		if redacted[i] == "--password" {
			redacted[i+1] = "********"
		}
	}
	return redacted
}
