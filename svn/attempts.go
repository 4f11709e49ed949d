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

package svn

import (
	"fmt"
	"strings"
	"time"
)

type (
	timestampedError struct {
		err       error
		timestamp time.Time
	}

	// attemptErrors accumulates the failures of successive attempts at the
	// same operation.
	attemptErrors struct {
		start  time.Time
		errors []timestampedError
		now    func() time.Time
	}
)

func newAttemptErrors() *attemptErrors {
	return &attemptErrors{start: time.Now(), now: time.Now}
}

func (a *attemptErrors) add(err error) {
	a.errors = append(a.errors, timestampedError{err: err, timestamp: a.now()})
}

func (a *attemptErrors) len() int {
	return len(a.errors)
}

// String lists the attempts, latest first, with the time elapsed since the
// previous one and since the start.
func (a *attemptErrors) String() string {
	formatted := make([]string, len(a.errors))
	last := a.start
	for idx, attempt := range a.errors {
		errFmt := fmt.Sprintf("Attempt #%d: %s (%s", idx+1, attempt.err.Error(),
			attempt.timestamp.Sub(last).Truncate(100*time.Millisecond))
		if idx == 0 {
			errFmt += " since start)"
		} else {
			errFmt += fmt.Sprintf(" elapsed, %s since start)", attempt.timestamp.Sub(a.start).Truncate(100*time.Millisecond))
		}
		last = attempt.timestamp
		formatted[len(a.errors)-1-idx] = errFmt
	}
	return strings.Join(formatted, "; ")
}
