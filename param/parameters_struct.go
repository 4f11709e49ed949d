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

package param

import (
	"time"
)

// Config is the decoded configuration. Field names match the dotted
// parameter names, case-insensitively.
type Config struct {
	ConfigDir     string
	Debug         bool
	DryRun        bool
	TLSSkipVerify bool
	Logging       struct {
		Level       string
		LogLocation string
	}
	Metrics struct {
		TextfilePath string
	}
	Notify struct {
		Message     string
		Port        int
		ProfilesDir string
		Includes    []string
		Excludes    []string
	}
	Profiles struct {
		Dir       string
		IndexName string
	}
	Repository struct {
		TemplatesDir string
		Includes     []string
		Excludes     []string
		GenList      bool
		ListDir      string
		ListName     string
		CacheTTL     time.Duration
	}
	Svn struct {
		Binary        string
		ExtraArgs     string
		Username      string
		Password      string
		Workspace     string
		RepositoryURL string
		Tag           string
		RecoveryLimit int
	}
	Transport struct {
		DialerTimeout         time.Duration
		DialerKeepAlive       time.Duration
		MaxIdleConns          int
		IdleConnTimeout       time.Duration
		TLSHandshakeTimeout   time.Duration
		ResponseHeaderTimeout time.Duration
	}
	VO struct {
		IdCardsUri              string
		Branches                []string
		ParamsNamespace         string
		CertsNamespace          string
		SiteParamsNamespace     string
		AllVOsTemplate          string
		DNListTemplate          string
		LegacySuffixAlgorithm   bool
		LegacySuffixMaxAttempts int
	}
}
