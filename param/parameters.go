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
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	StringParam struct {
		name string
	}

	StringSliceParam struct {
		name string
	}

	BoolParam struct {
		name string
	}

	IntParam struct {
		name string
	}

	DurationParam struct {
		name string
	}
)

const EnvPrefix = "SCDB"

func paramNameToEnvVar(name string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

func (sP StringParam) GetString() string {
	config := getOrCreateConfig()
	switch sP.name {
	case "ConfigDir":
		return config.ConfigDir
	case "Logging.Level":
		return config.Logging.Level
	case "Logging.LogLocation":
		return config.Logging.LogLocation
	case "Metrics.TextfilePath":
		return config.Metrics.TextfilePath
	case "Notify.Message":
		return config.Notify.Message
	case "Notify.ProfilesDir":
		return config.Notify.ProfilesDir
	case "Profiles.Dir":
		return config.Profiles.Dir
	case "Profiles.IndexName":
		return config.Profiles.IndexName
	case "Repository.ListDir":
		return config.Repository.ListDir
	case "Repository.ListName":
		return config.Repository.ListName
	case "Repository.TemplatesDir":
		return config.Repository.TemplatesDir
	case "Svn.Binary":
		return config.Svn.Binary
	case "Svn.ExtraArgs":
		return config.Svn.ExtraArgs
	case "Svn.Password":
		return config.Svn.Password
	case "Svn.RepositoryURL":
		return config.Svn.RepositoryURL
	case "Svn.Tag":
		return config.Svn.Tag
	case "Svn.Username":
		return config.Svn.Username
	case "Svn.Workspace":
		return config.Svn.Workspace
	case "VO.AllVOsTemplate":
		return config.VO.AllVOsTemplate
	case "VO.CertsNamespace":
		return config.VO.CertsNamespace
	case "VO.DNListTemplate":
		return config.VO.DNListTemplate
	case "VO.IdCardsUri":
		return config.VO.IdCardsUri
	case "VO.ParamsNamespace":
		return config.VO.ParamsNamespace
	case "VO.SiteParamsNamespace":
		return config.VO.SiteParamsNamespace
	}
	return ""
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (sP StringParam) IsSet() bool {
	return viper.IsSet(sP.name)
}

func (sP StringParam) GetEnvVarName() string {
	return paramNameToEnvVar(sP.name)
}

func (slP StringSliceParam) GetStringSlice() []string {
	config := getOrCreateConfig()
	switch slP.name {
	case "Notify.Excludes":
		return config.Notify.Excludes
	case "Notify.Includes":
		return config.Notify.Includes
	case "Repository.Excludes":
		return config.Repository.Excludes
	case "Repository.Includes":
		return config.Repository.Includes
	case "VO.Branches":
		return config.VO.Branches
	}
	return nil
}

func (slP StringSliceParam) GetName() string {
	return slP.name
}

func (slP StringSliceParam) IsSet() bool {
	return viper.IsSet(slP.name)
}

func (slP StringSliceParam) GetEnvVarName() string {
	return paramNameToEnvVar(slP.name)
}

func (bP BoolParam) GetBool() bool {
	config := getOrCreateConfig()
	switch bP.name {
	case "Debug":
		return config.Debug
	case "DryRun":
		return config.DryRun
	case "Repository.GenList":
		return config.Repository.GenList
	case "TLSSkipVerify":
		return config.TLSSkipVerify
	case "VO.LegacySuffixAlgorithm":
		return config.VO.LegacySuffixAlgorithm
	}
	return false
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (bP BoolParam) IsSet() bool {
	return viper.IsSet(bP.name)
}

func (bP BoolParam) GetEnvVarName() string {
	return paramNameToEnvVar(bP.name)
}

func (iP IntParam) GetInt() int {
	config := getOrCreateConfig()
	switch iP.name {
	case "Notify.Port":
		return config.Notify.Port
	case "Svn.RecoveryLimit":
		return config.Svn.RecoveryLimit
	case "Transport.MaxIdleConns":
		return config.Transport.MaxIdleConns
	case "VO.LegacySuffixMaxAttempts":
		return config.VO.LegacySuffixMaxAttempts
	}
	return 0
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (iP IntParam) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (iP IntParam) GetEnvVarName() string {
	return paramNameToEnvVar(iP.name)
}

func (dP DurationParam) GetDuration() time.Duration {
	config := getOrCreateConfig()
	switch dP.name {
	case "Repository.CacheTTL":
		return config.Repository.CacheTTL
	case "Transport.DialerKeepAlive":
		return config.Transport.DialerKeepAlive
	case "Transport.DialerTimeout":
		return config.Transport.DialerTimeout
	case "Transport.IdleConnTimeout":
		return config.Transport.IdleConnTimeout
	case "Transport.ResponseHeaderTimeout":
		return config.Transport.ResponseHeaderTimeout
	case "Transport.TLSHandshakeTimeout":
		return config.Transport.TLSHandshakeTimeout
	}
	return 0
}

func (dP DurationParam) GetName() string {
	return dP.name
}

func (dP DurationParam) IsSet() bool {
	return viper.IsSet(dP.name)
}

func (dP DurationParam) GetEnvVarName() string {
	return paramNameToEnvVar(dP.name)
}

// allParameterNames lists every config key, sorted. It is used to bind
// environment variables so that env-only overrides are included in
// viper.AllSettings().
var allParameterNames = []string{
	"ConfigDir",
	"Debug",
	"DryRun",
	"Logging.Level",
	"Logging.LogLocation",
	"Metrics.TextfilePath",
	"Notify.Excludes",
	"Notify.Includes",
	"Notify.Message",
	"Notify.Port",
	"Notify.ProfilesDir",
	"Profiles.Dir",
	"Profiles.IndexName",
	"Repository.CacheTTL",
	"Repository.Excludes",
	"Repository.GenList",
	"Repository.Includes",
	"Repository.ListDir",
	"Repository.ListName",
	"Repository.TemplatesDir",
	"Svn.Binary",
	"Svn.ExtraArgs",
	"Svn.Password",
	"Svn.RecoveryLimit",
	"Svn.RepositoryURL",
	"Svn.Tag",
	"Svn.Username",
	"Svn.Workspace",
	"TLSSkipVerify",
	"Transport.DialerKeepAlive",
	"Transport.DialerTimeout",
	"Transport.IdleConnTimeout",
	"Transport.MaxIdleConns",
	"Transport.ResponseHeaderTimeout",
	"Transport.TLSHandshakeTimeout",
	"VO.AllVOsTemplate",
	"VO.Branches",
	"VO.CertsNamespace",
	"VO.DNListTemplate",
	"VO.IdCardsUri",
	"VO.LegacySuffixAlgorithm",
	"VO.LegacySuffixMaxAttempts",
	"VO.ParamsNamespace",
	"VO.SiteParamsNamespace",
}

var (
	ConfigDir                = StringParam{"ConfigDir"}
	Logging_Level            = StringParam{"Logging.Level"}
	Logging_LogLocation      = StringParam{"Logging.LogLocation"}
	Metrics_TextfilePath     = StringParam{"Metrics.TextfilePath"}
	Notify_Message           = StringParam{"Notify.Message"}
	Notify_ProfilesDir       = StringParam{"Notify.ProfilesDir"}
	Profiles_Dir             = StringParam{"Profiles.Dir"}
	Profiles_IndexName       = StringParam{"Profiles.IndexName"}
	Repository_ListDir       = StringParam{"Repository.ListDir"}
	Repository_ListName      = StringParam{"Repository.ListName"}
	Repository_TemplatesDir  = StringParam{"Repository.TemplatesDir"}
	Svn_Binary               = StringParam{"Svn.Binary"}
	Svn_ExtraArgs            = StringParam{"Svn.ExtraArgs"}
	Svn_Password             = StringParam{"Svn.Password"}
	Svn_RepositoryURL        = StringParam{"Svn.RepositoryURL"}
	Svn_Tag                  = StringParam{"Svn.Tag"}
	Svn_Username             = StringParam{"Svn.Username"}
	Svn_Workspace            = StringParam{"Svn.Workspace"}
	VO_AllVOsTemplate        = StringParam{"VO.AllVOsTemplate"}
	VO_CertsNamespace        = StringParam{"VO.CertsNamespace"}
	VO_DNListTemplate        = StringParam{"VO.DNListTemplate"}
	VO_IdCardsUri            = StringParam{"VO.IdCardsUri"}
	VO_ParamsNamespace       = StringParam{"VO.ParamsNamespace"}
	VO_SiteParamsNamespace   = StringParam{"VO.SiteParamsNamespace"}
)

var (
	Notify_Excludes     = StringSliceParam{"Notify.Excludes"}
	Notify_Includes     = StringSliceParam{"Notify.Includes"}
	Repository_Excludes = StringSliceParam{"Repository.Excludes"}
	Repository_Includes = StringSliceParam{"Repository.Includes"}
	VO_Branches         = StringSliceParam{"VO.Branches"}
)

var (
	Debug                    = BoolParam{"Debug"}
	DryRun                   = BoolParam{"DryRun"}
	Repository_GenList       = BoolParam{"Repository.GenList"}
	TLSSkipVerify            = BoolParam{"TLSSkipVerify"}
	VO_LegacySuffixAlgorithm = BoolParam{"VO.LegacySuffixAlgorithm"}
)

var (
	Notify_Port                = IntParam{"Notify.Port"}
	Svn_RecoveryLimit          = IntParam{"Svn.RecoveryLimit"}
	Transport_MaxIdleConns     = IntParam{"Transport.MaxIdleConns"}
	VO_LegacySuffixMaxAttempts = IntParam{"VO.LegacySuffixMaxAttempts"}
)

var (
	Repository_CacheTTL             = DurationParam{"Repository.CacheTTL"}
	Transport_DialerKeepAlive       = DurationParam{"Transport.DialerKeepAlive"}
	Transport_DialerTimeout         = DurationParam{"Transport.DialerTimeout"}
	Transport_IdleConnTimeout       = DurationParam{"Transport.IdleConnTimeout"}
	Transport_ResponseHeaderTimeout = DurationParam{"Transport.ResponseHeaderTimeout"}
	Transport_TLSHandshakeTimeout   = DurationParam{"Transport.TLSHandshakeTimeout"}
)
