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

// Package config loads the scdb configuration into viper and sets up the
// process-wide logging and HTTP transport from it.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quattor/scdbtools/param"
)

const ConfigFileName = "scdb.yaml"

//go:embed resources/defaults.yaml
var defaultsYaml []byte

// ConfigFileEnv names the environment variable pointing at a configuration
// file, used when no --config flag is given.
var ConfigFileEnv = param.EnvPrefix + "_CONFIG_FILE"

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "scdb")
	}
	return filepath.Join("/etc", "scdb")
}

// setDefaults registers the built-in defaults with viper. They are loaded as
// defaults rather than merged config so that IsSet only reports values the
// user provided.
func setDefaults(v *viper.Viper) error {
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(defaultsYaml, &defaults); err != nil {
		return errors.Wrap(err, "failed to parse built-in defaults")
	}
	setDefaultsFrom(v, "", defaults)
	v.SetDefault(param.ConfigDir.GetName(), defaultConfigDir())
	return nil
}

func setDefaultsFrom(v *viper.Viper, prefix string, values map[string]interface{}) {
	for key, value := range values {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			setDefaultsFrom(v, name, nested)
			continue
		}
		v.SetDefault(name, value)
	}
}

// NewDefaultViper returns a viper instance holding only the built-in
// defaults, for comparing the effective configuration against.
func NewDefaultViper() (*viper.Viper, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}
	return v, nil
}

// InitConfig loads the configuration into viper's global instance and
// refreshes the param cache. Sources, highest precedence first: flags bound
// by the caller, SCDB_* environment variables, the configuration file and
// the built-in defaults. The file is configFile if set, then $SCDB_CONFIG_FILE,
// then scdb.yaml in ConfigDir, which may be absent.
func InitConfig(configFile string) error {
	v := viper.GetViper()
	v.SetEnvPrefix(param.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	param.BindAllParameters(v)

	if err := setDefaults(v); err != nil {
		return err
	}

	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read configuration file %s", configFile)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString(param.ConfigDir.GetName()))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return errors.Wrap(err, "failed to read configuration file")
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("Configuration loaded from %s", used)
	}

	if unknown := validateConfigKeys(); len(unknown) > 0 {
		log.Warningf("Unknown configuration keys found: %s", strings.Join(unknown, ", "))
	}

	if _, err := param.Refresh(); err != nil {
		return err
	}
	return setLogLevel()
}

func setLogLevel() error {
	if param.Debug.GetBool() {
		log.SetLevel(log.DebugLevel)
		return nil
	}
	levelName := param.Logging_Level.GetString()
	if levelName == "" {
		return nil
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", param.Logging_Level.GetName())
	}
	log.SetLevel(level)
	return nil
}

// ResetConfig clears viper, the param cache and the shared transport; for tests.
func ResetConfig() {
	param.Reset()
	ResetTransport()
}
