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

// Package param holds the scdb configuration parameters and the cached,
// decoded view of viper's settings used by the typed accessors.
package param

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	viperConfig atomic.Pointer[Config]
	configMutex sync.Mutex
)

// Refresh reloads the atomic cached configuration from viper's global instance.
//
// Code that mutates configuration via global viper APIs (SetDefault, Set,
// MergeConfig, ReadInConfig, etc.) should call Refresh afterwards to keep the
// param getters consistent with viper.
func Refresh() (*Config, error) {
	return UnmarshalConfig()
}

// BindAllParameters binds all known configuration keys to environment variables
// so that env-only overrides show up in AllSettings().
func BindAllParameters(v *viper.Viper) {
	if v == nil {
		return
	}

	for _, key := range allParameterNames {
		_ = v.BindEnv(key)
	}
}

// stringToSliceHookFunc returns a DecodeHookFunc that converts strings to slices.
// A string containing commas is split on commas; otherwise it is split on
// whitespace. Surrounding quotes are trimmed from the whole string and from
// each element, and empty elements are dropped.
func stringToSliceHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
		if f != reflect.String || t != reflect.Slice {
			return data, nil
		}

		raw := data.(string)
		if raw == "" {
			return []string{}, nil
		}
		raw = strings.Trim(raw, `"'`)

		var parts []string
		if strings.Contains(raw, ",") {
			parts = strings.Split(raw, ",")
		} else {
			parts = strings.Fields(raw)
		}

		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.Trim(strings.TrimSpace(part), `"'`)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result, nil
	}
}

func newDecoder(result *Config) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToSliceHookFunc(),
		),
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName)
		},
		Result: result,
	})
}

// DecodeConfig decodes the provided viper instance into a new Config struct.
//
// Unlike UnmarshalConfig/Refresh, this does NOT update the global atomic cache.
func DecodeConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("nil viper instance")
	}
	BindAllParameters(v)
	newConfig := new(Config)
	settings := v.AllSettings()
	mergeKnownKeyOverrides(settings, v)
	decoder, err := newDecoder(newConfig)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	return newConfig, nil
}

func mergeKnownKeyOverrides(settings map[string]any, v *viper.Viper) {
	if v == nil || settings == nil {
		return
	}

	for _, key := range allParameterNames {
		// AllSettings() may omit values bound only to cobra flags.
		val := v.Get(key)
		if val == nil {
			continue
		}
		setLowercasePath(settings, strings.Split(key, "."), val)
	}
}

func setLowercasePath(root map[string]any, path []string, val any) {
	if len(path) == 0 {
		return
	}

	m := root
	for _, elem := range path[:len(path)-1] {
		k := strings.ToLower(elem)
		if nextAny, ok := m[k]; ok {
			if nextMap, ok := nextAny.(map[string]any); ok {
				m = nextMap
				continue
			}
		}
		next := make(map[string]any)
		m[k] = next
		m = next
	}

	m[strings.ToLower(path[len(path)-1])] = val
}

// UnmarshalConfig refreshes the global atomic cached configuration from viper's
// global instance.
func UnmarshalConfig() (*Config, error) {
	configMutex.Lock()
	defer configMutex.Unlock()
	newConfig, err := DecodeConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	viperConfig.Store(newConfig)
	return newConfig, nil
}

// Return the unmarshaled viper config struct as a pointer
func GetUnmarshaledConfig() (*Config, error) {
	config := viperConfig.Load()
	if config == nil {
		return nil, errors.New("Config hasn't been unmarshaled yet.")
	}
	return config, nil
}

// getOrCreateConfig returns the current config or decodes one from viper if
// none has been stored yet.
func getOrCreateConfig() *Config {
	config := viperConfig.Load()
	if config != nil {
		return config
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	config = viperConfig.Load()
	if config != nil {
		return config
	}

	newConfig := new(Config)
	decoder, err := newDecoder(newConfig)
	if err != nil {
		return new(Config)
	}
	if err := decoder.Decode(viper.GetViper().AllSettings()); err != nil {
		return new(Config)
	}

	viperConfig.Store(newConfig)
	return newConfig
}

// Set sets a parameter value in both viper and the config struct.
func Set(key string, value interface{}) error {
	return MultiSet(map[string]interface{}{key: value})
}

// MultiSet sets several parameter values and rebuilds the cached config once.
func MultiSet(keyValues map[string]interface{}) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	for key, value := range keyValues {
		viper.Set(key, value)
	}

	newConfig := new(Config)
	decoder, err := newDecoder(newConfig)
	if err != nil {
		return err
	}
	if err := decoder.Decode(viper.GetViper().AllSettings()); err != nil {
		return err
	}
	viperConfig.Store(newConfig)
	return nil
}

// Reset resets the viper configuration and drops the cached config.
func Reset() {
	configMutex.Lock()
	defer configMutex.Unlock()

	viper.Reset()
	viperConfig.Store(nil)
}
