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
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/quattor/scdbtools/param"
)

// findField searches a struct for a field whose name matches key, ignoring
// case the way the param decoder does.
func findField(t reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if strings.EqualFold(field.Name, key) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// validateConfigKeys returns the keys known to viper, or present as SCDB_*
// environment variables, that no Config field accepts.
func validateConfigKeys() []string {
	keys := viper.AllKeys()

	for _, env := range os.Environ() {
		name := strings.SplitN(env, "=", 2)[0]
		if !strings.HasPrefix(name, param.EnvPrefix+"_") || name == ConfigFileEnv {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, param.EnvPrefix+"_"))
		keys = append(keys, strings.ReplaceAll(key, "_", "."))
	}

	configType := reflect.TypeOf(param.Config{})
	unknown := map[string]bool{}
	for _, key := range keys {
		currentType := configType
		for _, part := range strings.Split(key, ".") {
			field, present := findField(currentType, part)
			if !present {
				unknown[key] = true
				break
			}
			if field.Type.Kind() != reflect.Struct {
				break
			}
			currentType = field.Type
		}
	}

	result := make([]string, 0, len(unknown))
	for key := range unknown {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
