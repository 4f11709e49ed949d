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

package config_printer

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quattor/scdbtools/param"
)

const redacted = "REDACTED"

// decodeConfig decodes v and hides the secrets it holds.
func decodeConfig(v *viper.Viper) (*param.Config, error) {
	cfg, err := param.DecodeConfig(v)
	if err != nil {
		return nil, err
	}
	if cfg.Svn.Password != "" {
		cfg.Svn.Password = redacted
	}
	return cfg, nil
}

// printConfig writes configData in format, "yaml" or "json".
func printConfig(out io.Writer, configData interface{}, format string) error {
	switch format {
	case "yaml":
		yamlData, err := yaml.Marshal(configData)
		if err != nil {
			return errors.Wrap(err, "error marshaling config to YAML")
		}
		_, err = out.Write(yamlData)
		return err
	case "json":
		jsonData, err := json.MarshalIndent(configData, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error marshaling config to JSON")
		}
		_, err = fmt.Fprintln(out, string(jsonData))
		return err
	default:
		return errors.Errorf("unsupported format: %s. Use 'yaml' or 'json'", format)
	}
}

// formatValue renders a value on a single line: strings are quoted and
// slices are written as [a, b].
func formatValue(value interface{}) string {
	if value == nil {
		return "none"
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elements := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elements = append(elements, formatValue(rv.Index(i).Interface()))
		}
		return "[" + strings.Join(elements, ", ") + "]"
	case reflect.String:
		return fmt.Sprintf("\"%s\"", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
