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
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Match struct {
	OriginalKey      string
	HighlightedKey   string
	HighlightedValue string
}

func configGet(cmd *cobra.Command, args []string) error {
	currentConfig, err := decodeConfig(viper.GetViper())
	if err != nil {
		return err
	}

	configValues := make(map[string]string)
	flattenConfig(currentConfig, "", configValues)

	var matches []Match
	for key, valueStr := range configValues {
		highlightedKey := key
		highlightedValue := valueStr
		matchesFound := len(args) == 0

		for _, arg := range args {
			argLower := strings.ToLower(arg)

			if strings.Contains(key, argLower) {
				highlightedKey = highlightSubstring(key, arg, color.FgYellow)
				matchesFound = true
			}

			if strings.Contains(strings.ToLower(valueStr), argLower) {
				highlightedValue = highlightSubstring(valueStr, arg, color.FgYellow)
				matchesFound = true
			}
		}

		if matchesFound {
			matches = append(matches, Match{
				OriginalKey:      key,
				HighlightedKey:   highlightedKey,
				HighlightedValue: highlightedValue,
			})
		}
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 && len(args) > 0 {
		fmt.Fprintln(out, "No matching configuration parameters found.")
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].OriginalKey < matches[j].OriginalKey
	})

	for _, match := range matches {
		fmt.Fprintf(out, "%s: %s\n", match.HighlightedKey, match.HighlightedValue)
	}
	return nil
}

// flattenConfig recursively flattens the config structure into lower-case
// dotted keys.
func flattenConfig(config interface{}, parentKey string, result map[string]string) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		key := strings.ToLower(field.Name)
		if parentKey != "" {
			key = parentKey + "." + key
		}

		if fieldValue.Kind() == reflect.Struct {
			flattenConfig(fieldValue.Interface(), key, result)
			continue
		}
		result[key] = formatValue(fieldValue.Interface())
	}
}

// highlightSubstring highlights all occurrences of the substring in the string
func highlightSubstring(s, substr string, colorAttr color.Attribute) string {
	sLower := strings.ToLower(s)
	substrLower := strings.ToLower(substr)
	substrLen := len(substr)

	var result strings.Builder
	start := 0

	for {
		idx := strings.Index(sLower[start:], substrLower)
		if idx == -1 {
			result.WriteString(s[start:])
			break
		}

		idx += start
		result.WriteString(s[start:idx])
		result.WriteString(color.New(colorAttr).Sprint(s[idx : idx+substrLen]))
		start = idx + substrLen
	}

	return result.String()
}
