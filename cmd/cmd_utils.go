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

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlag ties a flag to a configuration key; only an explicitly given
// flag overrides the environment and the configuration file.
func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// requireParam fails with a message naming both the flag and the
// configuration key when a mandatory value is missing.
func requireParam(value string, flagName string, key string) error {
	if value == "" {
		return errors.Errorf("--%s (or %s in the configuration) must be set", flagName, key)
	}
	return nil
}
