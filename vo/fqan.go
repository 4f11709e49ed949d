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

package vo

import (
	"strings"
)

type Role int

const (
	RoleNone Role = iota
	RoleSoftwareManager
	RoleProductionManager
	RolePilot
)

var (
	softwareManagerFqans = map[string]bool{
		"/Role=lcgadmin":            true,
		"/admin":                    true,
		"/Role=swadmin":             true,
		"/Role=sgmadmin":            true,
		"/Role=sgm":                 true,
		"/Role=SoftwareManager":     true,
		"/Role=VO-Software-Manager": true,
		"/Role=SW-Admin":            true,
	}

	productionManagerFqans = map[string]bool{
		"/Role=production":        true,
		"/Role=Production":        true,
		"/Role=prod":              true,
		"/Role=ProductionManager": true,
	}

	pilotFqans = map[string]bool{
		"/Role=pilot": true,
	}
)

// Classify maps an FQAN relative to its VO (e.g. "/Role=production") to one of
// the reserved roles. Matching is exact and case-sensitive.
func Classify(relativeFqan string) Role {
	switch {
	case softwareManagerFqans[relativeFqan]:
		return RoleSoftwareManager
	case productionManagerFqans[relativeFqan]:
		return RoleProductionManager
	case pilotFqans[relativeFqan]:
		return RolePilot
	}
	return RoleNone
}

// RoleFromGroupType interprets the GroupType attribute of a VO card FQAN.
func RoleFromGroupType(groupType string) Role {
	switch groupType {
	case "Software Manager":
		return RoleSoftwareManager
	case "Production Manager":
		return RoleProductionManager
	case "Pilot":
		return RolePilot
	}
	return RoleNone
}

func (r Role) String() string {
	switch r {
	case RoleSoftwareManager:
		return "software manager"
	case RoleProductionManager:
		return "production manager"
	case RolePilot:
		return "pilot"
	}
	return "none"
}

// Suffix returns the fixed account suffix of a reserved role, or "" for RoleNone.
func (r Role) Suffix() string {
	switch r {
	case RoleSoftwareManager:
		return "s"
	case RoleProductionManager:
		return "p"
	case RolePilot:
		return "pilot"
	}
	return ""
}

// Description returns the fixed mapping description of a reserved role.
func (r Role) Description() string {
	switch r {
	case RoleSoftwareManager:
		return "SW manager"
	case RoleProductionManager:
		return "production"
	case RolePilot:
		return "pilot"
	}
	return ""
}

// NormalizeFqan trims fqan and drops a trailing "/Role=NULL". An FQAN that is
// nothing more than the VO name is returned as "", meaning it must not be
// mapped.
func NormalizeFqan(fqan string, voName string) string {
	fqan = strings.TrimSuffix(strings.TrimSpace(fqan), "/Role=NULL")
	if RelativeFqan(fqan, voName) == "" {
		return ""
	}
	return fqan
}

// RelativeFqan strips the leading "/<voName>" from fqan.
func RelativeFqan(fqan string, voName string) string {
	return strings.TrimPrefix(fqan, "/"+voName)
}
