// SPDX-License-Identifier: AGPL-3.0-or-later
// ov-core - openvocs voice-loop backend core
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/openvocs/ov-core>

package vocsapi

// Permission is the strictly ordered loop-access enum. "Granted" means
// held >= requested.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionMonitor
	PermissionListen
	PermissionSend
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "none"
	case PermissionMonitor:
		return "monitor"
	case PermissionListen:
		return "listen"
	case PermissionSend:
		return "send"
	default:
		return "unknown"
	}
}

// ParsePermission parses the wire string form of a permission.
func ParsePermission(s string) (Permission, bool) {
	switch s {
	case "none":
		return PermissionNone, true
	case "monitor":
		return PermissionMonitor, true
	case "listen":
		return PermissionListen, true
	case "send":
		return PermissionSend, true
	default:
		return PermissionNone, false
	}
}

// Granted reports whether held satisfies requested.
func Granted(held, requested Permission) bool {
	return held >= requested
}
