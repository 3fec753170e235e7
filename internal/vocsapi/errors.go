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

// Code is a numeric error code carried across the client event protocol.
// Values and descriptions are part of the wire contract; do not renumber.
type Code int

const (
	CodeAuth            Code = 1001
	CodeAuthPermission  Code = 1002
	CodeParameterError  Code = 1003
	CodeSessionUnknown  Code = 1004
	CodeProcessingError Code = 1005
	CodeTimeout         Code = 1006
	CodeNotImplemented  Code = 1007
)

var codeDescriptions = map[Code]string{
	CodeAuth:            "authentication required or failed",
	CodeAuthPermission:  "insufficient permission for this operation",
	CodeParameterError:  "request parameters are missing or invalid",
	CodeSessionUnknown:  "no media session is established for this socket",
	CodeProcessingError: "a collaborator failed to process the request",
	CodeTimeout:         "a collaborator did not reply in time",
	CodeNotImplemented:  "this request type is not implemented",
}

// Error is the error shape carried in a Response's "error" field.
type Error struct {
	Code        Code   `json:"code"`
	Description string `json:"description"`
}

func newError(code Code) *Error {
	return &Error{Code: code, Description: codeDescriptions[code]}
}

func (e *Error) Error() string {
	return e.Description
}
