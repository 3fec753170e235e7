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

import "encoding/json"

// Event is one inbound client event: a JSON object carried over a
// WebSocket text frame. UUID is required for events that expect a reply
// and absent for fire-and-forget events (e.g. register).
type Event struct {
	Event     string          `json:"event"`
	UUID      string          `json:"uuid,omitempty"`
	Parameter json.RawMessage `json:"parameter,omitempty"`
}

// Response is the dispatcher's reply to an Event, or a broadcast frame
// (which carries a distinct event name and no correlating UUID).
type Response struct {
	Event    string `json:"event"`
	UUID     string `json:"uuid,omitempty"`
	Response any    `json:"response,omitempty"`
	Error    *Error `json:"error,omitempty"`
}
