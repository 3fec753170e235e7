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

package ingest

import (
	"log/slog"

	"github.com/openvocs/ov-core/internal/rtp"
)

// LogSink is the default Sink: it reports batch sizes at debug level. A
// real deployment wires the mixer collaborator here instead.
type LogSink struct{}

// DeliverFrames logs the size of one synchronised batch.
func (LogSink) DeliverFrames(frames []*rtp.Frame) {
	slog.Debug("frame buffer batch ready", "count", len(frames))
}
