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

package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/httpmsg"
)

func TestHTTPMsgLimitsFallsBackToDefaultsWhenUnconfigured(t *testing.T) {
	t.Parallel()
	got := httpmsgLimits(config.HTTPMessageLimits{})
	assert.Equal(t, httpmsg.DefaultLimits(), got)
}

func TestValidateUpgradeRequestAcceptsAnOrdinaryHandshake(t *testing.T) {
	t.Parallel()
	h := &Handler{limits: httpmsg.DefaultLimits()}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	r.Header.Set("Sec-WebSocket-Version", "13")

	require.NoError(t, h.validateUpgradeRequest(r))
}

func TestValidateUpgradeRequestRejectsMethodOverLimit(t *testing.T) {
	t.Parallel()
	limits := httpmsg.DefaultLimits()
	limits.MaxMethodLength = 2
	h := &Handler{limits: limits}

	r := httptest.NewRequest("GET", "/ws", nil)

	assert.Error(t, h.validateUpgradeRequest(r))
}
