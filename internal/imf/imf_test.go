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

package imf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMatchesFixedForm(t *testing.T) {
	t.Parallel()
	tm := time.Date(1994, time.November, 6, 8, 49, 37, 0, time.UTC)
	assert.Equal(t, "Sun, 06 Nov 1994 08:49:37 GMT", Format(tm))
}

func TestFormatConvertsToUTC(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("TEST", 3600)
	tm := time.Date(1994, time.November, 6, 9, 49, 37, 0, loc)
	assert.Equal(t, "Sun, 06 Nov 1994 08:49:37 GMT", Format(tm))
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	s := "Sun, 06 Nov 1994 08:49:37 GMT"
	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, s, Format(parsed))
}

func TestParseRejectsWrongWeekday(t *testing.T) {
	t.Parallel()
	_, err := Parse("Mon, 06 Nov 1994 08:49:37 GMT")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsBadLength(t *testing.T) {
	t.Parallel()
	_, err := Parse("Sun, 6 Nov 1994 08:49:37 GMT")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsLowercaseGMT(t *testing.T) {
	t.Parallel()
	_, err := Parse("Sun, 06 Nov 1994 08:49:37 gmt")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsBadMonthName(t *testing.T) {
	t.Parallel()
	_, err := Parse("Sun, 06 Xxx 1994 08:49:37 GMT")
	require.ErrorIs(t, err, ErrMalformed)
}
