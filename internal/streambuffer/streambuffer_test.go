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

package streambuffer

import (
	"testing"

	"github.com/openvocs/ov-core/internal/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(ssrc uint32, seq uint16) *rtp.Frame {
	return &rtp.Frame{SSRC: ssrc, SequenceNumber: seq}
}

func TestAcceptRejectsAllZeroRange(t *testing.T) {
	t.Parallel()
	b := New(16, 5)
	err := b.Accept(0, 0)
	require.ErrorIs(t, err, ErrRangeMustBeNonZero)
}

func TestRefuseAllReachesAllZeroState(t *testing.T) {
	t.Parallel()
	b := New(16, 5)
	require.NoError(t, b.Accept(1, 1))
	b.RefuseAll()
	assert.False(t, b.Put(frame(1, 10)))
}

func TestSeedScenarioFillAndDrain(t *testing.T) {
	t.Parallel()
	b := New(16, 5)
	require.NoError(t, b.Accept(1, 1))

	assert.True(t, b.Put(frame(1, 10)))
	assert.Equal(t, Lookahead{SequenceNumber: 10, FramesReady: 1}, b.Lookahead())

	assert.True(t, b.Put(frame(1, 13)))
	assert.Equal(t, Lookahead{SequenceNumber: 10, FramesReady: 1}, b.Lookahead())

	assert.True(t, b.Put(frame(1, 11)))
	assert.Equal(t, Lookahead{SequenceNumber: 10, FramesReady: 2}, b.Lookahead())

	assert.True(t, b.Put(frame(1, 12)))
	assert.Equal(t, Lookahead{SequenceNumber: 10, FramesReady: 4}, b.Lookahead())

	out := b.Get(4)
	require.Len(t, out, 4)
	for i, f := range out {
		assert.Equal(t, uint16(10+i), f.SequenceNumber)
	}
	assert.Equal(t, Lookahead{}, b.Lookahead())
}

func TestSeedScenarioResetAfterMaxMisses(t *testing.T) {
	t.Parallel()
	b := New(4, 5)
	require.NoError(t, b.Accept(1, 1))

	var resetSSRC uint32
	var resetOrigin uint16
	b.OnReset = func(ssrc uint32, origin uint16) {
		resetSSRC = ssrc
		resetOrigin = origin
	}

	assert.True(t, b.Put(frame(1, 0)))

	var lastMiss uint16
	for i := 0; i < 5; i++ {
		lastMiss = uint16(100 + i)
		b.Put(frame(1, lastMiss))
	}

	assert.Equal(t, uint32(1), resetSSRC)
	assert.Equal(t, lastMiss, resetOrigin)

	assert.True(t, b.Put(frame(1, lastMiss)))
	la := b.Lookahead()
	assert.Equal(t, lastMiss, la.SequenceNumber)
	assert.Equal(t, 1, la.FramesReady)
}

func TestAdmissionRejectsOutOfRangeAndBlocked(t *testing.T) {
	t.Parallel()
	b := New(16, 5)
	require.NoError(t, b.Accept(5, 10))
	b.Block(7)

	assert.False(t, b.Put(frame(1, 0)), "outside range")
	assert.False(t, b.Put(frame(7, 0)), "blocked even though in range")
	assert.True(t, b.Put(frame(5, 0)), "in range and not blocked")
}

func TestPutRejectsDuplicate(t *testing.T) {
	t.Parallel()
	b := New(16, 5)
	require.NoError(t, b.Accept(1, 1))

	assert.True(t, b.Put(frame(1, 10)))
	assert.False(t, b.Put(frame(1, 10)), "duplicate must be rejected")
}

func TestGetAdvancesWindowStartByWrappingCount(t *testing.T) {
	t.Parallel()
	b := New(8, 5)
	require.NoError(t, b.Accept(1, 1))

	assert.True(t, b.Put(frame(1, 65534)))
	assert.True(t, b.Put(frame(1, 65535)))
	assert.True(t, b.Put(frame(1, 0)))

	out := b.Get(3)
	require.Len(t, out, 3)
	assert.Equal(t, uint16(65534), out[0].SequenceNumber)
	assert.Equal(t, uint16(0), out[2].SequenceNumber)

	assert.True(t, b.Put(frame(1, 1)))
	la := b.Lookahead()
	assert.Equal(t, uint16(1), la.SequenceNumber)
}
