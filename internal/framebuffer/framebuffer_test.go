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

package framebuffer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openvocs/ov-core/internal/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ssrcsOf(frames []*rtp.Frame) []uint32 {
	out := make([]uint32, len(frames))
	for i, f := range frames {
		out[i] = f.SSRC
	}
	return out
}

func frame(ssrc uint32, seq uint16) *rtp.Frame {
	return &rtp.Frame{SSRC: ssrc, SequenceNumber: seq}
}

func TestSeedScenarioNoDisplacement(t *testing.T) {
	t.Parallel()
	b := New(3)

	assert.False(t, b.Insert(frame(2, 2)).Duplicate)
	assert.False(t, b.Insert(frame(1, 2)).Duplicate)
	assert.False(t, b.Insert(frame(2, 1)).Duplicate)
	assert.False(t, b.Insert(frame(3, 3)).Duplicate)

	out := b.GetCurrentFrames()
	require.Len(t, out, 3)
	assert.Equal(t, uint32(1), out[0].SSRC)
	assert.Equal(t, uint16(2), out[0].SequenceNumber)
	assert.Equal(t, uint32(2), out[1].SSRC)
	assert.Equal(t, uint16(1), out[1].SequenceNumber)
	assert.Equal(t, uint32(3), out[2].SSRC)
	assert.Equal(t, uint16(3), out[2].SequenceNumber)
}

func TestInsertRejectsDuplicate(t *testing.T) {
	t.Parallel()
	b := New(2)
	assert.False(t, b.Insert(frame(1, 5)).Duplicate)
	assert.True(t, b.Insert(frame(1, 5)).Duplicate)
}

func TestInsertDisplacesOlderIntoNextStage(t *testing.T) {
	t.Parallel()
	b := New(2)

	b.Insert(frame(1, 5))
	// Lower sequence for same SSRC displaces the existing entry forward.
	b.Insert(frame(1, 3))

	out := b.GetCurrentFrames()
	require.Len(t, out, 1)
	assert.Equal(t, uint16(3), out[0].SequenceNumber)

	out = b.GetCurrentFrames()
	require.Len(t, out, 1)
	assert.Equal(t, uint16(5), out[0].SequenceNumber)
}

func TestDrainReturnsAtMostOneFramePerSSRCInAscendingOrder(t *testing.T) {
	t.Parallel()
	b := New(2)
	b.Insert(frame(5, 1))
	b.Insert(frame(2, 1))
	b.Insert(frame(9, 1))

	out := b.GetCurrentFrames()
	require.Len(t, out, 3)
	if diff := cmp.Diff([]uint32{2, 5, 9}, ssrcsOf(out)); diff != "" {
		t.Errorf("drained SSRC order mismatch (-want +got):\n%s", diff)
	}
}

func TestGetCurrentFramesEmptyWhenNoStages(t *testing.T) {
	t.Parallel()
	b := New(2)
	assert.Nil(t, b.GetCurrentFrames())
}

func TestInsertDropsOldestWhenAtMaxStages(t *testing.T) {
	t.Parallel()
	b := New(1)

	b.Insert(frame(1, 1))
	result := b.Insert(frame(1, 2))
	assert.True(t, result.Displaced)

	out := b.GetCurrentFrames()
	require.Len(t, out, 1)
	assert.Equal(t, uint16(2), out[0].SequenceNumber)
}
