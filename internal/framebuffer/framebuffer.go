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

// Package framebuffer implements the multi-stream ordering buffer: a small
// sequence of fixed-latency stages, each holding at most one frame per
// SSRC, that presents the mixer with one synchronised batch per tick while
// preserving per-stream order.
package framebuffer

import (
	"sort"

	"github.com/openvocs/ov-core/internal/rtp"
)

type entry struct {
	ssrc  uint32
	seq   uint16
	frame *rtp.Frame
}

// Buffer is the multi-stream ordering buffer.
type Buffer struct {
	stages    [][]entry
	maxStages uint
}

// New constructs a Buffer with the given maximum stage count.
func New(maxStages uint) *Buffer {
	if maxStages == 0 {
		maxStages = 2
	}
	return &Buffer{maxStages: maxStages}
}

// InsertResult reports the outcome of Insert.
type InsertResult struct {
	Duplicate bool
	Displaced bool
}

// Insert places a frame according to the stage carry-forward algorithm: it
// walks stages oldest to newest, displacing an older sequence for the same
// SSRC forward as a remainder, until a stage with no entry for the SSRC
// accepts it, a new stage is allocated, or (when already at max_stages) the
// oldest frame for that SSRC is dropped from stage 0 to make room.
func (b *Buffer) Insert(f *rtp.Frame) InsertResult {
	remainder := entry{ssrc: f.SSRC, seq: f.SequenceNumber, frame: f}

	for i := range b.stages {
		idx, found := findSSRC(b.stages[i], remainder.ssrc)
		if !found {
			b.stages[i] = insertAt(b.stages[i], idx, remainder)
			return InsertResult{}
		}

		existing := b.stages[i][idx]
		switch {
		case remainder.seq == existing.seq:
			return InsertResult{Duplicate: true}
		case remainder.seq < existing.seq:
			b.stages[i][idx] = remainder
			remainder = existing
		default:
			// remainder.seq > existing.seq: remainder carries forward unchanged.
		}
	}

	if uint(len(b.stages)) < b.maxStages {
		b.stages = append(b.stages, []entry{remainder})
		return InsertResult{}
	}

	b.dropOldestAndShift(remainder.ssrc)
	last := len(b.stages) - 1
	idx, _ := findSSRC(b.stages[last], remainder.ssrc)
	b.stages[last] = insertAt(b.stages[last], idx, remainder)
	return InsertResult{Displaced: true}
}

func (b *Buffer) dropOldestAndShift(ssrc uint32) {
	if len(b.stages) == 0 {
		return
	}
	b.stages[0] = removeSSRC(b.stages[0], ssrc)
	for i := 1; i < len(b.stages); i++ {
		e, ok := takeSSRC(b.stages[i], ssrc)
		if !ok {
			continue
		}
		b.stages[i] = removeSSRC(b.stages[i], ssrc)
		idx, _ := findSSRC(b.stages[i-1], ssrc)
		b.stages[i-1] = insertAt(b.stages[i-1], idx, e)
	}
}

// GetCurrentFrames drains stage 0 and promotes subsequent stages, returning
// nil when no stages remain.
func (b *Buffer) GetCurrentFrames() []*rtp.Frame {
	if len(b.stages) == 0 {
		return nil
	}
	stage := b.stages[0]
	b.stages = b.stages[1:]

	out := make([]*rtp.Frame, len(stage))
	for i, e := range stage {
		out[i] = e.frame
	}
	return out
}

// Stats reports the current number of occupied stages, for metrics export.
func (b *Buffer) Stats() (stagesInUse int) {
	return len(b.stages)
}

func findSSRC(s []entry, ssrc uint32) (index int, found bool) {
	index = sort.Search(len(s), func(i int) bool { return s[i].ssrc >= ssrc })
	if index < len(s) && s[index].ssrc == ssrc {
		return index, true
	}
	return index, false
}

func insertAt(s []entry, idx int, e entry) []entry {
	s = append(s, entry{})
	copy(s[idx+1:], s[idx:])
	s[idx] = e
	return s
}

func removeSSRC(s []entry, ssrc uint32) []entry {
	idx, found := findSSRC(s, ssrc)
	if !found {
		return s
	}
	return append(s[:idx], s[idx+1:]...)
}

func takeSSRC(s []entry, ssrc uint32) (entry, bool) {
	idx, found := findSSRC(s, ssrc)
	if !found {
		return entry{}, false
	}
	e := s[idx]
	return e, true
}
