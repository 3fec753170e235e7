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

// Package streambuffer implements a single-SSRC sliding-window reorder
// buffer: admission control over an SSRC range, jitter/reorder correction
// within a fixed window of sequence numbers, duplicate rejection, and
// sequence-space reset after repeated out-of-window misses.
package streambuffer

import (
	"errors"
	"sync/atomic"

	"github.com/openvocs/ov-core/internal/rtp"
)

// ErrRangeMustBeNonZero is returned by Accept when both bounds are zero;
// the all-zero range is reserved for the internal "accept nothing" state
// reached only via RefuseAll.
var ErrRangeMustBeNonZero = errors.New("streambuffer: accept range must be non-zero; use RefuseAll to reject everything")

// Lookahead reports how many frames are ready to drain from the head of
// the window without actually popping them.
type Lookahead struct {
	SequenceNumber uint16
	FramesReady    int
}

// Buffer is a fixed-capacity sliding window over sequence numbers
// [windowStart, windowStart+N) for one SSRC. All exported methods are
// serialised by a lock-free spin flag so the buffer can be driven safely
// from an audio thread running concurrently with the owning event loop.
type Buffer struct {
	slots []*rtp.Frame

	low, high    uint32
	hasBlock     bool
	blockedSSRC  uint32

	started     bool
	windowStart uint16
	misses      uint
	maxMisses   uint

	// OnReset, if set, is invoked synchronously whenever max-misses
	// triggers a sequence-space reset, reporting the SSRC and the new
	// window origin. It exists purely for diagnostics: the reset
	// recovery is otherwise indistinguishable from a stream restart.
	OnReset func(ssrc uint32, newOrigin uint16)

	spin atomic.Bool
}

// New constructs a Buffer with the given window width and max-misses
// threshold before a reset. It starts in the "accept nothing" state.
func New(windowSize uint16, maxMisses uint) *Buffer {
	if windowSize == 0 {
		windowSize = 1
	}
	if maxMisses == 0 {
		maxMisses = 5
	}
	return &Buffer{
		slots:     make([]*rtp.Frame, windowSize),
		maxMisses: maxMisses,
	}
}

func (b *Buffer) lock() {
	for !b.spin.CompareAndSwap(false, true) {
		// busy-wait; the critical section is O(window size) at most.
	}
}

func (b *Buffer) unlock() {
	b.spin.Store(false)
}

// Accept sets the admission range (swapped if given out of order) and
// resets the window. The range must be non-zero; use RefuseAll to reach
// the all-zero "accept nothing" state.
func (b *Buffer) Accept(low, high uint32) error {
	if low == 0 && high == 0 {
		return ErrRangeMustBeNonZero
	}
	if low > high {
		low, high = high, low
	}

	b.lock()
	defer b.unlock()

	b.low, b.high = low, high
	b.resetWindowLocked()
	return nil
}

// Block sets a single blocked SSRC, overwriting any previous block.
func (b *Buffer) Block(ssrc uint32) {
	b.lock()
	defer b.unlock()
	b.hasBlock = true
	b.blockedSSRC = ssrc
}

// RefuseAll clears admission entirely and resets the window.
func (b *Buffer) RefuseAll() {
	b.lock()
	defer b.unlock()
	b.low, b.high = 0, 0
	b.resetWindowLocked()
}

func (b *Buffer) resetWindowLocked() {
	b.started = false
	b.windowStart = 0
	b.misses = 0
	for i := range b.slots {
		b.slots[i] = nil
	}
}

func (b *Buffer) admitted(ssrc uint32) bool {
	if b.hasBlock && ssrc == b.blockedSSRC {
		return false
	}
	if b.low == 0 && b.high == 0 {
		return false
	}
	return ssrc >= b.low && ssrc <= b.high
}

// Put inserts a frame if its SSRC is admitted and its sequence number
// falls in (or establishes) the current window. It returns false if the
// frame was rejected (not admitted, out of range, or duplicate).
func (b *Buffer) Put(f *rtp.Frame) bool {
	b.lock()
	defer b.unlock()

	if !b.admitted(f.SSRC) {
		return false
	}

	if !b.started {
		b.windowStart = f.SequenceNumber
		b.started = true
		b.slots[0] = f
		b.misses = 0
		return true
	}

	index := int(uint16(f.SequenceNumber - b.windowStart))
	if index >= len(b.slots) {
		b.misses++
		if b.misses >= b.maxMisses {
			newOrigin := f.SequenceNumber
			b.windowStart = newOrigin
			b.misses = 0
			for i := range b.slots {
				b.slots[i] = nil
			}
			b.started = true
			if b.OnReset != nil {
				b.OnReset(f.SSRC, newOrigin)
			}
			return false
		}
		return false
	}

	if b.slots[index] != nil {
		return false
	}

	b.slots[index] = f
	b.misses = 0
	return true
}

// Lookahead reports the window origin and the number of contiguously
// filled slots starting at index 0.
func (b *Buffer) Lookahead() Lookahead {
	b.lock()
	defer b.unlock()
	return b.lookaheadLocked()
}

func (b *Buffer) lookaheadLocked() Lookahead {
	if b.slots[0] == nil {
		return Lookahead{}
	}
	count := 0
	for count < len(b.slots) && b.slots[count] != nil {
		count++
	}
	return Lookahead{SequenceNumber: b.windowStart, FramesReady: count}
}

// Get pops up to want frames from the contiguous prefix, shifts the window
// left by the number popped (with intentional 16-bit wrap), and returns
// the popped frames.
func (b *Buffer) Get(want int) []*rtp.Frame {
	b.lock()
	defer b.unlock()

	la := b.lookaheadLocked()
	n := la.FramesReady
	if n > want {
		n = want
	}
	if n <= 0 {
		return nil
	}

	out := make([]*rtp.Frame, n)
	copy(out, b.slots[:n])
	copy(b.slots, b.slots[n:])
	for i := len(b.slots) - n; i < len(b.slots); i++ {
		b.slots[i] = nil
	}
	b.windowStart = uint16(int(b.windowStart) + n)
	return out
}
