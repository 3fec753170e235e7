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

package rtp

import "sync"

// FramePool recycles Frame values and their backing byte buffers across the
// RTP receive path. A Frame freed via Put is dropped rather than recycled
// when its buffer has grown beyond recacheThreshold, matching the
// "too big to cache" policy described for registered caches.
type FramePool struct {
	pool             sync.Pool
	recacheThreshold int
}

// NewFramePool constructs a pool. recacheThreshold bounds the serialised
// buffer size (in bytes) above which a freed Frame is discarded instead of
// recycled.
func NewFramePool(recacheThreshold int) *FramePool {
	p := &FramePool{recacheThreshold: recacheThreshold}
	p.pool.New = func() any { return &Frame{} }
	return p
}

// Get returns a zeroed Frame, either freshly allocated or recycled.
func (p *FramePool) Get() *Frame {
	return p.pool.Get().(*Frame) //nolint:errcheck,forcetypeassert
}

// Put returns a frame to the pool for reuse. The frame must not be used by
// the caller afterward.
func (p *FramePool) Put(f *Frame) {
	if f == nil {
		return
	}
	if p.recacheThreshold > 0 && len(f.bytes) > p.recacheThreshold {
		return
	}
	*f = Frame{bytes: f.bytes[:0]}
	p.pool.Put(f)
}
