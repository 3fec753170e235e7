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

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openvocs/ov-core/internal/loop"
)

// pendingRequest is one in-flight collaborator request: the socket that
// originated it, the original request value (so a late reply can be
// matched back to its context), and the timer that fires a TIMEOUT error
// if no reply arrives.
type pendingRequest struct {
	socket    loop.SocketID
	value     any
	timer     *time.Timer
	cancelled bool
}

// OnTimeout is invoked when a pending request's timer fires before a
// matching reply arrives. The table entry is already removed by the time
// this runs.
type OnTimeout func(socket loop.SocketID, id uuid.UUID, value any)

// AsyncTable is the UUID-keyed correlation table described in the data
// model: every request sent to a collaborator (media/ICE/SIP) is
// registered here together with a timeout; the matching reply or the
// timeout removes the entry.
//
// Grounded on the teacher's calltracker.CallTracker, which tracks
// in-flight calls in a mutex-protected map and arms a time.AfterFunc per
// call that fires an end-call handler if no update refreshes it in time.
type AsyncTable struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingRequest
}

// NewAsyncTable constructs an empty async correlation table.
func NewAsyncTable() *AsyncTable {
	return &AsyncTable{pending: make(map[uuid.UUID]*pendingRequest)}
}

// Register records a new in-flight request and arms its timeout. It
// returns the UUID to correlate the eventual reply against.
func (t *AsyncTable) Register(socket loop.SocketID, value any, timeout time.Duration, onTimeout OnTimeout) uuid.UUID {
	id := uuid.New()

	t.mu.Lock()
	req := &pendingRequest{socket: socket, value: value}
	req.timer = time.AfterFunc(timeout, func() {
		t.mu.Lock()
		current, ok := t.pending[id]
		if ok {
			delete(t.pending, id)
		}
		cancelled := ok && current.cancelled
		t.mu.Unlock()

		if ok && !cancelled && onTimeout != nil {
			onTimeout(socket, id, value)
		}
	})
	t.pending[id] = req
	t.mu.Unlock()

	return id
}

// Resolve unmaps a UUID on a matching collaborator reply, stopping its
// timer. It reports false if the UUID is unknown (already resolved,
// timed out, or never registered).
func (t *AsyncTable) Resolve(id uuid.UUID) (socket loop.SocketID, value any, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, found := t.pending[id]
	if !found {
		return 0, nil, false
	}
	req.timer.Stop()
	delete(t.pending, id)
	return req.socket, req.value, true
}

// CancelSocket marks every pending request belonging to socket as
// cancelled. Per the documented invariant, entries are not removed early:
// disconnection implicitly cancels the request, but the table entry
// remains until its natural timeout, at which point the cancellation
// suppresses the (now meaningless) timeout callback.
func (t *AsyncTable) CancelSocket(socket loop.SocketID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, req := range t.pending {
		if req.socket == socket {
			req.cancelled = true
		}
	}
}

// Len reports the number of currently pending requests, for metrics.
func (t *AsyncTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
