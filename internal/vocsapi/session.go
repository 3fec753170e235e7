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

	"github.com/openvocs/ov-core/internal/loop"
)

// ClientSession is the dispatcher-side record for one connected socket. It
// is created unauthenticated on connect, mutated by authorize, and torn
// down on disconnect.
//
// Per-socket state is owned exclusively by that connection's own
// goroutine in the transport layer, so the mutex here only guards against
// the rare cross-goroutine read (metrics, admin introspection); the event
// loop itself never contends on it.
type ClientSession struct {
	mu sync.Mutex

	Socket     loop.SocketID
	User       string
	Role       string
	SessionID  string
	MediaReady bool
	ICEReady   bool
	loopsHeld  map[string]Permission
	loopState  map[string]Permission
}

// NewClientSession creates an unauthenticated session for a freshly
// connected socket.
func NewClientSession(socket loop.SocketID) *ClientSession {
	return &ClientSession{
		Socket:    socket,
		loopsHeld: make(map[string]Permission),
		loopState: make(map[string]Permission),
	}
}

// Authenticated reports whether a user has been attached to the session.
func (s *ClientSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.User != ""
}

// Authorized reports whether the session has assumed a role.
func (s *ClientSession) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Role != ""
}

// Ready reports whether both the media and ICE legs are established, a
// precondition for switch_loop_state.
func (s *ClientSession) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SessionID != "" && s.MediaReady && s.ICEReady
}

// SetRole attaches a role to the session, as performed by authorize.
func (s *ClientSession) SetRole(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Role = role
}

// SetUser attaches a user identity to the session.
func (s *ClientSession) SetUser(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.User = user
}

// PermissionFor returns the permission held for a loop, defaulting to
// PermissionNone when the loop has not been joined.
func (s *ClientSession) PermissionFor(loopName string) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopsHeld[loopName]
}

// SetLoopPermission records the permission held for a loop, as performed
// by role_loops.
func (s *ClientSession) SetLoopPermission(loopName string, p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopsHeld[loopName] = p
}

// CurrentLoopState returns the active switch_loop_state value for a
// loop, defaulting to PermissionNone if switch_loop_state has never been
// called for it.
func (s *ClientSession) CurrentLoopState(loopName string) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopState[loopName]
}

// SetCurrentLoopState records the active switch_loop_state value for a
// loop.
func (s *ClientSession) SetCurrentLoopState(loopName string, p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopState[loopName] = p
}

// Loops returns the set of loop names the session currently holds a
// permission for.
func (s *ClientSession) Loops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.loopsHeld))
	for name := range s.loopsHeld {
		out = append(out, name)
	}
	return out
}
