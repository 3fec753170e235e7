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

// Package loop implements the per-loop participant registry: membership
// bookkeeping for a named voice conference channel, keyed by socket. The
// registry itself performs no locking beyond what its xsync-backed maps
// provide; the API dispatcher is responsible for serialising the mutating
// sequences it builds out of these operations.
package loop

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// SocketID identifies a connected client for registry purposes. It is
// assigned by the dispatcher transport when a connection is accepted.
type SocketID uint64

// Participant is a snapshot of one loop member.
type Participant struct {
	Client string
	User   string
	Role   string
}

// Loop is a named channel with a set of participants, keyed by socket.
type Loop struct {
	Name         string
	participants *xsync.Map[SocketID, Participant]
}

func newLoop(name string) *Loop {
	return &Loop{
		Name:         name,
		participants: xsync.NewMap[SocketID, Participant](),
	}
}

// Add inserts or replaces the participant record for a socket. Adding the
// same socket twice with identical fields is idempotent.
func (l *Loop) Add(socket SocketID, client, user, role string) {
	l.participants.Store(socket, Participant{Client: client, User: user, Role: role})
}

// Drop removes a socket's participant record. It is a no-op if the socket
// is not present.
func (l *Loop) Drop(socket SocketID) {
	l.participants.Delete(socket)
}

// Count returns the number of participants currently in the loop.
func (l *Loop) Count() int {
	return l.participants.Size()
}

// Participants returns a snapshot list of current participants.
func (l *Loop) Participants() []Participant {
	out := make([]Participant, 0, l.participants.Size())
	l.participants.Range(func(_ SocketID, p Participant) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Has reports whether a socket currently holds a participant record.
func (l *Loop) Has(socket SocketID) bool {
	_, ok := l.participants.Load(socket)
	return ok
}

// Set is a named-loop multiplexer: it creates loops lazily on first
// reference and drops a client's membership from every loop on
// disconnect.
type Set struct {
	loops *xsync.Map[string, *Loop]
}

// NewSet constructs an empty loop set.
func NewSet() *Set {
	return &Set{loops: xsync.NewMap[string, *Loop]()}
}

// Get returns the named loop, creating it if it does not yet exist.
func (s *Set) Get(name string) *Loop {
	l, _ := s.loops.LoadOrStore(name, newLoop(name))
	return l
}

// Lookup returns the named loop without creating it.
func (s *Set) Lookup(name string) (*Loop, bool) {
	return s.loops.Load(name)
}

// Names returns every currently known loop name.
func (s *Set) Names() []string {
	out := make([]string, 0, s.loops.Size())
	s.loops.Range(func(name string, _ *Loop) bool {
		out = append(out, name)
		return true
	})
	return out
}

// DropEverywhere removes a socket's participant record from every loop in
// the set, used on client disconnect.
func (s *Set) DropEverywhere(socket SocketID) {
	s.loops.Range(func(_ string, l *Loop) bool {
		l.Drop(socket)
		return true
	})
}
