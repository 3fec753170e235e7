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

package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddIsIdempotent(t *testing.T) {
	t.Parallel()
	l := newLoop("ATC-1")

	l.Add(1, "client-a", "alice", "controller")
	l.Add(1, "client-a", "alice", "controller")

	assert.Equal(t, 1, l.Count())
	assert.Equal(t, []Participant{{Client: "client-a", User: "alice", Role: "controller"}}, l.Participants())
}

func TestAddReplacesExistingSocket(t *testing.T) {
	t.Parallel()
	l := newLoop("ATC-1")

	l.Add(1, "client-a", "alice", "controller")
	l.Add(1, "client-a", "alice", "supervisor")

	assert.Equal(t, 1, l.Count())
	parts := l.Participants()
	assert.Equal(t, "supervisor", parts[0].Role)
}

func TestDropOnAbsentSocketIsNoOp(t *testing.T) {
	t.Parallel()
	l := newLoop("ATC-1")
	l.Drop(42)
	assert.Equal(t, 0, l.Count())
}

func TestDropRemovesParticipant(t *testing.T) {
	t.Parallel()
	l := newLoop("ATC-1")
	l.Add(1, "client-a", "alice", "controller")
	l.Drop(1)
	assert.Equal(t, 0, l.Count())
	assert.False(t, l.Has(1))
}

func TestSetGetCreatesLazily(t *testing.T) {
	t.Parallel()
	s := NewSet()
	_, ok := s.Lookup("ATC-1")
	assert.False(t, ok)

	l := s.Get("ATC-1")
	l.Add(1, "client-a", "alice", "controller")

	again, ok := s.Lookup("ATC-1")
	assert.True(t, ok)
	assert.Equal(t, 1, again.Count())
}

func TestDropEverywhereClearsAllLoops(t *testing.T) {
	t.Parallel()
	s := NewSet()
	s.Get("ATC-1").Add(1, "client-a", "alice", "controller")
	s.Get("ATC-2").Add(1, "client-a", "alice", "monitor")

	s.DropEverywhere(1)

	assert.Equal(t, 0, s.Get("ATC-1").Count())
	assert.Equal(t, 0, s.Get("ATC-2").Count())
}
