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
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/loop"
	"github.com/openvocs/ov-core/internal/pubsub"
)

func mustMemoryPubSub() pubsub.PubSub {
	ps, err := pubsub.MakePubSub(context.Background(), &config.Config{})
	if err != nil {
		panic(err)
	}
	return ps
}

type fakePermissions struct {
	roles       map[string][]string
	roleLoops   map[string][]string
	permissions map[[2]string]Permission
	admins      map[[2]string]bool
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{
		roles:       map[string][]string{},
		roleLoops:   map[string][]string{},
		permissions: map[[2]string]Permission{},
		admins:      map[[2]string]bool{},
	}
}

func (f *fakePermissions) GetUserEntity(_ context.Context, user string) (string, any, error) {
	return "example.org", map[string]string{"user": user}, nil
}

func (f *fakePermissions) UserRoles(_ context.Context, user string) ([]string, error) {
	return f.roles[user], nil
}

func (f *fakePermissions) RoleLoops(_ context.Context, role string) ([]string, error) {
	return f.roleLoops[role], nil
}

func (f *fakePermissions) LoopPermission(_ context.Context, role, loopName string) (Permission, error) {
	return f.permissions[[2]string{role, loopName}], nil
}

func (f *fakePermissions) IsDomainAdmin(_ context.Context, user, domain string) (bool, error) {
	return f.admins[[2]string{user, domain}], nil
}

type fakeMedia struct {
	switchCalls int
}

func (f *fakeMedia) RequestLoopStateSwitch(_ context.Context, _ uuid.UUID, _ loop.SocketID, _, _ string, _ Permission) error {
	f.switchCalls++
	return nil
}
func (f *fakeMedia) RequestLoopVolumeSwitch(_ context.Context, _ uuid.UUID, _ loop.SocketID, _, _ string, _ int) error {
	return nil
}
func (f *fakeMedia) RequestMedia(_ context.Context, _ uuid.UUID, _ loop.SocketID, _ string, _ json.RawMessage) error {
	return nil
}
func (f *fakeMedia) RequestCandidate(_ context.Context, _ uuid.UUID, _ loop.SocketID, _ string, _ json.RawMessage) error {
	return nil
}
func (f *fakeMedia) RequestEndOfCandidates(_ context.Context, _ uuid.UUID, _ loop.SocketID, _ string) error {
	return nil
}
func (f *fakeMedia) SetTalking(_ context.Context, _ string, _ loop.SocketID, _ bool) error {
	return nil
}

func newTestDispatcher(perms *fakePermissions, media MediaSession) *Dispatcher {
	return New(Config{
		Loops:       loop.NewSet(),
		Broadcast:   NewBroadcastRegistry(mustMemoryPubSub()),
		Permissions: perms,
		Media:       media,
	})
}

func TestTalkingFromRoleLackingSendReturnsAuthPermissionAndKeepsSocketOpen(t *testing.T) {
	t.Parallel()
	perms := newFakePermissions()
	perms.permissions[[2]string{"controller", "L"}] = PermissionListen

	d := newTestDispatcher(perms, &fakeMedia{})
	session := d.Connect(1)
	session.SetUser("alice")
	session.SetRole("controller")
	session.SetLoopPermission("L", PermissionListen)

	raw, err := json.Marshal(Event{Event: "talking", UUID: "u1", Parameter: mustJSON(t, talkingParams{Loop: "L", State: true})})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuthPermission, resp.Error.Code)
	_, stillOpen := d.Session(1)
	assert.True(t, stillOpen)
}

func TestTalkingFromRoleWithSendSucceeds(t *testing.T) {
	t.Parallel()
	perms := newFakePermissions()
	d := newTestDispatcher(perms, &fakeMedia{})
	session := d.Connect(1)
	session.SetUser("alice")
	session.SetRole("controller")
	session.SetLoopPermission("L", PermissionSend)

	raw, err := json.Marshal(Event{Event: "talking", Parameter: mustJSON(t, talkingParams{Loop: "L", State: true})})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)
	require.Nil(t, resp.Error)
}

func TestSwitchLoopStateWithUnchangedStateRespondsSynchronously(t *testing.T) {
	t.Parallel()
	perms := newFakePermissions()
	media := &fakeMedia{}
	d := newTestDispatcher(perms, media)

	session := d.Connect(1)
	session.SetUser("alice")
	session.SetRole("controller")
	session.SessionID = "sess-1"
	session.MediaReady = true
	session.ICEReady = true
	session.SetLoopPermission("L", PermissionSend)
	session.SetCurrentLoopState("L", PermissionListen)
	d.loops.Get("L").Add(loop.SocketID(1), "client-a", "alice", "controller")

	raw, err := json.Marshal(Event{Event: "switch_loop_state", UUID: "u2", Parameter: mustJSON(t, switchLoopStateParams{Loop: "L", State: "listen"})})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)

	require.Nil(t, resp.Error)
	assert.Equal(t, 0, media.switchCalls)
	body, ok := resp.Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "listen", body["state"])
}

func TestSwitchLoopStateChangedIssuesAsyncRequest(t *testing.T) {
	t.Parallel()
	perms := newFakePermissions()
	media := &fakeMedia{}
	d := newTestDispatcher(perms, media)

	session := d.Connect(1)
	session.SetUser("alice")
	session.SetRole("controller")
	session.SessionID = "sess-1"
	session.MediaReady = true
	session.ICEReady = true
	session.SetLoopPermission("L", PermissionSend)

	raw, err := json.Marshal(Event{Event: "switch_loop_state", Parameter: mustJSON(t, switchLoopStateParams{Loop: "L", State: "send"})})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)

	require.Nil(t, resp.Error)
	assert.Equal(t, 1, media.switchCalls)
}

func TestSwitchLoopStateRejectsOverPermission(t *testing.T) {
	t.Parallel()
	perms := newFakePermissions()
	media := &fakeMedia{}
	d := newTestDispatcher(perms, media)

	session := d.Connect(1)
	session.SetUser("alice")
	session.SetRole("controller")
	session.SessionID = "sess-1"
	session.MediaReady = true
	session.ICEReady = true
	session.SetLoopPermission("L", PermissionListen)

	raw, err := json.Marshal(Event{Event: "switch_loop_state", Parameter: mustJSON(t, switchLoopStateParams{Loop: "L", State: "send"})})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuthPermission, resp.Error.Code)
	assert.Equal(t, 0, media.switchCalls)
}

func TestUnknownEventProducesParameterErrorNotDisconnect(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(newFakePermissions(), &fakeMedia{})
	d.Connect(1)

	raw, err := json.Marshal(Event{Event: "not_a_real_event"})
	require.NoError(t, err)

	resp := d.Dispatch(context.Background(), 1, raw)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParameterError, resp.Error.Code)
	_, ok := d.Session(1)
	assert.True(t, ok)
}

func TestDisconnectDropsFromEveryLoop(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(newFakePermissions(), &fakeMedia{})
	d.Connect(1)
	d.loops.Get("A").Add(loop.SocketID(1), "client-a", "alice", "controller")
	d.loops.Get("B").Add(loop.SocketID(1), "client-a", "alice", "controller")

	d.Disconnect(1)

	assert.Equal(t, 0, d.loops.Get("A").Count())
	assert.Equal(t, 0, d.loops.Get("B").Count())
	_, ok := d.Session(1)
	assert.False(t, ok)
}

type fakeTransport struct {
	mu     sync.Mutex
	pushed []Response
	closed []loop.SocketID
	done   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{done: make(chan struct{}, 1)}
}

func (f *fakeTransport) Push(_ loop.SocketID, resp Response) error {
	f.mu.Lock()
	f.pushed = append(f.pushed, resp)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close(socket loop.SocketID) {
	f.mu.Lock()
	f.closed = append(f.closed, socket)
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
}

func TestAsyncTimeoutSendsTimeoutErrorAndClosesSocket(t *testing.T) {
	t.Parallel()
	transport := newFakeTransport()
	d := New(Config{
		Loops:        loop.NewSet(),
		Broadcast:    NewBroadcastRegistry(mustMemoryPubSub()),
		Permissions:  newFakePermissions(),
		Media:        &fakeMedia{},
		AsyncTimeout: 10 * time.Millisecond,
		Transport:    transport,
	})
	d.Connect(1)

	id := d.RegisterAsync(1, "pending-value", nil)

	select {
	case <-transport.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async timeout to fire")
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.pushed, 1)
	assert.Equal(t, id.String(), transport.pushed[0].UUID)
	require.NotNil(t, transport.pushed[0].Error)
	assert.Equal(t, CodeTimeout, transport.pushed[0].Error.Code)
	require.Len(t, transport.closed, 1)
	assert.Equal(t, loop.SocketID(1), transport.closed[0])
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
