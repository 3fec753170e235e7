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

// Package vocsapi implements the voice-loop API client dispatcher: a
// table-driven handler registry that parses JSON events from
// authenticated clients, mutates core state (sessions, loop membership),
// forwards requests to collaborators (media/ICE, SIP, stores), and fans
// out broadcasts. The dispatcher is transport-agnostic; a WebSocket (or
// any other) connection loop calls Dispatch with the raw event bytes.
package vocsapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/openvocs/ov-core/internal/loop"
	"github.com/openvocs/ov-core/internal/metrics"
)

// HandlerFunc implements one event's contract: given the session the
// event arrived on and the parsed event, it returns either a response
// payload or a protocol error. It never returns a raw Go error — every
// failure mode the dispatcher can see becomes a wire Error.
type HandlerFunc func(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error)

// Config wires the dispatcher's collaborators and shared infrastructure.
// Any collaborator left nil causes events depending on it to fail with
// an error response rather than panicking, so a partial deployment
// (e.g. no SIP gateway configured) degrades gracefully per event. The
// code is the one each event uses for its own failures: a missing
// PermissionStore gives CodeAuth (CodeParameterError for get), a missing
// KeysetStore gives CodeParameterError, a missing MediaSession gives
// CodeProcessingError (CodeParameterError for switch_loop_volume; talking
// skips the mixer call and still succeeds), and a
// missing SIP gateway, user-data or recording store gives
// CodeProcessingError.
type Config struct {
	AsyncTimeout time.Duration
	Loops        *loop.Set
	Broadcast    *BroadcastRegistry
	Media        MediaSession
	SIP          SIPGateway
	Permissions  PermissionStore
	Keysets      KeysetStore
	UserData     UserDataStore
	Recordings   RecordingStore
	Metrics      *metrics.Metrics
	// Transport delivers the TIMEOUT reply and socket closure an
	// expired async request owes the client. It is commonly nil at
	// construction time (the transport layer is built from the
	// dispatcher, not the other way around) and wired afterward with
	// SetTransport.
	Transport Transport
}

// Dispatcher is the single entry point clients' JSON events pass through.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	sessions *xsync.Map[loop.SocketID, *ClientSession]

	loops     *loop.Set
	broadcast *BroadcastRegistry
	async     *AsyncTable

	asyncTimeout time.Duration

	media       MediaSession
	sip         SIPGateway
	permissions PermissionStore
	keysets     KeysetStore
	userData    UserDataStore
	recordings  RecordingStore

	metrics   *metrics.Metrics
	transport Transport
}

// New constructs a dispatcher and builds its event table once.
func New(cfg Config) *Dispatcher {
	timeout := cfg.AsyncTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		sessions:     xsync.NewMap[loop.SocketID, *ClientSession](),
		loops:        cfg.Loops,
		broadcast:    cfg.Broadcast,
		async:        NewAsyncTable(),
		asyncTimeout: timeout,
		media:        cfg.Media,
		sip:          cfg.SIP,
		permissions:  cfg.Permissions,
		keysets:      cfg.Keysets,
		userData:     cfg.UserData,
		recordings:   cfg.Recordings,
		metrics:      cfg.Metrics,
		transport:    cfg.Transport,
	}
	d.handlers = d.buildEventTable()
	return d
}

// SetTransport wires the transport-layer push/close hook after both the
// dispatcher and its transport exist, breaking the construction cycle
// between the two (the transport is typically built from a reference to
// the dispatcher it serves).
func (d *Dispatcher) SetTransport(t Transport) {
	d.transport = t
}

// buildEventTable constructs the table of recognised events, grounded
// directly on the dual authorize/authorise spelling mapping to one
// handler: a map literal built once at construction time rather than a
// switch, per the table-driven dispatch the event protocol calls for.
func (d *Dispatcher) buildEventTable() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"authorize":             handleAuthorize,
		"authorise":             handleAuthorize,
		"get":                   handleGet,
		"user_roles":            handleUserRoles,
		"role_loops":            handleRoleLoops,
		"switch_loop_state":     handleSwitchLoopState,
		"switch_loop_volume":    handleSwitchLoopVolume,
		"talking":               handleTalking,
		"media":                 handleMedia,
		"candidate":             handleCandidate,
		"end_of_candidates":     handleEndOfCandidates,
		"call":                  sipHandler("call"),
		"hangup":                sipHandler("hangup"),
		"permit_call":           sipHandler("permit_call"),
		"revoke_call":           sipHandler("revoke_call"),
		"list_calls":            sipHandler("list_calls"),
		"list_call_permissions": sipHandler("list_call_permissions"),
		"list_sip_status":       sipHandler("list_sip_status"),
		"sip":                   sipHandler("sip"),
		"set_keyset_layout":     handleSetKeysetLayout,
		"get_keyset_layout":     handleGetKeysetLayout,
		"set_user_data":         handleSetUserData,
		"get_user_data":         handleGetUserData,
		"get_recording":         handleGetRecording,
		"register":              handleRegister,
	}
}

// Connect creates and records an unauthenticated session for a freshly
// accepted socket.
func (d *Dispatcher) Connect(socket loop.SocketID) *ClientSession {
	session := NewClientSession(socket)
	d.sessions.Store(socket, session)
	return session
}

// Disconnect tears a session down: it is removed from every loop and
// every broadcast group, and its pending async requests are cancelled
// (their table entries persist until their natural timeout, per the
// async table's documented invariant).
func (d *Dispatcher) Disconnect(socket loop.SocketID) {
	d.sessions.Delete(socket)
	if d.loops != nil {
		d.loops.DropEverywhere(socket)
	}
	d.async.CancelSocket(socket)
}

// Session returns the session tracked for a socket, if any.
func (d *Dispatcher) Session(socket loop.SocketID) (*ClientSession, bool) {
	return d.sessions.Load(socket)
}

// Dispatch parses one JSON event and routes it through the event table,
// creating a session on first contact if the socket is unknown. Unknown
// events produce a generic parameter error rather than a disconnect, as
// required by the error handling design.
func (d *Dispatcher) Dispatch(ctx context.Context, socket loop.SocketID, raw []byte) Response {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Response{Error: newError(CodeParameterError)}
	}

	session, ok := d.sessions.Load(socket)
	if !ok {
		session = d.Connect(socket)
	}

	handler, ok := d.handlers[evt.Event]
	if !ok {
		return Response{Event: evt.Event, UUID: evt.UUID, Error: newError(CodeParameterError)}
	}

	start := time.Now()
	payload, errResp := handler(ctx, d, session, evt)
	elapsed := time.Since(start).Seconds()

	if errResp != nil {
		if d.metrics != nil {
			d.metrics.RecordDispatcherError(codeLabel(errResp.Code))
		}
		return Response{Event: evt.Event, UUID: evt.UUID, Error: errResp}
	}
	if d.metrics != nil {
		d.metrics.RecordDispatcherEvent(evt.Event, elapsed)
		d.metrics.SetDispatcherAsyncPending(float64(d.async.Len()))
	}
	return Response{Event: evt.Event, UUID: evt.UUID, Response: payload}
}

// onAsyncTimeout is the shared timeout callback used by every
// RegisterAsync call site that does not supply its own: a collaborator
// that never replied within d.asyncTimeout gets a TIMEOUT error pushed
// to its socket, and the socket is then closed, per spec.md's "timeout
// causes an error reply and socket closure." Delivery is best-effort —
// if no transport is wired (e.g. in tests that only exercise the table)
// or the socket is already gone, only the bookkeeping metric updates.
func (d *Dispatcher) onAsyncTimeout(socket loop.SocketID, id uuid.UUID, _ any) {
	if d.metrics != nil {
		d.metrics.SetDispatcherAsyncPending(float64(d.async.Len()))
		d.metrics.RecordDispatcherError(codeLabel(CodeTimeout))
	}
	if d.transport == nil {
		return
	}
	_ = d.transport.Push(socket, Response{UUID: id.String(), Error: newError(CodeTimeout)})
	d.transport.Close(socket)
}

// RegisterAsync exposes the async table registration to handlers and,
// indirectly, to the transport layer for collaborator-reply wiring.
func (d *Dispatcher) RegisterAsync(socket loop.SocketID, value any, onTimeout OnTimeout) uuid.UUID {
	cb := onTimeout
	if cb == nil {
		cb = d.onAsyncTimeout
	}
	return d.async.Register(socket, value, d.asyncTimeout, cb)
}

// ResolveAsync completes a pending async request on a collaborator
// reply, per the async correlation contract.
func (d *Dispatcher) ResolveAsync(id uuid.UUID) (loop.SocketID, any, bool) {
	return d.async.Resolve(id)
}

func codeLabel(c Code) string {
	switch c {
	case CodeAuth:
		return "auth"
	case CodeAuthPermission:
		return "auth_permission"
	case CodeParameterError:
		return "parameter_error"
	case CodeSessionUnknown:
		return "session_unknown"
	case CodeProcessingError:
		return "processing_error"
	case CodeTimeout:
		return "timeout"
	case CodeNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}
