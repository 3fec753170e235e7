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
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openvocs/ov-core/internal/loop"
)

// Collaborator interfaces make the core's external dependencies concrete
// without committing to any particular storage or signalling technology;
// each is grounded on the teacher's internal/kv.KV pattern of "one
// interface, swappable concrete implementations." A production deployment
// supplies real implementations; tests use small fakes.

// MediaSession is the ICE/SDP collaborator behind switch_loop_state,
// switch_loop_volume, media, candidate, and end_of_candidates. Every
// Request* call is asynchronous: the collaborator's eventual reply is
// expected to resolve the given UUID against the dispatcher's AsyncTable.
type MediaSession interface {
	RequestLoopStateSwitch(ctx context.Context, id uuid.UUID, socket loop.SocketID, sessionID, loopName string, requested Permission) error
	RequestLoopVolumeSwitch(ctx context.Context, id uuid.UUID, socket loop.SocketID, sessionID, loopName string, volume int) error
	RequestMedia(ctx context.Context, id uuid.UUID, socket loop.SocketID, sessionID string, sdp json.RawMessage) error
	RequestCandidate(ctx context.Context, id uuid.UUID, socket loop.SocketID, sessionID string, candidate json.RawMessage) error
	RequestEndOfCandidates(ctx context.Context, id uuid.UUID, socket loop.SocketID, sessionID string) error
	// SetTalking toggles mixer push-to-talk state; it is synchronous
	// because talking's only side effect besides the broadcast is a
	// fire-and-forget mixer update.
	SetTalking(ctx context.Context, loopName string, socket loop.SocketID, talking bool) error
}

// SIPGateway is the telephony collaborator behind call, hangup,
// permit_call, revoke_call, list_calls, list_call_permissions,
// list_sip_status, and sip. Every Request* call is asynchronous, matching
// spec.md's "forwarded to SIP gateway; awaits async reply."
type SIPGateway interface {
	RequestCall(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestHangup(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestPermitCall(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestRevokeCall(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestListCalls(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestListCallPermissions(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestListSIPStatus(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
	RequestSIP(ctx context.Context, id uuid.UUID, socket loop.SocketID, params json.RawMessage) error
}

// PermissionStore answers identity and authorization questions: the
// entity behind get, the roles a user may assume, the loops a role may
// join, and the permission a role holds on a loop.
type PermissionStore interface {
	GetUserEntity(ctx context.Context, user string) (domain string, entity any, err error)
	UserRoles(ctx context.Context, user string) ([]string, error)
	RoleLoops(ctx context.Context, role string) ([]string, error)
	LoopPermission(ctx context.Context, role, loopName string) (Permission, error)
	IsDomainAdmin(ctx context.Context, user, domain string) (bool, error)
}

// KeysetStore reads and writes a domain's keyset layout, backing
// set_keyset_layout and get_keyset_layout.
type KeysetStore interface {
	GetKeysetLayout(ctx context.Context, domain string) (json.RawMessage, error)
	SetKeysetLayout(ctx context.Context, domain string, layout json.RawMessage) error
}

// UserDataStore reads and writes a user's opaque profile blob, backing
// set_user_data and get_user_data.
type UserDataStore interface {
	GetUserData(ctx context.Context, user string) (json.RawMessage, error)
	SetUserData(ctx context.Context, user string, data json.RawMessage) error
}

// ErrTooManyRecordingResults is reported distinctly from a generic
// processing error, per spec.md's "reports too-many-results distinctly."
var ErrTooManyRecordingResults = errors.New("vocsapi: recording query matched too many results")

// RecordingQuery is the filter accepted by get_recording.
type RecordingQuery struct {
	Loop string
	User string
	From *time.Time
	To   *time.Time
}

// RecordingStore answers recording queries, backing get_recording.
type RecordingStore interface {
	QueryRecordings(ctx context.Context, q RecordingQuery) ([]json.RawMessage, error)
}

// Transport lets the dispatcher deliver a message to a socket and close
// it outside of a Dispatch call. The dispatcher itself never holds a
// connection handle (Dispatch is transport-agnostic), but an async
// request's timeout fires on its own timer, independent of any inbound
// read — Transport is how that timeout reaches the wire per spec.md's
// "timeout causes an error reply and socket closure."
type Transport interface {
	Push(socket loop.SocketID, resp Response) error
	Close(socket loop.SocketID)
}
