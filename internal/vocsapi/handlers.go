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
)

func unmarshalParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func slicesContain(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

type authorizeParams struct {
	User string `json:"user"`
	Role string `json:"role"`
}

func handleAuthorize(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	var p authorizeParams
	if !unmarshalParams(evt.Parameter, &p) || p.User == "" || p.Role == "" {
		return nil, newError(CodeAuth)
	}
	if d.permissions == nil {
		return nil, newError(CodeAuth)
	}
	roles, err := d.permissions.UserRoles(ctx, p.User)
	if err != nil || !slicesContain(roles, p.Role) {
		return nil, newError(CodeAuth)
	}

	session.SetUser(p.User)
	session.SetRole(p.Role)

	if d.broadcast != nil {
		_ = d.broadcast.PublishRole(p.Role, Response{
			Event:    "authorize",
			Response: map[string]string{"user": p.User, "role": p.Role},
		})
	}
	return map[string]string{"user": p.User, "role": p.Role}, nil
}

type getParams struct {
	Type string `json:"type"`
}

func handleGet(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() {
		return nil, newError(CodeParameterError)
	}
	var p getParams
	if !unmarshalParams(evt.Parameter, &p) {
		return nil, newError(CodeParameterError)
	}
	if p.Type != "user" {
		return nil, newError(CodeNotImplemented)
	}
	if d.permissions == nil {
		return nil, newError(CodeParameterError)
	}
	domain, entity, err := d.permissions.GetUserEntity(ctx, session.User)
	if err != nil {
		return nil, newError(CodeParameterError)
	}
	return map[string]any{"domain": domain, "entity": entity}, nil
}

func handleUserRoles(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() {
		return nil, newError(CodeAuth)
	}
	if d.permissions == nil {
		return nil, newError(CodeAuth)
	}
	roles, err := d.permissions.UserRoles(ctx, session.User)
	if err != nil {
		return nil, newError(CodeAuth)
	}
	return map[string]any{"roles": roles}, nil
}

type loopInfo struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
}

func handleRoleLoops(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() || !session.Authorized() {
		return nil, newError(CodeAuth)
	}
	if d.permissions == nil {
		return nil, newError(CodeAuth)
	}
	names, err := d.permissions.RoleLoops(ctx, session.Role)
	if err != nil {
		return nil, newError(CodeAuth)
	}

	infos := make([]loopInfo, 0, len(names))
	for _, name := range names {
		perm, err := d.permissions.LoopPermission(ctx, session.Role, name)
		if err != nil {
			continue
		}
		session.SetLoopPermission(name, perm)
		infos = append(infos, loopInfo{Name: name, Permission: perm.String()})
		if d.broadcast != nil {
			_ = d.broadcast.SubscribeLoop(name)
		}
	}
	return map[string]any{"loops": infos}, nil
}

type switchLoopStateParams struct {
	Loop  string `json:"loop"`
	State string `json:"state"`
}

func handleSwitchLoopState(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() || !session.Authorized() {
		return nil, newError(CodeAuth)
	}
	if !session.Ready() {
		return nil, newError(CodeSessionUnknown)
	}

	var p switchLoopStateParams
	if !unmarshalParams(evt.Parameter, &p) || p.Loop == "" {
		return nil, newError(CodeParameterError)
	}
	requested, ok := ParsePermission(p.State)
	if !ok {
		return nil, newError(CodeParameterError)
	}

	held := session.PermissionFor(p.Loop)
	if !Granted(held, requested) {
		return nil, newError(CodeAuthPermission)
	}

	current := session.CurrentLoopState(p.Loop)
	if current == requested {
		var participants []loopParticipant
		if d.loops != nil {
			if l, ok := d.loops.Lookup(p.Loop); ok {
				for _, part := range l.Participants() {
					participants = append(participants, loopParticipant{Client: part.Client, User: part.User, Role: part.Role})
				}
			}
		}
		return map[string]any{"loop": p.Loop, "state": current.String(), "participants": participants}, nil
	}

	if d.media == nil {
		return nil, newError(CodeProcessingError)
	}
	id := d.RegisterAsync(session.Socket, p, nil)
	if err := d.media.RequestLoopStateSwitch(ctx, id, session.Socket, session.SessionID, p.Loop, requested); err != nil {
		d.async.Resolve(id)
		return nil, newError(CodeProcessingError)
	}
	session.SetCurrentLoopState(p.Loop, requested)
	return map[string]any{"uuid": id.String(), "pending": true}, nil
}

type loopParticipant struct {
	Client string `json:"client"`
	User   string `json:"user"`
	Role   string `json:"role"`
}

type switchLoopVolumeParams struct {
	Loop   string `json:"loop"`
	Volume int    `json:"volume"`
}

func handleSwitchLoopVolume(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Ready() {
		return nil, newError(CodeSessionUnknown)
	}
	var p switchLoopVolumeParams
	if !unmarshalParams(evt.Parameter, &p) || p.Loop == "" || p.Volume < 0 || p.Volume > 100 {
		return nil, newError(CodeParameterError)
	}
	if d.media == nil {
		return nil, newError(CodeParameterError)
	}
	id := d.RegisterAsync(session.Socket, p, nil)
	if err := d.media.RequestLoopVolumeSwitch(ctx, id, session.Socket, session.SessionID, p.Loop, p.Volume); err != nil {
		d.async.Resolve(id)
		return nil, newError(CodeParameterError)
	}
	return map[string]any{"uuid": id.String(), "pending": true}, nil
}

type talkingParams struct {
	Loop  string `json:"loop"`
	State bool   `json:"state"`
}

func handleTalking(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	var p talkingParams
	if !unmarshalParams(evt.Parameter, &p) || p.Loop == "" {
		return nil, newError(CodeAuthPermission)
	}
	if !Granted(session.PermissionFor(p.Loop), PermissionSend) {
		return nil, newError(CodeAuthPermission)
	}

	if d.media != nil {
		_ = d.media.SetTalking(ctx, p.Loop, session.Socket, p.State)
	}
	if d.broadcast != nil {
		_ = d.broadcast.PublishLoop(p.Loop, Response{
			Event:    "talking",
			Response: map[string]any{"loop": p.Loop, "user": session.User, "state": p.State},
		})
	}
	return map[string]any{"loop": p.Loop, "state": p.State}, nil
}

func handleMedia(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Ready() {
		return nil, newError(CodeSessionUnknown)
	}
	if d.media == nil {
		return nil, newError(CodeProcessingError)
	}
	id := d.RegisterAsync(session.Socket, evt.Parameter, nil)
	if err := d.media.RequestMedia(ctx, id, session.Socket, session.SessionID, evt.Parameter); err != nil {
		d.async.Resolve(id)
		return nil, newError(CodeProcessingError)
	}
	return map[string]any{"uuid": id.String(), "pending": true}, nil
}

func handleCandidate(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Ready() {
		return nil, newError(CodeSessionUnknown)
	}
	if d.media == nil {
		return nil, newError(CodeProcessingError)
	}
	id := d.RegisterAsync(session.Socket, evt.Parameter, nil)
	if err := d.media.RequestCandidate(ctx, id, session.Socket, session.SessionID, evt.Parameter); err != nil {
		d.async.Resolve(id)
		return nil, newError(CodeProcessingError)
	}
	return map[string]any{"uuid": id.String(), "pending": true}, nil
}

func handleEndOfCandidates(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Ready() {
		return nil, newError(CodeSessionUnknown)
	}
	if d.media == nil {
		return nil, newError(CodeProcessingError)
	}
	id := d.RegisterAsync(session.Socket, evt.Parameter, nil)
	if err := d.media.RequestEndOfCandidates(ctx, id, session.Socket, session.SessionID); err != nil {
		d.async.Resolve(id)
		return nil, newError(CodeProcessingError)
	}
	return map[string]any{"uuid": id.String(), "pending": true}, nil
}

// sipHandler builds a HandlerFunc that forwards to the named SIP gateway
// operation, sharing the "register UUID, forward, await async reply"
// shape across all eight call-related events.
func sipHandler(op string) HandlerFunc {
	return func(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
		if !session.Authorized() {
			return nil, newError(CodeAuth)
		}
		if d.sip == nil {
			return nil, newError(CodeProcessingError)
		}

		id := d.RegisterAsync(session.Socket, evt.Parameter, nil)
		var err error
		switch op {
		case "call":
			err = d.sip.RequestCall(ctx, id, session.Socket, evt.Parameter)
		case "hangup":
			err = d.sip.RequestHangup(ctx, id, session.Socket, evt.Parameter)
		case "permit_call":
			err = d.sip.RequestPermitCall(ctx, id, session.Socket, evt.Parameter)
		case "revoke_call":
			err = d.sip.RequestRevokeCall(ctx, id, session.Socket, evt.Parameter)
		case "list_calls":
			err = d.sip.RequestListCalls(ctx, id, session.Socket, evt.Parameter)
		case "list_call_permissions":
			err = d.sip.RequestListCallPermissions(ctx, id, session.Socket, evt.Parameter)
		case "list_sip_status":
			err = d.sip.RequestListSIPStatus(ctx, id, session.Socket, evt.Parameter)
		case "sip":
			err = d.sip.RequestSIP(ctx, id, session.Socket, evt.Parameter)
		}
		if err != nil {
			d.async.Resolve(id)
			return nil, newError(CodeProcessingError)
		}
		return map[string]any{"uuid": id.String(), "pending": true}, nil
	}
}

type keysetParams struct {
	Domain string          `json:"domain"`
	Layout json.RawMessage `json:"layout,omitempty"`
}

func handleGetKeysetLayout(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	var p keysetParams
	if !unmarshalParams(evt.Parameter, &p) || p.Domain == "" {
		return nil, newError(CodeParameterError)
	}
	if d.keysets == nil {
		return nil, newError(CodeParameterError)
	}
	layout, err := d.keysets.GetKeysetLayout(ctx, p.Domain)
	if err != nil {
		return nil, newError(CodeParameterError)
	}
	return map[string]any{"domain": p.Domain, "layout": layout}, nil
}

func handleSetKeysetLayout(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	var p keysetParams
	if !unmarshalParams(evt.Parameter, &p) || p.Domain == "" || len(p.Layout) == 0 {
		return nil, newError(CodeParameterError)
	}
	if !session.Authenticated() || d.permissions == nil {
		return nil, newError(CodeAuth)
	}
	isAdmin, err := d.permissions.IsDomainAdmin(ctx, session.User, p.Domain)
	if err != nil || !isAdmin {
		return nil, newError(CodeAuth)
	}
	if d.keysets == nil {
		return nil, newError(CodeParameterError)
	}
	if err := d.keysets.SetKeysetLayout(ctx, p.Domain, p.Layout); err != nil {
		return nil, newError(CodeParameterError)
	}
	return map[string]any{"domain": p.Domain}, nil
}

type userDataParams struct {
	Data json.RawMessage `json:"data,omitempty"`
}

func handleGetUserData(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() {
		return nil, newError(CodeAuth)
	}
	if d.userData == nil {
		return nil, newError(CodeProcessingError)
	}
	data, err := d.userData.GetUserData(ctx, session.User)
	if err != nil {
		return nil, newError(CodeProcessingError)
	}
	return map[string]any{"data": data}, nil
}

func handleSetUserData(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() {
		return nil, newError(CodeAuth)
	}
	var p userDataParams
	if !unmarshalParams(evt.Parameter, &p) || len(p.Data) == 0 {
		return nil, newError(CodeProcessingError)
	}
	if d.userData == nil {
		return nil, newError(CodeProcessingError)
	}
	if err := d.userData.SetUserData(ctx, session.User, p.Data); err != nil {
		return nil, newError(CodeProcessingError)
	}
	if d.broadcast != nil {
		_ = d.broadcast.PublishUser(session.User, Response{
			Event:    "user_data",
			Response: map[string]any{"user": session.User, "data": p.Data},
		})
	}
	return map[string]any{"user": session.User}, nil
}

type recordingParams struct {
	Loop string     `json:"loop,omitempty"`
	User string     `json:"user,omitempty"`
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func handleGetRecording(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if !session.Authenticated() {
		return nil, newError(CodeProcessingError)
	}
	var p recordingParams
	if len(evt.Parameter) > 0 && !unmarshalParams(evt.Parameter, &p) {
		return nil, newError(CodeProcessingError)
	}
	if d.recordings == nil {
		return nil, newError(CodeProcessingError)
	}
	results, err := d.recordings.QueryRecordings(ctx, RecordingQuery{Loop: p.Loop, User: p.User, From: p.From, To: p.To})
	if err != nil {
		e := newError(CodeProcessingError)
		if errors.Is(err, ErrTooManyRecordingResults) {
			e.Description = ErrTooManyRecordingResults.Error()
		}
		return nil, e
	}
	return map[string]any{"recordings": results}, nil
}

func handleRegister(ctx context.Context, d *Dispatcher, session *ClientSession, evt Event) (any, *Error) {
	if d.broadcast != nil {
		_ = d.broadcast.SubscribeSystem()
	}
	return map[string]any{"registered": true}, nil
}
