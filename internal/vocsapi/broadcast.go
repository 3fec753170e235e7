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
	"encoding/json"

	"github.com/openvocs/ov-core/internal/pubsub"
)

// Topic name builders for the four broadcast namespaces named in the data
// model: per-role, per-loop, per-user, and a single system topic.
const systemTopic = "system"

func roleTopic(role string) string { return "role:" + role }
func loopTopic(name string) string { return "loop:" + name }
func userTopic(user string) string { return "user:" + user }

// BroadcastRegistry fans state-mutating events out to every socket
// subscribed to the relevant topic. It is a thin domain layer over
// pubsub.PubSub: the dispatcher never talks to PubSub directly, so the
// four topic namespaces stay centralised here and every call site gets
// the "best-effort, never rolls back the primary change" behaviour for
// free.
type BroadcastRegistry struct {
	ps pubsub.PubSub
}

// NewBroadcastRegistry wraps a PubSub implementation (in-memory or Redis,
// per deployment) as the dispatcher's broadcast fan-out.
func NewBroadcastRegistry(ps pubsub.PubSub) *BroadcastRegistry {
	return &BroadcastRegistry{ps: ps}
}

// PublishRole fans a message out to everyone subscribed to a role's
// broadcast topic (joined by authorize).
func (r *BroadcastRegistry) PublishRole(role string, payload any) error {
	return r.publish(roleTopic(role), payload)
}

// PublishLoop fans a message out to everyone subscribed to a loop's
// broadcast topic (joined by role_loops).
func (r *BroadcastRegistry) PublishLoop(loopName string, payload any) error {
	return r.publish(loopTopic(loopName), payload)
}

// PublishUser fans a message out to every connection of a given user
// (used by set_user_data).
func (r *BroadcastRegistry) PublishUser(user string, payload any) error {
	return r.publish(userTopic(user), payload)
}

// PublishSystem fans a message out to every socket that has registered.
func (r *BroadcastRegistry) PublishSystem(payload any) error {
	return r.publish(systemTopic, payload)
}

func (r *BroadcastRegistry) publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.ps.Publish(topic, body)
}

// SubscribeRole, SubscribeLoop, SubscribeUser, and SubscribeSystem hand
// back the raw PubSub subscription so a transport-layer connection
// goroutine can pump it onto the socket; the registry itself holds no
// per-socket state.
func (r *BroadcastRegistry) SubscribeRole(role string) pubsub.Subscription { return r.ps.Subscribe(roleTopic(role)) }
func (r *BroadcastRegistry) SubscribeLoop(loopName string) pubsub.Subscription {
	return r.ps.Subscribe(loopTopic(loopName))
}
func (r *BroadcastRegistry) SubscribeUser(user string) pubsub.Subscription {
	return r.ps.Subscribe(userTopic(user))
}
func (r *BroadcastRegistry) SubscribeSystem() pubsub.Subscription { return r.ps.Subscribe(systemTopic) }
