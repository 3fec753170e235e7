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
	"fmt"

	"github.com/openvocs/ov-core/internal/kv"
)

// ErrNotFound is returned by the KV-backed stores when a key has never
// been written.
var ErrNotFound = errors.New("vocsapi: key not found")

const (
	keysetKeyPrefix   = "keyset:"
	userDataKeyPrefix = "userdata:"
)

// KVKeysetStore persists keyset layouts in a generic key-value store,
// grounded on the teacher's kv.KV interface: one small typed wrapper per
// use of the generic store rather than a bespoke storage layer.
type KVKeysetStore struct {
	kv kv.KV
}

// NewKVKeysetStore wraps a KV client as a KeysetStore.
func NewKVKeysetStore(store kv.KV) *KVKeysetStore {
	return &KVKeysetStore{kv: store}
}

// GetKeysetLayout returns the stored layout for a domain.
func (s *KVKeysetStore) GetKeysetLayout(ctx context.Context, domain string) (json.RawMessage, error) {
	key := keysetKeyPrefix + domain
	has, err := s.kv.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check keyset layout: %w", err)
	}
	if !has {
		return nil, ErrNotFound
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyset layout: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SetKeysetLayout stores the layout for a domain.
func (s *KVKeysetStore) SetKeysetLayout(ctx context.Context, domain string, layout json.RawMessage) error {
	if err := s.kv.Set(ctx, keysetKeyPrefix+domain, layout); err != nil {
		return fmt.Errorf("failed to set keyset layout: %w", err)
	}
	return nil
}

// KVUserDataStore persists per-user opaque profile blobs in a generic
// key-value store.
type KVUserDataStore struct {
	kv kv.KV
}

// NewKVUserDataStore wraps a KV client as a UserDataStore.
func NewKVUserDataStore(store kv.KV) *KVUserDataStore {
	return &KVUserDataStore{kv: store}
}

// GetUserData returns the stored profile blob for a user.
func (s *KVUserDataStore) GetUserData(ctx context.Context, user string) (json.RawMessage, error) {
	key := userDataKeyPrefix + user
	has, err := s.kv.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check user data: %w", err)
	}
	if !has {
		return nil, ErrNotFound
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get user data: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SetUserData stores the profile blob for a user.
func (s *KVUserDataStore) SetUserData(ctx context.Context, user string, data json.RawMessage) error {
	if err := s.kv.Set(ctx, userDataKeyPrefix+user, data); err != nil {
		return fmt.Errorf("failed to set user data: %w", err)
	}
	return nil
}
