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

package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/puzpuzpuz/xsync/v4"
)

func makeInMemoryKV(_ context.Context, _ *config.Config) (KV, error) {
	return inMemoryKV{
		kv: xsync.NewMap[string, *kvValue](),
	}, nil
}

type kvValue struct {
	values [][]byte
	ttl    time.Time
}

func (v *kvValue) expired() bool {
	return !v.ttl.IsZero() && v.ttl.Before(time.Now())
}

type inMemoryKV struct {
	kv *xsync.Map[string, *kvValue]
}

func (kv inMemoryKV) Has(_ context.Context, key string) (bool, error) {
	value, ok := kv.kv.Load(key)
	if !ok {
		return false, nil
	}
	if value.expired() {
		kv.kv.Delete(key)
		return false, nil
	}
	return true, nil
}

func (kv inMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := kv.kv.Load(key)
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	if value.expired() {
		kv.kv.Delete(key)
		return nil, fmt.Errorf("key %s has expired", key)
	}
	if len(value.values) == 0 {
		return nil, fmt.Errorf("key %s has no values", key)
	}
	return value.values[0], nil
}

func (kv inMemoryKV) Set(_ context.Context, key string, value []byte) error {
	kv.kv.Store(key, &kvValue{values: [][]byte{value}})
	return nil
}

func (kv inMemoryKV) Delete(_ context.Context, key string) error {
	kv.kv.Delete(key)
	return nil
}

func (kv inMemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	value, ok := kv.kv.Load(key)
	if !ok {
		return fmt.Errorf("key %s not found", key)
	}
	if ttl <= 0 {
		kv.kv.Delete(key)
		return nil
	}
	kv.kv.Store(key, &kvValue{values: value.values, ttl: time.Now().Add(ttl)})
	return nil
}

func (kv inMemoryKV) Scan(_ context.Context, _ uint64, match string, count int64) ([]string, uint64, error) {
	keys := make([]string, 0)
	kv.kv.Range(func(key string, value *kvValue) bool {
		if value.expired() {
			kv.kv.Delete(key)
			return true
		}
		if match == "" || match == key {
			keys = append(keys, key)
		}
		return count <= 0 || int64(len(keys)) < count
	})
	return keys, 0, nil
}

func (kv inMemoryKV) RPush(_ context.Context, key string, value []byte) (int64, error) {
	existing, _ := kv.kv.Load(key)
	var values [][]byte
	var ttl time.Time
	if existing != nil && !existing.expired() {
		values = existing.values
		ttl = existing.ttl
	}
	values = append(values, value)
	kv.kv.Store(key, &kvValue{values: values, ttl: ttl})
	return int64(len(values)), nil
}

func (kv inMemoryKV) LDrain(_ context.Context, key string) ([][]byte, error) {
	value, loaded := kv.kv.LoadAndDelete(key)
	if !loaded || value.expired() {
		return nil, nil
	}
	return value.values, nil
}

func (kv inMemoryKV) Close() error {
	return nil
}
