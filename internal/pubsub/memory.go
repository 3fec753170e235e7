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

package pubsub

import (
	"sync"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/puzpuzpuz/xsync/v4"
)

func makeInMemoryPubSub(_ *config.Config) (PubSub, error) {
	return &inMemoryPubSub{
		topics: xsync.NewMap[string, *subscriberSet](),
	}, nil
}

type subscriberSet struct {
	mu   sync.Mutex
	subs map[*inMemorySubscription]struct{}
}

type inMemoryPubSub struct {
	topics *xsync.Map[string, *subscriberSet]
}

func (ps *inMemoryPubSub) Publish(topic string, message []byte) error {
	set, ok := ps.topics.Load(topic)
	if !ok {
		return nil
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for sub := range set.subs {
		select {
		case sub.ch <- message:
		default:
			go func(s *inMemorySubscription) { s.ch <- message }(sub)
		}
	}
	return nil
}

func (ps *inMemoryPubSub) Subscribe(topic string) Subscription {
	set, _ := ps.topics.LoadOrStore(topic, &subscriberSet{subs: make(map[*inMemorySubscription]struct{})})
	sub := &inMemorySubscription{
		ch:    make(chan []byte, 16),
		topic: topic,
		set:   set,
	}
	set.mu.Lock()
	set.subs[sub] = struct{}{}
	set.mu.Unlock()
	return sub
}

func (ps *inMemoryPubSub) Close() error {
	return nil
}

type inMemorySubscription struct {
	ch     chan []byte
	topic  string
	set    *subscriberSet
	closed sync.Once
}

func (s *inMemorySubscription) Close() error {
	s.closed.Do(func() {
		s.set.mu.Lock()
		delete(s.set.subs, s)
		s.set.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
