// SPDX-License-Identifier: AGPL-3.0-or-later
// PVHub - Run an EPICS pvAccess network in a single binary
// Copyright (C) 2024-2026 Jacob McSwain
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
// The source code is available at <https://github.com/USA-RedDragon/PVHub>

package pubsub

import (
	"sync"

	"github.com/USA-RedDragon/PVHub/internal/config"
)

const subscriptionBuffer = 100

func makeInMemoryPubSub(_ *config.Config) (PubSub, error) {
	return &inMemoryPubSub{
		topics: make(map[string]map[*inMemorySubscription]struct{}),
	}, nil
}

type inMemoryPubSub struct {
	mu     sync.RWMutex
	topics map[string]map[*inMemorySubscription]struct{}
	closed bool
}

func (ps *inMemoryPubSub) Publish(topic string, message []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for sub := range ps.topics[topic] {
		// A subscriber whose buffer is full does not receive this
		// message; the publisher never blocks on it.
		select {
		case sub.ch <- message:
		default:
		}
	}
	return nil
}

func (ps *inMemoryPubSub) Subscribe(topic string) Subscription {
	sub := &inMemorySubscription{
		ch:    make(chan []byte, subscriptionBuffer),
		ps:    ps,
		topic: topic,
	}
	ps.mu.Lock()
	if ps.topics[topic] == nil {
		ps.topics[topic] = make(map[*inMemorySubscription]struct{})
	}
	ps.topics[topic][sub] = struct{}{}
	ps.mu.Unlock()
	return sub
}

func (ps *inMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	ps.closed = true
	for _, subs := range ps.topics {
		for sub := range subs {
			close(sub.ch)
		}
	}
	ps.topics = make(map[string]map[*inMemorySubscription]struct{})
	return nil
}

type inMemorySubscription struct {
	ch    chan []byte
	ps    *inMemoryPubSub
	topic string
	once  sync.Once
}

func (s *inMemorySubscription) Close() error {
	s.once.Do(func() {
		s.ps.mu.Lock()
		if subs, ok := s.ps.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.ps.topics, s.topic)
			}
			close(s.ch)
		}
		s.ps.mu.Unlock()
	})
	return nil
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
