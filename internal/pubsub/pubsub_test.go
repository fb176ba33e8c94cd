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

package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"github.com/USA-RedDragon/configulator"
	"github.com/google/go-cmp/cmp"
)

func makePubSub(t *testing.T) pubsub.PubSub {
	t.Helper()
	defConfig, err := configulator.New[config.Config]().Default()
	if err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
	ps, err := pubsub.MakePubSub(context.TODO(), &defConfig)
	if err != nil {
		t.Fatalf("Failed to create pubsub: %v", err)
	}
	return ps
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	ps := makePubSub(t)

	sub := ps.Subscribe("topic")
	if err := ps.Publish("topic", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if !cmp.Equal([]byte("hello"), msg) {
			t.Errorf("Message mismatch: %v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No message received")
	}
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	t.Parallel()
	ps := makePubSub(t)

	first := ps.Subscribe("topic")
	second := ps.Subscribe("topic")
	if err := ps.Publish("topic", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, sub := range []pubsub.Subscription{first, second} {
		select {
		case msg := <-sub.Channel():
			if string(msg) != "x" {
				t.Errorf("Subscriber %d mismatch: %v", i, msg)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Subscriber %d received nothing", i)
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	t.Parallel()
	ps := makePubSub(t)

	other := ps.Subscribe("other")
	if err := ps.Publish("topic", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-other.Channel():
		t.Errorf("Message leaked across topics: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionClose(t *testing.T) {
	t.Parallel()
	ps := makePubSub(t)

	sub := ps.Subscribe("topic")
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Publishing after close must not panic or block.
	if err := ps.Publish("topic", []byte("x")); err != nil {
		t.Fatalf("Publish after close failed: %v", err)
	}

	if _, ok := <-sub.Channel(); ok {
		t.Errorf("Channel still open after close")
	}
}
