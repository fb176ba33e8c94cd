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

// Package hub holds the process-wide channel registry. The session engine
// resolves channel commands against it and the beacon emitter reads its
// change counter, so all mutations happen in short critical sections.
package hub

import (
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/models"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"github.com/puzpuzpuz/xsync/v4"
)

// MonitorTopic is the pubsub topic carrying value updates for a channel.
func MonitorTopic(channel string) string {
	return "pvhub:monitor:" + channel
}

// EventsTopic carries admin events (session lifecycle) for the websocket
// surface. Channel creation and destruction publish no event.
const EventsTopic = "pvhub:events"

// Registry is the process-wide map of channel name to state.
type Registry struct {
	channels *xsync.Map[string, *Channel]
	byID     *xsync.Map[uint32, *Channel]

	nextID      atomic.Uint32
	changeCount atomic.Uint32

	pubsub  pubsub.PubSub
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(ps pubsub.PubSub, m *metrics.Metrics) *Registry {
	return &Registry{
		channels: xsync.NewMap[string, *Channel](),
		byID:     xsync.NewMap[uint32, *Channel](),
		pubsub:   ps,
		metrics:  m,
	}
}

// GetOrCreate resolves a channel by name, allocating it with the given
// history capacity when absent. Creation increments the change counter.
func (r *Registry) GetOrCreate(name string, capacity int) *Channel {
	created := false
	ch, _ := r.channels.LoadOrCompute(name, func() (*Channel, bool) {
		created = true
		return &Channel{
			name:        name,
			id:          r.nextID.Add(1),
			capacity:    capacity,
			subscribers: make(map[string]struct{}),
			registry:    r,
		}, false
	})
	if created {
		r.byID.Store(ch.id, ch)
		r.changeCount.Add(1)
		if r.metrics != nil {
			r.metrics.SetChannelsActive(float64(r.channels.Size()))
		}
		slog.Debug("Channel created", "channel", name, "id", ch.id)
	}
	return ch
}

// Lookup resolves a channel by name.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	return r.channels.Load(name)
}

// LookupID resolves a channel by its server channel id.
func (r *Registry) LookupID(id uint32) (*Channel, bool) {
	return r.byID.Load(id)
}

// Destroy removes a channel. Removal increments the change counter.
func (r *Registry) Destroy(name string) bool {
	ch, ok := r.channels.LoadAndDelete(name)
	if !ok {
		return false
	}
	r.byID.Delete(ch.id)
	r.changeCount.Add(1)
	if r.metrics != nil {
		r.metrics.SetChannelsActive(float64(r.channels.Size()))
	}
	slog.Debug("Channel destroyed", "channel", name, "id", ch.id)
	return true
}

// List returns a snapshot of all channels.
func (r *Registry) List() []*Channel {
	out := make([]*Channel, 0, r.channels.Size())
	r.channels.Range(func(_ string, ch *Channel) bool {
		out = append(out, ch)
		return true
	})
	return out
}

// ChangeCount returns the inventory change counter, truncated to the
// beacon's 16-bit field. The beacon emitter reads it at send time.
func (r *Registry) ChangeCount() uint16 {
	return uint16(r.changeCount.Load())
}

// PublishEvent emits an admin event on the events topic.
func (r *Registry) PublishEvent(event []byte) {
	if err := r.pubsub.Publish(EventsTopic, event); err != nil {
		slog.Warn("Failed to publish admin event", "error", err)
	}
}

// Subscribe opens a subscription for a channel's monitor updates.
func (r *Registry) Subscribe(channel string) pubsub.Subscription {
	return r.pubsub.Subscribe(MonitorTopic(channel))
}

// Channel is the per-name state: a schema, a bounded value history, and
// the set of subscribed session addresses.
type Channel struct {
	name string
	id   uint32

	mu          sync.Mutex
	schema      messages.FieldDesc
	capacity    int
	history     [][]byte
	subscribers map[string]struct{}
	lastUpdate  time.Time

	registry *Registry
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// ID returns the opaque server channel id.
func (c *Channel) ID() uint32 {
	return c.id
}

// Schema returns the channel's introspection descriptor.
func (c *Channel) Schema() messages.FieldDesc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schema
}

// SetSchema replaces the channel's introspection descriptor.
func (c *Channel) SetSchema(schema messages.FieldDesc) {
	c.mu.Lock()
	c.schema = schema
	c.mu.Unlock()
}

// Push appends a value to the history, evicting the oldest entry at
// capacity, and fans the value out to monitor subscribers as a RawFrame
// carrying the originating peer address.
func (c *Channel) Push(value []byte, origin string) {
	c.mu.Lock()
	if c.capacity > 0 && len(c.history) >= c.capacity {
		c.history = c.history[1:]
	}
	c.history = append(c.history, value)
	c.lastUpdate = time.Now()
	c.mu.Unlock()

	frame := models.RawFrame{Data: value}
	if host, portStr, err := net.SplitHostPort(origin); err == nil {
		frame.RemoteIP = host
		if port, err := strconv.Atoi(portStr); err == nil {
			frame.RemotePort = port
		}
	}
	raw, err := frame.MarshalMsg(nil)
	if err != nil {
		slog.Error("Failed to marshal monitor update", "channel", c.name, "error", err)
		return
	}

	if err := c.registry.pubsub.Publish(MonitorTopic(c.name), raw); err != nil {
		slog.Warn("Failed to publish monitor update", "channel", c.name, "error", err)
	}
	if c.registry.metrics != nil {
		c.registry.metrics.IncrementMonitorUpdates()
	}
}

// Latest returns the most recent value.
func (c *Channel) Latest() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return nil, false
	}
	return c.history[len(c.history)-1], true
}

// History returns a copy of the retained values, oldest first.
func (c *Channel) History() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.history))
	copy(out, c.history)
	return out
}

// Subscribe records a session address as a monitor subscriber.
func (c *Channel) Subscribe(addr string) {
	c.mu.Lock()
	c.subscribers[addr] = struct{}{}
	c.mu.Unlock()
}

// Unsubscribe removes a session address from the subscriber set.
func (c *Channel) Unsubscribe(addr string) {
	c.mu.Lock()
	delete(c.subscribers, addr)
	c.mu.Unlock()
}

// Subscribers returns a snapshot of the subscriber addresses.
func (c *Channel) Subscribers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subscribers))
	for addr := range c.subscribers {
		out = append(out, addr)
	}
	return out
}

// LastUpdate returns the time of the most recent push.
func (c *Channel) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}
