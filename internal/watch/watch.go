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

// Package watch provides a single-slot state broadcast: one writer, many
// readers. Readers never block the writer; a slow reader observes only the
// most recent value and may miss intermediates.
package watch

import (
	"context"
	"sync"
)

// Source holds the current value and notifies watchers on change.
type Source[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	changed chan struct{}
}

// NewSource creates a Source with an initial value. The initial value does
// not count as a change.
func NewSource[T any](initial T) *Source[T] {
	return &Source[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Set replaces the slot and wakes all watchers.
func (s *Source[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Borrow returns a snapshot of the current value.
func (s *Source[T]) Borrow() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Watch creates a watcher that considers the current value already seen.
func (s *Source[T]) Watch() *Watcher[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Watcher[T]{source: s, seen: s.version}
}

// Watcher observes a Source. Each Watcher tracks its own last-seen version.
type Watcher[T any] struct {
	source *Source[T]
	seen   uint64
}

// Borrow returns a snapshot of the current value without marking it seen.
func (w *Watcher[T]) Borrow() T {
	return w.source.Borrow()
}

// Changed blocks until the slot differs from the watcher's last-seen value,
// then marks it seen. Returns the context error on cancellation.
func (w *Watcher[T]) Changed(ctx context.Context) error {
	for {
		w.source.mu.Lock()
		if w.source.version != w.seen {
			w.seen = w.source.version
			w.source.mu.Unlock()
			return nil
		}
		ch := w.source.changed
		w.source.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
