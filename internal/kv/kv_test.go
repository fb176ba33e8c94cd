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

package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/kv"
	"github.com/USA-RedDragon/configulator"
	"github.com/google/go-cmp/cmp"
)

func makeKV(t *testing.T) kv.KV {
	t.Helper()
	defConfig, err := configulator.New[config.Config]().Default()
	if err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
	store, err := kv.MakeKV(context.TODO(), &defConfig)
	if err != nil {
		t.Fatalf("Failed to create key-value store: %v", err)
	}
	return store
}

func TestSetGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.TODO()
	store := makeKV(t)

	if err := store.Set(ctx, "pvhub:value:temperature", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	has, err := store.Has(ctx, "pvhub:value:temperature")
	if err != nil || !has {
		t.Errorf("Has failed: %v %v", has, err)
	}

	value, err := store.Get(ctx, "pvhub:value:temperature")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !cmp.Equal([]byte{1, 2, 3}, value) {
		t.Errorf("Get mismatch: %v", value)
	}

	if err := store.Delete(ctx, "pvhub:value:temperature"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "pvhub:value:temperature"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestExpire(t *testing.T) {
	t.Parallel()
	ctx := context.TODO()
	store := makeKV(t)

	if err := store.Set(ctx, "presence", []byte("up")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Expire(ctx, "presence", time.Millisecond); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := store.Get(ctx, "presence"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after TTL, got %v", err)
	}

	if err := store.Expire(ctx, "missing", time.Second); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}
}

func TestScan(t *testing.T) {
	t.Parallel()
	ctx := context.TODO()
	store := makeKV(t)

	if err := store.Set(ctx, "pvhub:value:a", []byte{1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "pvhub:value:b", []byte{2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "other", []byte{3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	keys, _, err := store.Scan(ctx, 0, "pvhub:value:*", 100)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	slices.Sort(keys)
	if !cmp.Equal([]string{"pvhub:value:a", "pvhub:value:b"}, keys) {
		t.Errorf("Scan mismatch: %v", keys)
	}
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()
	ctx := context.TODO()
	store := makeKV(t)

	if err := store.Set(ctx, "stale", []byte{1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Expire(ctx, "stale", time.Millisecond); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if err := store.Set(ctx, "fresh", []byte{2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed key, got %d", removed)
	}
	if has, _ := store.Has(ctx, "fresh"); !has {
		t.Errorf("Fresh key swept")
	}
}
