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

package kv

import (
	"context"
	"path"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/puzpuzpuz/xsync/v4"
)

func makeInMemoryKV(_ *config.Config) (KV, error) {
	return &inMemoryKV{
		kv: xsync.NewMap[string, kvValue](),
	}, nil
}

type kvValue struct {
	value []byte
	// ttl is zero for keys that do not expire.
	ttl time.Time
}

func (v kvValue) expired() bool {
	return !v.ttl.IsZero() && v.ttl.Before(time.Now())
}

type inMemoryKV struct {
	kv *xsync.Map[string, kvValue]
}

func (kv *inMemoryKV) Has(_ context.Context, key string) (bool, error) {
	obj, ok := kv.kv.Load(key)
	if !ok {
		return false, nil
	}
	if obj.expired() {
		kv.kv.Delete(key)
		return false, nil
	}
	return true, nil
}

func (kv *inMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	obj, ok := kv.kv.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	if obj.expired() {
		kv.kv.Delete(key)
		return nil, ErrNotFound
	}
	return obj.value, nil
}

func (kv *inMemoryKV) Set(_ context.Context, key string, value []byte) error {
	kv.kv.Store(key, kvValue{value: value})
	return nil
}

func (kv *inMemoryKV) Delete(_ context.Context, key string) error {
	kv.kv.Delete(key)
	return nil
}

func (kv *inMemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	obj, ok := kv.kv.Load(key)
	if !ok {
		return ErrNotFound
	}
	if ttl <= 0 {
		kv.kv.Delete(key)
		return nil
	}
	obj.ttl = time.Now().Add(ttl)
	kv.kv.Store(key, obj)
	return nil
}

func (kv *inMemoryKV) Scan(_ context.Context, _ uint64, match string, _ int64) ([]string, uint64, error) {
	keys := make([]string, 0)
	kv.kv.Range(func(key string, obj kvValue) bool {
		if obj.expired() {
			kv.kv.Delete(key)
			return true
		}
		if match == "" {
			keys = append(keys, key)
			return true
		}
		if ok, err := path.Match(match, key); err == nil && ok {
			keys = append(keys, key)
		}
		return true
	})
	return keys, 0, nil
}

func (kv *inMemoryKV) SweepExpired(_ context.Context) (int, error) {
	removed := 0
	kv.kv.Range(func(key string, obj kvValue) bool {
		if obj.expired() {
			kv.kv.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

func (kv *inMemoryKV) Close() error {
	return nil
}
