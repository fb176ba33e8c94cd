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

package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
)

func makeValidConfig() config.Config {
	return config.Config{
		LogLevel: config.LogLevelInfo,
		PVA: config.PVA{
			Bind:                         "[::]",
			Port:                         5075,
			ReceiveBufferSize:            105576,
			IntrospectionRegistryMaxSize: 512,
			HandshakeTimeout:             10 * time.Second,
			ChannelHistorySize:           100,
		},
		Beacon: config.Beacon{
			Bind:            "[::]",
			TargetAddress:   "255.255.255.255",
			TargetPort:      5076,
			InitialInterval: 15 * time.Second,
			InitialCount:    15,
			LongInterval:    60 * time.Second,
		},
		Client: config.Client{
			Bind:              "[::]",
			Port:              5076,
			ConnectTimeout:    5 * time.Second,
			ReceiveBufferSize: 105576,
		},
	}
}

func TestValidConfig(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("Expected nil error for valid config, got %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.LogLevel = "invalid"
	if !errors.Is(c.Validate(), config.ErrInvalidLogLevel) {
		t.Errorf("Expected ErrInvalidLogLevel, got %v", c.Validate())
	}
}

func TestPVAValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.PVA)
		want   error
	}{
		{"empty bind", func(p *config.PVA) { p.Bind = "" }, config.ErrInvalidPVABind},
		{"zero port", func(p *config.PVA) { p.Port = 0 }, config.ErrInvalidPVAPort},
		{"huge port", func(p *config.PVA) { p.Port = 70000 }, config.ErrInvalidPVAPort},
		{"zero buffer", func(p *config.PVA) { p.ReceiveBufferSize = 0 }, config.ErrInvalidReceiveBufferSize},
		{"zero history", func(p *config.PVA) { p.ChannelHistorySize = 0 }, config.ErrInvalidChannelHistorySize},
		{"zero timeout", func(p *config.PVA) { p.HandshakeTimeout = 0 }, config.ErrInvalidHandshakeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := makeValidConfig().PVA
			tt.mutate(&p)
			if !errors.Is(p.Validate(), tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, p.Validate())
			}
		})
	}
}

func TestBeaconValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Beacon)
		want   error
	}{
		{"empty bind", func(b *config.Beacon) { b.Bind = "" }, config.ErrInvalidBeaconBind},
		{"empty target", func(b *config.Beacon) { b.TargetAddress = "" }, config.ErrInvalidBeaconTarget},
		{"zero target port", func(b *config.Beacon) { b.TargetPort = 0 }, config.ErrInvalidBeaconTarget},
		{"zero initial interval", func(b *config.Beacon) { b.InitialInterval = 0 }, config.ErrInvalidBeaconInterval},
		{"zero long interval", func(b *config.Beacon) { b.LongInterval = 0 }, config.ErrInvalidBeaconInterval},
		{"zero count", func(b *config.Beacon) { b.InitialCount = 0 }, config.ErrInvalidBeaconCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := makeValidConfig().Beacon
			tt.mutate(&b)
			if !errors.Is(b.Validate(), tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, b.Validate())
			}
		})
	}
}

func TestClientValidate(t *testing.T) {
	t.Parallel()
	c := makeValidConfig().Client
	c.Port = -1
	if !errors.Is(c.Validate(), config.ErrInvalidClientPort) {
		t.Errorf("Expected ErrInvalidClientPort, got %v", c.Validate())
	}

	c = makeValidConfig().Client
	c.ConnectTimeout = 0
	if !errors.Is(c.Validate(), config.ErrInvalidConnectTimeout) {
		t.Errorf("Expected ErrInvalidConnectTimeout, got %v", c.Validate())
	}
}

func TestRedisValidate(t *testing.T) {
	t.Parallel()
	r := config.Redis{Enabled: false}
	if err := r.Validate(); err != nil {
		t.Errorf("Expected nil error for disabled Redis, got %v", err)
	}

	r = config.Redis{Enabled: true, Host: "", Port: 6379}
	if !errors.Is(r.Validate(), config.ErrInvalidRedisHost) {
		t.Errorf("Expected ErrInvalidRedisHost, got %v", r.Validate())
	}

	r = config.Redis{Enabled: true, Host: "localhost", Port: 0}
	if !errors.Is(r.Validate(), config.ErrInvalidRedisPort) {
		t.Errorf("Expected ErrInvalidRedisPort, got %v", r.Validate())
	}
}

func TestMetricsValidate(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: true, Bind: "", Port: 3006}
	if !errors.Is(m.Validate(), config.ErrInvalidMetricsBindAddress) {
		t.Errorf("Expected ErrInvalidMetricsBindAddress, got %v", m.Validate())
	}

	m = config.Metrics{Enabled: true, Bind: "127.0.0.1", Port: 0}
	if !errors.Is(m.Validate(), config.ErrInvalidMetricsPort) {
		t.Errorf("Expected ErrInvalidMetricsPort, got %v", m.Validate())
	}
}

func TestHTTPValidate(t *testing.T) {
	t.Parallel()
	h := config.HTTP{Enabled: true, Bind: "", Port: 3005}
	if !errors.Is(h.Validate(), config.ErrInvalidHTTPHost) {
		t.Errorf("Expected ErrInvalidHTTPHost, got %v", h.Validate())
	}
}
