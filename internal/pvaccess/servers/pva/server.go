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

package pva

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/kv"
	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/hub"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel"
)

var (
	ErrOpenSocket   = errors.New("error opening socket")
	ErrSocketBuffer = errors.New("error setting socket buffer size")
)

const bufferSize = 1000000 // 1MB

// Server is the pvAccess server: a TCP session engine plus a UDP beacon
// emitter, sharing one channel registry.
type Server struct {
	config   *config.Config
	registry *hub.Registry
	kv       kv.KV
	metrics  *metrics.Metrics

	guid     [pvconst.GUIDLength]byte
	listener net.Listener
	sessions *xsync.Map[string, *Session]

	Version string
	Commit  string
}

// SessionInfo is a snapshot of one session for the admin surface.
type SessionInfo struct {
	Address       string   `json:"address"`
	Authenticated bool     `json:"authenticated"`
	OpenChannels  []string `json:"open_channels"`
}

// MakeServer creates a new pvAccess server. The GUID is drawn fresh so
// clients can tell a restart from a continuation.
func MakeServer(config *config.Config, registry *hub.Registry, kvStore kv.KV, m *metrics.Metrics, version, commit string) *Server {
	var guid [pvconst.GUIDLength]byte
	id := uuid.New()
	copy(guid[:], id[:pvconst.GUIDLength])

	return &Server{
		config:   config,
		registry: registry,
		kv:       kvStore,
		metrics:  m,
		guid:     guid,
		sessions: xsync.NewMap[string, *Session](),
		Version:  version,
		Commit:   commit,
	}
}

// GUID returns the server's boot identifier.
func (s *Server) GUID() [pvconst.GUIDLength]byte {
	return s.guid
}

// Listen runs the TCP accept loop until the context is cancelled. Each
// accepted connection gets its own session task.
func (s *Server) Listen(ctx context.Context) error {
	ctx, span := otel.Tracer("PVHub").Start(ctx, "Server.Listen")
	defer span.End()

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.config.PVA.Bind, s.config.PVA.Port))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenSocket, err)
	}
	s.listener = listener

	slog.Info("pvAccess server listening", "address", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Error("Error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		session := newSession(s, conn)
		go session.run(ctx)
	}
}

// Sessions returns a snapshot of all sessions for the admin surface.
func (s *Server) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, s.sessions.Size())
	s.sessions.Range(func(_ string, sess *Session) bool {
		out = append(out, sess.info())
		return true
	})
	return out
}

func (s *Server) registerSession(sess *Session) {
	s.sessions.Store(sess.addr, sess)
	s.metrics.SetSessionsActive(float64(s.sessions.Size()))
}

func (s *Server) unregisterSession(sess *Session) {
	s.sessions.Delete(sess.addr)
	s.metrics.SetSessionsActive(float64(s.sessions.Size()))
}
