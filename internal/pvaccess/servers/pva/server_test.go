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

package pva_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/kv"
	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/hub"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/servers/pva"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"github.com/USA-RedDragon/PVHub/internal/testutils"
	"github.com/USA-RedDragon/configulator"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoglobals
var (
	metricsOnce   sync.Once
	sharedMetrics *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = metrics.NewMetrics()
	})
	return sharedMetrics
}

type testServer struct {
	server   *pva.Server
	registry *hub.Registry
	config   *config.Config
	addr     string
}

func makeTestServer(t *testing.T, ctx context.Context) *testServer {
	t.Helper()

	defConfig, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	defConfig.PVA.Bind = "127.0.0.1"
	defConfig.PVA.Port = testutils.FreeTCPPort(t)
	defConfig.PVA.HandshakeTimeout = 5 * time.Second
	defConfig.PVA.AuthMechanisms = []string{"anonymous"}

	kvStore, err := kv.MakeKV(ctx, &defConfig)
	require.NoError(t, err)
	ps, err := pubsub.MakePubSub(ctx, &defConfig)
	require.NoError(t, err)

	registry := hub.NewRegistry(ps, nil)
	server := pva.MakeServer(&defConfig, registry, kvStore, testMetrics(), "test", "test")

	go func() {
		_ = server.Listen(ctx)
	}()

	return &testServer{
		server:   server,
		registry: registry,
		config:   &defConfig,
		addr:     fmt.Sprintf("127.0.0.1:%d", defConfig.PVA.Port),
	}
}

func dialServer(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for range 50 {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Failed to connect to test server: %v", err)
	return nil
}

// readFrame reads exactly one frame from the connection.
func readFrame(t *testing.T, conn net.Conn) *wire.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	framer := wire.NewFramer()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		framer.Push(buf[:n])
		frame, err := framer.Next()
		require.NoError(t, err)
		if frame != nil {
			return frame
		}
	}
}

func writeFrame(t *testing.T, conn net.Conn, command pvconst.Command, flags byte, body []byte) {
	t.Helper()
	_, err := conn.Write(wire.EncodeFrame(wire.NewHeader(flags, command, 0), body))
	require.NoError(t, err)
}

// completeHandshake consumes the validation request and answers it.
func completeHandshake(t *testing.T, conn net.Conn) messages.ConnectionValidationRequest {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, pvconst.CommandConnectionValidation, frame.Header.Command)
	require.True(t, frame.Header.IsFromServer())

	request, err := messages.DecodeConnectionValidationRequest(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)

	response := messages.ConnectionValidationResponse{
		ClientReceiveBufferSize:            request.ServerReceiveBufferSize,
		ClientIntrospectionRegistryMaxSize: request.ServerIntrospectionRegistryMaxSize,
		QoS:                                0,
		AuthNZ:                             "anonymous",
	}
	writeFrame(t, conn, pvconst.CommandConnectionValidation, pvconst.FlagBigEndian, response.Encode(binary.BigEndian))
	return request
}

func TestValidationThenEcho(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := makeTestServer(t, ctx)
	conn := dialServer(t, ts.addr)
	defer conn.Close()

	request := completeHandshake(t, conn)
	require.Equal(t, ts.config.PVA.ReceiveBufferSize, request.ServerReceiveBufferSize)
	require.Equal(t, []string{"anonymous"}, request.AuthNZ)

	payload := []byte{1, 2, 3, 4, 5}
	echo := messages.EchoMessage{Payload: payload}
	writeFrame(t, conn, pvconst.CommandEcho, pvconst.FlagBigEndian, echo.Encode(binary.BigEndian))

	frame := readFrame(t, conn)
	require.Equal(t, pvconst.CommandEcho, frame.Header.Command)
	require.True(t, frame.Header.IsBigEndian())

	decoded, err := messages.DecodeEcho(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, payload, decoded.Payload)
}

func TestEchoPreservesLittleEndian(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := makeTestServer(t, ctx)
	conn := dialServer(t, ts.addr)
	defer conn.Close()

	completeHandshake(t, conn)

	payload := []byte{0xAA, 0xBB}
	echo := messages.EchoMessage{Payload: payload}
	writeFrame(t, conn, pvconst.CommandEcho, 0, echo.Encode(binary.LittleEndian))

	frame := readFrame(t, conn)
	require.Equal(t, pvconst.CommandEcho, frame.Header.Command)
	require.False(t, frame.Header.IsBigEndian())

	decoded, err := messages.DecodeEcho(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, payload, decoded.Payload)
}

func TestUnexpectedCommandDuringHandshakeClosesSession(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := makeTestServer(t, ctx)
	conn := dialServer(t, ts.addr)
	defer conn.Close()

	// Consume the validation request, then send an echo instead of the
	// validation response.
	frame := readFrame(t, conn)
	require.Equal(t, pvconst.CommandConnectionValidation, frame.Header.Command)

	echo := messages.EchoMessage{Payload: []byte{1}}
	writeFrame(t, conn, pvconst.CommandEcho, pvconst.FlagBigEndian, echo.Encode(binary.BigEndian))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelLifecycle(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := makeTestServer(t, ctx)
	conn := dialServer(t, ts.addr)
	defer conn.Close()

	completeHandshake(t, conn)

	// Create.
	create := messages.CreateChannelRequest{
		Channels: []messages.ChannelInit{{ClientChannelID: 1, Name: "temperature"}},
	}
	writeFrame(t, conn, pvconst.CommandCreateChannel, pvconst.FlagBigEndian, create.Encode(binary.BigEndian))

	frame := readFrame(t, conn)
	require.Equal(t, pvconst.CommandCreateChannel, frame.Header.Command)
	created, err := messages.DecodeCreateChannelResponse(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, uint32(1), created.ClientChannelID)
	require.Equal(t, pvconst.StatusOK, created.Status.Type)

	require.Equal(t, uint16(1), ts.registry.ChangeCount())

	// Put a value.
	put := messages.ChannelPutRequest{
		ServerChannelID: created.ServerChannelID,
		RequestID:       1,
		Value:           []byte{0x2A},
	}
	writeFrame(t, conn, pvconst.CommandChannelPut, pvconst.FlagBigEndian, put.Encode(binary.BigEndian))

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandChannelPut, frame.Header.Command)
	putResp, err := messages.DecodeChannelPutResponse(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, pvconst.StatusOK, putResp.Status.Type)

	// Get it back.
	get := messages.ChannelGetRequest{
		ServerChannelID: created.ServerChannelID,
		RequestID:       2,
		Subcommand:      pvconst.SubcommandGet,
	}
	writeFrame(t, conn, pvconst.CommandChannelGet, pvconst.FlagBigEndian, get.Encode(binary.BigEndian))

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandChannelGet, frame.Header.Command)
	getResp, err := messages.DecodeChannelGetResponse(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, pvconst.StatusOK, getResp.Status.Type)
	require.Equal(t, []byte{0x2A}, getResp.Value)

	// GetField returns the schema.
	getField := messages.GetFieldRequest{ServerChannelID: created.ServerChannelID, RequestID: 3}
	writeFrame(t, conn, pvconst.CommandGetField, pvconst.FlagBigEndian, getField.Encode(binary.BigEndian))

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandGetField, frame.Header.Command)
	fieldResp, err := messages.DecodeGetFieldResponse(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, pvconst.StatusOK, fieldResp.Status.Type)

	// Destroy.
	destroy := messages.DestroyChannelRequest{ServerChannelID: created.ServerChannelID, ClientChannelID: 1}
	writeFrame(t, conn, pvconst.CommandDestroyChannel, pvconst.FlagBigEndian, destroy.Encode(binary.BigEndian))

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandDestroyChannel, frame.Header.Command)
	require.Equal(t, uint16(2), ts.registry.ChangeCount())
}

func TestMonitorFanOut(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := makeTestServer(t, ctx)
	conn := dialServer(t, ts.addr)
	defer conn.Close()

	completeHandshake(t, conn)

	create := messages.CreateChannelRequest{
		Channels: []messages.ChannelInit{{ClientChannelID: 1, Name: "pressure"}},
	}
	writeFrame(t, conn, pvconst.CommandCreateChannel, pvconst.FlagBigEndian, create.Encode(binary.BigEndian))
	frame := readFrame(t, conn)
	created, err := messages.DecodeCreateChannelResponse(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)

	monitor := messages.ChannelMonitorRequest{
		ServerChannelID: created.ServerChannelID,
		RequestID:       9,
		Subcommand:      pvconst.SubcommandInit,
	}
	writeFrame(t, conn, pvconst.CommandChannelMonitor, pvconst.FlagBigEndian, monitor.Encode(binary.BigEndian))

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandChannelMonitor, frame.Header.Command)
	ack, err := messages.DecodeChannelMonitorUpdate(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, pvconst.SubcommandInit, ack.Subcommand)

	// A push through the registry reaches the monitoring session.
	channel, ok := ts.registry.LookupID(created.ServerChannelID)
	require.True(t, ok)
	channel.Push([]byte{0x07}, "127.0.0.1:41000")

	frame = readFrame(t, conn)
	require.Equal(t, pvconst.CommandChannelMonitor, frame.Header.Command)
	update, err := messages.DecodeChannelMonitorUpdate(frame.Body, frame.Header.ByteOrder())
	require.NoError(t, err)
	require.Equal(t, uint32(9), update.RequestID)
	require.Equal(t, []byte{0x07}, update.Value)
}
