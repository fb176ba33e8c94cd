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

package pvconst

import "fmt"

// Magic is the first byte of every pvAccess frame.
const Magic byte = 0xCA

// ProtocolVersion is the pvAccess protocol version spoken by this implementation.
const ProtocolVersion byte = 2

// HeaderLength is the fixed length of the frame header in bytes.
const HeaderLength = 8

// GUIDLength is the length of a server GUID in bytes.
const GUIDLength = 12

// Command is the message type byte carried in the frame header.
type Command byte

const (
	CommandBeacon               Command = 0x00
	CommandConnectionValidation Command = 0x01
	CommandEcho                 Command = 0x02
	CommandSearchRequest        Command = 0x03
	CommandSearchResponse       Command = 0x04
	CommandCreateChannel        Command = 0x07
	CommandDestroyChannel       Command = 0x08
	CommandChannelGet           Command = 0x0A
	CommandChannelPut           Command = 0x0B
	CommandChannelPutGet        Command = 0x0C
	CommandChannelMonitor       Command = 0x0D
	CommandChannelArray         Command = 0x0E
	CommandDestroyRequest       Command = 0x0F
	CommandChannelProcess       Command = 0x10
	CommandGetField             Command = 0x11
	CommandMessage              Command = 0x12
	CommandChannelRPC           Command = 0x14
	CommandCancelRequest        Command = 0x15
)

// Known reports whether the command byte is part of the closed command set.
// Unknown commands still decode, so upper layers can log and skip them.
func (c Command) Known() bool {
	switch c {
	case CommandBeacon, CommandConnectionValidation, CommandEcho,
		CommandSearchRequest, CommandSearchResponse,
		CommandCreateChannel, CommandDestroyChannel,
		CommandChannelGet, CommandChannelPut, CommandChannelPutGet,
		CommandChannelMonitor, CommandChannelArray,
		CommandDestroyRequest, CommandChannelProcess,
		CommandGetField, CommandMessage,
		CommandChannelRPC, CommandCancelRequest:
		return true
	}
	return false
}

func (c Command) String() string {
	switch c {
	case CommandBeacon:
		return "Beacon"
	case CommandConnectionValidation:
		return "ConnectionValidation"
	case CommandEcho:
		return "Echo"
	case CommandSearchRequest:
		return "SearchRequest"
	case CommandSearchResponse:
		return "SearchResponse"
	case CommandCreateChannel:
		return "CreateChannel"
	case CommandDestroyChannel:
		return "DestroyChannel"
	case CommandChannelGet:
		return "ChannelGet"
	case CommandChannelPut:
		return "ChannelPut"
	case CommandChannelPutGet:
		return "ChannelPutGet"
	case CommandChannelMonitor:
		return "ChannelMonitor"
	case CommandChannelArray:
		return "ChannelArray"
	case CommandDestroyRequest:
		return "DestroyRequest"
	case CommandChannelProcess:
		return "ChannelProcess"
	case CommandGetField:
		return "GetField"
	case CommandMessage:
		return "Message"
	case CommandChannelRPC:
		return "ChannelRPC"
	case CommandCancelRequest:
		return "CancelRequest"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(c))
	}
}

// Header flag bits.
const (
	// FlagControl marks a control message rather than an application message.
	FlagControl byte = 0b0000_0001
	// FlagSegmentationMask covers the two segmentation bits.
	FlagSegmentationMask byte = 0b0011_0000
	FlagSegmentNone      byte = 0b0000_0000
	FlagSegmentFirst     byte = 0b0001_0000
	FlagSegmentLast      byte = 0b0010_0000
	FlagSegmentMiddle    byte = 0b0011_0000
	// FlagFromServer is set on frames sent by the server.
	FlagFromServer byte = 0b0100_0000
	// FlagBigEndian selects big-endian for payload_size and all multi-byte body fields.
	FlagBigEndian byte = 0b1000_0000
)

// QoS bits on the connection validation response.
const (
	// QoSPriorityMask covers the numeric priority, 0-100.
	QoSPriorityMask uint16 = 0x007F
	QoSLowLatency   uint16 = 0x0100
	QoSThroughput   uint16 = 0x0200
	QoSCompression  uint16 = 0x0400
	// QoSDefinedMask covers every defined QoS bit. Anything outside it
	// fails decode rather than being silently truncated.
	QoSDefinedMask = QoSPriorityMask | QoSLowLatency | QoSThroughput | QoSCompression
)

// Subcommand bits within channel operations.
const (
	SubcommandInit    byte = 0x08
	SubcommandDestroy byte = 0x10
	SubcommandGet     byte = 0x40
)

// SearchRequest flag bits.
const (
	SearchFlagReplyRequired byte = 0b0000_0001
	SearchFlagUnicast       byte = 0b1000_0000
)

// NullTypeCode marks an absent introspection descriptor, e.g. the beacon's
// server status field.
const NullTypeCode byte = 0x00

// StatusType is the severity of a response completion status.
type StatusType byte

const (
	StatusOK      StatusType = 0
	StatusWarning StatusType = 1
	StatusError   StatusType = 2
	StatusFatal   StatusType = 3
)

func (s StatusType) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "Warning"
	case StatusError:
		return "Error"
	case StatusFatal:
		return "FatalError"
	default:
		return fmt.Sprintf("StatusType(%d)", byte(s))
	}
}

// MessageType is the severity of an async Message (0x12) frame.
type MessageType byte

const (
	MessageInfo    MessageType = 0
	MessageWarning MessageType = 1
	MessageError   MessageType = 2
	MessageFatal   MessageType = 3
)

func (m MessageType) String() string {
	switch m {
	case MessageInfo:
		return "Info"
	case MessageWarning:
		return "Warning"
	case MessageError:
		return "Error"
	case MessageFatal:
		return "FatalError"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(m))
	}
}
