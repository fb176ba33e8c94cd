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

package client

// CommandType selects a programmatic client action.
type CommandType int

const (
	// CommandEcho sends an echo request with an opaque payload.
	CommandEcho CommandType = iota
	// CommandCreateChannel opens a channel by name.
	CommandCreateChannel
	// CommandPut writes a value to an open channel.
	CommandPut
	// CommandGet reads the current value of an open channel.
	CommandGet
	// CommandMonitor subscribes to updates of an open channel.
	CommandMonitor
)

// Command is one programmatic action for the session task. Commands are
// only acted on while a session is up.
type Command struct {
	Type    CommandType
	Channel string
	Payload []byte
}
