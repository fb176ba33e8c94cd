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

package messages

import (
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// Status is the completion status attached to command responses: a severity,
// a message, and an optional call tree for errors.
type Status struct {
	Type     pvconst.StatusType
	Message  string
	CallTree string
}

// StatusOK is the canonical success status.
func StatusOK() Status {
	return Status{Type: pvconst.StatusOK, Message: "ok"}
}

// StatusError builds an error status with the given message.
func StatusError(msg string) Status {
	return Status{Type: pvconst.StatusError, Message: msg}
}

func writeStatus(w *wire.Writer, s Status) {
	w.Uint8(byte(s.Type))
	w.String(s.Message)
	w.String(s.CallTree)
}

func readStatus(r *wire.Reader) (Status, error) {
	t, err := r.Uint8()
	if err != nil {
		return Status{}, err
	}
	msg, err := r.String()
	if err != nil {
		return Status{}, err
	}
	tree, err := r.String()
	if err != nil {
		return Status{}, err
	}
	return Status{Type: pvconst.StatusType(t), Message: msg, CallTree: tree}, nil
}
