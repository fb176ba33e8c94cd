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

package main

import (
	"context"
	"os"

	"github.com/USA-RedDragon/PVHub/cmd"
	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/configulator"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
//nolint:golint,gochecknoglobals
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := cmd.NewCommand(version, commit)

	c := configulator.New[config.Config]().
		WithEnvironmentVariables(&configulator.EnvironmentVariableOptions{
			Separator: "__",
		}).
		WithFile(&configulator.FileOptions{
			Paths: []string{"config.yaml"},
		}).
		WithPFlags(rootCmd.PersistentFlags(), nil)

	rootCmd.SetContext(c.WithContext(context.Background()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
