// SPDX-License-Identifier: AGPL-3.0-or-later
// ov-core - openvocs voice-loop backend core
// Copyright (C) 2023-2026 Jacob McSwain
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
// The source code is available at <https://github.com/openvocs/ov-core>

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/USA-RedDragon/configulator"

	"github.com/openvocs/ov-core/cmd"
	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/sdk"
)

func main() {
	os.Exit(run())
}

func run() int {
	c := configulator.New[config.Config]()
	ctx := c.ToContext(context.Background())

	root := cmd.NewCommand(sdk.Version, sdk.GitCommit)
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		slog.Error("ovvocsd exited with error", "error", err)
		return 1
	}
	return 0
}
