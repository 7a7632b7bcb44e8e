// Copyright (C) 2025 wisp-mesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// wispd is the Wisp gossip node daemon: it runs the TCP peer-to-peer
// network, optional relay client(s), and the HTTP metrics/health
// surface. A separate subcommand, serve-relay, runs the untrusted
// relay server half on its own.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wispd",
	Short: "Wisp peer-to-peer gossip daemon",
	Long: `wispd runs a Wisp node: proof-of-work gated, ephemeral broadcast
gossip over LAN-discovered TCP peers, optionally bridged across
networks through one or more untrusted WebSocket relays.`,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
