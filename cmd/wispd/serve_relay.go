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

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
	"github.com/wisp-mesh/wisp/relay"
)

var (
	relayAddr   string
	relayWallet string
)

var serveRelayCmd = &cobra.Command{
	Use:   "serve-relay",
	Short: "Run the untrusted relay server: /ws for peers, /scan for observers",
	Long: `serve-relay runs the blind WebSocket forwarder peers route through to
bridge across networks a LAN-discovery multicast can't reach. It never
reads envelope plaintext and never holds a room key.`,
	RunE: runServeRelay,
}

func init() {
	rootCmd.AddCommand(serveRelayCmd)
	serveRelayCmd.Flags().StringVar(&relayAddr, "addr", ":8787", "listen address")
	serveRelayCmd.Flags().StringVar(&relayWallet, "relay-wallet", "", "optional on-chain address to advertise to scanners")
}

func runServeRelay(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger()
	srv := relay.NewServer(log)
	if relayWallet != "" {
		srv.SetRelayWallet(relayWallet)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.PeerHandler())
	mux.Handle("/scan", srv.ScanHandler())
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "healthy",
			"sessions": srv.SessionCount(),
		})
	})

	httpSrv := &http.Server{Addr: relayAddr, Handler: mux}
	go func() {
		log.Info("relay server listening", logger.String("addr", relayAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("relay server stopped", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down relay server", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}
