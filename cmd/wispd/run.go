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
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wisp-mesh/wisp/config"
	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/health"
	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
	"github.com/wisp-mesh/wisp/internal/telemetry"
	"github.com/wisp-mesh/wisp/message"
	"github.com/wisp-mesh/wisp/netp2p"
	"github.com/wisp-mesh/wisp/relay"
	"github.com/wisp-mesh/wisp/store"
	"github.com/wisp-mesh/wisp/uievent"
	"github.com/wisp-mesh/wisp/wallet"
)

var (
	runConfigDir string
	runEnv       string
	runDotenv    string
	runWallet    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a Wisp gossip node",
	RunE:  runNode,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "config", "directory to search for <env>.yaml/default.yaml/config.yaml")
	runCmd.Flags().StringVar(&runEnv, "env", "", "environment name (defaults to WISP_ENV/ENVIRONMENT)")
	runCmd.Flags().StringVar(&runDotenv, "dotenv", "", "optional .env file to load before reading config")
	runCmd.Flags().BoolVar(&runWallet, "wallet", false, "derive and persist the optional on-chain wallet")
}

func runNode(cmd *cobra.Command, args []string) error {
	if runDotenv != "" {
		if err := config.LoadDotEnv(runDotenv); err != nil {
			return fmt.Errorf("load dotenv: %w", err)
		}
	}

	cfg, err := config.Load(config.LoaderOptions{ConfigDir: runConfigDir, Environment: runEnv})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(cfg.Logging)

	id, err := wispcrypto.LoadIdentity(cfg.Identity.Path, cfg.Identity.DefaultName)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info("identity loaded", logger.String("name", id.Name), logger.String("tag", id.Tag))

	var w *wallet.Wallet
	if runWallet {
		w, err = wallet.Load(".wisp/wallet.json", id)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		log.Info("wallet loaded", logger.String("address", w.Address))
	}

	reporter, err := telemetry.Init(cfg.Telemetry.DSN, cfg.Environment, "", log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	st := store.New(store.Config{
		PruneInterval: cfg.Store.PruneInterval,
	}, log)
	defer st.Close()

	ui := uievent.NewSink(1024)
	stop := make(chan struct{})
	if cfg.Telemetry.Enabled {
		go reporter.Watch(ui, stop)
	}
	go logUIEvents(ui, log)

	miner := message.NewMiner(cfg.PoW.Workers)
	node := netp2p.NewNode(netp2p.Config{
		Name:          id.Name,
		Tag:           id.Tag,
		PubkeyHex:     hex.EncodeToString(id.PubKey),
		TCPPortBase:   cfg.Network.TCPPortDefault,
		TCPPortRange:  cfg.Network.TCPPortRange,
		MulticastAddr: cfg.Network.MulticastAddr,
		AnnounceEvery: cfg.Network.AnnounceInterval,
		Difficulty:    cfg.PoW.Difficulty,
	}, id, miner, st, ui, log)

	if err := node.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer node.Close()
	log.Info("node listening", logger.Int("port", node.BoundPort()))

	if err := node.StartDiscovery(); err != nil {
		log.Warn("LAN discovery unavailable", logger.Error(err))
	}

	for _, addr := range cfg.Network.Bootstrap {
		host, port, err := splitHostPort(addr)
		if err != nil {
			log.Warn("skipping invalid bootstrap address", logger.String("addr", addr), logger.Error(err))
			continue
		}
		go func(host string, port int) {
			if err := node.Connect(host, port); err != nil {
				log.Warn("bootstrap connect failed", logger.String("addr", addr), logger.Error(err))
			}
		}(host, port)
	}

	var clientsMu sync.Mutex
	relayClients := make([]*relay.Client, 0, len(cfg.Relay.URLs))
	attached := make(map[string]struct{})
	attachRelay := func(url string) {
		clientsMu.Lock()
		defer clientsMu.Unlock()
		if _, ok := attached[url]; ok {
			return
		}
		rc, err := relay.NewClient(url, id, node, ui, log)
		if err != nil {
			log.Warn("relay client setup failed", logger.String("url", url), logger.Error(err))
			return
		}
		go rc.Run()
		attached[url] = struct{}{}
		relayClients = append(relayClients, rc)
	}
	for _, url := range cfg.Relay.URLs {
		attachRelay(url)
	}
	defer func() {
		clientsMu.Lock()
		defer clientsMu.Unlock()
		for _, rc := range relayClients {
			rc.Close()
		}
	}()

	if watcher, err := config.WatchFile(resolvedConfigPath(runConfigDir, cfg.Environment), func(updated *config.Config) {
		for _, url := range updated.Relay.URLs {
			attachRelay(url)
		}
	}); err == nil {
		defer watcher.Close()
	}

	// Fan a self-originated message out to every relay the daemon is
	// currently attached to (C5), alongside the TCP gossip Broadcast
	// node.Send already does (C4).
	node.SetRelayBroadcast(func(m *message.Message) {
		clientsMu.Lock()
		targets := make([]*relay.Client, len(relayClients))
		copy(targets, relayClients)
		clientsMu.Unlock()
		for _, rc := range targets {
			if err := rc.Broadcast(m); err != nil {
				log.Debug("relay broadcast skipped", logger.Error(err))
			}
		}
	})
	go readStdinMessages(node, log)

	const storeHealthCeiling = 500_000

	checker := health.NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("store", health.StoreHealthCheck(st.Size, storeHealthCeiling))
	checker.RegisterCheck("peers", health.PeerCountHealthCheck(node.PeerCount))
	clientsMu.Lock()
	for i, rc := range relayClients {
		checker.RegisterCheck(fmt.Sprintf("relay_%d", i), health.RelayHealthCheck(rc.E2EActive))
	}
	clientsMu.Unlock()

	var httpServers []*http.Server
	if cfg.Metrics.Enabled {
		httpServers = append(httpServers, startMetricsServer(cfg.Metrics.Addr, cfg.Metrics.Path, log))
	}
	if cfg.Health.Enabled {
		httpServers = append(httpServers, startHealthServer(cfg.Health.Addr, cfg.Health.Path, checker, log))
	}

	waitForSignal(log)
	close(stop)
	reporter.Flush(2 * time.Second)
	for _, srv := range httpServers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		srv.Shutdown(ctx)
		cancel()
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) *logger.StructuredLogger {
	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}
	level := logger.InfoLevel
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = logger.DebugLevel
	case "WARN":
		level = logger.WarnLevel
	case "ERROR":
		level = logger.ErrorLevel
	}
	log := logger.NewLogger(out, level)
	log.SetPrettyPrint(cfg.Format != "json")
	return log
}

func logUIEvents(ui *uievent.Sink, log *logger.StructuredLogger) {
	for ev := range ui.Events() {
		switch ev.Kind {
		case uievent.KindError:
			log.Warn("ui event", logger.String("kind", string(ev.Kind)), logger.String("text", ev.Text))
		case uievent.KindPeerJoined, uievent.KindPeerLeft:
			log.Info("ui event", logger.String("kind", string(ev.Kind)), logger.String("peer", ev.PeerID))
		case uievent.KindNewMsg, uievent.KindMsgSent:
			if ev.Msg != nil {
				log.Debug("ui event", logger.String("kind", string(ev.Kind)), logger.String("id", ev.Msg.ID))
			}
		default:
			log.Debug("ui event", logger.String("kind", string(ev.Kind)), logger.String("text", ev.Text))
		}
	}
}

func startMetricsServer(addr, path string, log *logger.StructuredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", logger.Error(err))
		}
	}()
	return srv
}

func startHealthServer(addr, path string, checker *health.HealthChecker, log *logger.StructuredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		sys := checker.GetSystemHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if sys.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(sys)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("health server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server stopped", logger.Error(err))
		}
	}()
	return srv
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return "", 0, fmt.Errorf("expected host:port, got %q", addr)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}

// resolvedConfigPath mirrors config.Load's own fallback chain, so the
// watcher follows whichever file the running node actually loaded.
func resolvedConfigPath(dir, env string) string {
	for _, name := range []string{env + ".yaml", "default.yaml", "config.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "default.yaml")
}

// readStdinMessages is the minimal operator console for originating
// broadcasts without a dedicated UI attached: each line is either
// "board:content" or, with no colon, plain content posted to general.
// A real UI wires uievent.SendFunc to node.Send directly instead of
// going through stdin.
func readStdinMessages(node *netp2p.Node, log *logger.StructuredLogger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		board, content, ok := strings.Cut(line, ":")
		if !ok {
			board, content = "general", line
		}
		node.Send(content, message.ContentText, board, "", "", "")
	}
	if err := scanner.Err(); err != nil {
		log.Warn("stdin reader stopped", logger.Error(err))
	}
}

func waitForSignal(log *logger.StructuredLogger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", logger.String("signal", sig.String()))
}
