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

// Package config provides configuration management for a wisp node:
// YAML/JSON config files with ${VAR}/${VAR:default} environment
// substitution, environment-variable overrides, and sane defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a wisp node.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Identity    IdentityConfig  `yaml:"identity" json:"identity"`
	Network     NetworkConfig   `yaml:"network" json:"network"`
	Store       StoreConfig     `yaml:"store" json:"store"`
	PoW         PoWConfig       `yaml:"pow" json:"pow"`
	Relay       RelayConfig     `yaml:"relay" json:"relay"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health      HealthConfig    `yaml:"health" json:"health"`
	Telemetry   TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// IdentityConfig controls where a node's signing identity lives.
type IdentityConfig struct {
	Path        string `yaml:"path" json:"path"`
	DefaultName string `yaml:"default_name" json:"default_name"`
}

// NetworkConfig controls TCP gossip and LAN discovery.
type NetworkConfig struct {
	TCPPortDefault    int           `yaml:"tcp_port_default" json:"tcp_port_default"`
	TCPPortRange      int           `yaml:"tcp_port_range" json:"tcp_port_range"`
	MulticastAddr     string        `yaml:"multicast_addr" json:"multicast_addr"`
	AnnounceInterval  time.Duration `yaml:"announce_interval" json:"announce_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" json:"heartbeat_timeout"`
	HelloTimeout      time.Duration `yaml:"hello_timeout" json:"hello_timeout"`
	MaxFrameBytes     int           `yaml:"max_frame_bytes" json:"max_frame_bytes"`
	SeenIDCap         int           `yaml:"seen_id_cap" json:"seen_id_cap"`
	Bootstrap         []string      `yaml:"bootstrap" json:"bootstrap"`
}

// StoreConfig controls retention of gossip messages.
type StoreConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl" json:"default_ttl"`
	PruneInterval time.Duration `yaml:"prune_interval" json:"prune_interval"`
	MaxContentLen int           `yaml:"max_content_len" json:"max_content_len"`
}

// PoWConfig controls the proof-of-work difficulty a node requires.
type PoWConfig struct {
	Difficulty int `yaml:"difficulty" json:"difficulty"`
	Workers    int `yaml:"workers" json:"workers"`
}

// RelayConfig controls the optional relay client/server.
type RelayConfig struct {
	URLs               []string      `yaml:"urls" json:"urls"`
	ReconnectBackoff   time.Duration `yaml:"reconnect_backoff" json:"reconnect_backoff"`
	KeyExchangeTimeout time.Duration `yaml:"key_exchange_timeout" json:"key_exchange_timeout"`
	ServerAddr         string        `yaml:"server_addr" json:"server_addr"`
	MaxPeerConns       int           `yaml:"max_peer_conns" json:"max_peer_conns"`
	MaxScannerConns    int           `yaml:"max_scanner_conns" json:"max_scanner_conns"`
	RateLimitPerSec    float64       `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json, pretty
	Output string `yaml:"output" json:"output"` // stdout or stderr; any other value logs to stdout
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// TelemetryConfig controls optional Sentry error reporting for UI-edge errors.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// setDefaults fills in zero-valued fields with sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Identity.Path == "" {
		cfg.Identity.Path = ".wisp/identity.json"
	}
	if cfg.Identity.DefaultName == "" {
		cfg.Identity.DefaultName = "anonymous"
	}

	if cfg.Network.TCPPortDefault == 0 {
		cfg.Network.TCPPortDefault = 7420
	}
	if cfg.Network.TCPPortRange == 0 {
		cfg.Network.TCPPortRange = 10
	}
	if cfg.Network.MulticastAddr == "" {
		cfg.Network.MulticastAddr = "239.42.42.42:4200"
	}
	if cfg.Network.AnnounceInterval == 0 {
		cfg.Network.AnnounceInterval = 10 * time.Second
	}
	if cfg.Network.HeartbeatInterval == 0 {
		cfg.Network.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Network.HeartbeatTimeout == 0 {
		cfg.Network.HeartbeatTimeout = 90 * time.Second
	}
	if cfg.Network.HelloTimeout == 0 {
		cfg.Network.HelloTimeout = 10 * time.Second
	}
	if cfg.Network.MaxFrameBytes == 0 {
		cfg.Network.MaxFrameBytes = 64 * 1024
	}
	if cfg.Network.SeenIDCap == 0 {
		cfg.Network.SeenIDCap = 10000
	}

	if cfg.Store.DefaultTTL == 0 {
		cfg.Store.DefaultTTL = 24 * time.Minute
	}
	if cfg.Store.PruneInterval == 0 {
		cfg.Store.PruneInterval = 10 * time.Second
	}
	if cfg.Store.MaxContentLen == 0 {
		cfg.Store.MaxContentLen = 4096
	}

	if cfg.PoW.Difficulty == 0 {
		cfg.PoW.Difficulty = 20
	}
	if cfg.PoW.Workers == 0 {
		cfg.PoW.Workers = 4
	}

	if cfg.Relay.ReconnectBackoff == 0 {
		cfg.Relay.ReconnectBackoff = 5 * time.Second
	}
	if cfg.Relay.KeyExchangeTimeout == 0 {
		cfg.Relay.KeyExchangeTimeout = 10 * time.Second
	}
	if cfg.Relay.ServerAddr == "" {
		cfg.Relay.ServerAddr = ":8787"
	}
	if cfg.Relay.MaxPeerConns == 0 {
		cfg.Relay.MaxPeerConns = 500
	}
	if cfg.Relay.MaxScannerConns == 0 {
		cfg.Relay.MaxScannerConns = 20
	}
	if cfg.Relay.RateLimitPerSec == 0 {
		cfg.Relay.RateLimitPerSec = 10
	}
	if cfg.Relay.IdleTimeout == 0 {
		cfg.Relay.IdleTimeout = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9420"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":9421"
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}

// LoadFromFile loads configuration from a YAML or JSON file, trying YAML
// first, falling back to JSON, and applying defaults over the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes configuration to path, choosing the format by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
