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

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, 7420, cfg.Network.TCPPortDefault)
	assert.Equal(t, "239.42.42.42:4200", cfg.Network.MulticastAddr)
	assert.Equal(t, 20, cfg.PoW.Difficulty)
	assert.Equal(t, 4096, cfg.Store.MaxContentLen)
	assert.Equal(t, 24*time.Minute, cfg.Store.DefaultTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9420", cfg.Metrics.Addr)
}

func TestSetDefaultsDoesNotOverwriteExplicitValues(t *testing.T) {
	cfg := &Config{PoW: PoWConfig{Difficulty: 24}}
	setDefaults(cfg)
	assert.Equal(t, 24, cfg.PoW.Difficulty)
}

func TestLoadFromFileYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wisp.yaml")

	original := &Config{
		Network: NetworkConfig{TCPPortDefault: 7999},
		PoW:     PoWConfig{Difficulty: 18},
	}
	require.NoError(t, SaveToFile(original, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7999, loaded.Network.TCPPortDefault)
	assert.Equal(t, 18, loaded.PoW.Difficulty)
}

func TestLoadFromFileJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wisp.json")

	original := &Config{Identity: IdentityConfig{DefaultName: "alice"}}
	require.NoError(t, SaveToFile(original, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Identity.DefaultName)
}

func TestLoadFallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 7420, cfg.Network.TCPPortDefault)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("WISP_POW_DIFFICULTY", "16")
	cfg, err := Load(LoaderOptions{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.PoW.Difficulty)
}
