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
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment ahead of
// Load, for local development convenience. A missing file is not an
// error — it simply means nothing gets overridden.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// Watcher reloads a config file on change and hands the new Config to
// onChange. Only bootstrap peers and relay URLs are expected to change
// at runtime; callers applying onChange should ignore fields a running
// node cannot safely re-apply (listen port, identity path).
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// WatchFile starts watching path for writes, reloading it as a Config
// and invoking onChange on every successful reload. Parse errors are
// logged-equivalent by being silently skipped — a node keeps running
// on its last-good config rather than crash on a bad edit.
func WatchFile(path string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.run(path, onChange)
	return w, nil
}

func (w *Watcher) run(path string, onChange func(*Config)) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadFromFile(path)
			if err != nil {
				continue
			}
			SubstituteEnvVarsInConfig(cfg)
			onChange(cfg)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
