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

package relay

import "sync"

// roomKeyLatch is a one-shot event: many goroutines may Wait concurrently,
// exactly one Set call delivers the key to all of them, and once set a
// Wait never blocks again. It is not re-armed within a session's
// lifetime — a reconnect builds a fresh latch rather than resetting this
// one, since the room key may legitimately change across reconnects.
type roomKeyLatch struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	key  []byte
}

func newRoomKeyLatch() *roomKeyLatch {
	return &roomKeyLatch{done: make(chan struct{})}
}

// Set delivers key to every current and future Wait call. Only the
// first call has any effect.
func (l *roomKeyLatch) Set(key []byte) {
	l.once.Do(func() {
		l.mu.Lock()
		l.key = key
		l.mu.Unlock()
		close(l.done)
	})
}

// Wait blocks until Set is called or timeout elapses, returning the
// room key and true, or nil and false on timeout.
func (l *roomKeyLatch) Wait(timeout <-chan struct{}) ([]byte, bool) {
	select {
	case <-l.done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.key, true
	case <-timeout:
		return nil, false
	}
}

// Get returns the room key and whether it has been set, without blocking.
func (l *roomKeyLatch) Get() ([]byte, bool) {
	select {
	case <-l.done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.key, true
	default:
		return nil, false
	}
}
