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

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisp-mesh/wisp/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{PruneInterval: time.Hour}, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func msg(id, board, thread string, ts float64) *message.Message {
	return &message.Message{
		ID:        id,
		Board:     board,
		ThreadID:  thread,
		Content:   "hello " + id,
		Timestamp: ts,
		TTL:       message.DefaultTTL,
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	m := msg("1", "general", "", 100)

	assert.True(t, s.Add(m))
	assert.False(t, s.Add(m))
	assert.Equal(t, 1, s.Size())
}

func TestAddNotifiesSubscribers(t *testing.T) {
	s := newTestStore(t)
	var got *message.Message
	s.Subscribe(func(m *message.Message) { got = m })

	m := msg("1", "general", "", 100)
	s.Add(m)
	assert.Same(t, m, got)
}

func TestAddSubscriberPanicDoesNotCorruptStore(t *testing.T) {
	s := newTestStore(t)
	s.Subscribe(func(m *message.Message) { panic("boom") })

	m := msg("1", "general", "", 100)
	assert.NotPanics(t, func() { s.Add(m) })
	assert.True(t, s.Has("1"))
}

func TestGetByBoardAndThread(t *testing.T) {
	s := newTestStore(t)
	s.Add(msg("1", "general", "", 100))
	s.Add(msg("2", "random", "", 101))
	s.Add(msg("3", "general", "t1", 102))
	s.Add(msg("4", "general", "t1", 103))

	assert.Len(t, s.GetByBoard("general"), 3)
	assert.Len(t, s.GetByBoard("random"), 1)
	assert.Len(t, s.GetByThread("t1"), 2)
	assert.Len(t, s.GetBoardChat("general"), 1)
}

func TestGetBoardsReturnsSortedDistinctNames(t *testing.T) {
	s := newTestStore(t)
	s.Add(msg("1", "zeta", "", 100))
	s.Add(msg("2", "alpha", "", 101))
	s.Add(msg("3", "alpha", "", 102))

	assert.Equal(t, []string{"alpha", "zeta"}, s.GetBoards())
}

func TestGetThreadsOrdersByLatestActivity(t *testing.T) {
	s := newTestStore(t)
	opener := msg("1", "general", "t1", 100)
	opener.ThreadTitle = "first"
	s.Add(opener)
	s.Add(msg("2", "general", "t2", 200))
	reply := msg("3", "general", "t1", 300)
	s.Add(reply)

	threads := s.GetThreads("general")
	require.Len(t, threads, 2)
	assert.Equal(t, "t1", threads[0].ThreadID)
	assert.Equal(t, 2, threads[0].Count)
	assert.Equal(t, "first", threads[0].Title)
	assert.Equal(t, float64(300), threads[0].LatestTS)
	// Preview comes from the reply (the latest message), not the opener.
	assert.Equal(t, reply.Preview(), threads[0].Preview)
	assert.NotEqual(t, opener.Preview(), threads[0].Preview)
}

func TestLastHashTracksMostRecentAdd(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, message.GenesisHash, s.LastHash())

	m := msg("1", "general", "", 100)
	m.PowHash = "abc123"
	s.Add(m)
	assert.Equal(t, "abc123", s.LastHash())
}

func TestPruneRemovesExpiredMessages(t *testing.T) {
	s := newTestStore(t)
	expired := msg("1", "general", "", 100)
	expired.TTL = 10
	s.Add(expired)
	live := msg("2", "general", "", 1000)
	s.Add(live)

	removed := s.Prune(200)
	assert.Equal(t, 1, removed)
	assert.False(t, s.Has("1"))
	assert.True(t, s.Has("2"))
}

func TestAddDMDisjointFromBroadcastSet(t *testing.T) {
	s := newTestStore(t)
	bm := msg("1", "general", "", 100)
	s.Add(bm)

	dm := msg("1", "", "", 100)
	dm.AuthorPubkey = "peer-a"
	assert.True(t, s.AddDM(dm))
	assert.Len(t, s.GetDMsWith("peer-a"), 1)
}
