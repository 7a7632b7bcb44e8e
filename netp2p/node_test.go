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

package netp2p

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/message"
	"github.com/wisp-mesh/wisp/store"
	"github.com/wisp-mesh/wisp/uievent"
)

const testDifficulty = 8

func newTestNodeWithIdentity(t *testing.T, cfg Config, id *wispcrypto.Identity, basePort int) (*Node, *store.Store, *uievent.Sink) {
	t.Helper()
	st := store.New(store.Config{PruneInterval: time.Hour}, nil)
	t.Cleanup(func() { _ = st.Close() })
	ui := uievent.NewSink(64)

	cfg.TCPPortBase = basePort
	cfg.TCPPortRange = 20
	cfg.Difficulty = testDifficulty

	n := NewNode(cfg, id, message.NewMiner(2), st, ui, nil)
	require.NoError(t, n.Listen())
	t.Cleanup(func() { _ = n.Close() })
	return n, st, ui
}

func newTestNode(t *testing.T, name string, basePort int) (*Node, *store.Store, *uievent.Sink) {
	t.Helper()
	id, err := wispcrypto.NewIdentity(name)
	require.NoError(t, err)
	return newTestNodeWithIdentity(t, Config{
		Name:      name,
		Tag:       id.Tag,
		PubkeyHex: hex.EncodeToString(id.PubKey),
	}, id, basePort)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestHandshakeEstablishesLivePeerBothSides(t *testing.T) {
	a, _, _ := newTestNode(t, "alice", 17420)
	b, _, _ := newTestNode(t, "bob", 17440)

	require.NoError(t, a.Connect("127.0.0.1", b.BoundPort()))

	waitFor(t, 2*time.Second, func() bool { return a.PeerCount() == 1 })
	waitFor(t, 2*time.Second, func() bool { return b.PeerCount() == 1 })
}

func TestGossipReachesAllPeersExceptSource(t *testing.T) {
	a, _, _ := newTestNode(t, "alice2", 17460)
	b, bStore, _ := newTestNode(t, "bob2", 17480)

	require.NoError(t, a.Connect("127.0.0.1", b.BoundPort()))
	waitFor(t, 2*time.Second, func() bool { return a.PeerCount() == 1 && b.PeerCount() == 1 })

	// Authored by a's own identity: b has bound "alice2" to a's key at
	// handshake and would reject the name under any other key.
	id := a.id
	require.NotNil(t, id)
	m, err := message.Build(context.Background(), message.Draft{
		Content:     "hi bob",
		ContentType: message.ContentText,
		Board:       "general",
	}, id, message.NewMiner(2), testDifficulty, float64(time.Now().Unix()), 0)
	require.NoError(t, err)

	a.Broadcast(m)

	waitFor(t, 2*time.Second, func() bool { return bStore.Has(m.ID) })
}

func TestSendMinesAddsAndGossipsToPeers(t *testing.T) {
	a, aStore, _ := newTestNode(t, "alice3", 17560)
	b, bStore, _ := newTestNode(t, "bob3", 17580)

	var relayed []*message.Message
	var relayMu sync.Mutex
	a.SetRelayBroadcast(func(m *message.Message) {
		relayMu.Lock()
		relayed = append(relayed, m)
		relayMu.Unlock()
	})

	require.NoError(t, a.Connect("127.0.0.1", b.BoundPort()))
	waitFor(t, 2*time.Second, func() bool { return a.PeerCount() == 1 && b.PeerCount() == 1 })

	a.Send("hello from alice", message.ContentText, "general", "", "", "")

	waitFor(t, 2*time.Second, func() bool { return aStore.Size() == 1 })
	waitFor(t, 2*time.Second, func() bool { return bStore.Size() == 1 })
	waitFor(t, 2*time.Second, func() bool {
		relayMu.Lock()
		defer relayMu.Unlock()
		return len(relayed) == 1
	})
}

func TestClaimedNameRejectsSecondPeerWithConflictingPubkey(t *testing.T) {
	hub, _, _ := newTestNode(t, "hub", 17500)

	id1, err := wispcrypto.NewIdentity("impostor")
	require.NoError(t, err)
	first, _, _ := newTestNodeWithIdentity(t, Config{
		Name: "shared", Tag: id1.Tag, PubkeyHex: hex.EncodeToString(id1.PubKey),
	}, id1, 17520)
	require.NoError(t, first.Connect("127.0.0.1", hub.BoundPort()))
	waitFor(t, 2*time.Second, func() bool { return hub.PeerCount() == 1 })

	id2, err := wispcrypto.NewIdentity("impostor2")
	require.NoError(t, err)
	second, _, _ := newTestNodeWithIdentity(t, Config{
		Name: "shared", Tag: id2.Tag, PubkeyHex: hex.EncodeToString(id2.PubKey),
	}, id2, 17540)
	require.NoError(t, second.Connect("127.0.0.1", hub.BoundPort()))

	// The hub must reject the second "shared" peer since it carries a
	// different pubkey than the one already bound; peer count stays at 1.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, hub.PeerCount())
}
