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

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/message"
)

type fakeAdmitter struct {
	mu sync.Mutex
	ms []*message.Message
}

func (f *fakeAdmitter) AdmitFromRelay(m *message.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ms = append(f.ms, m)
}

func (f *fakeAdmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ms)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
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

// TestSoloClientSelfGeneratesRoomKey covers spec.md's S4: a lone peer on
// a relay marks e2e active without ever sending a key_request.
func TestSoloClientSelfGeneratesRoomKey(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.PeerHandler())
	defer ts.Close()

	id, err := wispcrypto.NewIdentity("alice")
	require.NoError(t, err)
	c, err := NewClient(wsURL(ts), id, &fakeAdmitter{}, nil, nil)
	require.NoError(t, err)
	go c.Run()
	defer c.Close()

	waitUntil(t, 2*time.Second, c.E2EActive)
}

// TestSecondClientReceivesRoomKeyViaKeyShare covers S5: B joins a relay
// where A already holds the room key, and B admits it via key_share.
func TestSecondClientReceivesRoomKeyViaKeyShare(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.PeerHandler())
	defer ts.Close()

	idA, err := wispcrypto.NewIdentity("alice")
	require.NoError(t, err)
	a, err := NewClient(wsURL(ts), idA, &fakeAdmitter{}, nil, nil)
	require.NoError(t, err)
	go a.Run()
	defer a.Close()
	waitUntil(t, 2*time.Second, a.E2EActive)

	idB, err := wispcrypto.NewIdentity("bob")
	require.NoError(t, err)
	b, err := NewClient(wsURL(ts), idB, &fakeAdmitter{}, nil, nil)
	require.NoError(t, err)
	go b.Run()
	defer b.Close()

	waitUntil(t, 2*time.Second, b.E2EActive)
}

// TestMessageBroadcastDecryptsAtOtherSession covers a full round trip:
// A and B share a room key, A broadcasts, B's admitter receives it.
func TestMessageBroadcastDecryptsAtOtherSession(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.PeerHandler())
	defer ts.Close()

	idA, err := wispcrypto.NewIdentity("alice")
	require.NoError(t, err)
	a, err := NewClient(wsURL(ts), idA, &fakeAdmitter{}, nil, nil)
	require.NoError(t, err)
	go a.Run()
	defer a.Close()
	waitUntil(t, 2*time.Second, a.E2EActive)

	idB, err := wispcrypto.NewIdentity("bob")
	require.NoError(t, err)
	bAdmitter := &fakeAdmitter{}
	b, err := NewClient(wsURL(ts), idB, bAdmitter, nil, nil)
	require.NoError(t, err)
	go b.Run()
	defer b.Close()
	waitUntil(t, 2*time.Second, b.E2EActive)

	m, err := message.Build(context.Background(), message.Draft{
		Content:     "hello over relay",
		ContentType: message.ContentText,
		Board:       "general",
	}, idA, message.NewMiner(2), 8, float64(time.Now().Unix()), 0)
	require.NoError(t, err)

	waitUntil(t, 2*time.Second, func() bool {
		_ = a.Broadcast(m)
		return bAdmitter.count() > 0
	})
}
