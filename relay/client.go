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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/crypto/keys"
	"github.com/wisp-mesh/wisp/crypto/seal"
	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
	"github.com/wisp-mesh/wisp/message"
	"github.com/wisp-mesh/wisp/uievent"
)

const (
	reconnectBackoff = 5 * time.Second
	keyRequestWait   = 10 * time.Second
	clientHeartbeat  = 30 * time.Second
	dialTimeout      = 10 * time.Second
)

// Admitter is the subset of netp2p.Node a relay Client needs: feeding a
// decrypted, relay-sourced message back through the shared admission
// pipeline. Kept as an interface so relay never imports netp2p.
type Admitter interface {
	AdmitFromRelay(m *message.Message)
}

// Client maintains a persistent, auto-reconnecting WebSocket session to
// one relay URL: anonymous hello, room-key exchange, and envelope
// encrypt/decrypt of gossip messages (spec.md §4.4). The session UUID
// and X25519 keypair are minted once and survive reconnects; the room
// key is re-exchanged on every fresh connection.
type Client struct {
	url      string
	id       *wispcrypto.Identity
	session  string
	curve    *keys.X25519KeyPair
	admitter Admitter
	ui       *uievent.Sink
	log      *logger.StructuredLogger

	mu       sync.Mutex
	conn     *websocket.Conn
	outbox   chan Frame
	roomKey  *roomKeyLatch
	e2e      bool
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewClient constructs a relay Client for url, identified by id. The
// client's curve25519 keypair is deterministically derived from id so
// the curve_pk it presents to the relay is stable across reconnects of
// the same process. Call Run to start the connect-and-retry loop.
func NewClient(url string, id *wispcrypto.Identity, admitter Admitter, ui *uievent.Sink, log *logger.StructuredLogger) (*Client, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	edKP, err := keys.Ed25519KeyPairFromSeed(id.PrivKey.Seed())
	if err != nil {
		return nil, fmt.Errorf("relay: derive ed25519 keypair: %w", err)
	}
	curve, err := keys.X25519FromEd25519(edKP)
	if err != nil {
		return nil, fmt.Errorf("relay: derive curve25519 keypair: %w", err)
	}
	return &Client{
		url:      url,
		id:       id,
		session:  uuid.NewString(),
		curve:    curve,
		admitter: admitter,
		ui:       ui,
		log:      log,
		stop:     make(chan struct{}),
	}, nil
}

// Run connects, and on any failure waits reconnectBackoff and retries
// indefinitely until Close is called. It returns once Close is called.
func (c *Client) Run() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if err := c.runOnce(); err != nil {
			c.log.Warn("relay connection failed", logger.String("url", c.url), logger.Error(err))
			c.publish(uievent.Error(fmt.Sprintf("relay %s: %v", c.url, err)))
		}
		select {
		case <-c.stop:
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

// Close stops the client and tears down any live connection.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// E2EActive reports whether this client currently holds a room key.
func (c *Client) E2EActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.e2e
}

func (c *Client) runOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.outbox = make(chan Frame, 64)
	c.roomKey = newRoomKeyLatch()
	c.e2e = false
	c.mu.Unlock()

	done := make(chan struct{})
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		c.sendLoop(conn, done)
	}()

	if err := c.sendFrame(Frame{
		Type:    FrameHello,
		Session: c.session,
		CurvePK: base64.StdEncoding.EncodeToString(c.curve.PublicBytesKey()),
	}); err != nil {
		close(done)
		writerWG.Wait()
		return fmt.Errorf("send hello: %w", err)
	}

	readErr := c.readLoop(conn)
	close(done)
	writerWG.Wait()
	return readErr
}

func (c *Client) sendLoop(conn *websocket.Conn, done <-chan struct{}) {
	heartbeat := time.NewTicker(clientHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case f, ok := <-c.outbox:
			if !ok {
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if len(data) > MaxFrameBytes {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(dialTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-heartbeat.C:
			data, _ := json.Marshal(Frame{Type: FrameHeartbeat, Session: c.session})
			conn.SetWriteDeadline(time.Now().Add(dialTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		case <-c.stop:
			return
		}
	}
}

func (c *Client) sendFrame(f Frame) error {
	c.mu.Lock()
	outbox := c.outbox
	c.mu.Unlock()
	select {
	case outbox <- f:
		return nil
	default:
		return fmt.Errorf("relay: outbox full")
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(data) > MaxFrameBytes {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f Frame) {
	switch f.Type {
	case FrameRelayPeers:
		c.onRelayPeers(f)
	case FrameRelayJoin:
		c.onRelayJoin(f)
	case FrameKeyRequest:
		c.onKeyRequest(f)
	case FrameKeyShare:
		c.onKeyShare(f)
	case FrameMsg:
		c.onMsg(f)
	case FrameRelayLeave, FrameHeartbeat:
		// no client-side action required
	}
}

// onRelayPeers runs the room-key exchange decision from spec.md §4.4:
// if no one else is present, mint a room key immediately; otherwise ask
// for one and fall back to self-generation after 10s of silence.
func (c *Client) onRelayPeers(f Frame) {
	if f.Count == 0 {
		c.mintRoomKey("alone")
		return
	}
	c.sendFrame(Frame{
		Type:    FrameKeyRequest,
		Session: c.session,
		CurvePK: base64.StdEncoding.EncodeToString(c.curve.PublicBytesKey()),
	})
	go func() {
		timeout := time.NewTimer(keyRequestWait)
		defer timeout.Stop()
		if _, ok := c.roomKey.Wait(timeout.C); !ok {
			c.mintRoomKey("timeout_self_generated")
		}
	}()
}

// onRelayJoin proactively seals the held room key to a newcomer.
func (c *Client) onRelayJoin(f Frame) {
	key, ok := c.roomKey.Get()
	if !ok || f.CurvePK == "" {
		return
	}
	c.sealAndShare(f.Session, f.CurvePK, key)
}

// onKeyRequest replies with the held room key, if any, to a requester
// that is not itself.
func (c *Client) onKeyRequest(f Frame) {
	key, ok := c.roomKey.Get()
	if !ok || f.Session == c.session {
		return
	}
	c.sealAndShare(f.Session, f.CurvePK, key)
}

// sealAndShare anonymously seals roomKey to requesterCurvePK using a
// fresh ephemeral X25519 keypair and sends it as a key_share addressed
// to toSession. The requester's curve_pk is already raw X25519, not an
// Ed25519 key, so this seals directly against it rather than going
// through EncryptWithEd25519Peer's Ed25519-to-X25519 conversion.
func (c *Client) sealAndShare(toSession, requesterCurvePK string, roomKey []byte) {
	requesterPub, err := base64.StdEncoding.DecodeString(requesterCurvePK)
	if err != nil || len(requesterPub) != 32 {
		return
	}
	sealed, err := sealToCurvePK(requesterPub, roomKey)
	if err != nil {
		c.log.Warn("seal room key failed", logger.Error(err))
		return
	}
	c.sendFrame(Frame{
		Type:   FrameKeyShare,
		To:     toSession,
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	})
}

func (c *Client) onKeyShare(f Frame) {
	if f.To != c.session {
		return
	}
	sealed, err := base64.StdEncoding.DecodeString(f.Sealed)
	if err != nil {
		return
	}
	opened, err := openFromCurvePK(c.curve, sealed)
	if err != nil {
		c.log.Warn("open sealed room key failed", logger.Error(err))
		return
	}
	c.setRoomKey(opened, "shared")
}

func (c *Client) mintRoomKey(outcome string) {
	key, err := seal.NewRoomKey()
	if err != nil {
		c.log.Warn("generate room key failed", logger.Error(err))
		return
	}
	c.setRoomKey(key, outcome)
}

func (c *Client) setRoomKey(key []byte, outcome string) {
	c.mu.Lock()
	c.e2e = true
	latch := c.roomKey
	c.mu.Unlock()
	latch.Set(key)
	metrics.RelayKeyExchanges.WithLabelValues(outcome).Inc()
	c.publish(uievent.Status(fmt.Sprintf("relay %s: end-to-end encryption active", c.url)))
}

func (c *Client) onMsg(f Frame) {
	key, ok := c.roomKey.Get()
	if !ok {
		return
	}
	envelope, err := base64.StdEncoding.DecodeString(f.Envelope)
	if err != nil {
		return
	}
	plaintext, err := seal.OpenSecretBox(key, envelope)
	if err != nil {
		// Decryption failure drops the message; the relay channel stays up.
		return
	}
	var m message.Message
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return
	}
	c.admitter.AdmitFromRelay(&m)
}

// Broadcast encrypts m under the held room key and sends it to the
// relay for forwarding to every other session. A caller that wants
// fan-out across both transports also calls the TCP peer network's
// Broadcast; the two are independent per spec.md §2.
func (c *Client) Broadcast(m *message.Message) error {
	key, ok := c.roomKey.Get()
	if !ok {
		return fmt.Errorf("relay: no room key yet")
	}
	plaintext, err := json.Marshal(m)
	if err != nil {
		return err
	}
	envelope, err := seal.SecretBox(key, plaintext)
	if err != nil {
		return err
	}
	return c.sendFrame(Frame{Type: FrameMsg, Envelope: base64.StdEncoding.EncodeToString(envelope)})
}

func (c *Client) publish(ev uievent.Event) {
	if c.ui != nil {
		c.ui.Publish(ev)
	}
}
