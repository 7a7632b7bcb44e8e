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
	"fmt"
	"net"
	"sync"
	"time"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
	"github.com/wisp-mesh/wisp/message"
	"github.com/wisp-mesh/wisp/store"
	"github.com/wisp-mesh/wisp/uievent"
)

// Config controls Node's listener, discovery, and timing behavior.
type Config struct {
	Name          string
	Tag           string
	PubkeyHex     string
	TCPPortBase   int
	TCPPortRange  int
	MulticastAddr string
	AnnounceEvery time.Duration
	Difficulty    int
}

func withConfigDefaults(cfg Config) Config {
	if cfg.TCPPortRange <= 0 {
		cfg.TCPPortRange = 10
	}
	if cfg.MulticastAddr == "" {
		cfg.MulticastAddr = "239.42.42.42:4200"
	}
	if cfg.AnnounceEvery <= 0 {
		cfg.AnnounceEvery = 10 * time.Second
	}
	if cfg.Difficulty <= 0 {
		cfg.Difficulty = message.DefaultDifficulty
	}
	return cfg
}

// nameBinding is one entry of claimed_names: the pubkey a name#tag has
// been monotonically bound to, and which live peer (if any) currently
// holds it.
type nameBinding struct {
	pubkeyHex string
	heldBy    *peer
}

// Node owns the peer table, claimed_names, and the TCP listener. Per
// spec.md §5's shared-resource policy, it is the single writer of both
// maps; external callers only reach them through Node's methods.
type Node struct {
	cfg   Config
	id    *wispcrypto.Identity
	miner *message.Miner
	log   *logger.StructuredLogger
	st    *store.Store
	ui    *uievent.Sink

	listener  net.Listener
	boundPort int

	mu      sync.Mutex
	peers   map[string]*peer // keyed by "name#tag"
	claimed map[string]*nameBinding
	seenIDs map[string]struct{}
	seq     int64

	// relayBroadcast, when set, fans a freshly originated message out to
	// every relay.Client the daemon holds (C5), alongside the TCP gossip
	// Broadcast already does (C4). Node never imports relay directly, so
	// this is wired from cmd/wispd after the relay clients are built.
	relayBroadcast func(*message.Message)

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

const seenIDsCap = 10000

// NewNode constructs a Node bound to st for admission/storage and ui
// for event reporting. id and miner are used only by Send, to mine and
// sign messages this node originates itself; a Node that only relays
// traffic for others may pass a nil miner and never call Send. Call
// Listen to start accepting connections.
func NewNode(cfg Config, id *wispcrypto.Identity, miner *message.Miner, st *store.Store, ui *uievent.Sink, log *logger.StructuredLogger) *Node {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	n := &Node{
		cfg:     withConfigDefaults(cfg),
		id:      id,
		miner:   miner,
		log:     log,
		st:      st,
		ui:      ui,
		peers:   make(map[string]*peer),
		claimed: make(map[string]*nameBinding),
		seenIDs: make(map[string]struct{}),
		stop:    make(chan struct{}),
	}
	return n
}

// SetRelayBroadcast wires fn to be called with every message this node
// originates via Send, alongside the TCP gossip fan-out.
func (n *Node) SetRelayBroadcast(fn func(*message.Message)) {
	n.mu.Lock()
	n.relayBroadcast = fn
	n.mu.Unlock()
}

// Listen binds the first available port in [TCPPortBase, TCPPortBase+TCPPortRange)
// and starts accepting inbound connections.
func (n *Node) Listen() error {
	var lastErr error
	for p := n.cfg.TCPPortBase; p < n.cfg.TCPPortBase+n.cfg.TCPPortRange; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			lastErr = err
			continue
		}
		n.listener = l
		n.boundPort = p
		n.wg.Add(1)
		go n.acceptLoop()
		n.wg.Add(1)
		go n.heartbeatLoop()
		n.log.Info("listening", logger.Int("port", p))
		return nil
	}
	return fmt.Errorf("netp2p: no free port in range [%d,%d): %w", n.cfg.TCPPortBase, n.cfg.TCPPortBase+n.cfg.TCPPortRange, lastErr)
}

// BoundPort returns the TCP port Listen succeeded on.
func (n *Node) BoundPort() int { return n.boundPort }

// Close stops accepting connections, closes every peer, and stops all
// background loops.
func (n *Node) Close() error {
	n.stopOnce.Do(func() { close(n.stop) })
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	peers := make([]*peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
	n.wg.Wait()
	return nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
				n.log.Warn("accept failed", logger.Error(err))
				return
			}
		}
		n.handleConn(conn, true)
	}
}

// Connect dials host:port and runs the symmetric handshake outbound.
func (n *Node) Connect(host string, port int) error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), helloTimeout)
	if err != nil {
		n.publish(uievent.Error(fmt.Sprintf("connect %s:%d: %v", host, port, err)))
		return err
	}
	n.handleConn(conn, false)
	return nil
}

func (n *Node) handleConn(conn net.Conn, inbound bool) {
	p := newPeer(conn, n, inbound)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runHandshake(p)
	}()
}

// runHandshake implements the symmetric hello exchange: write hello,
// then read hello with a 10s timeout, applying the rejection rules
// before installing the peer and syncing the store.
func (n *Node) runHandshake(p *peer) {
	p.setState(stateHelloSent)
	go p.sendLoop()

	hello := Frame{
		Type:    FrameHello,
		Name:    n.cfg.Name,
		Tag:     n.cfg.Tag,
		Pubkey:  n.cfg.PubkeyHex,
		TCPPort: n.boundPort,
	}
	if !p.enqueue(hello) {
		p.close()
		return
	}

	p.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	line, err := readOneLine(p.conn)
	if err != nil {
		n.log.Debug("handshake timeout or read failure", logger.Error(err))
		p.close()
		return
	}
	f, err := decodeFrame(line)
	if err != nil || f.Type != FrameHello {
		p.close()
		return
	}

	if f.Pubkey == n.cfg.PubkeyHex {
		p.close()
		return
	}

	peerID := f.Name + "#" + f.Tag

	n.mu.Lock()
	if _, exists := n.peers[peerID]; exists {
		n.mu.Unlock()
		p.close()
		return
	}
	if b, ok := n.claimed[f.Name]; ok && b.pubkeyHex != f.Pubkey {
		n.mu.Unlock()
		p.enqueue(Frame{Type: FrameNameTaken, Name: f.Name})
		p.close()
		return
	}
	p.mu.Lock()
	p.name, p.tag, p.pubkey, p.tcpPort = f.Name, f.Tag, f.Pubkey, f.TCPPort
	p.state = stateSync
	p.mu.Unlock()

	n.peers[peerID] = p
	n.claimed[f.Name] = &nameBinding{pubkeyHex: f.Pubkey, heldBy: p}
	n.mu.Unlock()

	metrics.PeersConnected.Inc()
	direction := "outbound"
	if p.inbound {
		direction = "inbound"
	}
	metrics.PeerConnects.WithLabelValues(direction).Inc()
	n.publish(uievent.PeerJoined(peerID))
	n.log.Debug("peer live", logger.String("peer", peerID))

	n.syncStore(p)
	p.setState(stateLive)

	p.readLoop()
}

// syncStore replays the full current broadcast set to a newly
// installed peer.
func (n *Node) syncStore(p *peer) {
	for _, m := range n.st.GetAll() {
		p.enqueue(Frame{Type: FrameMsg, Data: m})
	}
}

func readOneLine(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 512)
	one := make([]byte, 1)
	for {
		if len(buf) > MaxFrameBytes {
			return nil, fmt.Errorf("netp2p: hello frame too large")
		}
		nRead, err := conn.Read(one)
		if nRead > 0 {
			if one[0] == '\n' {
				return buf, nil
			}
			buf = append(buf, one[0])
		}
		if err != nil {
			return nil, err
		}
	}
}

// handleFrame dispatches a decoded frame from an already-live or
// syncing peer.
func (n *Node) handleFrame(p *peer, f Frame) {
	switch f.Type {
	case FrameHeartbeat:
		// lastSeen already refreshed by the caller.
	case FrameMsg:
		if f.Data == nil {
			return
		}
		n.admit(f.Data, p)
	case FrameHello, FrameNameTaken, FrameDiscover:
		// hello/name_taken only valid during handshake; discover is UDP-only.
	}
}

// admit runs the shared validation pipeline and, on success, adds to
// the store and gossips except-source, per spec.md §2's data flow.
func (n *Node) admit(m *message.Message, from *peer) {
	now := float64(time.Now().Unix())
	var binder nameBinderFunc = n.conflicts
	metrics.MessagesReceived.Inc()
	if err := message.Validate(m, now, n.cfg.Difficulty, n.cfg.PubkeyHex, binder); err != nil {
		metrics.MessagesRejected.WithLabelValues(string(errorReason(err))).Inc()
		return
	}

	n.mu.Lock()
	if _, dup := n.seenIDs[m.ID]; dup {
		n.mu.Unlock()
		return
	}
	n.seenIDs[m.ID] = struct{}{}
	if len(n.seenIDs) > seenIDsCap {
		n.seenIDs = make(map[string]struct{})
	}
	n.mu.Unlock()

	if !n.st.Add(m) {
		return
	}
	metrics.MessagesAccepted.Inc()
	metrics.StoreSize.Set(float64(n.st.Size()))
	n.publish(uievent.NewMsg(m))
	n.gossipExcept(m, from)
}

// AdmitFromRelay feeds a message decrypted off a relay's room key
// through the same admission pipeline TCP peers use, satisfying
// relay.Admitter. It has no TCP peer to exclude from gossip.
func (n *Node) AdmitFromRelay(m *message.Message) {
	n.admit(m, nil)
}

// nameBinderFunc adapts a function to message.NameBinder.
type nameBinderFunc func(name, tag, pubkeyHex string) bool

func (f nameBinderFunc) Conflicts(name, tag, pubkeyHex string) bool { return f(name, tag, pubkeyHex) }

func (n *Node) conflicts(name, tag, pubkeyHex string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.claimed[name]
	return ok && b.pubkeyHex != pubkeyHex
}

func errorReason(err error) message.RejectReason {
	if verr, ok := err.(*message.ValidationError); ok {
		return verr.Reason
	}
	return message.RejectMalformed
}

// Broadcast gossips m to every live peer; used for the sender's own
// freshly built message, which has no "source" to exclude.
func (n *Node) Broadcast(m *message.Message) {
	n.gossipExcept(m, nil)
	n.publish(uievent.MsgSent(m))
}

// Send implements uievent.SendFunc: it mines proof of work, signs with
// this node's identity, adds the result to the store, and fans it out
// over both transports per spec.md §2's outbound data flow (C1 → C3 →
// C4 AND C5). Mining runs on a background goroutine so a slow PoW
// difficulty never blocks the caller, matching the "hand work to the
// network executor and return immediately" contract UI callbacks are
// supposed to honor.
func (n *Node) Send(content string, contentType message.ContentType, board, threadID, threadTitle, replyTo string) {
	if n.id == nil || n.miner == nil {
		n.publish(uievent.Error("netp2p: node has no identity or miner configured for sending"))
		return
	}

	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.mu.Unlock()

	draft := message.Draft{
		PrevHash:    n.st.LastHash(),
		Content:     content,
		ContentType: contentType,
		Board:       board,
		ThreadID:    threadID,
		ThreadTitle: threadTitle,
		ReplyTo:     replyTo,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-n.stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		now := float64(time.Now().Unix())
		m, err := message.Build(ctx, draft, n.id, n.miner, n.cfg.Difficulty, now, seq)
		if err != nil {
			n.publish(uievent.Error(fmt.Sprintf("send: %v", err)))
			return
		}
		if !n.st.Add(m) {
			n.publish(uievent.Error("send: message id collision, dropped"))
			return
		}
		metrics.StoreSize.Set(float64(n.st.Size()))
		n.Broadcast(m)

		n.mu.Lock()
		relayBroadcast := n.relayBroadcast
		n.mu.Unlock()
		if relayBroadcast != nil {
			relayBroadcast(m)
		}
	}()
}

func (n *Node) gossipExcept(m *message.Message, from *peer) {
	n.mu.Lock()
	targets := make([]*peer, 0, len(n.peers))
	for _, p := range n.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	n.mu.Unlock()

	f := Frame{Type: FrameMsg, Data: m}
	for _, p := range targets {
		if !p.enqueue(f) {
			metrics.PeerDisconnects.WithLabelValues("write_failure").Inc()
		}
	}
}

// dropPeer removes p from the peer table and claimed_names (only if it
// still maps to p's pubkey), emits peer_left, and closes the
// connection.
func (n *Node) dropPeer(p *peer, reason string) {
	p.close()
	peerID := p.peerID()

	p.mu.Lock()
	name := p.name
	p.mu.Unlock()

	n.mu.Lock()
	if existing, ok := n.peers[peerID]; ok && existing == p {
		delete(n.peers, peerID)
	}
	if b, ok := n.claimed[name]; ok && b.heldBy == p {
		delete(n.claimed, name)
	}
	n.mu.Unlock()

	metrics.PeersConnected.Dec()
	metrics.PeerDisconnects.WithLabelValues(reason).Inc()
	n.publish(uievent.PeerLeft(peerID))
}

func (n *Node) heartbeatLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.sendHeartbeats()
			n.dropSilentPeers()
		case <-n.stop:
			return
		}
	}
}

func (n *Node) sendHeartbeats() {
	n.mu.Lock()
	targets := make([]*peer, 0, len(n.peers))
	for _, p := range n.peers {
		targets = append(targets, p)
	}
	n.mu.Unlock()

	for _, p := range targets {
		p.enqueue(Frame{Type: FrameHeartbeat, Name: n.cfg.Name, Tag: n.cfg.Tag})
	}
}

func (n *Node) dropSilentPeers() {
	n.mu.Lock()
	var silent []*peer
	for _, p := range n.peers {
		if p.idleFor() > silenceTimeout {
			silent = append(silent, p)
		}
	}
	n.mu.Unlock()

	for _, p := range silent {
		n.dropPeer(p, "timeout")
	}
}

func (n *Node) publish(ev uievent.Event) {
	if n.ui != nil {
		n.ui.Publish(ev)
	}
}

// PeerCount returns the number of live peers, used by the health and
// metrics wiring.
func (n *Node) PeerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers)
}

// connectedPeerIDs returns the "name#tag" peer-id of every live peer, used by
// discovery to avoid redialing an already-connected peer-id.
func (n *Node) connectedPeerIDs() map[string]struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]struct{}, len(n.peers))
	for id := range n.peers {
		out[id] = struct{}{}
	}
	return out
}
