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
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
)

const (
	maxPeerSessions   = 500
	maxScannerConns   = 20
	idleTimeout       = 5 * time.Minute
	sessionRateLimit  = 10 // messages per second
	sessionRateBurst  = 20
	forwardDelayFloor = 50 * time.Millisecond
	forwardDelaySpan  = 250 * time.Millisecond // delay ∈ [50ms, 300ms)
)

// session is one connected peer's server-side relay state.
type session struct {
	id       string
	curvePK  string
	conn     *websocket.Conn
	outbox   chan Frame
	limiter  *rate.Limiter
	lastSeen time.Time

	mu sync.Mutex
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// Server is the untrusted blind forwarder (spec.md §4.5): it never
// reads envelope plaintext, only dispatches frames by type among
// sessions attached to one relay cluster, applying a per-session rate
// limit and a randomized forwarding delay. It is an explicit value —
// never a package-level singleton — so a process can host more than
// one relay cluster.
type Server struct {
	upgrader websocket.Upgrader
	log      *logger.StructuredLogger

	mu       sync.Mutex
	sessions map[string]*session
	scanners map[*websocket.Conn]chan []byte

	relayWallet string
	startedAt   time.Time
}

// NewServer constructs an empty relay Server.
func NewServer(log *logger.StructuredLogger) *Server {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:       log,
		sessions:  make(map[string]*session),
		scanners:  make(map[*websocket.Conn]chan []byte),
		startedAt: time.Now(),
	}
}

// SetRelayWallet sets the optional wallet address broadcast to scanners
// and relay_wallet frames; the on-chain side channel is adjacent to,
// not part of, the gossip core (spec.md §9).
func (s *Server) SetRelayWallet(addr string) {
	s.mu.Lock()
	s.relayWallet = addr
	s.mu.Unlock()
}

// PeerHandler upgrades and services peer WebSocket connections.
func (s *Server) PeerHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		full := len(s.sessions) >= maxPeerSessions
		s.mu.Unlock()
		if full {
			http.Error(w, "relay full", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.servePeer(conn)
	})
}

// ScanHandler upgrades and services metadata-only scanner connections.
func (s *Server) ScanHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		full := len(s.scanners) >= maxScannerConns
		s.mu.Unlock()
		if full {
			http.Error(w, "scanner slots full", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.serveScanner(conn)
	})
}

func (s *Server) servePeer(conn *websocket.Conn) {
	sess := &session{
		conn:     conn,
		outbox:   make(chan Frame, 64),
		limiter:  rate.NewLimiter(rate.Limit(sessionRateLimit), sessionRateBurst),
		lastSeen: time.Now(),
	}
	defer conn.Close()

	var writerWG sync.WaitGroup
	done := make(chan struct{})
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		s.sessionSendLoop(sess, done)
	}()
	defer func() {
		close(done)
		writerWG.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(idleTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if len(data) > MaxFrameBytes {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if sess.id != "" && !sess.limiter.Allow() {
			metrics.RelayRateLimited.Inc()
			continue
		}
		sess.touch()
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		s.handlePeerFrame(sess, f)
	}

	if sess.id != "" {
		s.removeSession(sess.id)
	}
}

func (s *Server) sessionSendLoop(sess *session, done <-chan struct{}) {
	for {
		select {
		case f, ok := <-sess.outbox:
			if !ok {
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			sess.conn.SetWriteDeadline(time.Now().Add(idleTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handlePeerFrame implements the forwarding-rule table of spec.md §4.5.
func (s *Server) handlePeerFrame(sess *session, f Frame) {
	switch f.Type {
	case FrameHello:
		s.installSession(sess, f)
	case FrameKeyShare:
		s.forwardDirect(f.To, f)
	case FrameKeyRequest, FrameMsg:
		s.forwardDelayedExcept(sess.id, f)
	case FrameHeartbeat:
		// no-op
	default:
		// unrecognized frame types are dropped
	}
}

func (s *Server) installSession(sess *session, f Frame) {
	id := f.Session
	s.mu.Lock()
	if id == "" {
		id = uuid.NewString()
	} else if _, taken := s.sessions[id]; taken {
		id = uuid.NewString()
	}
	sess.id = id
	sess.curvePK = f.CurvePK
	peers := make([]PeerInfo, 0, len(s.sessions))
	for _, other := range s.sessions {
		peers = append(peers, PeerInfo{Session: other.id, CurvePK: other.curvePK})
	}
	s.sessions[id] = sess
	count := len(peers)
	s.mu.Unlock()

	metrics.RelaySessions.Set(float64(len(s.sessions)))
	sess.outbox <- Frame{Type: FrameRelayPeers, Peers: peers, Count: count}
	s.forwardDelayedExcept(id, Frame{Type: FrameRelayJoin, Session: id, CurvePK: f.CurvePK})
	s.broadcastScan("peer_join", map[string]any{"session": id})
}

func (s *Server) forwardDirect(toSession string, f Frame) {
	s.mu.Lock()
	target, ok := s.sessions[toSession]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case target.outbox <- f:
		metrics.RelayForwarded.Inc()
	default:
		s.dropDeadSession(target)
	}
}

// forwardDelayedExcept forwards f to every session but fromID, each
// after an independent random 50-300ms delay, to frustrate
// timing-correlation of who sent what (spec.md §4.5).
func (s *Server) forwardDelayedExcept(fromID string, f Frame) {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if id != fromID {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	for _, target := range targets {
		target := target
		delay := forwardDelayFloor + time.Duration(rand.Int63n(int64(forwardDelaySpan)))
		time.AfterFunc(delay, func() {
			select {
			case target.outbox <- f:
				metrics.RelayForwarded.Inc()
			default:
				s.dropDeadSession(target)
			}
		})
	}
	s.broadcastScan("activity", map[string]any{"type": f.Type})
}

func (s *Server) dropDeadSession(sess *session) {
	if sess.id == "" {
		return
	}
	s.removeSession(sess.id)
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !existed {
		return
	}
	s.log.Debug("relay session removed", logger.String("session", id))
	metrics.RelaySessions.Set(float64(len(s.sessions)))
	s.forwardDelayedExcept(id, Frame{Type: FrameRelayLeave, Left: id})
	s.broadcastScan("peer_leave", map[string]any{"session": id})
}

// Snapshot is the /scan feed's initial metadata-only payload.
type Snapshot struct {
	PeersOnline      int     `json:"peers_online"`
	TotalMessages    int64   `json:"total_messages"`
	TotalConnections int64   `json:"total_connections"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	RelayWallet      string  `json:"relay_wallet,omitempty"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryMB         float64 `json:"memory_mb"`
}

func (s *Server) serveScanner(conn *websocket.Conn) {
	ch := make(chan []byte, 32)
	s.mu.Lock()
	s.scanners[conn] = ch
	peersOnline := len(s.sessions)
	wallet := s.relayWallet
	uptime := time.Since(s.startedAt).Seconds()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.scanners, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	cpuPercent, memoryMB := processStats()
	snap, _ := json.Marshal(struct {
		Type string `json:"type"`
		Snapshot
	}{Type: "snapshot", Snapshot: Snapshot{
		PeersOnline:   peersOnline,
		RelayWallet:   wallet,
		UptimeSeconds: uptime,
		CPUPercent:    cpuPercent,
		MemoryMB:      memoryMB,
	}})
	conn.WriteMessage(websocket.TextMessage, snap)

	go func() {
		for data := range ch {
			conn.SetWriteDeadline(time.Now().Add(idleTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Scanners are read-only; drain and discard any inbound traffic
	// until the socket closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcastScan(eventType string, fields map[string]any) {
	fields["type"] = eventType
	fields["ts"] = time.Now().Unix()
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.scanners {
		select {
		case ch <- data:
		default:
		}
	}
}

// SessionCount returns the number of currently attached peer sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
