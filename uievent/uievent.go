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

// Package uievent defines the closed set of events the core network
// and relay layers emit toward a terminal UI (or any other frontend),
// and the callback signatures a UI supplies back into the core. The UI
// itself lives outside this repository; this package is only the
// boundary contract.
package uievent

import "github.com/wisp-mesh/wisp/message"

// Kind is the closed set of UI event tags.
type Kind string

const (
	KindNewMsg     Kind = "new_msg"
	KindMsgSent    Kind = "msg_sent"
	KindPeerJoined Kind = "peer_joined"
	KindPeerLeft   Kind = "peer_left"
	KindStatus     Kind = "status"
	KindError      Kind = "error"
	KindE2E        Kind = "e2e"
)

// Event is a single tagged event. Exactly the field matching Kind is
// populated; the others are left zero.
type Event struct {
	Kind Kind

	Msg    *message.Message
	PeerID string
	Text   string
	E2E    bool
}

func NewMsg(m *message.Message) Event  { return Event{Kind: KindNewMsg, Msg: m} }
func MsgSent(m *message.Message) Event { return Event{Kind: KindMsgSent, Msg: m} }
func PeerJoined(peerID string) Event   { return Event{Kind: KindPeerJoined, PeerID: peerID} }
func PeerLeft(peerID string) Event     { return Event{Kind: KindPeerLeft, PeerID: peerID} }
func Status(text string) Event         { return Event{Kind: KindStatus, Text: text} }
func Error(text string) Event          { return Event{Kind: KindError, Text: text} }
func E2E(active bool) Event            { return Event{Kind: KindE2E, E2E: active} }

// Sink is a bounded MPSC queue of events: many producers (the
// network task, the relay task, the mining worker) push into one
// consumer (the UI). Buffered generously and drained continuously by
// the UI; Publish never blocks a producer on a slow or absent
// consumer, since a network-layer goroutine must never stall waiting
// on UI rendering.
type Sink struct {
	ch chan Event
}

// NewSink creates a Sink. capacity bounds how many events may queue
// before Publish starts dropping the oldest ones — dropping display
// events is preferable to ever blocking the gossip path on a UI that
// has fallen behind.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Sink{ch: make(chan Event, capacity)}
}

// Publish enqueues ev, dropping the oldest queued event to make room
// if the sink is full.
func (s *Sink) Publish(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// Events returns the receive side of the queue for the UI to range over.
func (s *Sink) Events() <-chan Event {
	return s.ch
}

// SendFunc is the UI-supplied callback for originating a new message;
// implementations hand the draft to the network task and return
// immediately without waiting for mining or delivery.
type SendFunc func(content string, contentType message.ContentType, board, threadID, threadTitle, replyTo string)

// ConnectFunc is the UI-supplied callback for a manual outbound
// connection request.
type ConnectFunc func(host string, port int)
