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

// Package relay implements the untrusted WebSocket privacy layer:
// the client half that joins a relay and exchanges a room key
// (spec.md §4.4), and the server half that blindly forwards frames
// between sessions (spec.md §4.5).
package relay

// FrameType is the closed set of relay WebSocket frame kinds.
type FrameType string

const (
	FrameHello      FrameType = "hello"
	FrameRelayPeers FrameType = "relay_peers"
	FrameRelayJoin  FrameType = "relay_join"
	FrameRelayLeave FrameType = "relay_leave"
	FrameKeyRequest FrameType = "key_request"
	FrameKeyShare   FrameType = "key_share"
	FrameMsg        FrameType = "msg"
	FrameHeartbeat  FrameType = "heartbeat"
)

// PeerInfo is one entry of a relay_peers snapshot.
type PeerInfo struct {
	Session string `json:"session"`
	CurvePK string `json:"curve_pk"`
}

// Frame is the envelope every relay WebSocket JSON text frame decodes
// into; exactly the fields relevant to Type are populated.
type Frame struct {
	Type FrameType `json:"type"`

	// hello / key_request / relay_join
	Session string `json:"session,omitempty"`
	CurvePK string `json:"curve_pk,omitempty"`

	// relay_peers
	Peers []PeerInfo `json:"peers,omitempty"`
	Count int        `json:"count,omitempty"`

	// key_share
	To     string `json:"to,omitempty"`
	Sealed string `json:"sealed,omitempty"`

	// msg
	Envelope string `json:"envelope,omitempty"`

	// relay_leave
	Left string `json:"left,omitempty"`
}

// MaxFrameBytes bounds a single relay WebSocket text frame (spec.md §4.5).
const MaxFrameBytes = 64 * 1024
