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

// Package netp2p is the direct TCP gossip transport: handshake, peer
// table, broadcast, LAN discovery, and heartbeat/timeout.
package netp2p

import (
	"encoding/json"

	"github.com/wisp-mesh/wisp/message"
)

// MaxFrameBytes is the largest NDJSON line accepted on a TCP
// connection; oversized frames are dropped without closing the
// connection. UDP discovery datagrams have their own, smaller bound.
const MaxFrameBytes = 64 * 1024

// FrameType is the closed set of NDJSON frame kinds exchanged over TCP.
type FrameType string

const (
	FrameHello     FrameType = "hello"
	FrameMsg       FrameType = "msg"
	FrameHeartbeat FrameType = "heartbeat"
	FrameNameTaken FrameType = "name_taken"
	FrameDiscover  FrameType = "discover"
)

// Frame is the envelope every NDJSON line decodes into; exactly one of
// the optional fields is populated depending on Type.
type Frame struct {
	Type FrameType `json:"type"`

	// hello / discover
	Name    string `json:"name,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Pubkey  string `json:"pubkey,omitempty"`
	TCPPort int    `json:"tcp_port,omitempty"`

	// msg
	Data *message.Message `json:"data,omitempty"`
}

// encodeFrame marshals f as a single NDJSON line, including the
// trailing newline.
func encodeFrame(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decodeFrame(line []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(line, &f)
	return f, err
}
