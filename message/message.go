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

// Package message implements the gossip message object: canonical
// serialization, hashcash-style proof of work, Ed25519 signature
// binding, and the reject taxonomy applied at admission.
package message

import (
	"strings"

	"github.com/google/uuid"
)

// ContentType is the closed set of message payload kinds.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentCode ContentType = "code"
	ContentFile ContentType = "file"
)

// GenesisHash is the prev_hash value used by a peer's first message: 64 hex zeros.
var GenesisHash = strings.Repeat("0", 64)

// MaxContentLen is the default cap on content length for non-file messages.
const MaxContentLen = 4096

// DefaultTTL is the default message time-to-live, in seconds.
const DefaultTTL = 1440

// DefaultDifficulty is the default proof-of-work difficulty.
const DefaultDifficulty = 20

// Message is an immutable gossip record. Fields are never mutated after
// Build/Sign populate them; a received Message is either admitted as-is
// or dropped.
type Message struct {
	ID           string      `json:"id"`
	PrevHash     string      `json:"prev_hash"`
	AuthorName   string      `json:"author_name"`
	AuthorTag    string      `json:"author_tag"`
	AuthorPubkey string      `json:"author_pubkey"`
	Content      string      `json:"content"`
	ContentType  ContentType `json:"content_type"`
	Timestamp    float64     `json:"timestamp"`
	TTL          int         `json:"ttl"`
	Board        string      `json:"board"`
	ThreadID     string      `json:"thread_id"`
	ThreadTitle  string      `json:"thread_title"`
	ReplyTo      string      `json:"reply_to"`
	Nonce        string      `json:"nonce"`
	PowHash      string      `json:"pow_hash"`
	Signature    string      `json:"signature"`

	// Seq is a monotonic counter local to this author's own chain of
	// messages: the Nth message the sending node has built since it
	// started (the counter is not persisted across restarts). It is
	// purely informational, additive to prev_hash, and never part of
	// the PoW or signature preimage, so a message with seq stripped
	// still verifies; it exists only to break ties when two messages
	// share a timestamp.
	Seq int64 `json:"seq,omitempty"`

	FileName string `json:"file_name,omitempty"`
	FileData string `json:"file_data,omitempty"`
	FileSize int    `json:"file_size,omitempty"`
}

// NewID generates a fresh sender-chosen message id.
func NewID() string {
	return uuid.NewString()
}

// ExpiresAt returns the wall-clock second at which m becomes expired.
func (m *Message) ExpiresAt() float64 {
	return m.Timestamp + float64(m.TTL)
}

// IsExpired reports whether m has expired as of now (seconds since epoch).
func (m *Message) IsExpired(now float64) bool {
	return now >= m.ExpiresAt()
}

// Preview returns the first 60 characters of content, used by thread
// listings; shorter content is returned unchanged.
func (m *Message) Preview() string {
	runes := []rune(m.Content)
	if len(runes) <= 60 {
		return m.Content
	}
	return string(runes[:60])
}
