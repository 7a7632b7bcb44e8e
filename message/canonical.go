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

package message

import "encoding/json"

// canonicalEncode marshals fields as a compact JSON object. Go's
// encoding/json always emits map[string]any keys in lexicographic
// order and never inserts insignificant whitespace, which is exactly
// the canonical form the proof-of-work and signature preimages need.
func canonicalEncode(fields map[string]interface{}) ([]byte, error) {
	return json.Marshal(fields)
}

// powFields is the set of Message fields canonical for the PoW preimage.
func powFields(m *Message) map[string]interface{} {
	return map[string]interface{}{
		"id":            m.ID,
		"prev_hash":     m.PrevHash,
		"author_name":   m.AuthorName,
		"author_tag":    m.AuthorTag,
		"author_pubkey": m.AuthorPubkey,
		"content":       m.Content,
		"content_type":  m.ContentType,
		"timestamp":     m.Timestamp,
		"ttl":           m.TTL,
		"board":         m.Board,
		"thread_id":     m.ThreadID,
		"thread_title":  m.ThreadTitle,
		"reply_to":      m.ReplyTo,
	}
}

// PowPreimage returns the canonical byte string mined and verified
// against pow_hash.
func PowPreimage(m *Message) ([]byte, error) {
	return canonicalEncode(powFields(m))
}

// SigPreimage returns the canonical byte string signed and verified
// against the author's signature: the PoW fields plus the PoW witness
// (nonce, pow_hash), per spec.md §3.
func SigPreimage(m *Message) ([]byte, error) {
	fields := powFields(m)
	fields["nonce"] = m.Nonce
	fields["pow_hash"] = m.PowHash
	return canonicalEncode(fields)
}
