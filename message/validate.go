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

import "fmt"

// RejectReason is the closed set of admission-time rejection causes,
// used for metrics labels and logging; never wire-serialized.
type RejectReason string

const (
	RejectMalformed   RejectReason = "malformed"
	RejectOversized   RejectReason = "oversized"
	RejectExpired     RejectReason = "expired"
	RejectBadPoW      RejectReason = "bad_pow"
	RejectBadSig      RejectReason = "bad_signature"
	RejectNameClaimed RejectReason = "name_claimed"
	RejectDuplicate   RejectReason = "duplicate"
	RejectSelf        RejectReason = "self_authored"
	RejectTagMismatch RejectReason = "tag_mismatch"
)

// ValidationError pairs a RejectReason with a human-readable cause.
type ValidationError struct {
	Reason RejectReason
	Cause  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("message rejected (%s): %s", e.Reason, e.Cause)
}

func reject(reason RejectReason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Cause: fmt.Sprintf(format, args...)}
}

// NameBinder resolves whether a (name, tag) pair is already bound to a
// different verify key than pubkeyHex, per the monotonic claimed-names
// rule in spec.md §4.2.
type NameBinder interface {
	Conflicts(name, tag, pubkeyHex string) bool
}

// Validate runs the full admission pipeline against m: structural
// bounds, expiry, proof of work, and the Ed25519 signature. It does not
// check for duplicate ids (the store owns that, since it requires a
// lock) or name binding (callers pass a NameBinder when one is wired
// in); selfPubkeyHex, when non-empty, rejects loopback of a peer's own
// broadcast. Message ids are chosen by the sender, and nothing here
// stops one author from reusing an id another author already picked:
// a node keeps whichever copy it admits first and drops the later one
// as a duplicate.
func Validate(m *Message, now float64, difficulty int, selfPubkeyHex string, binder NameBinder) error {
	if m.ID == "" || m.AuthorPubkey == "" || m.Signature == "" || m.Nonce == "" || m.PowHash == "" {
		return reject(RejectMalformed, "missing required field")
	}
	switch m.ContentType {
	case ContentText, ContentCode, ContentFile:
	default:
		return reject(RejectMalformed, "unknown content_type %q", m.ContentType)
	}
	if m.ContentType != ContentFile && len([]rune(m.Content)) > MaxContentLen {
		return reject(RejectOversized, "content exceeds %d characters", MaxContentLen)
	}
	if m.TTL <= 0 {
		return reject(RejectMalformed, "ttl must be positive")
	}
	if len(m.AuthorPubkey) < 4 || m.AuthorTag != m.AuthorPubkey[:4] {
		return reject(RejectTagMismatch, "author_tag %q does not match first4(author_pubkey)", m.AuthorTag)
	}

	if selfPubkeyHex != "" && m.AuthorPubkey == selfPubkeyHex {
		return reject(RejectSelf, "message authored by this node")
	}

	if m.IsExpired(now) {
		return reject(RejectExpired, "expired at %.0f, now %.0f", m.ExpiresAt(), now)
	}

	preimage, err := PowPreimage(m)
	if err != nil {
		return reject(RejectMalformed, "build pow preimage: %v", err)
	}
	if !VerifyPoW(preimage, m.Nonce, m.PowHash, difficulty) {
		return reject(RejectBadPoW, "proof of work does not meet difficulty %d", difficulty)
	}

	if !VerifySignature(m) {
		return reject(RejectBadSig, "ed25519 signature verification failed")
	}

	if binder != nil && binder.Conflicts(m.AuthorName, m.AuthorTag, m.AuthorPubkey) {
		return reject(RejectNameClaimed, "name %s#%s already bound to a different key", m.AuthorName, m.AuthorTag)
	}

	return nil
}
