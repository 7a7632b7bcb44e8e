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

package keys

import (
	"bytes"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/hkdf"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

// X25519KeyPair holds an X25519 private key and its corresponding public
// key bytes. Wisp mints one of these per relay client, kept across that
// client's reconnects, deriving it
// from the peer's long-lived Ed25519 identity via convertEd25519PrivToX25519
// so the curve_pk advertised to a relay is reproducible without storing
// a second secret.
type X25519KeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
	id         string
}

// GenerateX25519KeyPair generates a new ephemeral X25519 key pair.
func GenerateX25519KeyPair() (wispcrypto.KeyPair, error) {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral ECDH key: %w", err)
	}
	return newX25519KeyPair(privateKey), nil
}

// X25519FromEd25519 derives an X25519 key pair from an existing Ed25519
// identity, so a peer's relay curve_pk is deterministic across
// reconnects of the same identity within one process.
func X25519FromEd25519(kp wispcrypto.KeyPair) (*X25519KeyPair, error) {
	xPrivBytes, err := convertEd25519PrivToX25519(kp.PrivateKey())
	if err != nil {
		return nil, err
	}
	privateKey, err := ecdh.X25519().NewPrivateKey(xPrivBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to build X25519 private key: %w", err)
	}
	return newX25519KeyPair(privateKey), nil
}

func newX25519KeyPair(privateKey *ecdh.PrivateKey) *X25519KeyPair {
	publicKey := privateKey.PublicKey()
	hash := sha256.Sum256(publicKey.Bytes())
	return &X25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         hex.EncodeToString(hash[:8]),
	}
}

// PublicKey returns the public key.
func (kp *X25519KeyPair) PublicKey() crypto.PublicKey {
	return kp.publicKey
}

// PublicBytesKey returns the public key as raw bytes.
func (kp *X25519KeyPair) PublicBytesKey() []byte {
	return kp.publicKey.Bytes()
}

// PrivateKey returns the private key.
func (kp *X25519KeyPair) PrivateKey() crypto.PrivateKey {
	return kp.privateKey
}

// Type returns the key type.
func (kp *X25519KeyPair) Type() wispcrypto.KeyType {
	return wispcrypto.KeyTypeX25519
}

// ID returns a unique identifier for this key pair.
func (kp *X25519KeyPair) ID() string {
	return kp.id
}

// Sign always fails: X25519 is an agreement-only algorithm.
func (kp *X25519KeyPair) Sign(message []byte) ([]byte, error) {
	return nil, wispcrypto.ErrSignNotSupported
}

// Verify always fails: X25519 is an agreement-only algorithm.
func (kp *X25519KeyPair) Verify(message, signature []byte) error {
	return wispcrypto.ErrVerifyNotSupported
}

// DeriveSharedSecret computes a 32-byte session key from an X25519 ECDH
// exchange: SHA-256 of the raw 32-byte ECDH output.
func (kp *X25519KeyPair) DeriveSharedSecret(peerPubBytes []byte) ([]byte, error) {
	curve := ecdh.X25519()
	peerPub, err := curve.NewPublicKey(peerPubBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse peer public key: %w", err)
	}
	shared, err := kp.privateKey.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	sum := sha256.Sum256(shared)
	return sum[:], nil
}

// Encrypt performs ECIES-like encryption using X25519 ECDH: derives a
// shared key with recipientPub and seals plaintext under AES-256-GCM.
func (kp *X25519KeyPair) Encrypt(recipientPub []byte, plaintext []byte) (nonce, ciphertext []byte, err error) {
	key, err := kp.DeriveSharedSecret(recipientPub)
	if err != nil {
		return nil, nil, err
	}
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// DecryptWithX25519 reverses Encrypt.
func (kp *X25519KeyPair) DecryptWithX25519(ephPub, nonce, ciphertext []byte) ([]byte, error) {
	key, err := kp.DeriveSharedSecret(ephPub)
	if err != nil {
		return nil, err
	}
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// EncryptWithEd25519Peer performs ephemeral-static "sealed box" encryption
// against a recipient's Ed25519 identity key: it generates a fresh X25519
// key pair, converts the peer's Ed25519 public key to X25519, runs ECDH,
// derives an AES key via HKDF over the transcript, and seals the
// plaintext. The recipient learns only the ephemeral public key, never
// who sealed the message. The relay room-key exchange gets the same
// property from its own sealer against a raw X25519 key, not from this
// function.
// Returns payload = ephPub(32) || nonce(12) || ciphertext.
func EncryptWithEd25519Peer(edPeerPub crypto.PublicKey, plaintext []byte) ([]byte, error) {
	kp, err := GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	peerX, err := convertEd25519PubToX25519(edPeerPub)
	if err != nil {
		return nil, err
	}
	peerPubKey, err := ecdh.X25519().NewPublicKey(peerX)
	if err != nil {
		return nil, err
	}
	privKey, ok := kp.PrivateKey().(*ecdh.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type")
	}
	raw, err := sharedSecret(privKey.ECDH(peerPubKey))
	if err != nil {
		return nil, err
	}
	pubKey, ok := kp.PublicKey().(*ecdh.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}
	transcript := bytes.Join([][]byte{pubKey.Bytes(), peerX}, nil)
	key, err := deriveHKDFKey(raw, transcript)
	if err != nil {
		return nil, err
	}
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, transcript)
	return bytes.Join([][]byte{pubKey.Bytes(), nonce, ct}, nil), nil
}

// DecryptWithEd25519Peer reverses EncryptWithEd25519Peer.
func DecryptWithEd25519Peer(privateKey crypto.PrivateKey, packet []byte) ([]byte, error) {
	const ePubLen = 32
	if len(packet) < ePubLen+12 {
		return nil, fmt.Errorf("packet too short")
	}
	ePubBytes := packet[:ePubLen]
	nonce := packet[ePubLen : ePubLen+12]
	ct := packet[ePubLen+12:]

	ePubKey, err := ecdh.X25519().NewPublicKey(ePubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}
	selfXPrivBytes, err := convertEd25519PrivToX25519(privateKey)
	if err != nil {
		return nil, err
	}
	selfXPrivKey, err := ecdh.X25519().NewPrivateKey(selfXPrivBytes)
	if err != nil {
		return nil, err
	}
	raw, err := sharedSecret(selfXPrivKey.ECDH(ePubKey))
	if err != nil {
		return nil, err
	}
	selfXPub := selfXPrivKey.PublicKey()
	transcript := bytes.Join([][]byte{ePubBytes, selfXPub.Bytes()}, nil)
	key, err := deriveHKDFKey(raw, transcript)
	if err != nil {
		return nil, err
	}
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ct, transcript)
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// deriveHKDFKey derives a 32-byte AES key using HKDF-SHA256, with the
// transcript as salt and the fixed label "wisp-sealed-box-v1" as info.
func deriveHKDFKey(raw, transcript []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, raw, transcript, []byte("wisp-sealed-box-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// convertEd25519PrivToX25519 turns an Ed25519 private key into the
// X25519 scalar per RFC 8032 §5.1.5.
func convertEd25519PrivToX25519(privKey crypto.PrivateKey) ([]byte, error) {
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("expected ed25519.PrivateKey, got %T", privKey)
	}
	if l := len(edPriv); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("bad Ed25519 priv length: %d", l)
	}
	seed := edPriv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	var xPriv [32]byte
	copy(xPriv[:], h[:32])
	return xPriv[:], nil
}

// convertEd25519PubToX25519 turns an Ed25519 public key into the X25519
// public key by decompressing the Edwards point and projecting it onto
// the Montgomery curve.
func convertEd25519PubToX25519(pubKey crypto.PublicKey) ([]byte, error) {
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("expected ed25519.PublicKey, got %T", pubKey)
	}
	if l := len(edPub); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("bad Ed25519 pub length: %d", l)
	}
	P, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 pub: %w", err)
	}
	return P.BytesMontgomery(), nil
}

func sharedSecret(dh []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(dh, zero[:]) == 1 {
		return nil, fmt.Errorf("x25519: low-order or identity point")
	}
	return dh, nil
}
