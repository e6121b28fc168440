// Package types defines the core data representations shared across the
// shielded-pool verification program: 32-byte hashes and public keys. The
// raw/reduced field-element projections live in internal/bn254.
package types

import (
	"encoding/hex"
)

const (
	// HashSize is the size in bytes of a BN254 scalar-field element
	// serialized little-endian, and of a derived PDA-style address.
	HashSize = 32

	// PublicKeySize is the size in bytes of an account public key.
	PublicKeySize = 32
)

// Hash is a 32-byte content-addressed value: a nullifier hash, a
// commitment, or a Merkle root, depending on context.
type Hash [HashSize]byte

// PublicKey identifies an account (pool, fee-collector, fee-payer,
// recipient, or a derived PDA).
type PublicKey [PublicKeySize]byte

// EmptyHash is the zero hash.
var EmptyHash = Hash{}

// EmptyPublicKey is the zero public key.
var EmptyPublicKey = PublicKey{}

// IsEmpty reports whether h is the zero hash.
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the hex representation of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes copies up to HashSize bytes of b into a new Hash.
func HashFromBytes(b []byte) Hash {
	var h Hash
	n := len(b)
	if n > HashSize {
		n = HashSize
	}
	copy(h[:], b[:n])
	return h
}

// Bytes returns k as a byte slice.
func (k PublicKey) Bytes() []byte {
	return k[:]
}

// String returns the hex representation of k.
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// IsEmpty reports whether k is the zero public key.
func (k PublicKey) IsEmpty() bool {
	return k == EmptyPublicKey
}

// PublicKeyFromBytes copies up to PublicKeySize bytes of b into a new
// PublicKey.
func PublicKeyFromBytes(b []byte) PublicKey {
	var k PublicKey
	n := len(b)
	if n > PublicKeySize {
		n = PublicKeySize
	}
	copy(k[:], b[:n])
	return k
}
