// Package bn254 adapts github.com/consensys/gnark-crypto/ecc/bn254 field
// and curve types to the two projections the verifier needs: the raw
// little-endian byte form used for PDA-style address derivation
// (skip_mr), and the Montgomery-reduced canonical form used for equality
// against persisted state (reduce). Its only pairing is the one-shot
// Pair; the resumable pairing steps live in the sibling verifier package.
package bn254

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// RawU256 is the unreduced, little-endian byte representation of a field
// element. It is the form stored for PDA derivation and for bookkeeping
// inside a VerificationAccount.
type RawU256 [32]byte

// MrU256 is the Montgomery-reduced canonical form of a field element. It
// is the only form storage, nullifier-set, and root-validity APIs accept.
type MrU256 [32]byte

// Bytes returns the raw little-endian bytes of r.
func (r RawU256) Bytes() []byte {
	return r[:]
}

// Bytes returns the canonical bytes of m.
func (m MrU256) Bytes() []byte {
	return m[:]
}

// Reduce projects a RawU256 into its Montgomery-reduced canonical form by
// round-tripping it through fr.Element, matching the "reduce" projection
// used throughout storage and nullifier-set comparisons.
func (r RawU256) Reduce() MrU256 {
	var e fr.Element
	e.SetBytes(reverse(r[:]))
	b := e.Bytes()
	var m MrU256
	copy(m[:], reverseSlice(b[:]))
	return m
}

// SkipMR returns the raw byte form of m. Since MrU256 already holds
// canonical little-endian bytes, SkipMR is the identity projection back
// to RawU256, used
// used when a reduced value must be re-keyed as PDA seed material.
func (m MrU256) SkipMR() RawU256 {
	return RawU256(m)
}

// U256FromString builds a RawU256 from a decimal string, little-endian.
// Panics on a
// malformed string; only used to construct literal test vectors.
func U256FromString(s string) RawU256 {
	var e fr.Element
	if _, err := e.SetString(s); err != nil {
		panic(err)
	}
	b := e.Bytes()
	var r RawU256
	copy(r[:], reverseSlice(b[:]))
	return r
}

// IsZero reports whether r is the all-zero value.
func (r RawU256) IsZero() bool {
	return r == RawU256{}
}

// IsZero reports whether m is the all-zero value.
func (m MrU256) IsZero() bool {
	return m == MrU256{}
}

func reverse(b []byte) []byte {
	return reverseSlice(b)
}

func reverseSlice(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
