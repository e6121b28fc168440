package bn254

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Re-exported so callers of this package never import gnark-crypto
// directly; every curve-level type the verifier touches funnels through
// here.
type (
	G1Affine = bn254.G1Affine
	G1Jac    = bn254.G1Jac
	G2Affine = bn254.G2Affine
	G2Jac    = bn254.G2Jac
	Fq       = fp.Element
	Fq2      = bn254.E2
	Fq6      = bn254.E6
	Fq12     = bn254.E12
	Scalar   = fr.Element
)

// Pair computes the product of pairings over the given point pairs,
// final exponentiation included — the one-shot reference the partitioned
// verifier in internal/verifier is checked against, and the way a
// verifying key's alpha_g1_beta_g2 constant is derived from its raw
// alpha/beta points.
func Pair(g1 []G1Affine, g2 []G2Affine) (Fq12, error) {
	return bn254.Pair(g1, g2)
}

// G1FromRaw decodes an uncompressed G1 affine point from the 64-byte
// little-endian (x||y) encoding used by VerificationAccount.a / .c.
func G1FromRaw(b [64]byte) (G1Affine, error) {
	var p G1Affine
	var xBytes, yBytes [32]byte
	copy(xBytes[:], reverseSlice(b[0:32]))
	copy(yBytes[:], reverseSlice(b[32:64]))
	p.X.SetBytes(xBytes[:])
	p.Y.SetBytes(yBytes[:])
	return p, nil
}

// G2FromRaw decodes an uncompressed G2 affine point from the 128-byte
// little-endian encoding used by VerificationAccount.b: x.A0, x.A1, y.A0,
// y.A1, each 32 bytes.
func G2FromRaw(b [128]byte) (G2Affine, error) {
	var p G2Affine
	var x0, x1, y0, y1 [32]byte
	copy(x0[:], reverseSlice(b[0:32]))
	copy(x1[:], reverseSlice(b[32:64]))
	copy(y0[:], reverseSlice(b[64:96]))
	copy(y1[:], reverseSlice(b[96:128]))
	p.X.A0.SetBytes(x0[:])
	p.X.A1.SetBytes(x1[:])
	p.Y.A0.SetBytes(y0[:])
	p.Y.A1.SetBytes(y1[:])
	return p, nil
}

// ScalarFromRaw decodes a little-endian 32-byte scalar.
func ScalarFromRaw(r RawU256) Scalar {
	var s Scalar
	s.SetBytes(reverseSlice(r[:]))
	return s
}
