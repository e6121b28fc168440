package verifier

import "github.com/elusiv/core/internal/bn254"

// The partitioned verifier's persisted continuation — the role the
// on-chain program's ram_fq/ram_fq2/ram_fq12 regions play — is carried
// by the typed phase states (PrepareState, MillerState, FinalExpState)
// a Computation holds across rounds. G2HomProjective is the one piece of
// that working set shared between phase M's stepping functions and the
// coefficient precomputation.

// G2HomProjective is a point on the twist E'(Fq2) held in homogeneous
// projective coordinates, so doubling and addition steps avoid an
// inversion per round.
type G2HomProjective struct {
	X, Y, Z bn254.Fq2
}
