package verifier

import (
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// Kind selects a verifying key at verification time; it is the variant
// tag carried on a VerificationAccount.
type Kind uint8

const (
	KindSend    Kind = 0
	KindMerge   Kind = 1
	KindMigrate Kind = 2
)

// VerifyingKey is the capability a concrete Groth16 key must expose for
// the partitioned verifier to drive all three phases without knowing
// which request kind it is serving. A language-neutral port of the
// source's per-kind macro dispatch (execute_with_vkey!).
type VerifyingKey interface {
	// PublicInputsCount is the number of public inputs this key expects,
	// excluding the constant gamma_abc_g1[0] term.
	PublicInputsCount() int

	PreparePublicInputsRounds() int
	CombinedMillerLoopRounds() int
	FinalExponentiationRounds() int

	// GammaAbc0 is the constant accumulator seed gamma_abc_g1[0].
	GammaAbc0() bn254.G1Affine
	// GammaAbc returns gamma_abc_g1[i+1], the generator multiplied by
	// public input i during phase P.
	GammaAbc(i int) bn254.G1Affine

	// GammaG2NegPC and DeltaG2NegPC return the i-th precomputed line
	// coefficient triple for -gamma_g2 and -delta_g2 respectively, used
	// by combined_ell during phase M.
	GammaG2NegPC(i int) (c0, c1, c2 bn254.Fq2)
	DeltaG2NegPC(i int) (c0, c1, c2 bn254.Fq2)

	// AlphaG1BetaG2 is e(alpha_g1, beta_g2), the target the final
	// exponentiation's output is compared against.
	AlphaG1BetaG2() bn254.Fq12
}

// TotalRounds is the sum of a key's three phase round counts.
func TotalRounds(vk VerifyingKey) uint32 {
	return uint32(vk.PreparePublicInputsRounds() + vk.CombinedMillerLoopRounds() + vk.FinalExponentiationRounds())
}

// VerifyingKeyFor resolves the verifying key for a request kind. Per the
// source's execute_with_vkey! macro, kinds 0 (Send) and 1 (Merge) both
// route to the same SendQuadraVKey instance — intentional, not a bug, and
// preserved here rather than introducing a distinct Merge key. Kind 2
// (Migrate) resolves to MigrateUnaryVKey but is never reachable from a
// successful init_verification, since Migrate is rejected outright.
func VerifyingKeyFor(kind Kind) (VerifyingKey, error) {
	switch kind {
	case KindSend, KindMerge:
		if sendQuadraVKey == nil {
			return nil, elusiverr.ErrInvalidAccountState
		}
		return sendQuadraVKey, nil
	case KindMigrate:
		if migrateUnaryVKey == nil {
			return nil, elusiverr.ErrInvalidAccountState
		}
		return migrateUnaryVKey, nil
	default:
		return nil, elusiverr.ErrInvalidPublicInputs
	}
}
