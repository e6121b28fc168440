// Package verifier implements the resumable Groth16 verifier: public-input
// preparation (phase P), the combined Miller loop (phase M), and the final
// exponentiation (phase E), each partitioned into fixed-cost rounds so a
// single verification can be driven across many independent top-level
// calls.
package verifier

import (
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// Computation is one in-flight partitioned Groth16 verification: the
// scratch state a verification account carries between top-level calls.
// Everything here is pure, round-addressable state with no I/O.
type Computation struct {
	VK VerifyingKey

	Inputs []bn254.Scalar
	A      bn254.G1Affine
	B      bn254.G2Affine
	NegB   bn254.G2Affine
	C      bn254.G1Affine

	prepare PrepareState
	miller  MillerState
	final   *FinalExpState

	preparedInputs bn254.G1Affine
	millerStarted  bool
}

// NewComputation seeds a Computation for vk against the given proof and
// public inputs. The caller is responsible for having resolved vk via
// VerifyingKeyFor(request.kind).
func NewComputation(vk VerifyingKey, inputs []bn254.Scalar, a bn254.G1Affine, b bn254.G2Affine, c bn254.G1Affine) *Computation {
	var negB bn254.G2Affine
	negB.Neg(&b)
	return &Computation{
		VK:      vk,
		Inputs:  inputs,
		A:       a,
		B:       b,
		NegB:    negB,
		C:       c,
		prepare: NewPrepareState(vk),
	}
}

// SetProof installs (or replaces) the proof triple on a computation.
// Phase P does not read the proof, so a computation created before
// init_verification_proof ran picks the real (a, b, c) up here before
// its first Miller round.
func (c *Computation) SetProof(a bn254.G1Affine, b bn254.G2Affine, cPoint bn254.G1Affine) {
	c.A = a
	c.B = b
	c.C = cPoint
	c.NegB.Neg(&b)
}

// phaseBounds returns the exclusive end global round of phases P, M,
// and E for vk, in that order; each phase starts where the previous ends.
func phaseBounds(vk VerifyingKey) (pEnd, mEnd, eEnd uint32) {
	pEnd = uint32(vk.PreparePublicInputsRounds())
	mEnd = pEnd + uint32(vk.CombinedMillerLoopRounds())
	eEnd = mEnd + uint32(vk.FinalExponentiationRounds())
	return
}

// TotalRounds is the package-level TotalRounds applied to a Computation's own vk,
// convenience for callers that already hold a Computation.
func (c *Computation) TotalRounds() uint32 {
	return TotalRounds(c.VK)
}

// AdvanceRound runs exactly one round of whichever phase `round` falls
// into, given vk's phase boundaries. It returns a non-nil verdict only
// once round is the final round of phase E. Any arithmetic error is
// returned as-is; the verification account is responsible for demoting
// it to a Some(false) verdict rather than propagating it as a
// structural failure.
func (c *Computation) AdvanceRound(round uint32) (verdict *bool, err error) {
	pEnd, mEnd, eEnd := phaseBounds(c.VK)

	switch {
	case round < pEnd:
		if err := PreparePublicInputsRound(c.VK, &c.prepare, c.Inputs, int(round)); err != nil {
			return nil, err
		}
		if round == pEnd-1 {
			c.preparedInputs = c.prepare.GIC
		}
		return nil, nil

	case round < mEnd:
		localRound := int(round - pEnd)
		if !c.millerStarted {
			c.miller = NewMillerState(c.B)
			c.millerStarted = true
		}
		CombinedMillerLoopRound(c.VK, &c.miller, c.A, c.B, c.NegB, c.preparedInputs, c.C, localRound)
		if round == mEnd-1 {
			c.final = NewFinalExpState(c.miller.F)
		}
		return nil, nil

	case round < eEnd:
		localRound := int(round - mEnd)
		if c.final == nil {
			return nil, elusiverr.ErrInvalidAccountState
		}
		if err := FinalExponentiationRound(c.final, localRound); err != nil {
			return nil, err
		}
		if round == eEnd-1 {
			target := c.VK.AlphaG1BetaG2()
			v := c.final.Result.Equal(&target)
			return &v, nil
		}
		return nil, nil
	}

	return nil, elusiverr.ErrComputationAlreadyFinished
}

// PreparedInputs exposes phase P's output, stored on VerificationAccount
// as `prepared_inputs` once phase P completes.
func (c *Computation) PreparedInputs() bn254.G1Affine {
	return c.preparedInputs
}
