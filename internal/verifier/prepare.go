package verifier

import (
	"math/big"

	"github.com/elusiv/core/internal/bn254"
)

// roundsPerInput is the fixed-window scalar-multiplication budget per
// public input: one round per bit of the 254-bit BN254 scalar field; the
// last of these rounds also performs the accumulation into g_ic.
const roundsPerInput = 254

// PrepareState is the round-addressable continuation of phase P: the
// per-input doubling-and-add accumulator and the running g_ic sum,
// carried by the verification account between rounds.
type PrepareState struct {
	// Acc is the running doubling-and-add accumulator for input i.
	Acc bn254.G1Affine
	// GIC is the running sum gamma_abc_g1[0] + sum_{j<i} gamma_abc_g1[j+1]*inputs[j].
	GIC bn254.G1Affine
	// Started marks whether Acc has received its first set bit yet,
	// implementing the leading-zero-bit skip: the MSB is re-evaluated
	// every round rather than precomputed once.
	Started bool
}

// NewPrepareState seeds GIC at gamma_abc_g1_0.
func NewPrepareState(vk VerifyingKey) PrepareState {
	return PrepareState{GIC: vk.GammaAbc0()}
}

// PreparePublicInputsRound advances phase P by exactly one round. round
// is the global round index in [0, vk.PreparePublicInputsRounds()).
// Every 254th round (round % 254 == 253) is the accumulation round for
// input i = round/254, folding input[i]'s scalar-multiplication result
// into GIC; the other 253 rounds perform one doubling-and-conditional-add
// step of the fixed-window scalar multiplication, scanning the scalar
// most-significant-bit first.
func PreparePublicInputsRound(vk VerifyingKey, st *PrepareState, inputs []bn254.Scalar, round int) error {
	i := round / roundsPerInput
	bitRound := round % roundsPerInput

	if bitRound == 0 {
		st.Acc = bn254.G1Affine{}
		st.Started = false
	}

	bit := scalarBitBE(inputs[i], bitRound)

	if bitRound < roundsPerInput-1 {
		// Double-and-add, most-significant-bit first. Leading zero bits
		// are skipped by not doubling until the first set bit is
		// observed, re-derived every round rather than memoized.
		if st.Started {
			doubleG1Affine(&st.Acc)
		}
		if bit {
			if !st.Started {
				st.Acc = vk.GammaAbc(i)
				st.Started = true
			} else {
				st.Acc = addG1Affine(st.Acc, vk.GammaAbc(i))
			}
		}
		return nil
	}

	// Final bit of the window, then fold into g_ic.
	if st.Started {
		doubleG1Affine(&st.Acc)
	}
	if bit {
		if !st.Started {
			st.Acc = vk.GammaAbc(i)
		} else {
			st.Acc = addG1Affine(st.Acc, vk.GammaAbc(i))
		}
	}
	st.GIC = addG1Affine(st.GIC, st.Acc)
	return nil
}

// scalarBitBE returns bit index `idx` of s, counting from the most
// significant bit of the 254-bit scalar field.
func scalarBitBE(s bn254.Scalar, idx int) bool {
	var bi big.Int
	s.BigInt(&bi)
	return bi.Bit(roundsPerInput-1-idx) == 1
}

func doubleG1Affine(p *bn254.G1Affine) {
	var jac bn254.G1Jac
	jac.FromAffine(p)
	jac.Double(&jac)
	p.FromJacobian(&jac)
}

func addG1Affine(a, b bn254.G1Affine) bn254.G1Affine {
	var ja, jb bn254.G1Jac
	ja.FromAffine(&a)
	jb.FromAffine(&b)
	ja.AddAssign(&jb)
	var out bn254.G1Affine
	out.FromJacobian(&ja)
	return out
}
