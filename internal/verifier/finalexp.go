package verifier

import (
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// expByNegXNAF is the non-adjacent-form encoding of the BN254 curve
// parameter X (4965661367192848881), trailing zero digit dropped and
// the sequence reversed. A digit of 1 multiplies by fe, 2 by fe's
// conjugate.
var expByNegXNAF = [63]uint8{
	1, 0, 0, 0, 1, 0, 1, 0, 0, 2, 0, 1, 0, 1, 0, 2, 0, 0, 1, 0, 1, 0, 2, 0, 2, 0,
	2, 0, 1, 0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 2, 0, 1, 0, 0, 1, 0, 0, 0, 0, 1,
	0, 1, 0, 0, 0, 0, 2, 0, 0, 0, 1,
}

const (
	expByNegXLoopRounds = len(expByNegXNAF)
	// expByNegXRounds adds the trailing round that conjugates the
	// accumulated cyclotomic exponentiation, flipping cyclotomic_exp(fe,
	// X) into fe^(-X).
	expByNegXRounds = expByNegXLoopRounds + 1

	// inverseFq12Rounds is the fixed step count of inverse_fq12 (Guide to
	// Pairing-Based Cryptography, Algorithm 5.19).
	inverseFq12Rounds = 5

	// finalExponentiationSteps is the total round count of phase E,
	// the sum of the block layout below; NewConcreteVKey assigns it
	// directly.
	finalExponentiationSteps = 1 + inverseFq12Rounds + 1 + expByNegXRounds + 1 +
		expByNegXRounds + 1 + expByNegXRounds + 1 + 1 + 1 + 1 + 1 + 1
)

// expByNegXState is the carried continuation of fe^(-X), computed as
// conjugate(cyclotomic_exp(fe, X)) via a square-and-multiply walk over
// expByNegXNAF.
type expByNegXState struct {
	fe        bn254.Fq12
	feInverse bn254.Fq12
	res       bn254.Fq12
}

func newExpByNegXState(fe bn254.Fq12) expByNegXState {
	var res, feInv bn254.Fq12
	res.SetOne()
	feInv.Conjugate(&fe)
	return expByNegXState{fe: fe, feInverse: feInv, res: res}
}

// round advances one round of fe^(-X); round is local to this
// sub-computation, in [0, expByNegXRounds).
func (st *expByNegXState) round(round int) {
	if round < expByNegXLoopRounds {
		if round > 0 {
			st.res.CyclotomicSquare(&st.res)
		}
		switch expByNegXNAF[round] {
		case 1:
			st.res.Mul(&st.res, &st.fe)
		case 2:
			st.res.Mul(&st.res, &st.feInverse)
		}
		return
	}
	st.res.Conjugate(&st.res)
}

// inverseFq12State is the carried continuation of f^-1 in Fq12, following
// the quadratic-extension inversion formula (f = c0 + c1*w,
// f^-1 = (c0 - c1*w) / (c0^2 - beta*c1^2)) applied one multiplication per
// round.
type inverseFq12State struct {
	f          bn254.Fq12
	v0, v1, v2 bn254.Fq6
	v3         bn254.Fq6
	result     bn254.Fq12
}

func newInverseFq12State(f bn254.Fq12) inverseFq12State {
	return inverseFq12State{f: f}
}

func (st *inverseFq12State) round(round int) error {
	switch round {
	case 0:
		st.v1.Square(&st.f.C1)
	case 1:
		st.v2.Square(&st.f.C0)
	case 2:
		var t bn254.Fq6
		t.MulByNonResidue(&st.v1)
		st.v0.Sub(&st.v2, &t)
	case 3:
		if st.v0.IsZero() {
			return elusiverr.ErrCouldNotProcessProof
		}
		st.v3.Inverse(&st.v0)
	case 4:
		var v, c0 bn254.Fq6
		v.Mul(&st.f.C1, &st.v3)
		c0.Mul(&st.f.C0, &st.v3)
		st.result.C0 = c0
		st.result.C1.Neg(&v)
	}
	return nil
}

// FinalExpState is the persisted continuation of phase E: the BN254
// final exponentiation applied to the combined Miller loop's output,
// split into the "easy part" (conjugate/inverse/Frobenius^2) and the
// hard part (three interleaved exp_by_neg_x passes plus a Frobenius
// compose).
type FinalExpState struct {
	r, f2                              bn254.Fq12
	y0, y1, y2, y3, y4, y5, y6         bn254.Fq12
	y7, y8, y9, y10, y11, y12, y13, y14, y15 bn254.Fq12
	inv                                inverseFq12State
	negX                               expByNegXState
	Result                             bn254.Fq12
}

// NewFinalExpState seeds phase E with f, the Miller loop's output.
func NewFinalExpState(f bn254.Fq12) *FinalExpState {
	var r bn254.Fq12
	r.Conjugate(&f)
	return &FinalExpState{r: r, f2: f}
}

// round boundaries, derived from the block layout above.
const (
	feRoundConjugateF       = 0
	feInverseStart          = feRoundConjugateF + 1
	feInverseEnd            = feInverseStart + inverseFq12Rounds // exclusive
	feRoundFrobeniusSquare  = feInverseEnd
	feExpByX1Start          = feRoundFrobeniusSquare + 1
	feExpByX1End            = feExpByX1Start + expByNegXRounds
	feRoundSquareChain      = feExpByX1End
	feExpByX2Start          = feRoundSquareChain + 1
	feExpByX2End            = feExpByX2Start + expByNegXRounds
	feRoundSquareOnce       = feExpByX2End
	feExpByX3Start          = feRoundSquareOnce + 1
	feExpByX3End            = feExpByX3Start + expByNegXRounds
	feRoundConjugateY3Y6    = feExpByX3End
	feRoundComputeY7toY10   = feRoundConjugateY3Y6 + 1
	feRoundComputeY11Y12    = feRoundComputeY7toY10 + 1
	feRoundComputeY13Y8     = feRoundComputeY11Y12 + 1
	feRoundComputeY14R      = feRoundComputeY13Y8 + 1
	feRoundFinal            = feRoundComputeY14R + 1
)

// FinalExponentiationRound advances phase E by exactly one round. round
// is the local round index in [0, finalExponentiationSteps). On
// feRoundFinal it stores the verdict-comparable Fq12 in st.Result.
func FinalExponentiationRound(st *FinalExpState, round int) error {
	switch {
	case round == feRoundConjugateF:
		// st.r and st.f2 already seeded by NewFinalExpState.
		return nil

	case round >= feInverseStart && round < feInverseEnd:
		if round == feInverseStart {
			st.inv = newInverseFq12State(st.f2)
		}
		if err := st.inv.round(round - feInverseStart); err != nil {
			return err
		}
		if round == feInverseEnd-1 {
			st.r.Mul(&st.r, &st.inv.result)
			st.f2 = st.r
		}
		return nil

	case round == feRoundFrobeniusSquare:
		st.r = frobeniusMap(st.r, 2)
		st.r.Mul(&st.r, &st.f2)
		st.y0 = st.r
		return nil

	case round >= feExpByX1Start && round < feExpByX1End:
		if round == feExpByX1Start {
			st.negX = newExpByNegXState(st.y0)
		}
		st.negX.round(round - feExpByX1Start)
		if round == feExpByX1End-1 {
			st.y0 = st.negX.res
		}
		return nil

	case round == feRoundSquareChain:
		st.y1.CyclotomicSquare(&st.y0)
		st.y2.CyclotomicSquare(&st.y1)
		st.y3.Mul(&st.y2, &st.y1)
		st.y4 = st.y3
		return nil

	case round >= feExpByX2Start && round < feExpByX2End:
		if round == feExpByX2Start {
			st.negX = newExpByNegXState(st.y4)
		}
		st.negX.round(round - feExpByX2Start)
		if round == feExpByX2End-1 {
			st.y4 = st.negX.res
		}
		return nil

	case round == feRoundSquareOnce:
		st.y5.CyclotomicSquare(&st.y4)
		st.y6 = st.y5
		return nil

	case round >= feExpByX3Start && round < feExpByX3End:
		if round == feExpByX3Start {
			st.negX = newExpByNegXState(st.y6)
		}
		st.negX.round(round - feExpByX3Start)
		if round == feExpByX3End-1 {
			st.y6 = st.negX.res
		}
		return nil

	case round == feRoundConjugateY3Y6:
		st.y3.Conjugate(&st.y3)
		st.y6.Conjugate(&st.y6)
		return nil

	case round == feRoundComputeY7toY10:
		st.y7.Mul(&st.y6, &st.y4)
		st.y8.Mul(&st.y7, &st.y3)
		st.y9.Mul(&st.y8, &st.y1)
		st.y10.Mul(&st.y8, &st.y4)
		return nil

	case round == feRoundComputeY11Y12:
		st.y11.Mul(&st.y10, &st.r)
		st.y12 = frobeniusMap(st.y9, 1)
		return nil

	case round == feRoundComputeY13Y8:
		st.y13.Mul(&st.y12, &st.y11)
		st.y8 = frobeniusMap(st.y8, 2)
		return nil

	case round == feRoundComputeY14R:
		st.y14.Mul(&st.y8, &st.y13)
		st.r.Conjugate(&st.r)
		return nil

	case round == feRoundFinal:
		st.y15.Mul(&st.r, &st.y9)
		st.y15 = frobeniusMap(st.y15, 3)
		st.Result.Mul(&st.y15, &st.y14)
		return nil
	}

	return elusiverr.ErrInvalidAccountState
}

// frobeniusMap applies the Frobenius endomorphism to f u times (u is
// always 1, 2, or 3 here).
func frobeniusMap(f bn254.Fq12, u int) bn254.Fq12 {
	var out bn254.Fq12
	switch u {
	case 1:
		out.Frobenius(&f)
	case 2:
		out.FrobeniusSquare(&f)
	case 3:
		out.FrobeniusCube(&f)
	default:
		out = f
	}
	return out
}
