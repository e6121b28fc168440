package verifier

import (
	"github.com/elusiv/core/internal/bn254"
)

// atLoopCount is BN254's reversed ATE loop, NAF digits read from the end
// of the pairing toward the beginning of the scalar 6x+2, with the first
// reversed element removed. A digit of 1 adds B, a digit of 2 adds -B.
var atLoopCount = []int8{
	1, 0, 1, 0, 0, 2, 0, 1, 1, 0, 0, 0, 2, 0, 0, 1, 1, 0, 0, 2, 0, 0, 0, 0, 0,
	1, 0, 0, 2, 0, 0, 1, 1, 1, 0, 0, 0, 0, 2, 0, 1, 0, 0, 2, 0, 1, 1, 0, 0, 1, 0,
	0, 2, 1, 0, 0, 2, 0, 1, 0, 1, 0, 0, 0,
}

// MillerState is the carried continuation of the combined Miller loop:
// the accumulator f in Fq12, the working homogeneous-projective point r
// on the twist (doubled and added into as B's line coefficients are
// generated on the fly), the Frobenius-twisted point the two trailing
// rounds add, and the cursor into the verifying key's precomputed
// coefficient tables.
type MillerState struct {
	F    bn254.Fq12
	R    G2HomProjective
	AltB bn254.G2Affine

	// CoeffIndex advances by one per line-function evaluation; the
	// precomputed gamma/delta tables are consumed in the same order they
	// were generated by PrecomputeG2Coefficients.
	CoeffIndex int
}

// NewMillerState seeds f = 1 and r = B, the proof's G2 element.
func NewMillerState(b bn254.G2Affine) MillerState {
	var f bn254.Fq12
	f.SetOne()
	return MillerState{
		F: f,
		R: G2HomProjective{X: b.X, Y: b.Y, Z: fq2One()},
	}
}

// CombinedMillerLoopRound advances the combined miller loop by one round.
// a and c are the proof's G1 elements; preparedInputs is phase P's
// output; negB is the negation of the proof's G2 element, used on ATE
// digit 2. Rounds [0, len(atLoopCount)) walk the ATE loop; the two
// rounds past it fold in the Frobenius-twisted coefficient triples, and
// run only when the prepared-inputs accumulator is nonzero.
func CombinedMillerLoopRound(
	vk VerifyingKey,
	st *MillerState,
	a bn254.G1Affine,
	b, negB bn254.G2Affine,
	preparedInputs bn254.G1Affine,
	c bn254.G1Affine,
	round int,
) {
	if round < len(atLoopCount) {
		if round > 0 {
			st.F.Square(&st.F)
		}

		coeffs := doublingStep(&st.R)
		combinedEll(vk, st, coeffs, a, preparedInputs, c)

		if digit := atLoopCount[round]; digit != 0 {
			addend := b
			if digit == 2 {
				addend = negB
			}
			aCoeffs := additionStep(&st.R, addend)
			combinedEll(vk, st, aCoeffs, a, preparedInputs, c)
		}
		return
	}

	// preparedInputs is the identity (no public inputs contributed
	// anything): the two trailing steps have nothing to fold in and are
	// skipped entirely.
	if isG1Identity(preparedInputs) {
		return
	}

	if round == len(atLoopCount) {
		st.AltB = mulByCharacteristics(b)
	} else {
		st.AltB = mulByCharacteristics(st.AltB)
		st.AltB.Y.Neg(&st.AltB.Y)
	}
	fCoeffs := additionStep(&st.R, st.AltB)
	combinedEll(vk, st, fCoeffs, a, preparedInputs, c)
}

// lineCoeffs are the three coefficients a doubling or addition step on
// the twist emits for its line function, in (c0, c1, c2) order matching
// the new_coeffs(h, j, i) return shape.
type lineCoeffs struct {
	c0, c1, c2 bn254.Fq2
}

// combinedEll evaluates three sparse line-function multiplications
// against f: one from the freshly computed (c0,c1,c2) against A, one
// from the verifying key's precomputed -gamma_g2 coefficients against
// preparedInputs, and one from -delta_g2 against C. Each is skipped when
// its point operand is the identity, matching the is_zero() guards. The
// precomputed-table cursor advances exactly once per call so generation
// and consumption stay aligned.
func combinedEll(
	vk VerifyingKey,
	st *MillerState,
	coeffs lineCoeffs,
	a bn254.G1Affine,
	preparedInputs bn254.G1Affine,
	c bn254.G1Affine,
) {
	idx := st.CoeffIndex
	st.CoeffIndex++

	if !isG1Identity(a) {
		c0 := mulByFp(coeffs.c0, a.Y)
		c1 := mulByFp(coeffs.c1, a.X)
		mulBy034(&st.F, c0, c1, coeffs.c2)
	}

	if !isG1Identity(preparedInputs) {
		g0, g1, g2 := vk.GammaG2NegPC(idx)
		p0 := mulByFp(g0, preparedInputs.Y)
		p1 := mulByFp(g1, preparedInputs.X)
		mulBy034(&st.F, p0, p1, g2)
	}

	if !isG1Identity(c) {
		d0, d1, d2 := vk.DeltaG2NegPC(idx)
		cc0 := mulByFp(d0, c.Y)
		cc1 := mulByFp(d1, c.X)
		mulBy034(&st.F, cc0, cc1, d2)
	}
}

// doublingStep doubles a homogeneous projective point over the twist,
// r <- 2r, returning the emitted line coefficients.
func doublingStep(r *G2HomProjective) lineCoeffs {
	var a, b, c, e, f, g, h, i, j bn254.Fq2

	a.Mul(&r.X, &r.Y)
	a.MulByElement(&a, twoInv())
	b.Square(&r.Y)
	c.Square(&r.Z)

	var threeC bn254.Fq2
	threeC.Add(&c, &c).Add(&threeC, &c)
	e.Mul(coeffB(), &threeC)
	f.Add(&e, &e).Add(&f, &e)
	g.Add(&b, &f).MulByElement(&g, twoInv())
	h.Add(&r.Y, &r.Z).Square(&h).Sub(&h, new(bn254.Fq2).Add(&b, &c))
	i.Sub(&e, &b)
	j.Square(&r.X)

	var eSq, threeESq bn254.Fq2
	eSq.Square(&e)
	threeESq.Add(&eSq, &eSq).Add(&threeESq, &eSq)

	var bf bn254.Fq2
	bf.Sub(&b, &f)
	r.X.Mul(&a, &bf)
	r.Y.Square(&g).Sub(&r.Y, &threeESq)
	r.Z.Mul(&b, &h)

	var negH, threeJ bn254.Fq2
	negH.Neg(&h)
	threeJ.Add(&j, &j).Add(&threeJ, &j)

	return lineCoeffs{c0: negH, c1: threeJ, c2: i}
}

// additionStep mixed-adds affine q into r, returning the resulting line
// coefficients.
func additionStep(r *G2HomProjective, q bn254.G2Affine) lineCoeffs {
	var theta, lambda, c, d, e, f, g, h, jOut bn254.Fq2

	theta.Mul(&q.Y, &r.Z)
	theta.Neg(&theta).Add(&theta, &r.Y)

	lambda.Mul(&q.X, &r.Z)
	lambda.Neg(&lambda).Add(&lambda, &r.X)

	c.Square(&theta)
	d.Square(&lambda)
	e.Mul(&lambda, &d)
	f.Mul(&r.Z, &c)
	g.Mul(&r.X, &d)

	h.Add(&g, &g).Neg(&h).Add(&h, &e).Add(&h, &f)

	r.X.Mul(&lambda, &h)

	var gh, eyz bn254.Fq2
	gh.Sub(&g, &h).Mul(&gh, &theta)
	eyz.Mul(&e, &r.Y)
	r.Y.Sub(&gh, &eyz)

	r.Z.Mul(&e, &r.Z)

	var ly bn254.Fq2
	jOut.Mul(&theta, &q.X)
	ly.Mul(&lambda, &q.Y)
	jOut.Sub(&jOut, &ly)

	var negTheta bn254.Fq2
	negTheta.Neg(&theta)
	return lineCoeffs{c0: lambda, c1: negTheta, c2: jOut}
}

// mulByCharacteristics applies the Frobenius endomorphism to r twisted by
// the curve's sextic-twist characteristic. The second trailing Miller
// round applies it to the first round's output and then negates y.
func mulByCharacteristics(r bn254.G2Affine) bn254.G2Affine {
	var out bn254.G2Affine
	out.X.Conjugate(&r.X)
	out.Y.Conjugate(&r.Y)
	out.X.Mul(&out.X, twistMulByQX())
	out.Y.Mul(&out.Y, twistMulByQY())
	return out
}

// mulByFp scales an Fq2 line coefficient by a base-field coordinate (the
// proof point's x or y) before folding it into the sparse Fq12
// multiplicand.
func mulByFp(c bn254.Fq2, s bn254.Fq) bn254.Fq2 {
	var out bn254.Fq2
	out.MulByElement(&c, &s)
	return out
}

// mulBy034 is the sparse Fq12 multiplication by an element of the shape
// (c0, 0, 0 | d0, d1, 0) in the degree-6-over-degree-2 tower
// representation, the output of a single Miller-loop line function.
func mulBy034(f *bn254.Fq12, c0, d0, d1 bn254.Fq2) {
	f.MulBy034(&c0, &d0, &d1)
}

func fq2One() bn254.Fq2 {
	var e bn254.Fq2
	e.SetOne()
	return e
}

func twoInv() *bn254.Fq {
	var one, two bn254.Fq
	one.SetOne()
	two.Add(&one, &one)
	two.Inverse(&two)
	return &two
}

// coeffB is the twist curve's constant b' = 3/(u+9).
func coeffB() *bn254.Fq2 {
	var e bn254.Fq2
	e.A0.SetString("19485874751759354771024239261021720505790618469301721065564631296452457478373")
	e.A1.SetString("266929791119991161246907387137283842545076965332900288569378510910307636690")
	return &e
}

// twistMulByQX and twistMulByQY are the BN254 sextic-twist Frobenius
// coefficients used by mulByCharacteristics.
func twistMulByQX() *bn254.Fq2 {
	var e bn254.Fq2
	e.A0.SetString("21575463638280843010398324269430826099269044274347216827212613867836435027261")
	e.A1.SetString("10307601595873709700152284273816112264069230130616436755625194854815875713954")
	return &e
}

func twistMulByQY() *bn254.Fq2 {
	var e bn254.Fq2
	e.A0.SetString("2821565182194536844548159561693502659359617185244120367078079554186484126554")
	e.A1.SetString("3505843767911556378687030309984248845540243509899259641013678093033130930403")
	return &e
}

func isG1Identity(p bn254.G1Affine) bool {
	return p.X.IsZero() && p.Y.IsZero()
}
