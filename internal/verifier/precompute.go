package verifier

import (
	"github.com/elusiv/core/internal/bn254"
)

// PrecomputeG2Coefficients generates the line-coefficient table for a
// fixed G2 point, in exactly the order the combined Miller loop consumes
// it: one triple per doubling step, one extra per nonzero ATE digit, and
// two trailing triples from the Frobenius-twisted point. A verifying
// key's gamma_g2_neg_pc and delta_g2_neg_pc tables are this function
// applied to -gamma_g2 and -delta_g2.
func PrecomputeG2Coefficients(q bn254.G2Affine) [][3]bn254.Fq2 {
	var negQ bn254.G2Affine
	negQ.Neg(&q)

	r := G2HomProjective{X: q.X, Y: q.Y, Z: fq2One()}

	coeffs := make([][3]bn254.Fq2, 0, len(atLoopCount)+32)
	push := func(c lineCoeffs) {
		coeffs = append(coeffs, [3]bn254.Fq2{c.c0, c.c1, c.c2})
	}

	for _, digit := range atLoopCount {
		push(doublingStep(&r))
		switch digit {
		case 1:
			push(additionStep(&r, q))
		case 2:
			push(additionStep(&r, negQ))
		}
	}

	q1 := mulByCharacteristics(q)
	push(additionStep(&r, q1))
	q2 := mulByCharacteristics(q1)
	q2.Y.Neg(&q2.Y)
	push(additionStep(&r, q2))

	return coeffs
}
