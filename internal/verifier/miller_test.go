package verifier

import (
	"testing"

	gnark "github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/elusiv/core/internal/bn254"
)

func TestPrecomputeCoefficientCount(t *testing.T) {
	_, _, _, g2 := gnark.Generators()
	coeffs := PrecomputeG2Coefficients(g2)

	want := len(atLoopCount) + 2
	for _, d := range atLoopCount {
		if d != 0 {
			want++
		}
	}
	if len(coeffs) != want {
		t.Fatalf("coefficient table length %d, want %d", len(coeffs), want)
	}
}

func TestScalarBitBE(t *testing.T) {
	var one bn254.Scalar
	one.SetUint64(1)
	if !scalarBitBE(one, roundsPerInput-1) {
		t.Fatal("least significant bit of 1 must be set")
	}
	for i := 0; i < roundsPerInput-1; i++ {
		if scalarBitBE(one, i) {
			t.Fatalf("bit %d of 1 must be clear", i)
		}
	}

	var two bn254.Scalar
	two.SetUint64(2)
	if !scalarBitBE(two, roundsPerInput-2) || scalarBitBE(two, roundsPerInput-1) {
		t.Fatal("wrong bit pattern for 2")
	}
}

func TestFinalExponentiationRoundCount(t *testing.T) {
	if finalExponentiationSteps != feRoundFinal+1 {
		t.Fatalf("finalExponentiationSteps = %d, want %d", finalExponentiationSteps, feRoundFinal+1)
	}
}
