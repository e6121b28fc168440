// Package testvk produces a real Groth16 verifying key and matching
// proofs for tests: a minimal join-split-shaped circuit is compiled and
// put through a throwaway trusted setup, so the partitioned verifier can
// be exercised against genuine gamma_abc_g1 / alpha_g1_beta_g2 material
// and proofs that actually verify — or deliberately tampered ones that
// must not. Nothing in this package is reachable from the program's
// instruction surface; proof generation stays off-chain.
package testvk

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/verifier"
)

// JoinSplitCircuit is the test stand-in for the real join-split circuit:
// two public inputs in the same order the program's PublicInputScalars
// emits them (nullifier hash, then commitment), bound to one private
// opening.
type JoinSplitCircuit struct {
	NullifierHash frontend.Variable `gnark:",public"`
	Commitment    frontend.Variable `gnark:",public"`
	Opening       frontend.Variable
}

// Define constrains Opening = NullifierHash * Commitment.
func (c *JoinSplitCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.NullifierHash, c.Commitment), c.Opening)
	return nil
}

// Setup holds one throwaway trusted setup: the compiled circuit, its
// proving key, and the program-side ConcreteVKey assembled from the
// verifying key's raw points.
type Setup struct {
	VK *verifier.ConcreteVKey

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// New compiles the circuit, runs groth16.Setup, and assembles the
// ConcreteVKey (precomputed -gamma/-delta coefficient tables included).
func New() (*Setup, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &JoinSplitCircuit{})
	if err != nil {
		return nil, fmt.Errorf("testvk: compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("testvk: trusted setup: %w", err)
	}
	bvk, ok := vk.(*groth16bn254.VerifyingKey)
	if !ok {
		return nil, fmt.Errorf("testvk: unexpected verifying key type %T", vk)
	}
	cvk, err := verifier.NewConcreteVKeyFromGroth16(bvk.G1.Alpha, bvk.G2.Beta, bvk.G2.Gamma, bvk.G2.Delta, bvk.G1.K)
	if err != nil {
		return nil, err
	}
	return &Setup{VK: cvk, ccs: ccs, pk: pk}, nil
}

// Prove generates a valid proof for the two public inputs, returning the
// (A, B, C) triple in the form the verification account stores.
func (s *Setup) Prove(nullifierHash, commitment bn254.Scalar) (bn254.G1Affine, bn254.G2Affine, bn254.G1Affine, error) {
	var a bn254.G1Affine
	var b bn254.G2Affine
	var c bn254.G1Affine

	var opening bn254.Scalar
	opening.Mul(&nullifierHash, &commitment)

	var nBig, cBig, oBig big.Int
	nullifierHash.BigInt(&nBig)
	commitment.BigInt(&cBig)
	opening.BigInt(&oBig)

	assignment := &JoinSplitCircuit{
		NullifierHash: &nBig,
		Commitment:    &cBig,
		Opening:       &oBig,
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return a, b, c, fmt.Errorf("testvk: build witness: %w", err)
	}
	proof, err := groth16.Prove(s.ccs, s.pk, w)
	if err != nil {
		return a, b, c, fmt.Errorf("testvk: prove: %w", err)
	}
	bp, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return a, b, c, fmt.Errorf("testvk: unexpected proof type %T", proof)
	}
	return bp.Ar, bp.Bs, bp.Krs, nil
}
