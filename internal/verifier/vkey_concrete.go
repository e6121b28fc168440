package verifier

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/elusiv/core/internal/bn254"
)

// ConcreteVKey is a VerifyingKey loaded from a deployment artifact: the
// trusted-setup output that pairs a circuit with its public parameters.
// Generating that artifact (the trusted setup itself) is out of scope —
// it is produced off-chain once, the same way the governor/fee-config
// store is populated once and only read here. ConcreteVKey only knows how
// to parse and hold the result.
type ConcreteVKey struct {
	publicInputsCount int

	prepareRounds  int
	millerRounds   int
	finalExpRounds int

	gammaAbc0 bn254.G1Affine
	gammaAbc  []bn254.G1Affine

	gammaG2NegPC [][3]bn254.Fq2
	deltaG2NegPC [][3]bn254.Fq2

	alphaG1BetaG2 bn254.Fq12
}

func (k *ConcreteVKey) PublicInputsCount() int          { return k.publicInputsCount }
func (k *ConcreteVKey) PreparePublicInputsRounds() int  { return k.prepareRounds }
func (k *ConcreteVKey) CombinedMillerLoopRounds() int   { return k.millerRounds }
func (k *ConcreteVKey) FinalExponentiationRounds() int  { return k.finalExpRounds }
func (k *ConcreteVKey) GammaAbc0() bn254.G1Affine       { return k.gammaAbc0 }
func (k *ConcreteVKey) AlphaG1BetaG2() bn254.Fq12       { return k.alphaG1BetaG2 }

func (k *ConcreteVKey) GammaAbc(i int) bn254.G1Affine {
	return k.gammaAbc[i]
}

func (k *ConcreteVKey) GammaG2NegPC(i int) (c0, c1, c2 bn254.Fq2) {
	t := k.gammaG2NegPC[i]
	return t[0], t[1], t[2]
}

func (k *ConcreteVKey) DeltaG2NegPC(i int) (c0, c1, c2 bn254.Fq2) {
	t := k.deltaG2NegPC[i]
	return t[0], t[1], t[2]
}

// NewConcreteVKey builds a ConcreteVKey from already-decoded components,
// deriving the three phase round counts: 254 rounds per public input for
// phase P, len(atLoopCount)+2 rounds for phase M, and
// finalExponentiationSteps rounds for phase E.
func NewConcreteVKey(
	gammaAbc0 bn254.G1Affine,
	gammaAbc []bn254.G1Affine,
	gammaG2NegPC, deltaG2NegPC [][3]bn254.Fq2,
	alphaG1BetaG2 bn254.Fq12,
) *ConcreteVKey {
	n := len(gammaAbc)
	return &ConcreteVKey{
		publicInputsCount: n,
		prepareRounds:     n * roundsPerInput,
		millerRounds:      len(atLoopCount) + 2,
		finalExpRounds:    finalExponentiationSteps,
		gammaAbc0:         gammaAbc0,
		gammaAbc:          gammaAbc,
		gammaG2NegPC:      gammaG2NegPC,
		deltaG2NegPC:      deltaG2NegPC,
		alphaG1BetaG2:     alphaG1BetaG2,
	}
}

// NewConcreteVKeyFromGroth16 assembles a ConcreteVKey from raw Groth16
// public parameters: the precomputed coefficient tables are generated
// from -gamma_g2 and -delta_g2, and alpha_g1_beta_g2 is the pairing of
// alpha and beta. gammaAbc carries gamma_abc_g1 with the constant term
// at index 0.
func NewConcreteVKeyFromGroth16(
	alphaG1 bn254.G1Affine,
	betaG2, gammaG2, deltaG2 bn254.G2Affine,
	gammaAbc []bn254.G1Affine,
) (*ConcreteVKey, error) {
	if len(gammaAbc) < 2 {
		return nil, fmt.Errorf("verifier: gamma_abc_g1 needs the constant term plus at least one input term")
	}
	var negGamma, negDelta bn254.G2Affine
	negGamma.Neg(&gammaG2)
	negDelta.Neg(&deltaG2)

	alphaBeta, err := bn254.Pair([]bn254.G1Affine{alphaG1}, []bn254.G2Affine{betaG2})
	if err != nil {
		return nil, fmt.Errorf("verifier: pair alpha/beta: %w", err)
	}
	return NewConcreteVKey(
		gammaAbc[0],
		gammaAbc[1:],
		PrecomputeG2Coefficients(negGamma),
		PrecomputeG2Coefficients(negDelta),
		alphaBeta,
	), nil
}

// WriteTo serializes k into its deployment-artifact byte form: a count
// prefix followed by each component's compressed encoding, mirroring the
// groth16.VerifyingKey.WriteTo/ReadFrom convention used across the
// gnark ecosystem for shipping verifying keys as opaque byte blobs.
func (k *ConcreteVKey) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64

	writeUint32 := func(v uint32) error {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		n, err := bw.Write(b[:])
		total += int64(n)
		return err
	}
	writeG1 := func(p bn254.G1Affine) error {
		b := p.RawBytes()
		n, err := bw.Write(b[:])
		total += int64(n)
		return err
	}
	writeFq2 := func(e bn254.Fq2) error {
		a0 := e.A0.Bytes()
		n, err := bw.Write(a0[:])
		total += int64(n)
		if err != nil {
			return err
		}
		a1 := e.A1.Bytes()
		n, err = bw.Write(a1[:])
		total += int64(n)
		return err
	}

	if err := writeUint32(uint32(k.publicInputsCount)); err != nil {
		return total, err
	}
	if err := writeG1(k.gammaAbc0); err != nil {
		return total, err
	}
	for _, p := range k.gammaAbc {
		if err := writeG1(p); err != nil {
			return total, err
		}
	}
	writeTriples := func(triples [][3]bn254.Fq2) error {
		if err := writeUint32(uint32(len(triples))); err != nil {
			return err
		}
		for _, t := range triples {
			for _, e := range t {
				if err := writeFq2(e); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := writeTriples(k.gammaG2NegPC); err != nil {
		return total, err
	}
	if err := writeTriples(k.deltaG2NegPC); err != nil {
		return total, err
	}
	ab := k.alphaG1BetaG2.Bytes()
	n, err := bw.Write(ab[:])
	total += int64(n)
	if err != nil {
		return total, err
	}
	return total, bw.Flush()
}

// ReadVerifyingKey parses the byte form written by WriteTo.
func ReadVerifyingKey(r io.Reader) (*ConcreteVKey, error) {
	br := bufio.NewReader(r)

	readUint32 := func() (uint32, error) {
		var b [4]byte
		if _, err := io.ReadFull(br, b[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(b[:]), nil
	}
	readG1 := func() (bn254.G1Affine, error) {
		var buf [64]byte
		var p bn254.G1Affine
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return p, err
		}
		_, err := p.SetBytes(buf[:])
		return p, err
	}
	readFq2 := func() (bn254.Fq2, error) {
		var buf [64]byte
		var e bn254.Fq2
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return e, err
		}
		e.A0.SetBytes(buf[0:32])
		e.A1.SetBytes(buf[32:64])
		return e, nil
	}

	n, err := readUint32()
	if err != nil {
		return nil, fmt.Errorf("verifier: read public input count: %w", err)
	}
	gammaAbc0, err := readG1()
	if err != nil {
		return nil, fmt.Errorf("verifier: read gamma_abc_g1_0: %w", err)
	}
	gammaAbc := make([]bn254.G1Affine, n)
	for i := range gammaAbc {
		if gammaAbc[i], err = readG1(); err != nil {
			return nil, fmt.Errorf("verifier: read gamma_abc_g1[%d]: %w", i, err)
		}
	}
	readTriples := func() ([][3]bn254.Fq2, error) {
		count, err := readUint32()
		if err != nil {
			return nil, err
		}
		out := make([][3]bn254.Fq2, count)
		for i := range out {
			for j := 0; j < 3; j++ {
				if out[i][j], err = readFq2(); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}
	gammaPC, err := readTriples()
	if err != nil {
		return nil, fmt.Errorf("verifier: read gamma_g2_neg_pc: %w", err)
	}
	deltaPC, err := readTriples()
	if err != nil {
		return nil, fmt.Errorf("verifier: read delta_g2_neg_pc: %w", err)
	}
	var abBuf [384]byte
	if _, err := io.ReadFull(br, abBuf[:]); err != nil {
		return nil, fmt.Errorf("verifier: read alpha_g1_beta_g2: %w", err)
	}
	var alphaBeta bn254.Fq12
	alphaBeta.SetBytes(abBuf[:])

	return NewConcreteVKey(gammaAbc0, gammaAbc, gammaPC, deltaPC, alphaBeta), nil
}

// sendQuadraVKey and migrateUnaryVKey hold the process-wide verifying
// keys. They start nil; a host program must call RegisterSendQuadraVKey
// / RegisterMigrateUnaryVKey during startup, after loading the
// deployment artifact (see internal/config and internal/testvk for how
// tests populate a real one via a throwaway gnark trusted setup).
var (
	sendQuadraVKey   *ConcreteVKey
	migrateUnaryVKey *ConcreteVKey
)

// RegisterSendQuadraVKey installs the verifying key used for kinds 0
// (Send) and 1 (Merge); the two kinds intentionally share one key.
func RegisterSendQuadraVKey(vk *ConcreteVKey) { sendQuadraVKey = vk }

// RegisterMigrateUnaryVKey installs the verifying key for kind 2. It is
// never reached by a successful verification (Migrate is rejected at
// init_verification), but VerificationAccount bookkeeping still needs a
// concrete value to describe kind 2's round schedule.
func RegisterMigrateUnaryVKey(vk *ConcreteVKey) { migrateUnaryVKey = vk }
