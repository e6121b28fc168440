// Package account implements the verification account: the
// persistent record of one in-flight proof verification — its request,
// lifecycle state, round counter, scratch computation, and verdict.
package account

import (
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/internal/fees"
	"github.com/elusiv/core/internal/joinsplit"
	"github.com/elusiv/core/internal/verifier"
	"github.com/elusiv/core/pkg/types"
)

// State is the linear lifecycle a VerificationAccount moves through.
// A rejected proof takes ProofSetup -> Finalized directly,
// skipping InsertNullifiers.
type State uint8

const (
	StateNone State = iota
	StateFeeTransferred
	StateProofSetup
	StateInsertNullifiers
	StateFinalized
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateFeeTransferred:
		return "FeeTransferred"
	case StateProofSetup:
		return "ProofSetup"
	case StateInsertNullifiers:
		return "InsertNullifiers"
	case StateFinalized:
		return "Finalized"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// order fixes each state's position for the monotonicity check.
var order = map[State]int{
	StateNone:             0,
	StateFeeTransferred:   1,
	StateProofSetup:       2,
	StateInsertNullifiers: 3,
	StateFinalized:        4,
	StateClosed:           5,
}

// Proof is the Groth16 proof triple stored once init_verification_proof
// runs.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// MaxMTCount mirrors joinsplit.MaxMTCount, re-exported so callers that
// only import this package still see it.
const MaxMTCount = joinsplit.MaxMTCount

// Account is one in-flight
// verification, keyed by the caller-supplied verification_account_index
// at creation time (neither this struct nor the processor tracks the
// index; callers slot the account under it).
type Account struct {
	FeePayer        types.PublicKey
	FeePayerAccount types.PublicKey
	SkipNullifierPDA bool

	Request     joinsplit.ProofRequest
	TreeIndices [MaxMTCount]uint32
	Kind        verifier.Kind

	// PrepareInputsInstructions is the per-tx round budget schedule
	// derived from the verifying key at creation time.
	PrepareInputsInstructions []uint16

	// PublicInputsRaw holds every public input's skip_mr projection, in
	// the order the verifying key expects them; PublicInputsReduced
	// holds the Montgomery-reduced projection used for comparisons
	// against persisted state.
	PublicInputsRaw     []bn254.RawU256
	PublicInputsReduced []bn254.MrU256

	Proof          Proof
	PreparedInputs bn254.G1Affine

	Computation *verifier.Computation

	Round      uint32
	IsVerified *bool
	State      State

	Fees            fees.Breakdown
	MinBatchingRate uint32
	TokenID         uint16
}

// New creates a fresh Account in state None for request, carrying the
// raw/reduced public-input projections and the verifying key's
// round-budget schedule.
func New(
	feePayer, feePayerAccount types.PublicKey,
	skipNullifierPDA bool,
	request joinsplit.ProofRequest,
	treeIndices [MaxMTCount]uint32,
	prepareInputsInstructions []uint16,
) *Account {
	js := request.JoinSplit()
	raw := make([]bn254.RawU256, 0, len(js.NullifierHashes)+1)
	reduced := make([]bn254.MrU256, 0, len(js.NullifierHashes)+1)
	for _, n := range js.NullifierHashes {
		raw = append(raw, n)
		reduced = append(reduced, n.Reduce())
	}
	raw = append(raw, js.Commitment)
	reduced = append(reduced, js.Commitment.Reduce())

	return &Account{
		FeePayer:                  feePayer,
		FeePayerAccount:           feePayerAccount,
		SkipNullifierPDA:          skipNullifierPDA,
		Request:                   request,
		TreeIndices:               treeIndices,
		Kind:                      verifier.Kind(request.Kind),
		PrepareInputsInstructions: prepareInputsInstructions,
		PublicInputsRaw:           raw,
		PublicInputsReduced:       reduced,
		State:                     StateNone,
	}
}

// transition advances State to next; states move forward only and
// Closed is terminal.
func (a *Account) transition(next State) error {
	if order[next] <= order[a.State] {
		return elusiverr.ErrInvalidAccountState
	}
	a.State = next
	return nil
}

// RequireState fails unless the account is currently in want.
func (a *Account) RequireState(want State) error {
	if a.State != want {
		return elusiverr.ErrInvalidAccountState
	}
	return nil
}

// MarkFeeTransferred persists fee, min-batching-rate, and token_id and
// transitions None -> FeeTransferred.
func (a *Account) MarkFeeTransferred(fee fees.Breakdown) error {
	if err := a.RequireState(StateNone); err != nil {
		return err
	}
	a.Fees = fee
	a.MinBatchingRate = fee.MinBatchingRate
	a.TokenID = fee.TokenID
	return a.transition(StateFeeTransferred)
}

// SetProof stores the Groth16 proof and transitions FeeTransferred ->
// ProofSetup.
func (a *Account) SetProof(proof Proof) error {
	if err := a.RequireState(StateFeeTransferred); err != nil {
		return err
	}
	if a.IsVerified != nil {
		return elusiverr.ErrComputationAlreadyFinished
	}
	a.Proof = proof
	if a.Computation != nil {
		a.Computation.SetProof(proof.A, proof.B, proof.C)
	}
	return a.transition(StateProofSetup)
}

// TotalRounds is the verifying key's total round count for this
// account's kind.
func (a *Account) TotalRounds() (uint32, error) {
	vk, err := verifier.VerifyingKeyFor(a.Kind)
	if err != nil {
		return 0, err
	}
	return verifier.TotalRounds(vk), nil
}

// AdvanceRound runs exactly one round of the partitioned verifier,
// lazily constructing the Computation on the account's first round.
// It is permitted in states None and ProofSetup: the first phase runs
// ahead of a stored proof.
//
// Any arithmetic error from the verifier is absorbed here into a
// Some(false) verdict, never propagated to the caller;
// only a structural precondition violation (wrong lifecycle state, or a
// round requested past total_rounds) is returned as an error.
func (a *Account) AdvanceRound() error {
	if a.State != StateNone && a.State != StateProofSetup {
		return elusiverr.ErrInvalidAccountState
	}

	total, err := a.TotalRounds()
	if err != nil {
		return err
	}
	if a.Round >= total {
		return elusiverr.ErrComputationAlreadyFinished
	}
	if a.IsVerified != nil {
		return elusiverr.ErrComputationAlreadyFinished
	}

	if a.Computation == nil {
		vk, err := verifier.VerifyingKeyFor(a.Kind)
		if err != nil {
			return err
		}
		js := a.Request.JoinSplit()
		scalars := js.PublicInputScalars()
		a.Computation = verifier.NewComputation(vk, scalars, a.Proof.A, a.Proof.B, a.Proof.C)
	}

	verdict, err := a.Computation.AdvanceRound(a.Round)
	if err != nil {
		if err == elusiverr.ErrInvalidAccountState || err == elusiverr.ErrComputationAlreadyFinished {
			return err
		}
		// Unrecoverable arithmetic error: demote to a rejected verdict
		// and stop, rather than propagate.
		rejected := false
		a.IsVerified = &rejected
		a.Round = total
		return nil
	}

	a.Round++
	if verdict != nil {
		a.IsVerified = verdict
		a.PreparedInputs = a.Computation.PreparedInputs()
	}
	return nil
}

// MarkInsertNullifiers transitions ProofSetup -> InsertNullifiers,
// reachable only when the proof was accepted.
func (a *Account) MarkInsertNullifiers() error {
	if err := a.RequireState(StateProofSetup); err != nil {
		return err
	}
	if a.IsVerified == nil {
		return elusiverr.ErrComputationNotYetFinished
	}
	if !*a.IsVerified {
		return elusiverr.ErrInvalidAccountState
	}
	return a.transition(StateInsertNullifiers)
}

// MarkRejectedFinalized transitions ProofSetup -> Finalized directly,
// skipping InsertNullifiers, for a rejected proof.
func (a *Account) MarkRejectedFinalized() error {
	if err := a.RequireState(StateProofSetup); err != nil {
		return err
	}
	if a.IsVerified == nil {
		return elusiverr.ErrComputationNotYetFinished
	}
	if *a.IsVerified {
		return elusiverr.ErrInvalidAccountState
	}
	return a.transition(StateFinalized)
}

// MarkFinalized transitions InsertNullifiers -> Finalized, once every
// nullifier in the request has been inserted.
func (a *Account) MarkFinalized() error {
	if err := a.RequireState(StateInsertNullifiers); err != nil {
		return err
	}
	return a.transition(StateFinalized)
}

// MarkClosed transitions Finalized -> Closed, the terminal state.
func (a *Account) MarkClosed() error {
	if err := a.RequireState(StateFinalized); err != nil {
		return err
	}
	return a.transition(StateClosed)
}
