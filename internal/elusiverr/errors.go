// Package elusiverr defines the sentinel errors returned by the
// verification program. Callers compare against these with errors.Is;
// there is no custom error-code wrapper type.
package elusiverr

import "errors"

var (
	// ErrInvalidAccount signals an account-identity mismatch (wrong pool,
	// wrong fee-collector, wrong PDA derivation).
	ErrInvalidAccount = errors.New("elusiv: invalid account")

	// ErrInvalidAccountState signals a lifecycle precondition violation.
	ErrInvalidAccountState = errors.New("elusiv: invalid account state")

	// ErrInvalidPublicInputs signals a join-split invariant violation.
	ErrInvalidPublicInputs = errors.New("elusiv: invalid public inputs")

	// ErrInvalidMerkleRoot signals a root check against storage or an
	// archived tree failed.
	ErrInvalidMerkleRoot = errors.New("elusiv: invalid merkle root")

	// ErrInvalidAmount signals a Merge request with a nonzero amount.
	ErrInvalidAmount = errors.New("elusiv: invalid amount")

	// ErrInvalidInstructionData signals asserted finalize data, or a
	// timestamp, that does not match the server's independent estimate.
	ErrInvalidInstructionData = errors.New("elusiv: invalid instruction data")

	// ErrInvalidFeeVersion signals the request's fee version does not
	// match the governor's current fee version.
	ErrInvalidFeeVersion = errors.New("elusiv: invalid fee version")

	// ErrComputationAlreadyFinished signals a round was requested beyond
	// total_rounds, or a verdict was already recorded.
	ErrComputationAlreadyFinished = errors.New("elusiv: computation is already finished")

	// ErrComputationNotYetFinished signals finalize was called before a
	// verdict landed.
	ErrComputationNotYetFinished = errors.New("elusiv: computation is not yet finished")

	// ErrCouldNotInsertNullifier signals the nullifier is already present.
	ErrCouldNotInsertNullifier = errors.New("elusiv: could not insert nullifier")

	// ErrFeatureNotAvailable signals a Migrate request.
	ErrFeatureNotAvailable = errors.New("elusiv: feature not available")

	// ErrCouldNotProcessProof signals an unrecoverable verifier
	// arithmetic error; callers should demote this to a Some(false)
	// verdict rather than propagate it.
	ErrCouldNotProcessProof = errors.New("elusiv: could not process proof")

	// ErrQueueFull signals the commitment queue has no free slot.
	ErrQueueFull = errors.New("elusiv: commitment queue is full")
)
