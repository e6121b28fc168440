// Package joinsplit defines the join-split public-input data model and
// the checker that validates a request's public inputs against
// commitment-tree and nullifier-set state before a verification account
// is allowed to exist.
package joinsplit

import (
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/pkg/types"
)

// MaxArity is the largest number of notes a single join-split can
// consume; commitment_count must fall in [1, MaxArity].
const MaxArity = 2

// MaxMTCount is the number of distinct Merkle trees a single request may
// reference.
const MaxMTCount = 2

// ZeroCommitment is the protocol's canonical zero-commitment; a request
// naming it as its output commitment is always rejected.
var ZeroCommitment = bn254.RawU256{}

// Kind is the ProofRequest variant tag.
type Kind uint8

const (
	KindSend    Kind = 0
	KindMerge   Kind = 1
	KindMigrate Kind = 2
)

// JoinSplitPublicInputs is the shared public-input shape every
// ProofRequest variant wraps.
type JoinSplitPublicInputs struct {
	CommitmentCount int
	// Roots holds up to CommitmentCount entries; a nil entry means "no
	// root" (reuses tree slot 0), a non-nil entry marks a new tree slot.
	Roots            []*bn254.RawU256
	NullifierHashes  []bn254.RawU256
	Commitment       bn254.RawU256
	FeeVersion       uint32
	Amount           uint64
	Fee              uint64
	TokenID          uint16
}

// Recipient identifies where a Send's amount is paid out.
type Recipient struct {
	Address                   types.PublicKey
	IsNonAssociatedTokenAccount bool
}

// SendPublicInputs adds the Send-variant-only public inputs.
type SendPublicInputs struct {
	JoinSplit   JoinSplitPublicInputs
	Recipient   Recipient
	CurrentTime uint64
	Identifier  bn254.RawU256
	Salt        bn254.RawU256
}

// MergePublicInputs is a Merge request; Merge requires Amount == 0.
type MergePublicInputs struct {
	JoinSplit JoinSplitPublicInputs
}

// MigratePublicInputs is recognized but always rejected at
// init_verification. It carries no
// fields beyond the shared join-split shape because it is never
// processed past the rejection check.
type MigratePublicInputs struct {
	JoinSplit JoinSplitPublicInputs
}

// VerifyAdditionalConstraints reports whether the Send-variant-specific
// public-input constraints hold, beyond what the shared join-split
// checker enforces.
func (s *SendPublicInputs) VerifyAdditionalConstraints() bool {
	cc := s.JoinSplit.CommitmentCount
	return cc >= 1 && cc <= MaxArity
}

// VerifyAdditionalConstraints reports whether the Merge-variant-specific
// public-input constraints hold.
func (m *MergePublicInputs) VerifyAdditionalConstraints() bool {
	cc := m.JoinSplit.CommitmentCount
	return cc >= 1 && cc <= MaxArity
}

// ProofRequest is the tagged variant a client submits to init_verification.
// Exactly one of Send/Merge/Migrate is populated, selected by Kind.
type ProofRequest struct {
	Kind    Kind
	Send    *SendPublicInputs
	Merge   *MergePublicInputs
	Migrate *MigratePublicInputs
}

// JoinSplit returns the shared public-input shape regardless of variant.
func (r *ProofRequest) JoinSplit() *JoinSplitPublicInputs {
	switch r.Kind {
	case KindSend:
		return &r.Send.JoinSplit
	case KindMerge:
		return &r.Merge.JoinSplit
	case KindMigrate:
		return &r.Migrate.JoinSplit
	}
	return nil
}

// PublicInputScalars flattens the public inputs the Groth16 verifier
// consumes, in the fixed order a VerifyingKey expects them (nullifier
// hashes, then commitment; no variant-specific fields are included). The exact
// layout is owned by the verifying key's PublicInputsCount /
// gamma_abc_g1 ordering; this helper only performs the Raw -> Scalar
// projection shared by every variant.
func (js *JoinSplitPublicInputs) PublicInputScalars() []bn254.Scalar {
	out := make([]bn254.Scalar, 0, js.CommitmentCount+1)
	for _, n := range js.NullifierHashes {
		out = append(out, bn254.ScalarFromRaw(n))
	}
	out = append(out, bn254.ScalarFromRaw(js.Commitment))
	return out
}
