// Package fees derives per-request fees from governor configuration and
// price-oracle quotes: the commitment-hashing fee, the
// proof-verification fee, the network fee, and the subvention that
// discounts them, expressed in both lamports and token units.
package fees

import (
	"context"

	"github.com/elusiv/core/internal/elusiverr"
)

// Governor is the narrow view of the out-of-scope governor/fee-config
// store this package needs: the program fee schedule and the current
// commitment-batching rate, keyed by fee version.
type Governor interface {
	ProgramFee(ctx context.Context, feeVersion uint32) (ProgramFee, error)
	CommitmentBatchingRate(ctx context.Context) uint32
	CurrentFeeVersion(ctx context.Context) uint32
}

// ProgramFee is the governor's fee schedule for one fee version, in
// lamports unless noted.
type ProgramFee struct {
	CommitmentHashFeeLamports uint64
	ProofVerificationFee      uint64
	NetworkFee                uint64
	Subvention                uint64
	AssociatedTokenAccountRent uint64
}

// Oracle is the narrow view of the out-of-scope price-oracle client this
// package needs: converting a lamport amount into token units for a
// given token, so a token-denominated fee can be checked against a
// token-denominated commitment.
type Oracle interface {
	LamportsToToken(ctx context.Context, tokenID uint16, lamports uint64) (uint64, error)
}

// FixedRateOracle is an Oracle quoting one fixed lamports-to-token rate
// for every token, an in-memory stand-in for the real price-oracle
// client.
type FixedRateOracle struct {
	Num uint64
	Den uint64
}

func (o FixedRateOracle) LamportsToToken(ctx context.Context, tokenID uint16, lamports uint64) (uint64, error) {
	if o.Den == 0 {
		return 0, elusiverr.ErrInvalidAmount
	}
	return lamports * o.Num / o.Den, nil
}

// Breakdown is the fee record persisted on a VerificationAccount's
// other_data once FeeTransferred is reached.
type Breakdown struct {
	Subvention                uint64
	NetworkFee                uint64
	CommitmentHashFeeLamports uint64
	CommitmentHashFeeToken    uint64
	ProofVerificationFee      uint64

	// AssociatedTokenAccountRentLamports and ...RentToken are the two
	// denominations of the rent reserved for a token Send to an
	// associated recipient; both stay zero when no rent was reserved.
	AssociatedTokenAccountRentLamports uint64
	AssociatedTokenAccountRentToken    uint64

	MinBatchingRate uint32
	TokenID         uint16
}

// Amount is fee.CommitmentHashFeeToken + fee.ProofVerificationFee +
// fee.NetworkFee - fee.Subvention, the equation a request's committed
// `fee` must match. Token-denominated
// amounts are used uniformly: for the native branch, TokenID == 0 and
// the "token" amounts are actually lamports.
func (b Breakdown) Amount() uint64 {
	total := b.CommitmentHashFeeToken + b.ProofVerificationFee + b.NetworkFee
	if total < b.Subvention {
		return 0
	}
	return total - b.Subvention
}

// Compute derives a Breakdown for a request with the given token,
// prepare-inputs instruction count (the per-tx round schedule length,
// which the governor's fee schedule may price by), and join-split
// amount — used by init_verification_transfer_fee to recompute fees
// independently of the client's claim.
func Compute(
	ctx context.Context,
	governor Governor,
	oracle Oracle,
	feeVersion uint32,
	tokenID uint16,
	prepareInputsInstructionCount uint32,
	amount uint64,
) (Breakdown, error) {
	if feeVersion != governor.CurrentFeeVersion(ctx) {
		return Breakdown{}, elusiverr.ErrInvalidFeeVersion
	}

	pf, err := governor.ProgramFee(ctx, feeVersion)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Subvention:                pf.Subvention,
		NetworkFee:                pf.NetworkFee,
		CommitmentHashFeeLamports: pf.CommitmentHashFeeLamports,
		ProofVerificationFee:      pf.ProofVerificationFee,
		MinBatchingRate:           governor.CommitmentBatchingRate(ctx),
		TokenID:                   tokenID,
	}

	if tokenID == 0 {
		b.CommitmentHashFeeToken = pf.CommitmentHashFeeLamports
		b.AssociatedTokenAccountRentToken = pf.AssociatedTokenAccountRent
		return b, nil
	}

	hashFeeToken, err := oracle.LamportsToToken(ctx, tokenID, pf.CommitmentHashFeeLamports)
	if err != nil {
		return Breakdown{}, err
	}
	rentToken, err := oracle.LamportsToToken(ctx, tokenID, pf.AssociatedTokenAccountRent)
	if err != nil {
		return Breakdown{}, err
	}
	b.CommitmentHashFeeToken = hashFeeToken
	b.AssociatedTokenAccountRentToken = rentToken
	return b, nil
}

// CheckAssociatedTokenAccountRent verifies a Send to a fresh associated
// token account reserves enough of the join-split amount to cover the
// account's rent, in token units.
func CheckAssociatedTokenAccountRent(b Breakdown, amount uint64) error {
	if amount < b.AssociatedTokenAccountRentToken {
		return elusiverr.ErrInvalidAmount
	}
	return nil
}
