// Package processor wires the verification state machine to the
// join-split checker, nullifier sets, commitment storage,
// the settlement pipeline, the fee model, and the nullifier
// duplicate guard into the program's seven external instructions.
// One Processor serves every verification account the
// program currently holds; accounts themselves carry no reference back
// to it, shared state is passed in rather than stored on the record.
package processor

import (
	"context"

	"github.com/elusiv/core/internal/account"
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/internal/fees"
	"github.com/elusiv/core/internal/guard"
	"github.com/elusiv/core/internal/joinsplit"
	"github.com/elusiv/core/internal/nullifier"
	"github.com/elusiv/core/internal/settlement"
	"github.com/elusiv/core/internal/storage"
	"github.com/elusiv/core/pkg/types"
)

// TimestampBitsPruning is the number of low bits a Send's current_time
// and the clock's timestamp are both shifted by before comparison.
const TimestampBitsPruning = 5

// Clock supplies the current time for Send timestamp-freshness checks.
// Production callers read a real clock; tests inject a fixed one.
type Clock interface {
	Now() uint64
}

// FixedClock is a Clock that always returns the same instant.
type FixedClock uint64

func (f FixedClock) Now() uint64 { return uint64(f) }

// Notifier is the warden-network observer: an
// optional, non-blocking callback invoked after a successful finalize so
// a warden network can observe finalized verifications without being
// load-bearing for correctness.
type Notifier interface {
	NotifyFinalized(ctx context.Context, acc *account.Account)
}

// NoopNotifier implements Notifier by doing nothing.
type NoopNotifier struct{}

func (NoopNotifier) NotifyFinalized(ctx context.Context, acc *account.Account) {}

// Processor holds every piece of shared state the seven instructions
// touch. TestMode disables Send timestamp-freshness enforcement.
type Processor struct {
	Storage     *storage.Account
	Nullifiers  [account.MaxMTCount]*nullifier.Account
	Guard       *guard.Registry
	Queue       *storage.Queue
	Governor    fees.Governor
	Oracle      fees.Oracle
	Identities  settlement.Identities
	Lamports    settlement.LamportLedger
	Tokens      settlement.TokenLedger
	ATA         settlement.ATACreator
	Clock       Clock
	TestMode    bool
	Notifier    Notifier
}

// FinalizeSendData is the client's asserted commitment placement and
// settlement total, checked against the processor's own independent
// estimate in FinalizeVerificationSend.
type FinalizeSendData struct {
	CommitmentIndex uint32
	MTIndex         uint32
	Timestamp       uint64
	TotalAmount     uint64
	TokenID         uint16
}

func (p *Processor) notifier() Notifier {
	if p.Notifier == nil {
		return NoopNotifier{}
	}
	return p.Notifier
}

// --- 1. init_verification ---------------------------------

// InitVerification validates request and allocates a fresh Account in
// state None. The duplicate-guard address is derived
// from the request's nullifier hashes (skip_mr form); callers are
// responsible for slotting the returned Account at
// verification_account_index themselves.
func (p *Processor) InitVerification(
	ctx context.Context,
	feePayer, feePayerAccount types.PublicKey,
	request joinsplit.ProofRequest,
	treeIndices [account.MaxMTCount]uint32,
	skipNullifierPDA bool,
	recipientAccountKey types.PublicKey,
	recipientTokenAccountTokenID uint16,
) (*account.Account, error) {
	if request.Kind == joinsplit.KindMigrate {
		return nil, elusiverr.ErrFeatureNotAvailable
	}

	js := request.JoinSplit()

	switch request.Kind {
	case joinsplit.KindSend:
		send := request.Send
		if !send.VerifyAdditionalConstraints() {
			return nil, elusiverr.ErrInvalidPublicInputs
		}
		if send.Recipient.Address != recipientAccountKey {
			return nil, elusiverr.ErrInvalidAccount
		}
		if send.Recipient.IsNonAssociatedTokenAccount && recipientTokenAccountTokenID != js.TokenID {
			return nil, elusiverr.ErrInvalidAccount
		}
		if !p.TestMode {
			now := p.Clock.Now()
			if (send.CurrentTime >> TimestampBitsPruning) < (now >> TimestampBitsPruning) {
				return nil, elusiverr.ErrInvalidInstructionData
			}
		}
	case joinsplit.KindMerge:
		if js.Amount != 0 {
			return nil, elusiverr.ErrInvalidAmount
		}
		if !request.Merge.VerifyAdditionalConstraints() {
			return nil, elusiverr.ErrInvalidPublicInputs
		}
	}

	var nullifierCheckers [account.MaxMTCount]joinsplit.NullifierChecker
	for i, n := range p.Nullifiers {
		if n != nil {
			nullifierCheckers[i] = n
		}
	}
	if err := joinsplit.CheckJoinSplitPublicInputs(ctx, js, p.Storage, nullifierCheckers, treeIndices); err != nil {
		return nil, err
	}

	addr := guard.DeriveAddress(js.NullifierHashes)
	if skipNullifierPDA {
		if err := p.Guard.RequireExisting(ctx, addr); err != nil {
			return nil, err
		}
	} else {
		if err := p.Guard.Create(ctx, addr); err != nil {
			return nil, err
		}
	}

	vk, err := vkeyForKind(request.Kind)
	if err != nil {
		return nil, err
	}
	schedule := prepareInputsSchedule(vk)

	return account.New(feePayer, feePayerAccount, skipNullifierPDA, request, treeIndices, schedule), nil
}

// --- 2. init_verification_transfer_fee ---------------------

// InitVerificationTransferFee recomputes fees, reserves ATA rent where
// applicable, moves prepaid value into the pool, and transitions
// None -> FeeTransferred.
func (p *Processor) InitVerificationTransferFee(
	ctx context.Context,
	acc *account.Account,
	feePayer types.PublicKey,
	feeCollector types.PublicKey,
) error {
	if err := acc.RequireState(account.StateNone); err != nil {
		return err
	}
	if acc.FeePayer != feePayer {
		return elusiverr.ErrInvalidAccount
	}
	if err := p.Identities.VerifyFeeCollector(feeCollector); err != nil {
		return err
	}

	js := acc.Request.JoinSplit()
	fee, err := fees.Compute(ctx, p.Governor, p.Oracle, js.FeeVersion, js.TokenID, uint32(len(acc.PrepareInputsInstructions)), js.Amount)
	if err != nil {
		return err
	}
	if fee.Amount() != js.Fee {
		return elusiverr.ErrInvalidPublicInputs
	}

	// Rent for the recipient's associated token account is reserved
	// up front (in both denominations) for a token Send to an
	// associated recipient; whether the account actually needs creating
	// is only known at finalize time.
	reserveRent := js.TokenID != 0 &&
		acc.Request.Kind == joinsplit.KindSend &&
		!acc.Request.Send.Recipient.IsNonAssociatedTokenAccount
	if reserveRent {
		if err := fees.CheckAssociatedTokenAccountRent(fee, js.Amount); err != nil {
			return err
		}
		pf, err := p.Governor.ProgramFee(ctx, js.FeeVersion)
		if err != nil {
			return err
		}
		fee.AssociatedTokenAccountRentLamports = pf.AssociatedTokenAccountRent
	} else {
		fee.AssociatedTokenAccountRentToken = 0
	}

	if err := p.Lamports.Transfer(ctx, feePayer, p.Identities.Pool, fee.CommitmentHashFeeLamports+fee.AssociatedTokenAccountRentLamports); err != nil {
		return err
	}
	if js.TokenID != 0 {
		if err := p.Tokens.Transfer(ctx, js.TokenID, feeCollector, p.Identities.Pool, fee.Subvention); err != nil {
			return err
		}
	} else {
		if err := p.Lamports.Transfer(ctx, feeCollector, p.Identities.Pool, fee.Subvention); err != nil {
			return err
		}
	}

	return acc.MarkFeeTransferred(fee)
}

// --- 3. init_verification_proof ----------------------------------------

// InitVerificationProof stores the Groth16 proof and transitions
// FeeTransferred -> ProofSetup.
func (p *Processor) InitVerificationProof(acc *account.Account, feePayer types.PublicKey, proof account.Proof) error {
	if acc.FeePayer != feePayer {
		return elusiverr.ErrInvalidAccount
	}
	return acc.SetProof(proof)
}

// --- 4. compute_verification --------------------------------

// ComputeVerification advances acc's partitioned verifier by exactly one
// round.
func (p *Processor) ComputeVerification(acc *account.Account) error {
	return acc.AdvanceRound()
}

// --- 5. finalize_verification_send --------------------------

// FinalizeVerificationSend consumes the verdict: on rejection it
// transitions straight to Finalized; on acceptance it checks
// identifier/salt and the caller's FinalizeSendData against the
// processor's own independent estimate, then transitions to
// InsertNullifiers.
func (p *Processor) FinalizeVerificationSend(
	acc *account.Account,
	data FinalizeSendData,
	identifierKey, saltKey bn254.RawU256,
) error {
	if err := acc.RequireState(account.StateProofSetup); err != nil {
		return err
	}
	if acc.IsVerified == nil {
		return elusiverr.ErrComputationNotYetFinished
	}
	if !*acc.IsVerified {
		return acc.MarkRejectedFinalized()
	}

	if acc.Kind == 2 {
		return elusiverr.ErrFeatureNotAvailable
	}

	js := acc.Request.JoinSplit()
	if acc.Kind == 0 {
		send := acc.Request.Send
		if send.Identifier != identifierKey || send.Salt != saltKey {
			return elusiverr.ErrInvalidAccount
		}
		if data.Timestamp != send.CurrentTime {
			return elusiverr.ErrInvalidInstructionData
		}
	}

	wantIndex, wantTreeIndex := p.Storage.MinimumCommitmentMTIndex(p.Queue.Len())
	totalAmount := js.Amount + js.Fee
	if data.CommitmentIndex != wantIndex || data.MTIndex != wantTreeIndex ||
		data.TotalAmount != totalAmount || data.TokenID != js.TokenID {
		return elusiverr.ErrInvalidInstructionData
	}

	return acc.MarkInsertNullifiers()
}

// --- 6. finalize_verification_send_nullifiers ---------------

// FinalizeVerificationSendNullifiers walks acc's roots left-to-right,
// inserting each nullifier hash into its tree slot's set. Any insert
// failure is fatal: the error is returned and acc stays in
// InsertNullifiers; hashes inserted earlier in the same call are not
// removed.
func (p *Processor) FinalizeVerificationSendNullifiers(ctx context.Context, acc *account.Account) error {
	if err := acc.RequireState(account.StateInsertNullifiers); err != nil {
		return err
	}

	js := acc.Request.JoinSplit()
	treeIndex := 0
	for i, r := range js.Roots {
		if r != nil && i > 0 {
			treeIndex++
		}
		n := js.NullifierHashes[i].Reduce()
		set := p.Nullifiers[treeIndex]
		if set == nil {
			return elusiverr.ErrInvalidAccount
		}
		if err := set.TryInsert(ctx, n); err != nil {
			return err
		}
	}

	return acc.MarkFinalized()
}

// --- 7a. finalize_verification_transfer_lamports ------------

// FinalizeVerificationTransferLamports settles a native (token_id == 0)
// verification: rejected proofs route prepaid fees to feeCollector,
// accepted Sends pay the recipient, fee-payer, and fee-collector, then
// both PDAs close.
func (p *Processor) FinalizeVerificationTransferLamports(
	ctx context.Context,
	acc *account.Account,
	nullifierDuplicateAddr guard.Address,
	originalFeePayer, recipient, feeCollector types.PublicKey,
) error {
	if acc.TokenID != 0 {
		return elusiverr.ErrInvalidPublicInputs
	}
	if err := p.preFinalizeChecks(ctx, acc, nullifierDuplicateAddr, originalFeePayer); err != nil {
		return err
	}
	if err := p.Identities.VerifyFeeCollector(feeCollector); err != nil {
		return err
	}

	js := acc.Request.JoinSplit()

	if acc.IsVerified != nil && !*acc.IsVerified {
		p.closeGuard(ctx, acc, nullifierDuplicateAddr)
		if err := p.Lamports.Transfer(ctx, p.Identities.Pool, feeCollector, acc.Fees.Subvention); err != nil {
			return err
		}
		if err := p.Lamports.Transfer(ctx, p.Identities.Pool, feeCollector, acc.Fees.CommitmentHashFeeLamports); err != nil {
			return err
		}
		return acc.MarkClosed()
	}

	if acc.Kind == 0 && js.Amount > 0 {
		if err := p.Lamports.Transfer(ctx, p.Identities.Pool, recipient, js.Amount); err != nil {
			return err
		}
	}
	if err := p.Lamports.Transfer(ctx, p.Identities.Pool, originalFeePayer, acc.Fees.CommitmentHashFeeToken+acc.Fees.ProofVerificationFee); err != nil {
		return err
	}
	if err := p.Lamports.Transfer(ctx, p.Identities.Pool, feeCollector, acc.Fees.NetworkFee); err != nil {
		return err
	}

	p.closeGuard(ctx, acc, nullifierDuplicateAddr)
	if err := p.enqueueCommitment(acc); err != nil {
		return err
	}
	if err := acc.MarkClosed(); err != nil {
		return err
	}
	p.notifier().NotifyFinalized(ctx, acc)
	return nil
}

// --- 7b. finalize_verification_transfer_token ---------------

// FinalizeVerificationTransferToken settles a token (token_id > 0)
// verification, additionally handling associated-token-account creation
// and the malformed-non-associated-recipient redirect.
func (p *Processor) FinalizeVerificationTransferToken(
	ctx context.Context,
	acc *account.Account,
	nullifierDuplicateAddr guard.Address,
	originalFeePayer, feePayerTokenAccount, poolTokenAccount, feeCollectorTokenAccount types.PublicKey,
	recipientOwner types.PublicKey,
	recipientTokenAccount types.PublicKey,
	recipientTokenAccountMalformed bool,
	signer types.PublicKey,
) error {
	if acc.TokenID == 0 {
		return elusiverr.ErrInvalidPublicInputs
	}
	if err := p.preFinalizeChecks(ctx, acc, nullifierDuplicateAddr, originalFeePayer); err != nil {
		return err
	}
	if feePayerTokenAccount != acc.FeePayerAccount {
		return elusiverr.ErrInvalidAccount
	}
	if p.ATA.DeriveATA(p.Identities.FeeCollector, acc.TokenID) != feeCollectorTokenAccount {
		return elusiverr.ErrInvalidAccount
	}

	js := acc.Request.JoinSplit()

	if acc.IsVerified != nil && !*acc.IsVerified {
		p.closeGuard(ctx, acc, nullifierDuplicateAddr)
		if err := p.Tokens.Transfer(ctx, acc.TokenID, poolTokenAccount, feeCollectorTokenAccount, acc.Fees.Subvention); err != nil {
			return err
		}
		if err := p.Lamports.Transfer(ctx, p.Identities.Pool, p.Identities.FeeCollector, acc.Fees.CommitmentHashFeeLamports+acc.Fees.AssociatedTokenAccountRentLamports); err != nil {
			return err
		}
		return acc.MarkClosed()
	}

	// rentTokenUsed is the reserved rent-token actually consumed by an
	// ATA creation this call: it comes out of the recipient's amount and
	// reimburses the fee payer, so both legs together always net to
	// amount + hash_fee_token + proof_fee. When the ATA already exists
	// (or the recipient is non-associated) it stays zero and the
	// recipient receives the full amount.
	rentRefundTarget := originalFeePayer
	var rentTokenUsed uint64
	if acc.Kind == 0 && js.Amount > 0 {
		send := acc.Request.Send
		dest := recipientTokenAccount
		if send.Recipient.IsNonAssociatedTokenAccount {
			if recipientTokenAccountMalformed {
				dest = feeCollectorTokenAccount
			}
		} else {
			ata := p.ATA.DeriveATA(recipientOwner, acc.TokenID)
			if ata != recipientTokenAccount {
				return elusiverr.ErrInvalidAccount
			}
			if !p.ATA.ATAExists(ctx, ata) {
				if err := p.ATA.CreateATA(ctx, signer, recipientOwner, acc.TokenID); err != nil {
					return err
				}
				rentRefundTarget = signer
				rentTokenUsed = acc.Fees.AssociatedTokenAccountRentToken
			}
		}
		if err := p.Tokens.Transfer(ctx, acc.TokenID, poolTokenAccount, dest, js.Amount-rentTokenUsed); err != nil {
			return err
		}
	}

	if err := p.Tokens.Transfer(ctx, acc.TokenID, poolTokenAccount, feePayerTokenAccount,
		acc.Fees.CommitmentHashFeeToken+acc.Fees.ProofVerificationFee+rentTokenUsed); err != nil {
		return err
	}
	if err := p.Tokens.Transfer(ctx, acc.TokenID, poolTokenAccount, feeCollectorTokenAccount, acc.Fees.NetworkFee); err != nil {
		return err
	}
	if err := p.Lamports.Transfer(ctx, p.Identities.Pool, rentRefundTarget, acc.Fees.AssociatedTokenAccountRentLamports); err != nil {
		return err
	}

	p.closeGuard(ctx, acc, nullifierDuplicateAddr)
	if err := p.enqueueCommitment(acc); err != nil {
		return err
	}
	if err := acc.MarkClosed(); err != nil {
		return err
	}
	p.notifier().NotifyFinalized(ctx, acc)
	return nil
}

func (p *Processor) preFinalizeChecks(ctx context.Context, acc *account.Account, nullifierDuplicateAddr guard.Address, originalFeePayer types.PublicKey) error {
	if err := acc.RequireState(account.StateFinalized); err != nil {
		return err
	}
	if acc.FeePayer != originalFeePayer {
		return elusiverr.ErrInvalidAccount
	}
	if nullifierDuplicateAddr != guard.DeriveAddress(acc.Request.JoinSplit().NullifierHashes) {
		return elusiverr.ErrInvalidAccount
	}
	if !acc.SkipNullifierPDA {
		if !p.Guard.Exists(ctx, nullifierDuplicateAddr) {
			return elusiverr.ErrInvalidAccount
		}
	}
	return nil
}

// closeGuard releases the duplicate-guard PDA unless SkipNullifierPDA is
// set. No rent is recorded for the guard or the verification account, so
// closing them moves no lamports to the fee collector or the fee payer.
func (p *Processor) closeGuard(ctx context.Context, acc *account.Account, addr guard.Address) {
	if !acc.SkipNullifierPDA {
		p.Guard.Close(ctx, addr)
	}
}

func (p *Processor) enqueueCommitment(acc *account.Account) error {
	js := acc.Request.JoinSplit()
	return p.Queue.Enqueue(storage.CommitmentHashRequest{
		Commitment:      js.Commitment.Reduce(),
		FeeVersion:      js.FeeVersion,
		MinBatchingRate: acc.MinBatchingRate,
	})
}
