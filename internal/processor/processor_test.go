package processor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/elusiv/core/internal/account"
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/internal/fees"
	"github.com/elusiv/core/internal/governor"
	"github.com/elusiv/core/internal/guard"
	"github.com/elusiv/core/internal/joinsplit"
	"github.com/elusiv/core/internal/nullifier"
	"github.com/elusiv/core/internal/processor"
	"github.com/elusiv/core/internal/settlement"
	"github.com/elusiv/core/internal/storage"
	"github.com/elusiv/core/internal/testvk"
	"github.com/elusiv/core/internal/verifier"
	"github.com/elusiv/core/pkg/types"
)

var (
	setupOnce sync.Once
	setup     *testvk.Setup
	setupErr  error
)

func sharedSetup(t *testing.T) *testvk.Setup {
	t.Helper()
	setupOnce.Do(func() {
		setup, setupErr = testvk.New()
		if setupErr == nil {
			verifier.RegisterSendQuadraVKey(setup.VK)
			verifier.RegisterMigrateUnaryVKey(setup.VK)
		}
	})
	if setupErr != nil {
		t.Fatalf("trusted setup failed: %v", setupErr)
	}
	return setup
}

var (
	poolKey         = types.PublicKeyFromBytes([]byte("pool"))
	feeCollectorKey = types.PublicKeyFromBytes([]byte("fee-collector"))
	feePayerKey     = types.PublicKeyFromBytes([]byte("fee-payer"))
	feePayerToken   = types.PublicKeyFromBytes([]byte("fee-payer-token"))
	signerKey       = types.PublicKeyFromBytes([]byte("signer"))
	poolTokenKey    = types.PublicKeyFromBytes([]byte("pool-token"))
)

const (
	testAmount   = uint64(1_000_000_000)
	testFee      = uint64(10000)
	testTime     = uint64(112233)
	usdcTokenID  = uint16(2)
	queueDefault = 16
)

type fixture struct {
	proc     *processor.Processor
	lamports *settlement.MemLamportLedger
	tokens   *settlement.MemTokenLedger
	ata      *settlement.MemATACreator
	root     bn254.RawU256
}

func newFixture(t *testing.T, queueCapacity int) *fixture {
	t.Helper()
	sharedSetup(t)

	root := bn254.U256FromString("42")
	storageAcc := storage.NewAccount()
	storageAcc.RecordRoot(root.Reduce())

	lamports := settlement.NewMemLamportLedger(map[types.PublicKey]uint64{
		poolKey:         10 * testAmount,
		feeCollectorKey: testAmount,
		feePayerKey:     testAmount,
		signerKey:       testAmount,
	})
	tokens := settlement.NewMemTokenLedger()
	tokens.Seed(usdcTokenID, poolTokenKey, 10*testAmount)
	tokens.Seed(usdcTokenID, feeCollectorKey, testAmount)
	ata := settlement.NewMemATACreator()

	proc := &processor.Processor{
		Storage: storageAcc,
		Nullifiers: [account.MaxMTCount]*nullifier.Account{
			nullifier.New(nullifier.NewMemStore(), bn254.MrU256{}),
			nullifier.New(nullifier.NewMemStore(), bn254.U256FromString("43").Reduce()),
		},
		Guard:      guard.NewRegistry(),
		Queue:      storage.NewQueue(queueCapacity),
		Governor:   governor.NewManager(nil),
		Oracle:     fees.FixedRateOracle{Num: 1, Den: 1},
		Identities: settlement.Identities{Pool: poolKey, FeeCollector: feeCollectorKey},
		Lamports:   lamports,
		Tokens:     tokens,
		ATA:        ata,
		Clock:      processor.FixedClock(testTime),
		TestMode:   true,
	}
	return &fixture{proc: proc, lamports: lamports, tokens: tokens, ata: ata, root: root}
}

func sendRequest(f *fixture, nullifierStr string, tokenID uint16, nonAssociated bool) joinsplit.ProofRequest {
	root := f.root
	return joinsplit.ProofRequest{
		Kind: joinsplit.KindSend,
		Send: &joinsplit.SendPublicInputs{
			JoinSplit: joinsplit.JoinSplitPublicInputs{
				CommitmentCount: 1,
				Roots:           []*bn254.RawU256{&root},
				NullifierHashes: []bn254.RawU256{bn254.U256FromString(nullifierStr)},
				Commitment:      bn254.U256FromString("987654321"),
				FeeVersion:      0,
				Amount:          testAmount,
				Fee:             testFee,
				TokenID:         tokenID,
			},
			Recipient: joinsplit.Recipient{
				Address:                     types.PublicKeyFromBytes(bn254.U256FromString("123").Bytes()),
				IsNonAssociatedTokenAccount: nonAssociated,
			},
			CurrentTime: testTime,
			Identifier:  bn254.U256FromString("12345"),
			Salt:        bn254.U256FromString("6789"),
		},
	}
}

func mergeRequest(f *fixture, nullifierStr string) joinsplit.ProofRequest {
	root := f.root
	return joinsplit.ProofRequest{
		Kind: joinsplit.KindMerge,
		Merge: &joinsplit.MergePublicInputs{
			JoinSplit: joinsplit.JoinSplitPublicInputs{
				CommitmentCount: 1,
				Roots:           []*bn254.RawU256{&root},
				NullifierHashes: []bn254.RawU256{bn254.U256FromString(nullifierStr)},
				Commitment:      bn254.U256FromString("987654321"),
				FeeVersion:      0,
				Amount:          0,
				Fee:             testFee,
				TokenID:         0,
			},
		},
	}
}

// proveFor builds a real Groth16 proof over the request's public-input
// scalars.
func proveFor(t *testing.T, request joinsplit.ProofRequest) account.Proof {
	t.Helper()
	s := sharedSetup(t)
	scalars := request.JoinSplit().PublicInputScalars()
	a, b, c, err := s.Prove(scalars[0], scalars[1])
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	return account.Proof{A: a, B: b, C: c}
}

// initToProofSetup drives instructions 1-3.
func initToProofSetup(t *testing.T, f *fixture, request joinsplit.ProofRequest, proof account.Proof) *account.Account {
	t.Helper()
	ctx := context.Background()

	recipientKey := types.PublicKey{}
	if request.Kind == joinsplit.KindSend {
		recipientKey = request.Send.Recipient.Address
	}
	acc, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, recipientKey, request.JoinSplit().TokenID)
	if err != nil {
		t.Fatalf("InitVerification: %v", err)
	}
	if err := f.proc.InitVerificationTransferFee(ctx, acc, feePayerKey, feeCollectorKey); err != nil {
		t.Fatalf("InitVerificationTransferFee: %v", err)
	}
	if err := f.proc.InitVerificationProof(acc, feePayerKey, proof); err != nil {
		t.Fatalf("InitVerificationProof: %v", err)
	}
	return acc
}

func driveToVerdict(t *testing.T, f *fixture, acc *account.Account) {
	t.Helper()
	total, err := acc.TotalRounds()
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i <= total && acc.IsVerified == nil; i++ {
		if err := f.proc.ComputeVerification(acc); err != nil {
			t.Fatalf("ComputeVerification round %d: %v", acc.Round, err)
		}
	}
	if acc.IsVerified == nil {
		t.Fatal("no verdict after all rounds")
	}
}

func finalizeData(f *fixture, request joinsplit.ProofRequest) processor.FinalizeSendData {
	js := request.JoinSplit()
	idx, mt := f.proc.Storage.MinimumCommitmentMTIndex(f.proc.Queue.Len())
	data := processor.FinalizeSendData{
		CommitmentIndex: idx,
		MTIndex:         mt,
		TotalAmount:     js.Amount + js.Fee,
		TokenID:         js.TokenID,
	}
	if request.Kind == joinsplit.KindSend {
		data.Timestamp = request.Send.CurrentTime
	}
	return data
}

func guardAddr(request joinsplit.ProofRequest) guard.Address {
	return guard.DeriveAddress(request.JoinSplit().NullifierHashes)
}

func TestSendNativeHappyPath(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "1", 0, false)
	recipient := request.Send.Recipient.Address

	startPayer := f.lamports.Balance(ctx, feePayerKey)
	startCollector := f.lamports.Balance(ctx, feeCollectorKey)
	startPool := f.lamports.Balance(ctx, poolKey)
	startRecipient := f.lamports.Balance(ctx, recipient)
	startSum := startPayer + startCollector + startPool + startRecipient

	acc := initToProofSetup(t, f, request, proveFor(t, request))

	// Prepaid fees are escrowed in the pool.
	if got := f.lamports.Balance(ctx, poolKey); got != startPool+5000+1000 {
		t.Fatalf("pool after fee transfer = %d, want %d", got, startPool+5000+1000)
	}

	driveToVerdict(t, f, acc)
	if !*acc.IsVerified {
		t.Fatal("valid proof rejected")
	}

	if err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), request.Send.Identifier, request.Send.Salt); err != nil {
		t.Fatalf("FinalizeVerificationSend: %v", err)
	}
	if err := f.proc.FinalizeVerificationSendNullifiers(ctx, acc); err != nil {
		t.Fatalf("FinalizeVerificationSendNullifiers: %v", err)
	}
	if err := f.proc.FinalizeVerificationTransferLamports(ctx, acc, guardAddr(request), feePayerKey, recipient, feeCollectorKey); err != nil {
		t.Fatalf("FinalizeVerificationTransferLamports: %v", err)
	}

	if acc.State != account.StateClosed {
		t.Fatalf("state = %v, want Closed", acc.State)
	}
	if got := f.lamports.Balance(ctx, recipient); got != startRecipient+testAmount {
		t.Fatalf("recipient = %d, want %d", got, startRecipient+testAmount)
	}
	// Fee payer advanced 5000, got back 5000+4000.
	if got := f.lamports.Balance(ctx, feePayerKey); got != startPayer-5000+9000 {
		t.Fatalf("fee payer = %d, want %d", got, startPayer-5000+9000)
	}
	// Fee collector paid 1000 subvention, earned 2000 network fee.
	if got := f.lamports.Balance(ctx, feeCollectorKey); got != startCollector-1000+2000 {
		t.Fatalf("fee collector = %d, want %d", got, startCollector-1000+2000)
	}

	endSum := f.lamports.Balance(ctx, feePayerKey) + f.lamports.Balance(ctx, feeCollectorKey) +
		f.lamports.Balance(ctx, poolKey) + f.lamports.Balance(ctx, recipient)
	if endSum != startSum {
		t.Fatalf("value not conserved: %d != %d", endSum, startSum)
	}

	if f.proc.Queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", f.proc.Queue.Len())
	}
	req, _ := f.proc.Queue.Dequeue()
	if req.Commitment != request.JoinSplit().Commitment.Reduce() {
		t.Fatal("queued commitment mismatch")
	}
	if f.proc.Guard.Exists(ctx, guardAddr(request)) {
		t.Fatal("duplicate guard must be closed")
	}
	if !f.proc.Nullifiers[0].Contains(ctx, request.JoinSplit().NullifierHashes[0].Reduce()) {
		t.Fatal("nullifier not inserted")
	}
}

func TestSendNativeRejectedProof(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "11", 0, false)
	recipient := request.Send.Recipient.Address

	proof := proveFor(t, request)
	proof.A, proof.C = proof.C, proof.A // break the proof

	startPayer := f.lamports.Balance(ctx, feePayerKey)
	startCollector := f.lamports.Balance(ctx, feeCollectorKey)
	startRecipient := f.lamports.Balance(ctx, recipient)

	acc := initToProofSetup(t, f, request, proof)
	driveToVerdict(t, f, acc)
	if *acc.IsVerified {
		t.Fatal("broken proof accepted")
	}

	if err := f.proc.FinalizeVerificationSend(acc, processor.FinalizeSendData{}, bn254.RawU256{}, bn254.RawU256{}); err != nil {
		t.Fatalf("FinalizeVerificationSend (rejected): %v", err)
	}
	if acc.State != account.StateFinalized {
		t.Fatalf("state = %v, want Finalized", acc.State)
	}
	if err := f.proc.FinalizeVerificationTransferLamports(ctx, acc, guardAddr(request), feePayerKey, recipient, feeCollectorKey); err != nil {
		t.Fatalf("FinalizeVerificationTransferLamports: %v", err)
	}

	if got := f.lamports.Balance(ctx, recipient); got != startRecipient {
		t.Fatal("recipient must receive nothing on rejection")
	}
	if got := f.lamports.Balance(ctx, feePayerKey); got != startPayer-5000 {
		t.Fatalf("fee payer = %d, want %d (no refund)", got, startPayer-5000)
	}
	// Subvention returns plus the advanced hash fee.
	if got := f.lamports.Balance(ctx, feeCollectorKey); got != startCollector-1000+1000+5000 {
		t.Fatalf("fee collector = %d, want %d", got, startCollector+5000)
	}
	if f.proc.Queue.Len() != 0 {
		t.Fatal("queue must stay empty on rejection")
	}
	if f.proc.Nullifiers[0].Contains(ctx, request.JoinSplit().NullifierHashes[0].Reduce()) {
		t.Fatal("nullifier must not be inserted on rejection")
	}
}

func TestMergeHappyPath(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := mergeRequest(f, "21")

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	driveToVerdict(t, f, acc)
	if !*acc.IsVerified {
		t.Fatal("valid merge proof rejected")
	}

	if err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), bn254.RawU256{}, bn254.RawU256{}); err != nil {
		t.Fatalf("FinalizeVerificationSend: %v", err)
	}
	if err := f.proc.FinalizeVerificationSendNullifiers(ctx, acc); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FinalizeVerificationTransferLamports(ctx, acc, guardAddr(request), feePayerKey, types.PublicKey{}, feeCollectorKey); err != nil {
		t.Fatal(err)
	}
	if f.proc.Queue.Len() != 1 {
		t.Fatal("merge must enqueue its commitment")
	}
}

func TestMergeRejectsNonzeroAmount(t *testing.T) {
	f := newFixture(t, queueDefault)
	request := mergeRequest(f, "22")
	request.Merge.JoinSplit.Amount = 5

	_, err := f.proc.InitVerification(context.Background(), feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, types.PublicKey{}, 0)
	if err != elusiverr.ErrInvalidAmount {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
}

func TestMigrateRejected(t *testing.T) {
	f := newFixture(t, queueDefault)
	root := f.root
	request := joinsplit.ProofRequest{
		Kind: joinsplit.KindMigrate,
		Migrate: &joinsplit.MigratePublicInputs{
			JoinSplit: joinsplit.JoinSplitPublicInputs{
				CommitmentCount: 1,
				Roots:           []*bn254.RawU256{&root},
				NullifierHashes: []bn254.RawU256{bn254.U256FromString("31")},
				Commitment:      bn254.U256FromString("987654321"),
			},
		},
	}
	_, err := f.proc.InitVerification(context.Background(), feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, types.PublicKey{}, 0)
	if err != elusiverr.ErrFeatureNotAvailable {
		t.Fatalf("got %v, want ErrFeatureNotAvailable", err)
	}
}

func TestDuplicateGuardBlocksSecondVerification(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "41", 0, false)
	recipientKey := request.Send.Recipient.Address

	if _, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, recipientKey, 0); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, recipientKey, 0); err == nil {
		t.Fatal("second init over the same nullifier set must fail")
	}
	// Explicit opt-in re-enters the existing guard.
	if _, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, true, recipientKey, 0); err != nil {
		t.Fatalf("skip_nullifier_pda init: %v", err)
	}
}

func TestSkipNullifierPDARequiresExistingGuard(t *testing.T) {
	f := newFixture(t, queueDefault)
	request := sendRequest(f, "51", 0, false)
	_, err := f.proc.InitVerification(context.Background(), feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, true, request.Send.Recipient.Address, 0)
	if err == nil {
		t.Fatal("skip_nullifier_pda without an existing guard must fail")
	}
}

func TestFeeMismatchRejected(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "61", 0, false)
	request.Send.JoinSplit.Fee = testFee - 1

	acc, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, request.Send.Recipient.Address, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.InitVerificationTransferFee(ctx, acc, feePayerKey, feeCollectorKey); err != elusiverr.ErrInvalidPublicInputs {
		t.Fatalf("got %v, want ErrInvalidPublicInputs", err)
	}
}

func TestFeeVersionMismatchRejected(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "62", 0, false)
	request.Send.JoinSplit.FeeVersion = 9

	acc, err := f.proc.InitVerification(ctx, feePayerKey, feePayerToken, request, [account.MaxMTCount]uint32{0, 1}, false, request.Send.Recipient.Address, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.InitVerificationTransferFee(ctx, acc, feePayerKey, feeCollectorKey); err != elusiverr.ErrInvalidFeeVersion {
		t.Fatalf("got %v, want ErrInvalidFeeVersion", err)
	}
}

func TestFinalizeSendDataMismatch(t *testing.T) {
	f := newFixture(t, queueDefault)
	request := sendRequest(f, "71", 0, false)

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	driveToVerdict(t, f, acc)
	if !*acc.IsVerified {
		t.Fatal("valid proof rejected")
	}

	data := finalizeData(f, request)
	data.TotalAmount++
	if err := f.proc.FinalizeVerificationSend(acc, data, request.Send.Identifier, request.Send.Salt); err != elusiverr.ErrInvalidInstructionData {
		t.Fatalf("got %v, want ErrInvalidInstructionData", err)
	}
}

func TestFinalizeBeforeVerdictFails(t *testing.T) {
	f := newFixture(t, queueDefault)
	request := sendRequest(f, "81", 0, false)

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), request.Send.Identifier, request.Send.Salt)
	if err != elusiverr.ErrComputationNotYetFinished {
		t.Fatalf("got %v, want ErrComputationNotYetFinished", err)
	}
}

func TestQueueFullFailsFinalize(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	request := sendRequest(f, "91", 0, false)

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	driveToVerdict(t, f, acc)
	if err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), request.Send.Identifier, request.Send.Salt); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FinalizeVerificationSendNullifiers(ctx, acc); err != nil {
		t.Fatal(err)
	}
	err := f.proc.FinalizeVerificationTransferLamports(ctx, acc, guardAddr(request), feePayerKey, request.Send.Recipient.Address, feeCollectorKey)
	if err != elusiverr.ErrQueueFull {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestSendTokenHappyPath(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "101", usdcTokenID, false)
	recipientOwner := request.Send.Recipient.Address

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	if acc.Fees.AssociatedTokenAccountRentLamports == 0 || acc.Fees.AssociatedTokenAccountRentToken == 0 {
		t.Fatal("token send to associated recipient must reserve rent")
	}

	driveToVerdict(t, f, acc)
	if !*acc.IsVerified {
		t.Fatal("valid proof rejected")
	}
	if err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), request.Send.Identifier, request.Send.Salt); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FinalizeVerificationSendNullifiers(ctx, acc); err != nil {
		t.Fatal(err)
	}

	recipientATA := f.ata.DeriveATA(recipientOwner, usdcTokenID)
	collectorATA := f.ata.DeriveATA(feeCollectorKey, usdcTokenID)
	err := f.proc.FinalizeVerificationTransferToken(ctx, acc, guardAddr(request),
		feePayerKey, feePayerToken, poolTokenKey, collectorATA,
		recipientOwner, recipientATA, false, signerKey)
	if err != nil {
		t.Fatalf("FinalizeVerificationTransferToken: %v", err)
	}

	// The freshly created ATA's rent comes out of the recipient's
	// amount and reimburses the fee payer; the two legs together net to
	// amount + hash_fee_token + proof_fee.
	wantRecipientTokens := testAmount - 2_039_280
	if got := f.tokens.Balance(ctx, usdcTokenID, recipientATA); got != wantRecipientTokens {
		t.Fatalf("recipient tokens = %d, want %d", got, wantRecipientTokens)
	}
	wantPayerTokens := uint64(5000 + 4000 + 2_039_280)
	if got := f.tokens.Balance(ctx, usdcTokenID, feePayerToken); got != wantPayerTokens {
		t.Fatalf("fee payer tokens = %d, want %d", got, wantPayerTokens)
	}
	if wantRecipientTokens+wantPayerTokens != testAmount+5000+4000 {
		t.Fatal("recipient and fee-payer legs must net to amount plus fees")
	}
	if !f.ata.ATAExists(ctx, recipientATA) {
		t.Fatal("recipient associated token account must have been created")
	}
	// The signer funded the creation, so the lamport rent refund goes
	// to it.
	if got := f.lamports.Balance(ctx, signerKey); got != testAmount+2_039_280 {
		t.Fatalf("signer lamports = %d, want %d", got, testAmount+2_039_280)
	}
	if f.proc.Queue.Len() != 1 {
		t.Fatal("commitment not enqueued")
	}
}

func TestSendTokenExistingATA(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "105", usdcTokenID, false)
	recipientOwner := request.Send.Recipient.Address

	// The recipient's ATA already exists, so no rent is consumed: the
	// recipient receives the full amount and the fee payer only the
	// hash and proof fees.
	if err := f.ata.CreateATA(ctx, signerKey, recipientOwner, usdcTokenID); err != nil {
		t.Fatal(err)
	}

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	driveToVerdict(t, f, acc)
	if !*acc.IsVerified {
		t.Fatal("valid proof rejected")
	}
	if err := f.proc.FinalizeVerificationSend(acc, finalizeData(f, request), request.Send.Identifier, request.Send.Salt); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FinalizeVerificationSendNullifiers(ctx, acc); err != nil {
		t.Fatal(err)
	}

	recipientATA := f.ata.DeriveATA(recipientOwner, usdcTokenID)
	collectorATA := f.ata.DeriveATA(feeCollectorKey, usdcTokenID)
	startPayerLamports := f.lamports.Balance(ctx, feePayerKey)
	err := f.proc.FinalizeVerificationTransferToken(ctx, acc, guardAddr(request),
		feePayerKey, feePayerToken, poolTokenKey, collectorATA,
		recipientOwner, recipientATA, false, signerKey)
	if err != nil {
		t.Fatalf("FinalizeVerificationTransferToken: %v", err)
	}

	if got := f.tokens.Balance(ctx, usdcTokenID, recipientATA); got != testAmount {
		t.Fatalf("recipient tokens = %d, want %d", got, testAmount)
	}
	if got := f.tokens.Balance(ctx, usdcTokenID, feePayerToken); got != 5000+4000 {
		t.Fatalf("fee payer tokens = %d, want %d", got, 5000+4000)
	}
	// The lamport rent reservation returns to the original fee payer,
	// not the signer, when no ATA was created.
	if got := f.lamports.Balance(ctx, feePayerKey); got != startPayerLamports+2_039_280 {
		t.Fatalf("fee payer lamports = %d, want %d", got, startPayerLamports+2_039_280)
	}
	if got := f.lamports.Balance(ctx, signerKey); got != testAmount {
		t.Fatalf("signer lamports = %d, want unchanged %d", got, testAmount)
	}
}

func TestSendTokenRejectedProof(t *testing.T) {
	f := newFixture(t, queueDefault)
	ctx := context.Background()
	request := sendRequest(f, "111", usdcTokenID, false)

	collectorATA := f.ata.DeriveATA(feeCollectorKey, usdcTokenID)
	f.tokens.Seed(usdcTokenID, collectorATA, testAmount)

	proof := proveFor(t, request)
	proof.A, proof.C = proof.C, proof.A

	startCollectorLamports := f.lamports.Balance(ctx, feeCollectorKey)
	startCollectorTokens := f.tokens.Balance(ctx, usdcTokenID, collectorATA)

	acc := initToProofSetup(t, f, request, proof)
	driveToVerdict(t, f, acc)
	if *acc.IsVerified {
		t.Fatal("broken proof accepted")
	}
	if err := f.proc.FinalizeVerificationSend(acc, processor.FinalizeSendData{}, bn254.RawU256{}, bn254.RawU256{}); err != nil {
		t.Fatal(err)
	}
	err := f.proc.FinalizeVerificationTransferToken(ctx, acc, guardAddr(request),
		feePayerKey, feePayerToken, poolTokenKey, collectorATA,
		request.Send.Recipient.Address, types.PublicKey{}, false, signerKey)
	if err != nil {
		t.Fatal(err)
	}

	// Subvention (tokens) plus hash fee and rent (lamports) land with
	// the fee collector.
	if got := f.tokens.Balance(ctx, usdcTokenID, collectorATA); got != startCollectorTokens+1000 {
		t.Fatalf("collector tokens = %d, want %d", got, startCollectorTokens+1000)
	}
	if got := f.lamports.Balance(ctx, feeCollectorKey); got != startCollectorLamports+5000+2_039_280 {
		t.Fatalf("collector lamports = %d, want %d", got, startCollectorLamports+5000+2_039_280)
	}
	if f.proc.Queue.Len() != 0 {
		t.Fatal("queue must stay empty on rejection")
	}
}

func TestVerdictStability(t *testing.T) {
	f := newFixture(t, queueDefault)
	request := sendRequest(f, "121", 0, false)

	acc := initToProofSetup(t, f, request, proveFor(t, request))
	driveToVerdict(t, f, acc)

	if err := f.proc.ComputeVerification(acc); err != elusiverr.ErrComputationAlreadyFinished {
		t.Fatalf("compute after verdict: got %v, want ErrComputationAlreadyFinished", err)
	}
	if acc.IsVerified == nil || !*acc.IsVerified {
		t.Fatal("verdict must not be overwritten")
	}
}
