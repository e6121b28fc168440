// Package settlement implements the value-movement pipeline: lamport
// and token transfers between the pool, fee-collector, fee-payer, and
// recipient, and associated-token-account
// creation. Account creation/close and the token-transfer
// primitive are out-of-scope collaborators; this package
// models them as narrow interfaces with in-memory fakes for tests.
package settlement

import (
	"context"

	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/pkg/types"
)

// LamportLedger moves native value between program-owned and
// user-owned accounts.
type LamportLedger interface {
	Transfer(ctx context.Context, from, to types.PublicKey, amount uint64) error
	Balance(ctx context.Context, account types.PublicKey) uint64
}

// TokenLedger moves fungible-token value, scoped to one token_id.
type TokenLedger interface {
	Transfer(ctx context.Context, tokenID uint16, from, to types.PublicKey, amount uint64) error
	Balance(ctx context.Context, tokenID uint16, account types.PublicKey) uint64
}

// ATACreator is the out-of-scope account-creation primitive, narrowed to
// the one operation settlement needs: deriving and creating an
// associated token account for (owner, tokenID), funded by payer.
type ATACreator interface {
	DeriveATA(owner types.PublicKey, tokenID uint16) types.PublicKey
	ATAExists(ctx context.Context, ata types.PublicKey) bool
	CreateATA(ctx context.Context, payer, owner types.PublicKey, tokenID uint16) error
}

// Identities pins the program-derived addresses every settlement call
// must verify before debiting shared accounts.
type Identities struct {
	Pool         types.PublicKey
	FeeCollector types.PublicKey
}

// VerifyPool fails unless candidate is the program's pool account.
func (id Identities) VerifyPool(candidate types.PublicKey) error {
	if candidate != id.Pool {
		return elusiverr.ErrInvalidAccount
	}
	return nil
}

// VerifyFeeCollector fails unless candidate is the program's
// fee-collector account.
func (id Identities) VerifyFeeCollector(candidate types.PublicKey) error {
	if candidate != id.FeeCollector {
		return elusiverr.ErrInvalidAccount
	}
	return nil
}

// MemLamportLedger is an in-memory LamportLedger, used by tests.
type MemLamportLedger struct {
	balances map[types.PublicKey]uint64
}

// NewMemLamportLedger builds a ledger seeded with the given opening
// balances.
func NewMemLamportLedger(seed map[types.PublicKey]uint64) *MemLamportLedger {
	balances := make(map[types.PublicKey]uint64, len(seed))
	for k, v := range seed {
		balances[k] = v
	}
	return &MemLamportLedger{balances: balances}
}

func (l *MemLamportLedger) Transfer(ctx context.Context, from, to types.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if l.balances[from] < amount {
		return elusiverr.ErrInvalidAmount
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *MemLamportLedger) Balance(ctx context.Context, account types.PublicKey) uint64 {
	return l.balances[account]
}

// MemTokenLedger is an in-memory TokenLedger, used by tests.
type MemTokenLedger struct {
	balances map[uint16]map[types.PublicKey]uint64
}

// NewMemTokenLedger builds an empty token ledger.
func NewMemTokenLedger() *MemTokenLedger {
	return &MemTokenLedger{balances: make(map[uint16]map[types.PublicKey]uint64)}
}

// Seed sets account's balance for tokenID, for test fixture setup.
func (l *MemTokenLedger) Seed(tokenID uint16, account types.PublicKey, amount uint64) {
	if l.balances[tokenID] == nil {
		l.balances[tokenID] = make(map[types.PublicKey]uint64)
	}
	l.balances[tokenID][account] = amount
}

func (l *MemTokenLedger) Transfer(ctx context.Context, tokenID uint16, from, to types.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	accts := l.balances[tokenID]
	if accts == nil || accts[from] < amount {
		return elusiverr.ErrInvalidAmount
	}
	accts[from] -= amount
	if accts[to] == 0 {
		_, exists := accts[to]
		if !exists {
			accts[to] = 0
		}
	}
	accts[to] += amount
	return nil
}

func (l *MemTokenLedger) Balance(ctx context.Context, tokenID uint16, account types.PublicKey) uint64 {
	accts := l.balances[tokenID]
	if accts == nil {
		return 0
	}
	return accts[account]
}

// MemATACreator is an in-memory ATACreator, used by tests.
type MemATACreator struct {
	created map[types.PublicKey]bool
}

// NewMemATACreator builds an empty ATACreator fake.
func NewMemATACreator() *MemATACreator {
	return &MemATACreator{created: make(map[types.PublicKey]bool)}
}

func (a *MemATACreator) DeriveATA(owner types.PublicKey, tokenID uint16) types.PublicKey {
	var out types.PublicKey
	copy(out[:], owner[:])
	out[0] ^= byte(tokenID)
	out[1] ^= byte(tokenID >> 8)
	return out
}

func (a *MemATACreator) ATAExists(ctx context.Context, ata types.PublicKey) bool {
	return a.created[ata]
}

func (a *MemATACreator) CreateATA(ctx context.Context, payer, owner types.PublicKey, tokenID uint16) error {
	a.created[a.DeriveATA(owner, tokenID)] = true
	return nil
}
