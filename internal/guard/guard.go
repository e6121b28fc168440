// Package guard implements the nullifier-duplicate guard: a
// content-addressed presence lock that prevents two concurrent
// verifications over the same ordered nullifier-hash set from both
// proceeding.
package guard

import (
	"context"
	"sync"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"

	"golang.org/x/crypto/blake2b"
)

// Address is a PDA-style deterministic address derived from the content
// it protects, 32 bytes wide like every other account key in this
// program.
type Address [32]byte

// DeriveAddress computes the duplicate-guard address for an ordered
// sequence of nullifier hashes, using their skip_mr (raw) byte form.
func DeriveAddress(nullifierHashes []bn254.RawU256) Address {
	h, _ := blake2b.New256([]byte("elusiv-nullifier-duplicate"))
	for _, n := range nullifierHashes {
		h.Write(n.Bytes())
	}
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// Registry tracks which duplicate-guard addresses currently exist,
// standing in for the on-chain account-existence check
// ("lamports > 0") the real program would perform.
type Registry struct {
	mu      sync.RWMutex
	present map[Address]struct{}
}

// NewRegistry builds an empty guard Registry.
func NewRegistry() *Registry {
	return &Registry{present: make(map[Address]struct{})}
}

// Exists reports whether a duplicate-guard account already exists at
// addr.
func (r *Registry) Exists(ctx context.Context, addr Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.present[addr]
	return ok
}

// Create allocates the duplicate-guard account at addr, used when
// skipNullifierPDA is false. Fails if one already
// exists — a concurrent verification over the same nullifier set is
// already in flight.
func (r *Registry) Create(ctx context.Context, addr Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.present[addr]; ok {
		return elusiverr.ErrInvalidAccount
	}
	r.present[addr] = struct{}{}
	return nil
}

// RequireExisting asserts addr already has a guard account, used when
// skipNullifierPDA is true: the caller is opting into re-verification
// over a nullifier set that another verification is already using, but
// only if that first verification genuinely started one.
func (r *Registry) RequireExisting(ctx context.Context, addr Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.present[addr]; !ok {
		return elusiverr.ErrInvalidAccount
	}
	return nil
}

// Close removes the guard account at addr, called when its owning
// VerificationAccount is closed during finalize.
func (r *Registry) Close(ctx context.Context, addr Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.present, addr)
}
