// Package nullifier implements the per-tree spent-nullifier set: an
// append-only set of Montgomery-reduced nullifier hashes with a
// membership test and a fallible insert, plus the tree's own Merkle
// root for the cross-tree root check in internal/joinsplit.
package nullifier

import (
	"context"
	"sync"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// Store is the persistence boundary for one tree's nullifier set.
type Store interface {
	Has(ctx context.Context, n bn254.MrU256) (bool, error)
	Insert(ctx context.Context, n bn254.MrU256) error
}

// Account is one tree's NullifierAccount: an append-only set exposing
// Contains/TryInsert and the tree's own archived root, used by
// internal/joinsplit when a request's root names a tree other than
// storage's active one.
type Account struct {
	mu    sync.RWMutex
	store Store
	root  bn254.MrU256
}

// New builds a nullifier Account backed by store, with root as the
// tree's recorded Merkle root (its value once the tree was archived, or
// its current root if still active).
func New(store Store, root bn254.MrU256) *Account {
	return &Account{store: store, root: root}
}

// Contains reports whether n has already been inserted.
func (a *Account) Contains(ctx context.Context, n bn254.MrU256) bool {
	ok, err := a.store.Has(ctx, n)
	return err == nil && ok
}

// CanInsert reports whether n is still free to insert: the checker-side
// predicate, kept side-effect-free unlike TryInsert.
func (a *Account) CanInsert(ctx context.Context, n bn254.MrU256) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.Contains(ctx, n)
}

// TryInsert inserts n, failing with ErrCouldNotInsertNullifier if n is
// already present. This is the double-spend synchronization point: two
// concurrent finalizations over the same nullifier cannot both succeed
// here.
func (a *Account) TryInsert(ctx context.Context, n bn254.MrU256) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ok, err := a.store.Has(ctx, n)
	if err != nil {
		return err
	}
	if ok {
		return elusiverr.ErrCouldNotInsertNullifier
	}
	return a.store.Insert(ctx, n)
}

// GetRoot returns the tree's recorded Merkle root.
func (a *Account) GetRoot(ctx context.Context) bn254.MrU256 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.root
}

// SetRoot updates the tree's recorded root, called when a tree is
// archived and its final root is fixed.
func (a *Account) SetRoot(root bn254.MrU256) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.root = root
}

// MemStore is an in-memory Store, used by tests and by a freshly created
// tree with no persistence backing.
type MemStore struct {
	mu sync.RWMutex
	m  map[bn254.MrU256]struct{}
}

// NewMemStore builds an empty in-memory nullifier Store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[bn254.MrU256]struct{})}
}

func (s *MemStore) Has(ctx context.Context, n bn254.MrU256) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[n]
	return ok, nil
}

func (s *MemStore) Insert(ctx context.Context, n bn254.MrU256) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[n] = struct{}{}
	return nil
}
