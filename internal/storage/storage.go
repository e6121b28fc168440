// Package storage implements the active-tree view and commitment queue:
// root-validity checks against the currently open Merkle tree, the
// next-leaf pointer used to compute a new commitment's eventual index,
// and the FIFO queue the Poseidon-hashing collaborator drains.
package storage

import (
	"context"
	"sync"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// MTCommitmentCount is the protocol constant bounding how many
// commitments one Merkle tree holds before a new tree is opened.
const MTCommitmentCount = 1 << 20

// Account is the active Merkle-tree view: how
// many trees have been closed plus the currently open one
// (TreesCount), the open tree's next free leaf slot
// (NextCommitmentPtr), and the root history needed for IsRootValid.
type Account struct {
	mu sync.RWMutex

	treesCount        uint32
	nextCommitmentPtr uint32
	roots             map[bn254.MrU256]struct{}
}

// NewAccount builds a fresh storage view with one open, empty tree.
func NewAccount() *Account {
	return &Account{
		treesCount: 1,
		roots:      make(map[bn254.MrU256]struct{}),
	}
}

// TreesCount is the number of closed trees plus one (the active tree's
// index space starts at TreesCount-1).
func (a *Account) TreesCount() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.treesCount
}

// NextCommitmentPtr is the active tree's next free leaf slot, modulo
// MTCommitmentCount.
func (a *Account) NextCommitmentPtr() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nextCommitmentPtr
}

// ActiveTreeIndex is the index of the currently open tree, for
// comparison against a request's tree_indices.
func (a *Account) ActiveTreeIndex(ctx context.Context) uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.treesCount - 1
}

// IsRootValid reports whether root is a root the active tree has held
// (its current root, or a recent historical one retained for
// in-flight-proof tolerance).
func (a *Account) IsRootValid(ctx context.Context, root bn254.MrU256) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.roots[root]
	return ok
}

// RecordRoot adds root to the active tree's valid-root history, called
// by the Poseidon-hashing collaborator (out of scope for this program)
// whenever it advances the tree; exposed here only so tests can seed a
// storage fixture without a real hasher.
func (a *Account) RecordRoot(root bn254.MrU256) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roots[root] = struct{}{}
}

// AdvanceCommitmentPtr moves the next-leaf pointer forward by one,
// opening a new tree (and bumping TreesCount) when the active tree
// fills. Called once a commitment has actually been woven into the
// tree by the hashing collaborator.
func (a *Account) AdvanceCommitmentPtr() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextCommitmentPtr++
	if a.nextCommitmentPtr >= MTCommitmentCount {
		a.nextCommitmentPtr = 0
		a.treesCount++
	}
}

// MinimumCommitmentMTIndex computes the (leaf index, tree index) a
// commitment enqueued now will eventually land at, given the queue's
// current length:
//
//	index    = (next_commitment_ptr + queueLen) mod MTCommitmentCount
//	mtOffset = (next_commitment_ptr + queueLen) div MTCommitmentCount
//	treeIdx  = treesCount + mtOffset
func (a *Account) MinimumCommitmentMTIndex(queueLen uint32) (index, treeIndex uint32) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return minimumCommitmentMTIndex(a.nextCommitmentPtr, queueLen, a.treesCount)
}

func minimumCommitmentMTIndex(nextPtr, queueLen, treesCount uint32) (index, treeIndex uint32) {
	sum := nextPtr + queueLen
	index = sum % MTCommitmentCount
	mtOffset := sum / MTCommitmentCount
	return index, treesCount + mtOffset
}

// CommitmentHashRequest is one entry of the commitment queue: a new
// output commitment awaiting the Poseidon-hashing collaborator, along
// with the fee version and batching rate that were in effect when it
// was enqueued.
type CommitmentHashRequest struct {
	Commitment      bn254.MrU256
	FeeVersion      uint32
	MinBatchingRate uint32
}

// Queue is the bounded FIFO ring buffer commitments wait in between
// finalize_verification_transfer_* and the hashing collaborator weaving them
// into the tree. The verifier
// only ever enqueues; it never dequeues — that's the collaborator's job.
type Queue struct {
	mu       sync.Mutex
	items    []CommitmentHashRequest
	capacity int
}

// NewQueue builds an empty Queue with the given fixed capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Len returns the number of requests currently queued.
func (q *Queue) Len() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint32(len(q.items))
}

// Enqueue appends req to the queue, failing with ErrQueueFull if the
// queue has no free slot.
func (q *Queue) Enqueue(req CommitmentHashRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return elusiverr.ErrQueueFull
	}
	q.items = append(q.items, req)
	return nil
}

// Dequeue removes and returns the oldest queued request, for use by the
// (out-of-scope) Poseidon-hashing collaborator; exposed so tests can
// exercise queue draining without a real hasher.
func (q *Queue) Dequeue() (CommitmentHashRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return CommitmentHashRequest{}, false
	}
	req := q.items[0]
	q.items = q.items[1:]
	return req, true
}
