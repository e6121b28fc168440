package joinsplit

import (
	"context"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

// Storage is the narrow view of C7 the checker needs: whether a
// Montgomery-reduced root is valid against the currently active tree.
type Storage interface {
	IsRootValid(ctx context.Context, root bn254.MrU256) bool
	ActiveTreeIndex(ctx context.Context) uint32
}

// NullifierChecker is the narrow view of one tree's C6 nullifier set the
// checker needs: whether a reduced nullifier hash can still be inserted,
// and that tree's archived root (used when tree_indices[k] names a tree
// other than storage's active one).
type NullifierChecker interface {
	CanInsert(ctx context.Context, n bn254.MrU256) bool
	GetRoot(ctx context.Context) bn254.MrU256
}

// CheckJoinSplitPublicInputs validates js against storage and nullifier
// state for the two MaxMTCount tree slots js's roots reference.
// nullifierAccounts[k] corresponds to
// treeIndices[k]; both are indexed by the "new tree slot" the roots
// sequence establishes, not directly by js's per-input index.
func CheckJoinSplitPublicInputs(
	ctx context.Context,
	js *JoinSplitPublicInputs,
	storage Storage,
	nullifierAccounts [MaxMTCount]NullifierChecker,
	treeIndices [MaxMTCount]uint32,
) error {
	if js.Commitment == ZeroCommitment {
		return elusiverr.ErrInvalidPublicInputs
	}
	if js.CommitmentCount < 1 || js.CommitmentCount > MaxArity {
		return elusiverr.ErrInvalidPublicInputs
	}
	if len(js.NullifierHashes) != js.CommitmentCount || len(js.Roots) != js.CommitmentCount {
		return elusiverr.ErrInvalidPublicInputs
	}
	if js.Roots[0] == nil {
		return elusiverr.ErrInvalidPublicInputs
	}

	// Assign each input to a tree slot: a present root opens a new slot,
	// a nil root inherits slot 0.
	slots := make([]int, js.CommitmentCount)
	slotCount := 0
	for i, r := range js.Roots {
		if r != nil {
			slots[i] = slotCount
			slotCount++
		} else {
			slots[i] = 0
		}
	}
	if slotCount < 1 || slotCount > MaxMTCount {
		return elusiverr.ErrInvalidPublicInputs
	}
	if slotCount == 2 && treeIndices[0] == treeIndices[1] {
		return elusiverr.ErrInvalidPublicInputs
	}

	// Root validity, per slot.
	for i, r := range js.Roots {
		if r == nil {
			continue
		}
		k := slots[i]
		reduced := r.Reduce()
		if treeIndices[k] == storage.ActiveTreeIndex(ctx) {
			if !storage.IsRootValid(ctx, reduced) {
				return elusiverr.ErrInvalidMerkleRoot
			}
		} else {
			if nullifierAccounts[k] == nil || nullifierAccounts[k].GetRoot(ctx) != reduced {
				return elusiverr.ErrInvalidMerkleRoot
			}
		}
	}

	// Nullifier uniqueness: equal hashes must land in distinct slots.
	for i := 0; i < len(js.NullifierHashes); i++ {
		for j := i + 1; j < len(js.NullifierHashes); j++ {
			if js.NullifierHashes[i] == js.NullifierHashes[j] && slots[i] == slots[j] {
				return elusiverr.ErrInvalidPublicInputs
			}
		}
	}

	// Each nullifier hash must still be insertable into its slot's set.
	for i, n := range js.NullifierHashes {
		k := slots[i]
		if nullifierAccounts[k] == nil || !nullifierAccounts[k].CanInsert(ctx, n.Reduce()) {
			return elusiverr.ErrInvalidPublicInputs
		}
	}

	return nil
}
