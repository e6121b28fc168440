package storage

import (
	"testing"

	"github.com/elusiv/core/internal/bn254"
)

func TestMinimumCommitmentMTIndex(t *testing.T) {
	// L4: minimum_commitment_mt_index(0, n, q) = ((n+q) mod M, (n+q) div M)
	cases := []struct {
		nextPtr, queueLen, treesCount uint32
		wantIndex, wantTree           uint32
	}{
		{0, 0, 1, 0, 1},
		{5, 3, 1, 8, 1},
		{MTCommitmentCount - 1, 2, 4, 1, 5},
		{MTCommitmentCount - 1, 1, 4, 0, 5},
	}
	for _, c := range cases {
		idx, tree := minimumCommitmentMTIndex(c.nextPtr, c.queueLen, c.treesCount)
		if idx != c.wantIndex || tree != c.wantTree {
			t.Errorf("minimumCommitmentMTIndex(%d,%d,%d) = (%d,%d), want (%d,%d)",
				c.nextPtr, c.queueLen, c.treesCount, idx, tree, c.wantIndex, c.wantTree)
		}
	}
}

func TestQueueEnqueueFullFails(t *testing.T) {
	q := NewQueue(2)
	if err := q.Enqueue(CommitmentHashRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Enqueue(CommitmentHashRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Enqueue(CommitmentHashRequest{}); err == nil {
		t.Fatal("expected ErrQueueFull, got nil")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestQueueDequeueFIFO(t *testing.T) {
	q := NewQueue(4)
	first := CommitmentHashRequest{FeeVersion: 1}
	second := CommitmentHashRequest{FeeVersion: 2}
	_ = q.Enqueue(first)
	_ = q.Enqueue(second)

	got, ok := q.Dequeue()
	if !ok || got.FeeVersion != 1 {
		t.Fatalf("Dequeue() = %+v, %v, want first", got, ok)
	}
	got, ok = q.Dequeue()
	if !ok || got.FeeVersion != 2 {
		t.Fatalf("Dequeue() = %+v, %v, want second", got, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestIsRootValidAgainstActiveTree(t *testing.T) {
	acc := NewAccount()
	var root bn254.MrU256
	root[0] = 0xAB
	if acc.IsRootValid(nil, root) {
		t.Fatal("unseeded root should be invalid")
	}
	acc.RecordRoot(root)
	if !acc.IsRootValid(nil, root) {
		t.Fatal("seeded root should be valid")
	}
}
