package nullifier

import (
	"context"
	"testing"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/elusiverr"
)

func TestTryInsertOnce(t *testing.T) {
	ctx := context.Background()
	acc := New(NewMemStore(), bn254.MrU256{})
	n := bn254.U256FromString("1").Reduce()

	if !acc.CanInsert(ctx, n) {
		t.Fatal("fresh nullifier must be insertable")
	}
	if err := acc.TryInsert(ctx, n); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if acc.CanInsert(ctx, n) {
		t.Fatal("inserted nullifier must not be insertable")
	}
	if err := acc.TryInsert(ctx, n); err != elusiverr.ErrCouldNotInsertNullifier {
		t.Fatalf("second insert: got %v, want ErrCouldNotInsertNullifier", err)
	}
	if !acc.Contains(ctx, n) {
		t.Fatal("Contains must report the inserted nullifier")
	}
}

func TestRootAccessors(t *testing.T) {
	ctx := context.Background()
	root := bn254.U256FromString("42").Reduce()
	acc := New(NewMemStore(), root)
	if acc.GetRoot(ctx) != root {
		t.Fatal("GetRoot mismatch")
	}

	next := bn254.U256FromString("43").Reduce()
	acc.SetRoot(next)
	if acc.GetRoot(ctx) != next {
		t.Fatal("SetRoot not applied")
	}
}

func TestIndependentTrees(t *testing.T) {
	ctx := context.Background()
	a := New(NewMemStore(), bn254.MrU256{})
	b := New(NewMemStore(), bn254.MrU256{})
	n := bn254.U256FromString("9").Reduce()

	if err := a.TryInsert(ctx, n); err != nil {
		t.Fatal(err)
	}
	if !b.CanInsert(ctx, n) {
		t.Fatal("insert into one tree must not affect another")
	}
}
