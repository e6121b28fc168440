package guard

import (
	"context"
	"testing"

	"github.com/elusiv/core/internal/bn254"
)

func TestDeriveAddressDeterministic(t *testing.T) {
	hashes := []bn254.RawU256{bn254.U256FromString("1"), bn254.U256FromString("2")}
	if DeriveAddress(hashes) != DeriveAddress(hashes) {
		t.Fatal("address derivation must be deterministic")
	}
}

func TestDeriveAddressOrderSensitive(t *testing.T) {
	a := []bn254.RawU256{bn254.U256FromString("1"), bn254.U256FromString("2")}
	b := []bn254.RawU256{bn254.U256FromString("2"), bn254.U256FromString("1")}
	if DeriveAddress(a) == DeriveAddress(b) {
		t.Fatal("address must depend on nullifier order")
	}
}

func TestCreateIsExclusive(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	addr := DeriveAddress([]bn254.RawU256{bn254.U256FromString("7")})

	if err := r.Create(ctx, addr); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := r.Create(ctx, addr); err == nil {
		t.Fatal("second create over the same address must fail")
	}
	if !r.Exists(ctx, addr) {
		t.Fatal("guard must exist after create")
	}

	r.Close(ctx, addr)
	if r.Exists(ctx, addr) {
		t.Fatal("guard must not exist after close")
	}
	if err := r.Create(ctx, addr); err != nil {
		t.Fatalf("create after close: %v", err)
	}
}

func TestRequireExisting(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	addr := DeriveAddress([]bn254.RawU256{bn254.U256FromString("8")})

	if err := r.RequireExisting(ctx, addr); err == nil {
		t.Fatal("RequireExisting on a missing guard must fail")
	}
	if err := r.Create(ctx, addr); err != nil {
		t.Fatal(err)
	}
	if err := r.RequireExisting(ctx, addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
