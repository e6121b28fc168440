// Elusiv CLI: operator tooling for inspecting verifying-key artifacts,
// fee schedules, and duplicate-guard addresses.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/fees"
	"github.com/elusiv/core/internal/governor"
	"github.com/elusiv/core/internal/guard"
	"github.com/elusiv/core/internal/verifier"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Elusiv CLI v%s\n", version)

	case "help":
		printUsage()

	case "vkey":
		if len(os.Args) < 3 {
			fmt.Println("Usage: elusiv-cli vkey <artifact-path>")
			os.Exit(1)
		}
		cmdVKey(os.Args[2])

	case "fee":
		cmdFee(os.Args[2:])

	case "guard-address":
		if len(os.Args) < 3 {
			fmt.Println("Usage: elusiv-cli guard-address <nullifier-hash-hex> [...]")
			os.Exit(1)
		}
		cmdGuardAddress(os.Args[2:])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Elusiv CLI - shielded-pool verification program tooling

Usage: elusiv-cli <command> [arguments]

Commands:
  version                             Print version
  help                                Show this help
  vkey <artifact-path>                Inspect a verifying-key artifact
  fee [amount]                        Print the current fee breakdown
  guard-address <nullifier-hex> ...   Derive the duplicate-guard address`)
}

func cmdVKey(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	vk, err := verifier.ReadVerifyingKey(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Public inputs:              %d\n", vk.PublicInputsCount())
	fmt.Printf("Prepare-inputs rounds:      %d\n", vk.PreparePublicInputsRounds())
	fmt.Printf("Combined-miller rounds:     %d\n", vk.CombinedMillerLoopRounds())
	fmt.Printf("Final-exponentiation rounds: %d\n", vk.FinalExponentiationRounds())
	fmt.Printf("Total rounds:               %d\n", vk.PreparePublicInputsRounds()+vk.CombinedMillerLoopRounds()+vk.FinalExponentiationRounds())
}

func cmdFee(args []string) {
	ctx := context.Background()
	gov := governor.NewManager(nil)

	amount := uint64(0)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount %q\n", args[0])
			os.Exit(1)
		}
		amount = v
	}

	b, err := fees.Compute(ctx, gov, fees.FixedRateOracle{Num: 1, Den: 1}, gov.CurrentFeeVersion(ctx), 0, 8, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fee version:            %d\n", gov.CurrentFeeVersion(ctx))
	fmt.Printf("Commitment hash fee:    %d\n", b.CommitmentHashFeeToken)
	fmt.Printf("Proof verification fee: %d\n", b.ProofVerificationFee)
	fmt.Printf("Network fee:            %d\n", b.NetworkFee)
	fmt.Printf("Subvention:             %d\n", b.Subvention)
	fmt.Printf("Total user fee:         %d\n", b.Amount())
}

func cmdGuardAddress(args []string) {
	hashes := make([]bn254.RawU256, 0, len(args))
	for _, arg := range args {
		raw, err := hex.DecodeString(arg)
		if err != nil || len(raw) != 32 {
			fmt.Fprintf(os.Stderr, "Error: %q is not a 32-byte hex string\n", arg)
			os.Exit(1)
		}
		var h bn254.RawU256
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	addr := guard.DeriveAddress(hashes)
	fmt.Printf("%s\n", hex.EncodeToString(addr[:]))
}
