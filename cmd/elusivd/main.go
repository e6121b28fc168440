// Elusiv daemon: hosts the shielded-pool verification program behind a
// long-running process, wiring durable storage, the fee governor, and
// the optional warden broadcast together.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elusiv/core/internal/config"
	"github.com/elusiv/core/internal/fees"
	"github.com/elusiv/core/internal/governor"
	"github.com/elusiv/core/internal/guard"
	"github.com/elusiv/core/internal/nullifier"
	"github.com/elusiv/core/internal/processor"
	"github.com/elusiv/core/internal/settlement"
	"github.com/elusiv/core/internal/storage"
	"github.com/elusiv/core/internal/storepg"
	"github.com/elusiv/core/internal/verifier"
	"github.com/elusiv/core/internal/warden"
	"github.com/elusiv/core/pkg/types"
)

const (
	version = "0.1.0"
	banner  = `
  _____ _           _
 | ____| |_   _ ___(_)_   __
 |  _| | | | | / __| \ \ / /
 | |___| | |_| \__ \ |\ V /
 |_____|_|\__,_|___/_| \_/

  Elusiv Verification Daemon v%s
`
)

type realClock struct{}

func (realClock) Now() uint64 { return uint64(time.Now().Unix()) }

func main() {
	cfg := config.ParseFlags()

	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	fmt.Println("Initializing verification program...")

	if cfg.VKeyPath == "" {
		return fmt.Errorf("a verifying-key artifact is required (-vkey)")
	}
	f, err := os.Open(cfg.VKeyPath)
	if err != nil {
		return fmt.Errorf("open verifying key: %w", err)
	}
	vk, err := verifier.ReadVerifyingKey(f)
	f.Close()
	if err != nil {
		return err
	}
	verifier.RegisterSendQuadraVKey(vk)
	verifier.RegisterMigrateUnaryVKey(vk)
	fmt.Printf("Verifying key loaded: %d public inputs.\n", vk.PublicInputsCount())

	storageAccount := storage.NewAccount()
	var store *storepg.Store
	if !cfg.DBDisabled {
		fmt.Println("Connecting to database...")
		dbCfg := storepg.DefaultConfig()
		dbCfg.Host = cfg.DBHost
		dbCfg.Port = cfg.DBPort
		dbCfg.User = cfg.DBUser
		dbCfg.Password = cfg.DBPassword
		dbCfg.Database = cfg.DBName
		store, err = storepg.NewStore(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer store.Close()
		storageAccount, err = store.LoadStorageAccount(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Database connected.")
	}

	var notifier processor.Notifier = processor.NoopNotifier{}
	if cfg.WardenEnabled {
		fmt.Println("Joining warden network...")
		network, err := warden.NewNetwork(ctx, &warden.Config{ListenAddrs: []string{cfg.WardenListenAddr}})
		if err != nil {
			return fmt.Errorf("join warden network: %w", err)
		}
		defer network.Close()
		notifier = network
	}

	proc := &processor.Processor{
		Storage: storageAccount,
		Nullifiers: [2]*nullifier.Account{
			nullifier.New(nullifier.NewMemStore(), [32]byte{}),
			nullifier.New(nullifier.NewMemStore(), [32]byte{}),
		},
		Guard:    guard.NewRegistry(),
		Queue:    storage.NewQueue(cfg.CommitmentQueueCapacity),
		Governor: governor.NewManager(nil),
		Oracle:   fees.FixedRateOracle{Num: 1, Den: 1},
		Identities: settlement.Identities{
			Pool:         types.PublicKeyFromBytes([]byte("elusiv-pool")),
			FeeCollector: types.PublicKeyFromBytes([]byte("elusiv-fee-collector")),
		},
		Lamports: settlement.NewMemLamportLedger(nil),
		Tokens:   settlement.NewMemTokenLedger(),
		ATA:      settlement.NewMemATACreator(),
		Clock:    realClock{},
		TestMode: cfg.TestMode,
		Notifier: notifier,
	}

	// TODO: serve the instruction set over RPC once the dispatch wire
	// format lands; until then the processor is driven in-process.
	fmt.Printf("Active tree index: %d, queue capacity: %d.\n",
		proc.Storage.ActiveTreeIndex(ctx), cfg.CommitmentQueueCapacity)

	fmt.Println("Verification program ready.")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()

	fmt.Println("Stopped.")
	return nil
}
