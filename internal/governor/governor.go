// Package governor holds the program's fee configuration: versioned fee
// schedules and the commitment-batching rate. The wire format and
// upgrade authority of the real governor account are out of scope; this
// package is the program-side view of that store, with an in-memory
// implementation a host or test seeds directly.
package governor

import (
	"context"
	"sync"

	"github.com/elusiv/core/internal/elusiverr"
	"github.com/elusiv/core/internal/fees"
)

// Config holds the governor parameters a host boots with.
type Config struct {
	// FeeVersion is the currently active fee version; requests carrying
	// any other version are rejected.
	FeeVersion uint32

	// CommitmentBatchingRate is the min_batching_rate stamped onto every
	// enqueued commitment-hash request.
	CommitmentBatchingRate uint32

	// ProgramFee is the active fee schedule, in lamports.
	ProgramFee fees.ProgramFee
}

// DefaultConfig returns a development fee schedule.
func DefaultConfig() *Config {
	return &Config{
		FeeVersion:             0,
		CommitmentBatchingRate: 0,
		ProgramFee: fees.ProgramFee{
			CommitmentHashFeeLamports:  5000,
			ProofVerificationFee:       4000,
			NetworkFee:                 2000,
			Subvention:                 1000,
			AssociatedTokenAccountRent: 2_039_280,
		},
	}
}

// Manager is an in-memory fees.Governor: it serves the schedule for the
// active fee version and retains superseded versions so accounts created
// under them can still be described.
type Manager struct {
	mu sync.RWMutex

	current   uint32
	batching  uint32
	schedules map[uint32]fees.ProgramFee
}

// NewManager builds a Manager from cfg (DefaultConfig when nil).
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{
		current:   cfg.FeeVersion,
		batching:  cfg.CommitmentBatchingRate,
		schedules: map[uint32]fees.ProgramFee{cfg.FeeVersion: cfg.ProgramFee},
	}
}

// ProgramFee returns the fee schedule recorded for feeVersion.
func (m *Manager) ProgramFee(ctx context.Context, feeVersion uint32) (fees.ProgramFee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pf, ok := m.schedules[feeVersion]
	if !ok {
		return fees.ProgramFee{}, elusiverr.ErrInvalidFeeVersion
	}
	return pf, nil
}

// CommitmentBatchingRate returns the current min_batching_rate.
func (m *Manager) CommitmentBatchingRate(ctx context.Context) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batching
}

// CurrentFeeVersion returns the active fee version.
func (m *Manager) CurrentFeeVersion(ctx context.Context) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetBatchingRate updates the min_batching_rate for future enqueues.
func (m *Manager) SetBatchingRate(rate uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batching = rate
}

// UpgradeFee installs a new fee schedule under the next fee version and
// makes it current. In-flight verifications keep referencing their own
// version's schedule.
func (m *Manager) UpgradeFee(pf fees.ProgramFee) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current++
	m.schedules[m.current] = pf
	return m.current
}
