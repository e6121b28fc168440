// Package storepg is the PostgreSQL persistence layer for the
// verification program's account state: storage accounts, nullifier
// accounts, the commitment queue, and verification-account summaries.
// One connection pool serves every record family; writes are
// column-per-field INSERT ... ON CONFLICT upserts.
package storepg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elusiv/core/internal/account"
	"github.com/elusiv/core/internal/bn254"
	"github.com/elusiv/core/internal/storage"
	"github.com/elusiv/core/pkg/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDBConnection = errors.New("database connection error")
)

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns the default local development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "elusiv",
		Password: "",
		Database: "elusiv",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// Store persists program accounts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool against cfg and verifies it with a
// ping.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ============================================
// Storage account (active Merkle tree view)
// ============================================

// SaveStorageAccount persists the active tree's pointers.
func (s *Store) SaveStorageAccount(ctx context.Context, treesCount, nextCommitmentPtr uint32) error {
	query := `
		INSERT INTO storage_accounts (id, trees_count, next_commitment_ptr)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET trees_count = $1, next_commitment_ptr = $2
	`
	_, err := s.pool.Exec(ctx, query, treesCount, nextCommitmentPtr)
	return err
}

// LoadStorageAccount reconstructs a storage.Account, replaying every
// recorded root into it.
func (s *Store) LoadStorageAccount(ctx context.Context) (*storage.Account, error) {
	acc := storage.NewAccount()

	var treesCount, nextPtr uint32
	err := s.pool.QueryRow(ctx, `SELECT trees_count, next_commitment_ptr FROM storage_accounts WHERE id = 1`).
		Scan(&treesCount, &nextPtr)
	if err == pgx.ErrNoRows {
		return acc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load storage account: %w", err)
	}
	for acc.TreesCount() < treesCount || acc.NextCommitmentPtr() < nextPtr {
		acc.AdvanceCommitmentPtr()
	}

	rows, err := s.pool.Query(ctx, `SELECT root FROM storage_roots`)
	if err != nil {
		return nil, fmt.Errorf("load storage roots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var root bn254.MrU256
		copy(root[:], raw)
		acc.RecordRoot(root)
	}
	return acc, rows.Err()
}

// RecordRoot persists a newly woven root.
func (s *Store) RecordRoot(ctx context.Context, root bn254.MrU256) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO storage_roots (root) VALUES ($1) ON CONFLICT DO NOTHING`, root[:])
	return err
}

// ============================================
// Nullifier accounts (one row set per tree slot)
// ============================================

// SaveNullifierRoot records treeIndex's nullifier-tree root.
func (s *Store) SaveNullifierRoot(ctx context.Context, treeIndex uint32, root bn254.MrU256) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nullifier_roots (tree_index, root)
		VALUES ($1, $2)
		ON CONFLICT (tree_index) DO UPDATE SET root = $2
	`, treeIndex, root[:])
	return err
}

// InsertNullifier records hash as spent within treeIndex, failing
// ErrNotFound's sibling (a unique-constraint violation from the caller's
// point of view is reported as-is by pgx; callers treat any error as a
// rejected insert per the set's CanInsert/TryInsert contract).
func (s *Store) InsertNullifier(ctx context.Context, treeIndex uint32, hash bn254.MrU256) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nullifiers (tree_index, nullifier) VALUES ($1, $2)`, treeIndex, hash[:])
	return err
}

// ContainsNullifier reports whether hash was already recorded spent
// within treeIndex.
func (s *Store) ContainsNullifier(ctx context.Context, treeIndex uint32, hash bn254.MrU256) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE tree_index = $1 AND nullifier = $2)`,
		treeIndex, hash[:]).Scan(&exists)
	return exists, err
}

// ============================================
// Commitment queue
// ============================================

// EnqueueCommitment appends a commitment-hash request to durable
// storage, mirroring storage.Queue.Enqueue for the Poseidon-hashing
// collaborator to drain across process restarts.
func (s *Store) EnqueueCommitment(ctx context.Context, req storage.CommitmentHashRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO commitment_queue (commitment, fee_version, min_batching_rate)
		VALUES ($1, $2, $3)
	`, req.Commitment[:], req.FeeVersion, req.MinBatchingRate)
	return err
}

// DequeueCommitment removes and returns the oldest queued request.
func (s *Store) DequeueCommitment(ctx context.Context) (storage.CommitmentHashRequest, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.CommitmentHashRequest{}, false, err
	}
	defer tx.Rollback(ctx)

	var id int64
	var commitment []byte
	var req storage.CommitmentHashRequest
	err = tx.QueryRow(ctx, `
		SELECT id, commitment, fee_version, min_batching_rate
		FROM commitment_queue ORDER BY id ASC LIMIT 1 FOR UPDATE SKIP LOCKED
	`).Scan(&id, &commitment, &req.FeeVersion, &req.MinBatchingRate)
	if err == pgx.ErrNoRows {
		return storage.CommitmentHashRequest{}, false, nil
	}
	if err != nil {
		return storage.CommitmentHashRequest{}, false, err
	}
	copy(req.Commitment[:], commitment)

	if _, err := tx.Exec(ctx, `DELETE FROM commitment_queue WHERE id = $1`, id); err != nil {
		return storage.CommitmentHashRequest{}, false, err
	}
	return req, true, tx.Commit(ctx)
}

// ============================================
// Verification account summaries
// ============================================

// VerificationSummary is the durable slice of an in-flight verification:
// its index, fee payer, lifecycle state, round counter, verdict and token
// id. The request, the proof, the fees and the per-round scratch
// computation are not stored.
type VerificationSummary struct {
	Index      uint32
	FeePayer   types.PublicKey
	State      account.State
	Round      uint32
	IsVerified *bool
	TokenID    uint16
}

// SaveVerificationSummary upserts acc's durable fields keyed by index.
func (s *Store) SaveVerificationSummary(ctx context.Context, index uint32, acc *account.Account) error {
	var verified *bool
	if acc.IsVerified != nil {
		v := *acc.IsVerified
		verified = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_accounts (index, fee_payer, state, round, is_verified, token_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index) DO UPDATE SET
			state = $3, round = $4, is_verified = $5, token_id = $6
	`, index, acc.FeePayer[:], uint8(acc.State), acc.Round, verified, acc.TokenID)
	return err
}

// LoadVerificationSummary retrieves the durable fields for index.
func (s *Store) LoadVerificationSummary(ctx context.Context, index uint32) (*VerificationSummary, error) {
	var sum VerificationSummary
	var feePayer []byte
	var state uint8
	var verified *bool
	err := s.pool.QueryRow(ctx, `
		SELECT fee_payer, state, round, is_verified, token_id
		FROM verification_accounts WHERE index = $1
	`, index).Scan(&feePayer, &state, &sum.Round, &verified, &sum.TokenID)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sum.Index = index
	copy(sum.FeePayer[:], feePayer)
	sum.State = account.State(state)
	sum.IsVerified = verified
	return &sum, nil
}

// DeleteVerificationSummary removes a closed account's durable record.
func (s *Store) DeleteVerificationSummary(ctx context.Context, index uint32) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM verification_accounts WHERE index = $1`, index)
	return err
}
