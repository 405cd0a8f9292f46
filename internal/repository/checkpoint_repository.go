// Package repository provides SQL persistence for checkpoints and found
// credentials.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eshanized/ERPCT/internal/checkpoint"
	"github.com/eshanized/ERPCT/internal/db"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    target TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    snapshot JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS found_credentials (
    id UUID PRIMARY KEY,
    target TEXT NOT NULL,
    username TEXT NOT NULL,
    password TEXT NOT NULL,
    found_at TIMESTAMPTZ NOT NULL
);
`

// CheckpointRepository stores checkpoint snapshots and confirmed
// credentials in PostgreSQL, one snapshot row per target.
type CheckpointRepository struct {
	db *db.DB
}

// NewCheckpointRepository creates a repository over the given connection.
func NewCheckpointRepository(database *db.DB) *CheckpointRepository {
	return &CheckpointRepository{db: database}
}

// EnsureSchema creates the backing tables when missing.
func (r *CheckpointRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the snapshot for its target.
func (r *CheckpointRepository) SaveSnapshot(ctx context.Context, snapshot *models.CheckpointSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (target, version, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (target) DO UPDATE
		SET version = EXCLUDED.version, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		snapshot.Target, snapshot.Version, data)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	debug.Debug("Snapshot for %s saved to database (%d chunks)", snapshot.Target, len(snapshot.Chunks))
	return nil
}

// LoadSnapshot fetches and validates the snapshot for a target. Returns
// checkpoint.ErrNoCheckpoint when no row exists and wraps
// checkpoint.ErrCorrupt when the stored document cannot be trusted.
func (r *CheckpointRepository) LoadSnapshot(ctx context.Context, target string) (*models.CheckpointSnapshot, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT snapshot FROM checkpoints WHERE target = $1`, target).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkpoint.ErrNoCheckpoint
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot models.CheckpointSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCorrupt, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCorrupt, err)
	}
	return &snapshot, nil
}

// InsertFound records a confirmed credential.
func (r *CheckpointRepository) InsertFound(ctx context.Context, cred models.FoundCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO found_credentials (id, target, username, password, found_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), cred.Target, cred.Username, cred.Password, cred.FoundAt)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// ListFound returns the credentials recorded for a target.
func (r *CheckpointRepository) ListFound(ctx context.Context, target string) ([]models.FoundCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, password, found_at
		FROM found_credentials
		WHERE target = $1
		ORDER BY found_at`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.FoundCredential
	for rows.Next() {
		cred := models.FoundCredential{Target: target}
		if err := rows.Scan(&cred.Username, &cred.Password, &cred.FoundAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return out, nil
}

// DBStore adapts the repository to the checkpoint.Store contract for one
// target.
type DBStore struct {
	repo   *CheckpointRepository
	target string
}

// NewDBStore binds a store to a target.
func NewDBStore(repo *CheckpointRepository, target string) *DBStore {
	return &DBStore{repo: repo, target: target}
}

// Save persists the snapshot.
func (s *DBStore) Save(snapshot *models.CheckpointSnapshot) error {
	return s.repo.SaveSnapshot(context.Background(), snapshot)
}

// Load fetches the snapshot for the bound target.
func (s *DBStore) Load() (*models.CheckpointSnapshot, error) {
	return s.repo.LoadSnapshot(context.Background(), s.target)
}
