// Package checkpoint persists attack progress snapshots so an interrupted
// attack can resume without repeating completed work.
package checkpoint

import (
	"errors"

	"github.com/eshanized/ERPCT/internal/models"
)

// ErrNoCheckpoint is returned by Load when no snapshot has been persisted.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// ErrCorrupt wraps load failures caused by an unreadable or invalid
// snapshot. Callers log it and start fresh rather than fabricating
// partial state.
var ErrCorrupt = errors.New("checkpoint is corrupt")

// Store is the persistence contract for checkpoint snapshots. Writes must
// be atomic (write-then-publish) so a crash mid-write never yields a
// corrupt snapshot, and snapshots are monotonic: a later Save never
// regresses the cursor or drops completed chunk IDs.
type Store interface {
	Save(snapshot *models.CheckpointSnapshot) error
	Load() (*models.CheckpointSnapshot, error)
}
