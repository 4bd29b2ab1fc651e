package backups

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/backup"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Service persists encrypted, checksummed snapshots and restores them
// through hard integrity gates.
type Service interface {
	// Backup snapshots the live store of a family
	Backup(ctx context.Context, storeType values.StoreType) (*backup.Record, error)
	// BackupPayload snapshots an explicit payload for a family
	BackupPayload(ctx context.Context, storeType values.StoreType, payload []byte) (*backup.Record, error)
	// VerifyIntegrity decrypts a snapshot and recomputes both checksums.
	// Repeated calls on an unmodified backup always agree.
	VerifyIntegrity(ctx context.Context, storeType values.StoreType, backupID uuid.UUID) (bool, error)
	// ListBackups returns the records of a family, newest first
	ListBackups(ctx context.Context, storeType values.StoreType) ([]*backup.Record, error)
	// CleanupExpired removes snapshots past their retention window and
	// returns how many were removed
	CleanupExpired(ctx context.Context) (int, error)
	// Restore reapplies a snapshot to the live store, all-or-nothing
	Restore(ctx context.Context, backupID uuid.UUID, storeType values.StoreType) (*RestoreResult, error)
}

// RestoreResult reports how far a restore attempt got. FailureKind is one
// of the error taxonomy types when Success is false, so callers decide
// retry or rollback structurally instead of parsing messages.
type RestoreResult struct {
	BackupID    uuid.UUID        `json:"backup_id"`
	StoreType   values.StoreType `json:"store_type"`
	Success     bool             `json:"success"`
	FailureKind string           `json:"failure_kind,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
}
