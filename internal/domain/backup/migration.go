package backup

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// MigrationStatus tracks one migration attempt through its state machine:
// pending -> in_progress -> {completed | failed | rolled_back}.
type MigrationStatus int

const (
	MigrationPending MigrationStatus = iota
	MigrationInProgress
	MigrationCompleted
	MigrationFailed
	MigrationRolledBack
)

func (s MigrationStatus) String() string {
	switch s {
	case MigrationPending:
		return "pending"
	case MigrationInProgress:
		return "in_progress"
	case MigrationCompleted:
		return "completed"
	case MigrationFailed:
		return "failed"
	case MigrationRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the migration has finished
func (s MigrationStatus) IsTerminal() bool {
	return s == MigrationCompleted || s == MigrationFailed || s == MigrationRolledBack
}

// MigrationMetrics records how the attempt performed
type MigrationMetrics struct {
	DurationMs          int64 `json:"duration_ms"`
	ConvertedLatencyMs  int64 `json:"converted_latency_ms"`
	ConvertedLatencySLA bool  `json:"converted_latency_sla"`
}

// MigrationOperation is one migration attempt over a single store family.
// Only one instance is active per attempt; the orchestrator is the single
// writer for the store while it runs.
type MigrationOperation struct {
	ID                    uuid.UUID        `json:"id"`
	StoreType             values.StoreType `json:"store_type"`
	FromPattern           string           `json:"from_pattern"`
	ToPattern             string           `json:"to_pattern"`
	Status                MigrationStatus  `json:"status"`
	BackupID              *uuid.UUID       `json:"backup_id,omitempty"`
	DataIntegrityVerified bool             `json:"data_integrity_verified"`
	Metrics               MigrationMetrics `json:"performance_metrics"`
	FailureReason         string           `json:"failure_reason,omitempty"`
	StartedAt             time.Time        `json:"started_at"`
	FinishedAt            *time.Time       `json:"finished_at,omitempty"`
}

// NewMigrationOperation creates a pending migration for a store family
func NewMigrationOperation(storeType values.StoreType, fromPattern, toPattern string) *MigrationOperation {
	return &MigrationOperation{
		ID:          uuid.New(),
		StoreType:   storeType,
		FromPattern: fromPattern,
		ToPattern:   toPattern,
		Status:      MigrationPending,
		StartedAt:   clock.Now(),
	}
}

// Begin moves the migration from pending to in_progress
func (m *MigrationOperation) Begin() error {
	if m.Status != MigrationPending {
		return errors.NewConflictError(
			fmt.Sprintf("migration %s is %s, expected pending", m.ID, m.Status))
	}
	m.Status = MigrationInProgress
	return nil
}

// AttachBackup records the pre-migration snapshot enabling rollback
func (m *MigrationOperation) AttachBackup(backupID uuid.UUID) {
	m.BackupID = &backupID
}

// Complete finishes the migration successfully
func (m *MigrationOperation) Complete(durationMs int64) {
	now := clock.Now()
	m.Status = MigrationCompleted
	m.DataIntegrityVerified = true
	m.Metrics.DurationMs = durationMs
	m.FinishedAt = &now
}

// Fail finishes the migration unsuccessfully. Used both when no backup
// exists and when a rollback attempt itself failed.
func (m *MigrationOperation) Fail(reason string, durationMs int64) {
	now := clock.Now()
	m.Status = MigrationFailed
	m.FailureReason = reason
	m.Metrics.DurationMs = durationMs
	m.FinishedAt = &now
}

// MarkRolledBack finishes the migration as rolled_back. Legal only when a
// prior backup exists; the orchestrator calls this strictly after that
// backup's restore succeeded.
func (m *MigrationOperation) MarkRolledBack(reason string, durationMs int64) error {
	if m.BackupID == nil {
		return errors.NewConflictError("cannot mark rolled_back without a backup")
	}

	now := clock.Now()
	m.Status = MigrationRolledBack
	m.FailureReason = reason
	m.Metrics.DurationMs = durationMs
	m.FinishedAt = &now
	return nil
}
