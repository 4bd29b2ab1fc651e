package backup

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// SchemaVersion tags the persisted layout a backup was written under.
// Version transitions are handled by one migration function each, validated
// against the clinical fixture battery before acceptance.
const SchemaVersion = 2

// Record is the metadata of one persisted snapshot. Records are immutable
// once written; a record older than its store's retention window is
// ineligible for restore but remains listed until cleanup removes it.
type Record struct {
	BackupID            uuid.UUID               `json:"backup_id"`
	StoreType           values.StoreType        `json:"store_type"`
	CreatedAt           time.Time               `json:"created_at"`
	DataChecksum        values.Checksum         `json:"data_checksum"`
	CriticalChecksum    values.Checksum         `json:"critical_checksum"`
	EncryptionLevel     values.SensitivityLevel `json:"encryption_level"`
	SchemaVersion       int                     `json:"schema_version"`
	RollbackCapable     bool                    `json:"rollback_capable"`
	CriticalDataPresent bool                    `json:"critical_data_present"`
}

// NewRecord creates the metadata for a fresh snapshot
func NewRecord(storeType values.StoreType, dataChecksum, criticalChecksum values.Checksum, criticalDataPresent bool) (*Record, error) {
	if dataChecksum.IsEmpty() {
		return nil, errors.NewValidationError("EMPTY_CHECKSUM",
			"backup record requires a payload checksum")
	}

	return &Record{
		BackupID:            uuid.New(),
		StoreType:           storeType,
		CreatedAt:           clock.Now(),
		DataChecksum:        dataChecksum,
		CriticalChecksum:    criticalChecksum,
		EncryptionLevel:     storeType.Sensitivity(),
		SchemaVersion:       SchemaVersion,
		RollbackCapable:     true,
		CriticalDataPresent: criticalDataPresent,
	}, nil
}

// Key returns the persisted key for this record's envelope
func (r *Record) Key() string {
	return r.StoreType.BackupKey(r.BackupID.String())
}

// Age returns how old the snapshot is as of now
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// ExpiredAt reports whether the snapshot has aged past the given window
func (r *Record) ExpiredAt(window values.RetentionWindow, now time.Time) bool {
	return window.Expired(r.CreatedAt, now)
}

// Envelope is the persisted JSON layout: one record per key, namespaced
// <storeType>_backup_<backupId>.
type Envelope struct {
	Metadata          *Record         `json:"metadata"`
	EncryptedStore    []byte          `json:"encryptedStore"`
	IntegrityChecksum values.Checksum `json:"integrityChecksum"`
}

// NewEnvelope wraps an encrypted payload with its metadata
func NewEnvelope(record *Record, encryptedStore []byte) *Envelope {
	return &Envelope{
		Metadata:          record,
		EncryptedStore:    encryptedStore,
		IntegrityChecksum: record.DataChecksum,
	}
}
