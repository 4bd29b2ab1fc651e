package backups

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Restore reapplies a snapshot through a sequence of hard gates, any of
// which aborts with the live store untouched:
//
//  1. load the record (NotFound)
//  2. retention window (Expired)
//  3. decrypt (EncryptionFailure)
//  4. checksum (IntegrityViolation)
//  5. apply to the live store
//  6. critical-function smoke tests (FunctionalRegression)
//
// A smoke-test failure after apply reinstates the pre-restore snapshot, so
// the sequence stays all-or-nothing end to end.
func (s *service) Restore(ctx context.Context, backupID uuid.UUID, storeType values.StoreType) (*RestoreResult, error) {
	// Concurrent restores of the same snapshot serialize: last-writer-wins
	// is unacceptable for crisis data.
	unlock := s.lockRestore(storeType.BackupKey(backupID.String()))
	defer unlock()

	start := time.Now()
	result := &RestoreResult{BackupID: backupID, StoreType: storeType}

	fail := func(err *errors.AppError) (*RestoreResult, error) {
		result.FailureKind = string(err.Type)
		result.DurationMs = time.Since(start).Milliseconds()
		if s.registry != nil {
			s.registry.RecordRestore(ctx, storeType.String(), string(err.Type), time.Since(start))
		}
		s.logger.Warn("restore aborted",
			zap.String("backup_id", backupID.String()),
			zap.String("store_type", storeType.String()),
			zap.String("gate", string(err.Type)),
			zap.Error(err))
		return result, err
	}

	// Gate 1: the record must exist.
	envelope, err := s.loadEnvelope(ctx, storeType, backupID)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return fail(appErr)
		}
		return fail(errors.NewInternalError("failed to load backup").WithCause(err))
	}
	record := envelope.Metadata

	// Gate 2: the snapshot must still be inside the retention window.
	if record.ExpiredAt(s.window(storeType), s.clock.Now()) {
		return fail(errors.NewExpiredError(
			"backup " + backupID.String() + " is older than the retention window"))
	}

	// Gate 3: decrypt.
	payload, err := s.gateway.Decrypt(ctx, envelope.EncryptedStore, record.EncryptionLevel)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return fail(appErr)
		}
		return fail(errors.NewEncryptionError("backup decryption failed").WithCause(err))
	}

	// Gate 4: the freshly computed checksum must match the stored one.
	if !record.DataChecksum.Verify(payload) {
		return fail(errors.NewIntegrityError(
			"checksum mismatch on backup " + backupID.String()))
	}

	adapter, err := s.adapter(storeType)
	if err != nil {
		return fail(errors.NewInternalError("no adapter for store").WithCause(err))
	}

	// Snapshot the live store before touching it, so a smoke-test failure
	// can roll the apply back.
	previous, err := adapter.Extract(ctx)
	if err != nil {
		return fail(errors.NewInternalError("failed to snapshot live store").WithCause(err))
	}

	// Gate 5: apply.
	if err := adapter.Apply(ctx, payload); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return fail(appErr)
		}
		return fail(errors.NewInternalError("failed to apply backup payload").WithCause(err))
	}

	// Gate 6: the store's critical functions must still behave.
	if err := adapter.SmokeTest(ctx); err != nil {
		if applyErr := adapter.Apply(ctx, previous); applyErr != nil {
			s.logger.Error("failed to reinstate pre-restore state",
				zap.String("backup_id", backupID.String()),
				zap.String("store_type", storeType.String()),
				zap.Error(applyErr))
		}
		if appErr, ok := err.(*errors.AppError); ok {
			return fail(appErr)
		}
		return fail(errors.NewRegressionError("post-restore smoke test failed").WithCause(err))
	}

	result.Success = true
	result.DurationMs = time.Since(start).Milliseconds()
	if s.registry != nil {
		s.registry.RecordRestore(ctx, storeType.String(), "success", time.Since(start))
	}
	s.logger.Info("restore completed",
		zap.String("backup_id", backupID.String()),
		zap.String("store_type", storeType.String()),
		zap.Int64("duration_ms", result.DurationMs))

	return result, nil
}

// lockRestore serializes restores per persisted key
func (s *service) lockRestore(key string) func() {
	s.restoreMu.Lock()
	mu, ok := s.inFlight[key]
	if !ok {
		mu = &sync.Mutex{}
		s.inFlight[key] = mu
	}
	s.restoreMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
