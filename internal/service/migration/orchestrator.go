package migration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/backup"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
	"github.com/mindhaven/crisis-safety-backend/internal/service/backups"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// service implements the Service interface
type service struct {
	backups        backups.Service
	adapters       map[values.StoreType]stores.Adapter
	converter      SchemaConverter
	table          FunctionTable
	monitor        *perfmon.Monitor
	registry       *metrics.Registry
	logger         *zap.Logger
	convertedOpSLA time.Duration

	mu         sync.Mutex
	active     map[values.StoreType]bool
	operations map[uuid.UUID]*backup.MigrationOperation
}

// NewService creates the migration orchestrator
func NewService(
	backupSvc backups.Service,
	adapters []stores.Adapter,
	converter SchemaConverter,
	monitor *perfmon.Monitor,
	registry *metrics.Registry,
	logger *zap.Logger,
	convertedOpSLA time.Duration,
) Service {
	byType := make(map[values.StoreType]stores.Adapter, len(adapters))
	for _, adapter := range adapters {
		byType[adapter.StoreType()] = adapter
	}

	return &service{
		backups:        backupSvc,
		adapters:       byType,
		converter:      converter,
		table:          DefaultFunctionTable(),
		monitor:        monitor,
		registry:       registry,
		logger:         logger,
		convertedOpSLA: convertedOpSLA,
		active:         make(map[values.StoreType]bool),
		operations:     make(map[uuid.UUID]*backup.MigrationOperation),
	}
}

// Migrate runs the full cycle for one store family:
// backup, convert, validate, latency check, apply, smoke test.
// Any failure after the backup exists triggers a rollback; the migration
// finishes rolled_back only when that restore actually succeeded.
func (s *service) Migrate(ctx context.Context, storeType values.StoreType) (*backup.MigrationOperation, error) {
	adapter, ok := s.adapters[storeType]
	if !ok {
		return nil, errors.NewValidationError("UNKNOWN_STORE_TYPE",
			"no adapter registered for store type "+storeType.String())
	}

	if err := s.acquire(storeType); err != nil {
		return nil, err
	}
	defer s.release(storeType)

	op := backup.NewMigrationOperation(storeType, s.converter.FromPattern(), s.converter.ToPattern())
	s.track(op)

	if err := op.Begin(); err != nil {
		return op, err
	}
	start := time.Now()

	s.logger.Info("migration started",
		zap.String("migration_id", op.ID.String()),
		zap.String("store_type", storeType.String()),
		zap.String("from", op.FromPattern),
		zap.String("to", op.ToPattern))

	// A rollback target must exist before anything else happens. Without
	// the backup there is nothing to restore, so a failure here finishes
	// as failed, never rolled_back.
	record, err := s.backups.Backup(ctx, storeType)
	if err != nil {
		s.finishFailed(ctx, op, start, "pre-migration backup failed", err)
		return op, err
	}
	op.AttachBackup(record.BackupID)

	payload, err := adapter.Extract(ctx)
	if err != nil {
		return op, s.rollback(ctx, op, start, "extracting live store failed", err)
	}

	converted, err := s.converter.Convert(ctx, storeType, payload)
	if err != nil {
		return op, s.rollback(ctx, op, start, "schema conversion failed", err)
	}

	report, err := RunValidation(ctx, storeType, s.table)
	if err != nil {
		return op, s.rollback(ctx, op, start, "validation run aborted", err)
	}
	if !report.CriticalTestsPassed {
		if s.registry != nil {
			s.registry.ValidationFailureCounter.Add(ctx, 1)
		}
		err := errors.NewRegressionError("critical clinical fixtures failed after conversion")
		for _, finding := range report.Findings {
			s.logger.Error("migration validation finding",
				zap.String("migration_id", op.ID.String()),
				zap.String("finding", finding))
		}
		return op, s.rollback(ctx, op, start, "critical validation gate failed", err)
	}

	// Timed representative read over the converted payload. The SLA here
	// is advisory: a slow store is recorded and alerted, a broken one is
	// what the gates above and below catch.
	opStart := time.Now()
	if _, err := adapter.CriticalFields(converted); err != nil {
		return op, s.rollback(ctx, op, start, "converted payload failed critical extraction", err)
	}
	elapsed := time.Since(opStart)
	op.Metrics.ConvertedLatencyMs = elapsed.Milliseconds()
	op.Metrics.ConvertedLatencySLA = s.monitor.CheckLatency(ctx, "migration_converted_read", elapsed, s.convertedOpSLA)

	if err := adapter.Apply(ctx, converted); err != nil {
		return op, s.rollback(ctx, op, start, "applying converted store failed", err)
	}

	if err := adapter.SmokeTest(ctx); err != nil {
		return op, s.rollback(ctx, op, start, "post-migration smoke test failed", err)
	}

	op.Complete(time.Since(start).Milliseconds())
	if s.registry != nil {
		s.registry.RecordMigration(ctx, storeType.String(), op.Status.String(), time.Since(start))
	}
	s.logger.Info("migration completed",
		zap.String("migration_id", op.ID.String()),
		zap.String("store_type", storeType.String()),
		zap.Int64("duration_ms", op.Metrics.DurationMs),
		zap.Bool("converted_latency_sla", op.Metrics.ConvertedLatencySLA))

	return op, nil
}

// MigrateAll runs every family's migration concurrently
func (s *service) MigrateAll(ctx context.Context) ([]*backup.MigrationOperation, error) {
	families := values.AllStoreTypes()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ops      = make([]*backup.MigrationOperation, 0, len(families))
		firstErr error
	)

	for _, storeType := range families {
		wg.Add(1)
		go func(st values.StoreType) {
			defer wg.Done()
			op, err := s.Migrate(ctx, st)

			mu.Lock()
			defer mu.Unlock()
			if op != nil {
				ops = append(ops, op)
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(storeType)
	}
	wg.Wait()

	return ops, firstErr
}

// GetMigration returns a tracked migration by ID
func (s *service) GetMigration(ctx context.Context, id uuid.UUID) (*backup.MigrationOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[id]
	if !ok {
		return nil, errors.ErrMigrationNotFound
	}
	return op, nil
}

// Validate runs the fixture battery without touching the store
func (s *service) Validate(ctx context.Context, storeType values.StoreType) (*ValidationReport, error) {
	if _, ok := s.adapters[storeType]; !ok {
		return nil, errors.NewValidationError("UNKNOWN_STORE_TYPE",
			"no adapter registered for store type "+storeType.String())
	}
	return RunValidation(ctx, storeType, s.table)
}

// rollback restores the pre-migration backup. The migration finishes
// rolled_back only if the restore succeeds; otherwise it finishes failed
// and the store is flagged for urgent attention.
func (s *service) rollback(ctx context.Context, op *backup.MigrationOperation, start time.Time, reason string, cause error) error {
	s.logger.Warn("migration failed, rolling back",
		zap.String("migration_id", op.ID.String()),
		zap.String("store_type", op.StoreType.String()),
		zap.String("reason", reason),
		zap.Error(cause))

	if op.BackupID == nil {
		s.finishFailed(ctx, op, start, reason+"; no backup to roll back to", cause)
		return cause
	}

	result, restoreErr := s.backups.Restore(ctx, *op.BackupID, op.StoreType)
	if restoreErr != nil || result == nil || !result.Success {
		if s.registry != nil {
			s.registry.RollbackFailureCounter.Add(ctx, 1)
		}
		s.logger.Error("rollback failed, store state is unvalidated",
			zap.String("migration_id", op.ID.String()),
			zap.String("store_type", op.StoreType.String()),
			zap.String("backup_id", op.BackupID.String()),
			zap.Error(restoreErr))
		s.finishFailed(ctx, op, start, reason+"; rollback failed", cause)
		return cause
	}

	if err := op.MarkRolledBack(reason, time.Since(start).Milliseconds()); err != nil {
		s.finishFailed(ctx, op, start, reason, cause)
		return cause
	}
	if s.registry != nil {
		s.registry.RecordMigration(ctx, op.StoreType.String(), op.Status.String(), time.Since(start))
	}
	s.logger.Info("migration rolled back",
		zap.String("migration_id", op.ID.String()),
		zap.String("store_type", op.StoreType.String()),
		zap.String("backup_id", op.BackupID.String()))

	return cause
}

func (s *service) finishFailed(ctx context.Context, op *backup.MigrationOperation, start time.Time, reason string, cause error) {
	op.Fail(reason, time.Since(start).Milliseconds())
	if s.registry != nil {
		s.registry.RecordMigration(ctx, op.StoreType.String(), op.Status.String(), time.Since(start))
	}
	s.logger.Error("migration failed",
		zap.String("migration_id", op.ID.String()),
		zap.String("store_type", op.StoreType.String()),
		zap.String("reason", reason),
		zap.Error(cause))
}

func (s *service) acquire(storeType values.StoreType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[storeType] {
		return errors.ErrMigrationActive
	}
	s.active[storeType] = true
	return nil
}

func (s *service) release(storeType values.StoreType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, storeType)
}

func (s *service) track(op *backup.MigrationOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[op.ID] = op
}
