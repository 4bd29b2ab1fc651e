package migration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/backup"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/config"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/crypto"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/service/backups"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// breakingConverter fails conversion for one family, forcing a rollback
type breakingConverter struct {
	SchemaConverter
	breakFor values.StoreType
}

func (b *breakingConverter) Convert(ctx context.Context, storeType values.StoreType, payload []byte) ([]byte, error) {
	if storeType == b.breakFor {
		return nil, errors.NewValidationError("UNCONVERTIBLE_PAYLOAD", "conversion failed")
	}
	return b.SchemaConverter.Convert(ctx, storeType, payload)
}

type migrationEnv struct {
	store   keyvalue.Store
	backups backups.Service
	svc     Service
}

func newMigrationEnv(t *testing.T, converter SchemaConverter) *migrationEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := zaptest.NewLogger(t)

	store, err := keyvalue.NewRedisStore(&config.RedisConfig{
		URL:         mr.Addr(),
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gateway, err := crypto.NewAESGateway("migration-test-master-key", logger)
	require.NoError(t, err)

	adapters := []stores.Adapter{
		stores.NewCrisisAdapter(store),
		stores.NewAssessmentAdapter(store),
		stores.NewSettingsAdapter(store),
	}
	retention := map[values.StoreType]values.RetentionWindow{}
	backupSvc := backups.NewService(store, gateway, adapters, retention, nil, logger)

	if converter == nil {
		converter = NewCanonicalConverter()
	}
	monitor := perfmon.NewMonitor(logger, nil)
	svc := NewService(backupSvc, adapters, converter, monitor, nil, logger, 50*time.Millisecond)

	return &migrationEnv{store: store, backups: backupSvc, svc: svc}
}

func seedAssessmentStore(t *testing.T, store keyvalue.Store) {
	t.Helper()
	require.NoError(t, store.SetJSON(context.Background(),
		stores.LiveKey(values.StoreTypeAssessment), stores.AssessmentStore{
			Submissions: []stores.AssessmentSubmission{
				{Type: "phq9", Answers: []int{1, 2, 0, 3, 1, 2, 1, 0, 2}, Score: 12, TakenAt: "2026-03-09T10:00:00Z"},
				{Type: "gad7", Answers: []int{2, 2, 2, 2, 2, 2, 2}, Score: 14, TakenAt: "2026-03-09T11:00:00Z"},
			},
		}))
}

func TestMigrate_CompletesWithBackupAttached(t *testing.T) {
	env := newMigrationEnv(t, nil)
	ctx := context.Background()
	seedAssessmentStore(t, env.store)

	op, err := env.svc.Migrate(ctx, values.StoreTypeAssessment)
	require.NoError(t, err)

	assert.Equal(t, backup.MigrationCompleted, op.Status)
	assert.True(t, op.DataIntegrityVerified)
	require.NotNil(t, op.BackupID)
	require.NotNil(t, op.FinishedAt)
	assert.Equal(t, "legacy_v1", op.FromPattern)
	assert.Equal(t, "unified_v2", op.ToPattern)

	// The pre-migration snapshot is restorable.
	valid, err := env.backups.VerifyIntegrity(ctx, values.StoreTypeAssessment, *op.BackupID)
	require.NoError(t, err)
	assert.True(t, valid)

	// The migrated store still parses and scores.
	var migrated stores.AssessmentStore
	require.NoError(t, env.store.GetJSON(ctx,
		stores.LiveKey(values.StoreTypeAssessment), &migrated))
	assert.Len(t, migrated.Submissions, 2)
}

func TestMigrate_ConversionFailureRollsBack(t *testing.T) {
	env := newMigrationEnv(t, &breakingConverter{
		SchemaConverter: NewCanonicalConverter(),
		breakFor:        values.StoreTypeAssessment,
	})
	ctx := context.Background()
	seedAssessmentStore(t, env.store)

	before, err := env.store.Get(ctx, stores.LiveKey(values.StoreTypeAssessment))
	require.NoError(t, err)

	op, err := env.svc.Migrate(ctx, values.StoreTypeAssessment)
	require.Error(t, err)

	// Rolled_back is legal only because the restore of the pre-migration
	// backup succeeded.
	assert.Equal(t, backup.MigrationRolledBack, op.Status)
	require.NotNil(t, op.BackupID)
	assert.NotEmpty(t, op.FailureReason)

	after, err := env.store.Get(ctx, stores.LiveKey(values.StoreTypeAssessment))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrate_UnknownStoreType(t *testing.T) {
	env := newMigrationEnv(t, nil)

	_, err := env.svc.Migrate(context.Background(), values.StoreType("journal"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestMigrate_OneActivePerFamily(t *testing.T) {
	env := newMigrationEnv(t, nil)
	svc := env.svc.(*service)

	require.NoError(t, svc.acquire(values.StoreTypeCrisis))
	defer svc.release(values.StoreTypeCrisis)

	_, err := svc.Migrate(context.Background(), values.StoreTypeCrisis)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestMigrateAll_DisjointFamiliesAllComplete(t *testing.T) {
	env := newMigrationEnv(t, nil)
	ctx := context.Background()
	seedAssessmentStore(t, env.store)

	ops, err := env.svc.MigrateAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	seen := map[values.StoreType]bool{}
	for _, op := range ops {
		assert.Equal(t, backup.MigrationCompleted, op.Status, op.StoreType)
		seen[op.StoreType] = true
	}
	assert.Len(t, seen, 3)
}

func TestGetMigration(t *testing.T) {
	env := newMigrationEnv(t, nil)
	ctx := context.Background()

	op, err := env.svc.Migrate(ctx, values.StoreTypeSettings)
	require.NoError(t, err)

	got, err := env.svc.GetMigration(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)

	_, err = env.svc.GetMigration(ctx, uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestMigrate_RecordsConvertedLatency(t *testing.T) {
	env := newMigrationEnv(t, nil)
	seedAssessmentStore(t, env.store)

	op, err := env.svc.Migrate(context.Background(), values.StoreTypeAssessment)
	require.NoError(t, err)

	// The representative read over the converted payload is local work and
	// comfortably inside a 50ms SLA.
	assert.True(t, op.Metrics.ConvertedLatencySLA)
	assert.GreaterOrEqual(t, op.Metrics.ConvertedLatencyMs, int64(0))
}

func TestMigrate_ConcurrentSameFamily(t *testing.T) {
	env := newMigrationEnv(t, nil)
	ctx := context.Background()
	seedAssessmentStore(t, env.store)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		conflicts int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op, err := env.svc.Migrate(ctx, values.StoreTypeAssessment)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && op.Status == backup.MigrationCompleted:
				completed++
			case errors.IsType(err, errors.ErrorTypeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	// At least one attempt wins; overlapping attempts are refused, never
	// interleaved.
	assert.GreaterOrEqual(t, completed, 1)
	assert.Equal(t, 3, completed+conflicts)
}
