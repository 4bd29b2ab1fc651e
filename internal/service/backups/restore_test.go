package backups

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/config"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/crypto"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// flakyAdapter wraps the settings adapter and fails its smoke test on demand
type flakyAdapter struct {
	stores.Adapter

	mu        sync.Mutex
	failSmoke bool
	applied   [][]byte
}

func (f *flakyAdapter) Apply(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	f.applied = append(f.applied, payload)
	f.mu.Unlock()
	return f.Adapter.Apply(ctx, payload)
}

func (f *flakyAdapter) SmokeTest(ctx context.Context) error {
	f.mu.Lock()
	fail := f.failSmoke
	f.mu.Unlock()
	if fail {
		return errors.NewRegressionError("critical function check failed")
	}
	return f.Adapter.SmokeTest(ctx)
}

func newFlakyEnv(t *testing.T) (*service, *flakyAdapter, keyvalue.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := zaptest.NewLogger(t)

	store, err := keyvalue.NewRedisStore(&config.RedisConfig{
		URL:         mr.Addr(),
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gateway, err := crypto.NewAESGateway("restore-test-master-key", logger)
	require.NoError(t, err)

	flaky := &flakyAdapter{Adapter: stores.NewSettingsAdapter(store)}
	retention := map[values.StoreType]values.RetentionWindow{
		values.StoreTypeSettings: values.MustNewRetentionWindow(3 * time.Hour),
	}

	svc := NewService(store, gateway, []stores.Adapter{flaky}, retention, nil, logger).(*service)
	return svc, flaky, store
}

func TestRestore_SmokeTestFailureReinstatesPriorState(t *testing.T) {
	svc, flaky, store := newFlakyEnv(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, stores.LiveKey(values.StoreTypeSettings),
		`{"preferences":{"theme":"calm"}}`))
	record, err := svc.Backup(ctx, values.StoreTypeSettings)
	require.NoError(t, err)

	// The live store moves on after the backup.
	current := `{"preferences":{"theme":"focus","haptics":"off"}}`
	require.NoError(t, store.Set(ctx, stores.LiveKey(values.StoreTypeSettings), current))

	flaky.failSmoke = true
	result, err := svc.Restore(ctx, record.BackupID, values.StoreTypeSettings)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRegression))
	assert.Equal(t, string(errors.ErrorTypeRegression), result.FailureKind)

	// The apply was rolled back to the pre-restore snapshot: first the
	// backup payload went in, then the prior state went back.
	require.Len(t, flaky.applied, 2)
	assert.JSONEq(t, current, string(flaky.applied[1]))

	got, err := store.Get(ctx, stores.LiveKey(values.StoreTypeSettings))
	require.NoError(t, err)
	assert.Equal(t, current, got)
}

func TestRestore_ConcurrentSameBackupSerializes(t *testing.T) {
	svc, _, store := newFlakyEnv(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, stores.LiveKey(values.StoreTypeSettings),
		`{"preferences":{"theme":"calm"}}`))
	record, err := svc.Backup(ctx, values.StoreTypeSettings)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*RestoreResult, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Restore(ctx, record.BackupID, values.StoreTypeSettings)
			require.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.True(t, result.Success)
	}

	var restored stores.SettingsStore
	require.NoError(t, store.GetJSON(ctx, stores.LiveKey(values.StoreTypeSettings), &restored))
	assert.Equal(t, "calm", restored.Preferences["theme"])
}
