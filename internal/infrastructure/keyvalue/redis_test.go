package keyvalue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/config"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(&config.RedisConfig{
		URL:         mr.Addr(),
		DialTimeout: time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRedisStore_SetGetRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "store_crisis", `{"level":"none"}`))

	got, err := store.Get(ctx, "store_crisis")
	require.NoError(t, err)
	assert.Equal(t, `{"level":"none"}`, got)

	require.NoError(t, store.Remove(ctx, "store_crisis"))

	_, err = store.Get(ctx, "store_crisis")
	assert.True(t, IsNotFound(err))
}

func TestRedisStore_GetMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "never_written")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "never_written")
}

func TestRedisStore_KeysByPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "crisis_backup_a", "1"))
	require.NoError(t, store.Set(ctx, "crisis_backup_b", "2"))
	require.NoError(t, store.Set(ctx, "assessment_backup_c", "3"))
	require.NoError(t, store.Set(ctx, "store_crisis", "4"))

	keys, err := store.Keys(ctx, "crisis_backup_")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"crisis_backup_a", "crisis_backup_b"}, keys)

	keys, err = store.Keys(ctx, "settings_backup_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_JSONRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, store.SetJSON(ctx, "key", payload{Name: "snapshot", Count: 3}))

	var decoded payload
	require.NoError(t, store.GetJSON(ctx, "key", &decoded))
	assert.Equal(t, payload{Name: "snapshot", Count: 3}, decoded)

	require.NoError(t, store.Set(ctx, "broken", "{not json"))
	assert.Error(t, store.GetJSON(ctx, "broken", &decoded))
}
