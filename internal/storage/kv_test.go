package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance and a connected client
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Address = mr.Addr()
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)

	return mr, client
}

func openSQLite(t *testing.T, path string) *SQLStore {
	t.Helper()

	ctx := context.Background()
	cfg := DefaultDBConfig()
	cfg.DSN = path
	db, err := NewDB(ctx, cfg)
	require.NoError(t, err)

	store, err := NewSQLStore(ctx, db)
	require.NoError(t, err)
	return store
}

// exerciseKVStore checks the behavior every backend must share
func exerciseKVStore(t *testing.T, store KVStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "travelmate_ai_apikey")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "travelmate_ai_apikey", "sk-abc"))
	v, err := store.Get(ctx, "travelmate_ai_apikey")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", v)

	require.NoError(t, store.Set(ctx, "travelmate_ai_apikey", "sk-def"))
	v, err = store.Get(ctx, "travelmate_ai_apikey")
	require.NoError(t, err)
	assert.Equal(t, "sk-def", v)

	require.NoError(t, store.Set(ctx, "travelmate_ai_enabled", "false"))
	require.NoError(t, store.Delete(ctx, "travelmate_ai_apikey"))
	_, err = store.Get(ctx, "travelmate_ai_apikey")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting twice is fine
	require.NoError(t, store.Delete(ctx, "travelmate_ai_apikey"))

	v, err = store.Get(ctx, "travelmate_ai_enabled")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	require.NoError(t, store.Set(ctx, "empty", ""))
	v, err = store.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseKVStore(t, store)

	require.NoError(t, store.Close())
	_, err := store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			assert.NoError(t, store.Set(ctx, key, "v"))
			_, err := store.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestSQLStore_SQLite(t *testing.T) {
	store := openSQLite(t, filepath.Join(t.TempDir(), "nested", "settings.db"))
	defer store.Close()

	exerciseKVStore(t, store)
	assert.NoError(t, store.Health(context.Background()))
}

func TestSQLStore_SQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	ctx := context.Background()

	store := openSQLite(t, path)
	require.NoError(t, store.Set(ctx, "travelmate_ai_provider", "anthropic"))
	require.NoError(t, store.Close())

	reopened := openSQLite(t, path)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "travelmate_ai_provider")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", v)
}

func TestSQLStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL test")
	}

	ctx := context.Background()
	cfg := DefaultDBConfig()
	cfg.Driver = DriverPostgres
	cfg.DSN = dsn
	db, err := NewDB(ctx, cfg)
	require.NoError(t, err)

	store, err := NewSQLStore(ctx, db)
	require.NoError(t, err)
	defer store.Close()

	for _, k := range []string{"travelmate_ai_apikey", "travelmate_ai_enabled", "empty"} {
		_ = store.Delete(ctx, k)
	}
	exerciseKVStore(t, store)
}

func TestRedisStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "tm:")
	defer store.Close()

	exerciseKVStore(t, store)

	// Keys are namespaced
	v, err := mr.Get("tm:travelmate_ai_enabled")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	assert.NoError(t, store.Health(context.Background()))
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := DefaultRedisConfig()
	cfg.Address = mr.Addr()
	cfg.MaxRetries = -1
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	store := NewRedisStore(client, "")
	defer store.Close()

	mr.Close()

	_, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, StoreConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, StoreConfig{Backend: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "s.db"), DB: DefaultDBConfig()})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())

	mr := miniredis.RunT(t)
	redisCfg := DefaultRedisConfig()
	redisCfg.Address = mr.Addr()
	store, err = Open(ctx, StoreConfig{Backend: BackendRedis, Redis: redisCfg})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, StoreConfig{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
