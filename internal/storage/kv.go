// Package storage provides the durable string key-value stores behind the
// chat settings, credential sealing, and the in-process TTL cache.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// KVStore is a durable mapping of string keys to string values.
// Implementations must be safe for concurrent use.
type KVStore interface {
	// Get returns the value for key or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StoreConfig selects and configures a KVStore backend
type StoreConfig struct {
	Backend string

	// SQL backends
	SQLitePath  string
	DatabaseURL string
	DB          DBConfig

	// Redis backend
	Redis     RedisConfig
	KeyPrefix string
}

// Open creates the KVStore selected by cfg.Backend
func Open(ctx context.Context, cfg StoreConfig) (KVStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendSQLite, "":
		dbCfg := cfg.DB
		dbCfg.Driver = DriverSQLite
		dbCfg.DSN = cfg.SQLitePath
		db, err := NewDB(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db)

	case BackendPostgres:
		dbCfg := cfg.DB
		dbCfg.Driver = DriverPostgres
		dbCfg.DSN = cfg.DatabaseURL
		db, err := NewDB(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db)

	case BackendRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
