// Package cache is the fast local persistence tier: a small key/value store
// that survives restarts. State is written through on every change, one key
// at a time.
package cache

import (
	"context"
	"errors"
	"fmt"
)

// Keys written by the persistence layer.
const (
	KeyReports       = "qaReports"
	KeyRecords       = "qaPartNumbers"
	KeySchemaVersion = "qaSchemaVersion"
)

// ErrNotFound is returned by Get for a key that was never set.
var ErrNotFound = errors.New("cache: key not found")

// Store is a durable key/value map.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the store for driver. dsn is a file path for sqlite and a
// connection URL for postgres; it is ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("cache: unknown driver %q", driver)
}

const createTable = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
