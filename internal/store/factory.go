/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"fmt"
	"time"
)

// Config configures the storage backend (spec.md 5:
// application_database_settings). Credentials are read from the process
// environment or config file directly by internal/config — the store layer
// only ever sees a resolved DSN-shaped struct, never a secret reference.
type Config struct {
	// Type selects the dialect: "sqlite", "postgres" or "mysql".
	Type string

	// SQLitePath is the database file path when Type is "sqlite".
	SQLitePath string

	// DSN is the driver-specific connection string when Type is "postgres"
	// or "mysql" (e.g. "host=... user=... password=... dbname=... sslmode=...").
	DSN string

	PoolMaxIdleConns    int
	PoolMaxOpenConns    int
	PoolConnMaxLifetime time.Duration
	PoolConnMaxIdleTime time.Duration

	// AcquireTimeout and QueryTimeout are database_default_acquire_timeout
	// and database_default_query_timeout (spec.md 5), bounding every Store
	// call made against the returned Store.
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// New builds a Store for the configured backend and initializes its schema.
func New(cfg Config) (Store, error) {
	pool := ConnectionPoolConfig{
		MaxIdleConns:    cfg.PoolMaxIdleConns,
		MaxOpenConns:    cfg.PoolMaxOpenConns,
		ConnMaxLifetime: cfg.PoolConnMaxLifetime,
		ConnMaxIdleTime: cfg.PoolConnMaxIdleTime,
		AcquireTimeout:  cfg.AcquireTimeout,
		QueryTimeout:    cfg.QueryTimeout,
	}

	var (
		dialect string
		dsn     string
	)
	switch cfg.Type {
	case "sqlite", "":
		dialect = "sqlite"
		dsn = cfg.SQLitePath
		if dsn == "" {
			dsn = "/data/sentinela.db"
		}
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn required when storage type is postgres")
		}
		dialect = "postgres"
		dsn = cfg.DSN
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql dsn required when storage type is mysql")
		}
		dialect = "mysql"
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	s, err := NewGormStoreWithPool(dialect, dsn, pool)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", dialect, err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s schema: %w", dialect, err)
	}
	return s, nil
}
