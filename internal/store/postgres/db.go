// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/001_initial_schema.up.sql
var InitialSchema string

// DB wraps the PostgreSQL connection pool. Repositories talk to it through
// database/sql so every statement of a request shares one transaction.
type DB struct {
	pool *pgxpool.Pool
	sql  *sql.DB
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	// MaxOpenConns and MaxIdleConns bound the pgx pool size.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// applicationName tags PinPoint sessions in pg_stat_activity.
const applicationName = "pinpoint"

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DSN renders cfg as a libpq keyword/value string with quoted values.
func (cfg Config) DSN() string {
	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", cfg.Port},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Database},
		{"sslmode", cfg.SSLMode},
		{"application_name", applicationName},
	}
	if cfg.MaxOpenConns > 0 {
		pairs = append(pairs, [2]string{"pool_max_conns", strconv.Itoa(cfg.MaxOpenConns)})
	}
	if cfg.MaxIdleConns > 0 {
		pairs = append(pairs, [2]string{"pool_min_conns", strconv.Itoa(cfg.MaxIdleConns)})
	}

	var b strings.Builder
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv[0])
		b.WriteString("='")
		b.WriteString(dsnEscaper.Replace(kv[1]))
		b.WriteByte('\'')
	}
	return b.String()
}

// New opens the pool and checks that the database answers.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{pool: pool, sql: stdlib.OpenDBFromPool(pool)}, nil
}

// NewFromSQL wraps an existing *sql.DB.
func NewFromSQL(db *sql.DB) *DB {
	return &DB{sql: db}
}

// Close releases the pool.
func (db *DB) Close() {
	_ = db.sql.Close()
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Ping backs the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Migrate applies the embedded schema and grants appRole the privileges it
// serves with. It is idempotent. appRole must exist and must be neither
// superuser nor BYPASSRLS, or VerifyIsolation rejects it at startup.
func (db *DB) Migrate(ctx context.Context, appRole string) error {
	if appRole == "" {
		return errors.New("migrate: application role is required")
	}
	if _, err := db.sql.ExecContext(ctx, InitialSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := db.sql.ExecContext(ctx, grantStatements(appRole)); err != nil {
		return fmt.Errorf("failed to grant privileges to %s: %w", appRole, err)
	}
	return nil
}

// appTables are the tables the application reads and writes.
var appTables = []string{"organizations", "users", "credentials", "roles", "role_permissions", "memberships", "machines", "issues"}

func grantStatements(appRole string) string {
	role := pgx.Identifier{appRole}.Sanitize()
	return "GRANT USAGE ON SCHEMA public TO " + role + ";\n" +
		"GRANT SELECT, INSERT, UPDATE, DELETE ON " + strings.Join(appTables, ", ") + " TO " + role + ";\n" +
		"GRANT EXECUTE ON FUNCTION resource_organization(TEXT, UUID) TO " + role + ";"
}
