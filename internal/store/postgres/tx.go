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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
)

// PostgreSQL error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInsufficientPrivs   = "42501"
)

const bindScope = `SELECT set_config('app.current_organization_id', $1, true),
	set_config('app.current_user_id', $2, true),
	set_config('app.current_role', $3, true)`

// scoped runs fn in a transaction bound to the context's isolation scope.
// Row security sees the settings for the lifetime of the transaction only.
func (db *DB) scoped(ctx context.Context, fn func(tx *sql.Tx) error) error {
	scope, err := isolation.Require(ctx)
	if err != nil {
		return err
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, bindScope, scope.OrganizationID, scope.UserID, scope.RoleName); err != nil {
		return fmt.Errorf("failed to bind organization scope: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

func isForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// isPolicyViolation reports a WITH CHECK failure.
func isPolicyViolation(err error) bool { return pgCode(err) == codeInsufficientPrivs }
