package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
)

// VerifyIsolation audits the schema and the connected role. A role that is
// superuser or BYPASSRLS skips every policy, so serving as one is a finding
// even when the schema is correct.
func (db *DB) VerifyIsolation(ctx context.Context) (isolation.Report, error) {
	report, err := db.VerifySchema(ctx)
	if err != nil {
		return report, err
	}
	var role isolation.RoleState
	err = db.sql.QueryRowContext(ctx, `
		SELECT rolname, rolsuper, rolbypassrls FROM pg_roles WHERE rolname = current_user
	`).Scan(&role.Name, &role.Superuser, &role.BypassRLS)
	if err != nil {
		return report, fmt.Errorf("failed to read connected role: %w", err)
	}
	report.Findings = append(report.Findings, isolation.AuditRole(role)...)
	return report, nil
}

// VerifySchema reads row security flags and policies of the scoped tables
// from the catalog and audits them.
func (db *DB) VerifySchema(ctx context.Context) (isolation.Report, error) {
	placeholders := make([]string, len(isolation.ScopedTables))
	args := make([]any, len(isolation.ScopedTables))
	for i, t := range isolation.ScopedTables {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = t
	}
	in := strings.Join(placeholders, ", ")

	rows, err := db.sql.QueryContext(ctx, `
		SELECT c.relname, c.relrowsecurity, c.relforcerowsecurity
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema() AND c.relkind = 'r' AND c.relname IN (`+in+`)
	`, args...)
	if err != nil {
		return isolation.Report{}, fmt.Errorf("failed to read table security: %w", err)
	}
	var tables []isolation.TableState
	for rows.Next() {
		var t isolation.TableState
		if err := rows.Scan(&t.Name, &t.RLSEnabled, &t.RLSForced); err != nil {
			rows.Close()
			return isolation.Report{}, fmt.Errorf("failed to scan table security: %w", err)
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return isolation.Report{}, err
	}

	rows, err = db.sql.QueryContext(ctx, `
		SELECT tablename, policyname, permissive, cmd, qual, with_check
		FROM pg_policies
		WHERE schemaname = current_schema() AND tablename IN (`+in+`)
	`, args...)
	if err != nil {
		return isolation.Report{}, fmt.Errorf("failed to read policies: %w", err)
	}
	defer rows.Close()

	var policies []isolation.Policy
	for rows.Next() {
		var (
			p                isolation.Policy
			permissive       string
			using, withCheck sql.NullString
		)
		if err := rows.Scan(&p.Table, &p.Name, &permissive, &p.Command, &using, &withCheck); err != nil {
			return isolation.Report{}, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Restrictive = strings.EqualFold(permissive, "RESTRICTIVE")
		p.Using = using.String
		p.WithCheck = withCheck.String
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return isolation.Report{}, err
	}

	return isolation.Audit(isolation.ScopedTables, tables, policies), nil
}
