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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
)

// MachineRepository implements issue.MachineRepository
type MachineRepository struct {
	db *DB
}

var _ issue.MachineRepository = (*MachineRepository)(nil)

func NewMachineRepository(db *DB) *MachineRepository {
	return &MachineRepository{db: db}
}

func (r *MachineRepository) Create(ctx context.Context, m *issue.Machine) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO machines (id, organization_id, name, location, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ID, m.OrganizationID, m.Name, m.Location, m.CreatedAt)
		if isPolicyViolation(err) {
			return isolation.ErrScopeViolation
		}
		if err != nil {
			return fmt.Errorf("failed to create machine: %w", err)
		}
		return nil
	})
}

func (r *MachineRepository) GetByID(ctx context.Context, machineID string) (*issue.Machine, error) {
	if !id.IsUUID(machineID) {
		return nil, issue.ErrNotFound
	}
	var m issue.Machine
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, organization_id, name, location, created_at
			FROM machines WHERE id = $1
		`, machineID).Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Location, &m.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return issue.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MachineRepository) List(ctx context.Context) ([]*issue.Machine, error) {
	var out []*issue.Machine
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, organization_id, name, location, created_at
			FROM machines ORDER BY name
		`)
		if err != nil {
			return fmt.Errorf("failed to list machines: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m issue.Machine
			if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Location, &m.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan machine: %w", err)
			}
			out = append(out, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IssueRepository implements issue.IssueRepository
type IssueRepository struct {
	db *DB
}

var _ issue.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{db: db}
}

const issueColumns = `id, organization_id, machine_id, title, description, severity, status,
	created_by, reporter_email, assigned_to, attachments, created_at, updated_at`

func scanIssue(row interface{ Scan(...any) error }) (*issue.Issue, error) {
	var (
		i           issue.Issue
		createdBy   sql.NullString
		assignedTo  sql.NullString
		attachments []byte
	)
	if err := row.Scan(&i.ID, &i.OrganizationID, &i.MachineID, &i.Title, &i.Description,
		&i.Severity, &i.Status, &createdBy, &i.ReporterEmail, &assignedTo, &attachments,
		&i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		i.CreatedBy = &createdBy.String
	}
	if assignedTo.Valid {
		i.AssignedTo = &assignedTo.String
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &i.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	return &i, nil
}

func encodeAttachments(a []string) ([]byte, error) {
	if a == nil {
		a = []string{}
	}
	return json.Marshal(a)
}

func (r *IssueRepository) Create(ctx context.Context, i *issue.Issue) error {
	attachments, err := encodeAttachments(i.Attachments)
	if err != nil {
		return err
	}
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues (id, organization_id, machine_id, title, description, severity, status,
				created_by, reporter_email, assigned_to, attachments, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, i.ID, i.OrganizationID, i.MachineID, i.Title, i.Description, string(i.Severity), string(i.Status),
			i.CreatedBy, i.ReporterEmail, i.AssignedTo, attachments, i.CreatedAt, i.UpdatedAt)
		switch {
		case isPolicyViolation(err), isForeignKeyViolation(err):
			return isolation.ErrScopeViolation
		case err != nil:
			return fmt.Errorf("failed to create issue: %w", err)
		}
		return nil
	})
}

func (r *IssueRepository) GetByID(ctx context.Context, issueID string) (*issue.Issue, error) {
	if !id.IsUUID(issueID) {
		return nil, issue.ErrNotFound
	}
	var out *issue.Issue
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, issueID))
		if errors.Is(err, sql.ErrNoRows) {
			return issue.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get issue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *IssueRepository) List(ctx context.Context, f issue.Filter) ([]*issue.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE true`
	var args []any
	if f.MachineID != "" {
		if !id.IsUUID(f.MachineID) {
			return nil, nil
		}
		args = append(args, f.MachineID)
		query += fmt.Sprintf(" AND machine_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var out []*issue.Issue
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list issues: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			i, err := scanIssue(rows)
			if err != nil {
				return fmt.Errorf("failed to scan issue: %w", err)
			}
			out = append(out, i)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable columns. Organization and machine never change.
func (r *IssueRepository) Update(ctx context.Context, i *issue.Issue) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE issues
			SET title = $2, description = $3, severity = $4, status = $5, assigned_to = $6, updated_at = $7
			WHERE id = $1
		`, i.ID, i.Title, i.Description, string(i.Severity), string(i.Status), i.AssignedTo, i.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update issue: %w", err)
		}
		return requireRow(res, issue.ErrNotFound)
	})
}

func (r *IssueRepository) Delete(ctx context.Context, issueID string) error {
	if !id.IsUUID(issueID) {
		return issue.ErrNotFound
	}
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, issueID)
		if err != nil {
			return fmt.Errorf("failed to delete issue: %w", err)
		}
		return requireRow(res, issue.ErrNotFound)
	})
}

// Locator implements issue.OwnershipLocator through the
// resource_organization function, which sees past row security but returns
// only the owner.
type Locator struct {
	db *DB
}

var _ issue.OwnershipLocator = (*Locator)(nil)

func NewLocator(db *DB) *Locator {
	return &Locator{db: db}
}

func (l *Locator) OrganizationOf(ctx context.Context, kind issue.ResourceKind, resourceID string) (string, error) {
	if !id.IsUUID(resourceID) {
		return "", issue.ErrNotFound
	}
	var owner sql.NullString
	err := l.db.sql.QueryRowContext(ctx, `SELECT resource_organization($1, $2)`, string(kind), resourceID).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("failed to locate %s: %w", kind, err)
	}
	if !owner.Valid {
		return "", issue.ErrNotFound
	}
	return owner.String, nil
}
