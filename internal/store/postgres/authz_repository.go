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
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
)

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

var _ authz.RoleRepository = (*RoleRepository)(nil)

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create stores a role and its permission rows
func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO roles (id, organization_id, name, is_system, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, role.ID, role.OrganizationID, role.Name, role.IsSystem, role.IsDefault, role.CreatedAt, role.UpdatedAt)
		switch {
		case isUniqueViolation(err):
			return authz.ErrRoleAlreadyExists
		case isPolicyViolation(err):
			return isolation.ErrScopeViolation
		case err != nil:
			return fmt.Errorf("failed to create role: %w", err)
		}
		return insertPermissions(ctx, tx, role.OrganizationID, role.ID, role.Permissions)
	})
}

func insertPermissions(ctx context.Context, tx *sql.Tx, organizationID, roleID string, permissions []string) error {
	for _, p := range permissions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO role_permissions (organization_id, role_id, permission)
			VALUES ($1, $2, $3)
		`, organizationID, roleID, p); err != nil {
			return fmt.Errorf("failed to grant %s: %w", p, err)
		}
	}
	return nil
}

const roleColumns = `id, organization_id, name, is_system, is_default, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*authz.Role, error) {
	var role authz.Role
	if err := row.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.IsSystem,
		&role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

func loadPermissions(ctx context.Context, tx *sql.Tx, role *authz.Role) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT permission FROM role_permissions
		WHERE role_id = $1
		ORDER BY permission
	`, role.ID)
	if err != nil {
		return fmt.Errorf("failed to load permissions: %w", err)
	}
	defer rows.Close()

	role.Permissions = role.Permissions[:0]
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("failed to scan permission: %w", err)
		}
		role.Permissions = append(role.Permissions, p)
	}
	return rows.Err()
}

func (r *RoleRepository) getOne(ctx context.Context, where string, args ...any) (*authz.Role, error) {
	var role *authz.Role
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		var err error
		role, err = scanRole(tx.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles `+where, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return authz.ErrRoleNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get role: %w", err)
		}
		return loadPermissions(ctx, tx, role)
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (*authz.Role, error) {
	if !id.IsUUID(roleID) {
		return nil, authz.ErrRoleNotFound
	}
	return r.getOne(ctx, `WHERE id = $1`, roleID)
}

// GetByName retrieves a role by case-insensitive name within an organization
func (r *RoleRepository) GetByName(ctx context.Context, organizationID, name string) (*authz.Role, error) {
	return r.getOne(ctx, `WHERE organization_id = $1 AND lower(name) = lower($2)`, organizationID, name)
}

// List retrieves all roles of an organization
func (r *RoleRepository) List(ctx context.Context, organizationID string) ([]*authz.Role, error) {
	var roles []*authz.Role
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+roleColumns+` FROM roles
			WHERE organization_id = $1
			ORDER BY name
		`, organizationID)
		if err != nil {
			return fmt.Errorf("failed to list roles: %w", err)
		}
		for rows.Next() {
			role, err := scanRole(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan role: %w", err)
			}
			roles = append(roles, role)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, role := range roles {
			if err := loadPermissions(ctx, tx, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// Rename changes the role name
func (r *RoleRepository) Rename(ctx context.Context, roleID, name string) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE roles SET name = $2, updated_at = $3 WHERE id = $1
		`, roleID, name, time.Now().UTC())
		if isUniqueViolation(err) {
			return authz.ErrRoleAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("failed to rename role: %w", err)
		}
		return requireRow(res, authz.ErrRoleNotFound)
	})
}

// SetPermissions replaces the permission rows of a role
func (r *RoleRepository) SetPermissions(ctx context.Context, roleID string, permissions []string) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		var orgID string
		err := tx.QueryRowContext(ctx, `
			UPDATE roles SET updated_at = $2 WHERE id = $1
			RETURNING organization_id
		`, roleID, time.Now().UTC()).Scan(&orgID)
		if errors.Is(err, sql.ErrNoRows) {
			return authz.ErrRoleNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("failed to clear permissions: %w", err)
		}
		return insertPermissions(ctx, tx, orgID, roleID, permissions)
	})
}

// SetDefault marks one role as the default of its organization
func (r *RoleRepository) SetDefault(ctx context.Context, organizationID, roleID string) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE roles SET is_default = false
			WHERE organization_id = $1 AND is_default AND id <> $2
		`, organizationID, roleID); err != nil {
			return fmt.Errorf("failed to clear default role: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE roles SET is_default = true, updated_at = $3
			WHERE organization_id = $1 AND id = $2
		`, organizationID, roleID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to set default role: %w", err)
		}
		return requireRow(res, authz.ErrRoleNotFound)
	})
}

// Delete removes a role, first moving its memberships to reassignTo
func (r *RoleRepository) Delete(ctx context.Context, roleID, reassignTo string) (int, error) {
	moved := 0
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		if reassignTo != "" {
			res, err := tx.ExecContext(ctx, `
				UPDATE memberships SET role_id = $2, updated_at = $3
				WHERE role_id = $1
			`, roleID, reassignTo, time.Now().UTC())
			if isForeignKeyViolation(err) {
				return authz.ErrInvalidReassignment
			}
			if err != nil {
				return fmt.Errorf("failed to reassign members: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			moved = int(n)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
		if isForeignKeyViolation(err) {
			return authz.ErrRoleHasMembers
		}
		if err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return requireRow(res, authz.ErrRoleNotFound)
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// MembershipRepository implements authz.MembershipRepository
type MembershipRepository struct {
	db *DB
}

var _ authz.MembershipRepository = (*MembershipRepository)(nil)

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create stores a membership
func (r *MembershipRepository) Create(ctx context.Context, m *authz.Membership) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memberships (id, organization_id, user_id, role_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.OrganizationID, m.UserID, m.RoleID, m.CreatedAt, m.UpdatedAt)
		switch {
		case isUniqueViolation(err):
			return authz.ErrMembershipExists
		case isForeignKeyViolation(err):
			return authz.ErrRoleNotFound
		case isPolicyViolation(err):
			return isolation.ErrScopeViolation
		case err != nil:
			return fmt.Errorf("failed to create membership: %w", err)
		}
		return nil
	})
}

const membershipColumns = `id, user_id, organization_id, role_id, created_at, updated_at`

func scanMembership(row interface{ Scan(...any) error }) (*authz.Membership, error) {
	var m authz.Membership
	if err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.RoleID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// Get retrieves the membership of a user in an organization
func (r *MembershipRepository) Get(ctx context.Context, userID, organizationID string) (*authz.Membership, error) {
	if !id.IsUUID(userID) {
		return nil, authz.ErrNoMembership
	}
	var m *authz.Membership
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = scanMembership(tx.QueryRowContext(ctx, `
			SELECT `+membershipColumns+` FROM memberships
			WHERE user_id = $1 AND organization_id = $2
		`, userID, organizationID))
		if errors.Is(err, sql.ErrNoRows) {
			return authz.ErrNoMembership
		}
		if err != nil {
			return fmt.Errorf("failed to get membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List retrieves all memberships of an organization
func (r *MembershipRepository) List(ctx context.Context, organizationID string) ([]*authz.Membership, error) {
	var out []*authz.Membership
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+membershipColumns+` FROM memberships
			WHERE organization_id = $1
			ORDER BY created_at
		`, organizationID)
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMembership(rows)
			if err != nil {
				return fmt.Errorf("failed to scan membership: %w", err)
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole changes the role of a membership
func (r *MembershipRepository) UpdateRole(ctx context.Context, membershipID, roleID string) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE memberships SET role_id = $2, updated_at = $3 WHERE id = $1
		`, membershipID, roleID, time.Now().UTC())
		if isForeignKeyViolation(err) {
			return authz.ErrRoleNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}
		return requireRow(res, authz.ErrNoMembership)
	})
}

// Delete removes a membership
func (r *MembershipRepository) Delete(ctx context.Context, membershipID string) error {
	return r.db.scoped(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, membershipID)
		if err != nil {
			return fmt.Errorf("failed to delete membership: %w", err)
		}
		return requireRow(res, authz.ErrNoMembership)
	})
}

// CountByRole counts memberships referencing a role
func (r *MembershipRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.db.scoped(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM memberships WHERE role_id = $1`, roleID).Scan(&n); err != nil {
			return fmt.Errorf("failed to count memberships: %w", err)
		}
		return nil
	})
	return n, err
}
