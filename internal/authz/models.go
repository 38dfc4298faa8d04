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

package authz

import (
	"context"
	"errors"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// Domain errors
var (
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleAlreadyExists    = errors.New("role already exists")
	ErrInvalidRoleName      = errors.New("invalid role name")
	ErrSystemRole           = errors.New("system roles cannot be renamed, deleted or have their permissions changed")
	ErrRoleHasMembers       = errors.New("role still has members; a reassignment role is required")
	ErrInvalidReassignment  = errors.New("invalid reassignment role")
	ErrDefaultRole          = errors.New("the default role cannot be deleted")
	ErrRoleNotAssignable    = errors.New("role cannot be assigned to members")
	ErrNotAnonymousEligible = errors.New("permission cannot be granted to anonymous visitors")
	ErrNoMembership         = errors.New("no membership")
	ErrMembershipExists     = errors.New("membership already exists")
	ErrLastAdmin            = errors.New("organization must keep at least one admin")
)

// Role is a named, organization-scoped bundle of permissions.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	IsSystem       bool      `json:"is_system"`
	IsDefault      bool      `json:"is_default"`
	Permissions    []string  `json:"permissions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin reports whether r is the Admin system role.
func (r *Role) IsAdmin() bool {
	return r.IsSystem && r.Name == rbac.TemplateAdmin
}

// IsUnauthenticated reports whether r is the anonymous visitor role.
func (r *Role) IsUnauthenticated() bool {
	return r.IsSystem && r.Name == rbac.TemplateUnauthenticated
}

// HasPermission checks the stored permission names of the role.
func (r *Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Membership links one user to one organization through one role.
type Membership struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	RoleID         string    `json:"role_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RoleRepository defines role persistence. Implementations only see rows of
// the organization bound in the context scope.
type RoleRepository interface {
	// Create stores a role with its permissions
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByName retrieves a role by name within an organization
	GetByName(ctx context.Context, organizationID, name string) (*Role, error)

	// List retrieves all roles of an organization
	List(ctx context.Context, organizationID string) ([]*Role, error)

	// Rename changes the role name
	Rename(ctx context.Context, id, name string) error

	// SetPermissions replaces the permission set of a role
	SetPermissions(ctx context.Context, id string, permissions []string) error

	// SetDefault marks one role as the organization default and clears the flag on the others
	SetDefault(ctx context.Context, organizationID, id string) error

	// Delete removes a role. When reassignTo is set, memberships of the role
	// move to it in the same transaction; otherwise deletion fails with
	// ErrRoleHasMembers if any membership references the role.
	Delete(ctx context.Context, id, reassignTo string) (moved int, err error)
}

// MembershipRepository defines membership persistence.
type MembershipRepository interface {
	// Create stores a membership; ErrMembershipExists if the pair exists
	Create(ctx context.Context, m *Membership) error

	// Get retrieves the membership of a user in an organization; ErrNoMembership if absent
	Get(ctx context.Context, userID, organizationID string) (*Membership, error)

	// List retrieves all memberships of an organization
	List(ctx context.Context, organizationID string) ([]*Membership, error)

	// UpdateRole changes the role of a membership
	UpdateRole(ctx context.Context, id, roleID string) error

	// Delete removes a membership
	Delete(ctx context.Context, id string) error

	// CountByRole counts memberships referencing a role
	CountByRole(ctx context.Context, roleID string) (int, error)
}
