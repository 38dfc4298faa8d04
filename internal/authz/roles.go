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
	"fmt"
	"strings"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// seedOrder lists templates in creation order; the first non-system one
// after Admin becomes the default role.
var seedOrder = []string{
	rbac.TemplateAdmin,
	rbac.TemplateMember,
	rbac.TemplateTechnician,
	rbac.TemplateUnauthenticated,
}

// SeedRoles creates the template roles of a new organization. Admin and
// Unauthenticated are system roles; Member is the default.
func (s *Service) SeedRoles(ctx context.Context, organizationID string) error {
	ctx = isolation.WithScope(ctx, isolation.Scope{OrganizationID: organizationID, RoleName: "system"})

	now := time.Now().UTC()
	for _, name := range seedOrder {
		perms, err := s.catalog.PermissionsForTemplate(name)
		if err != nil {
			return err
		}
		role := &Role{
			ID:             id.NewUUIDv7(),
			OrganizationID: organizationID,
			Name:           name,
			IsSystem:       rbac.IsSystemRole(name),
			IsDefault:      name == rbac.TemplateMember,
			Permissions:    perms.Sorted(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
	}
	return nil
}

// ListRoles returns the roles of an organization.
func (s *Service) ListRoles(ctx context.Context, organizationID string) ([]*Role, error) {
	return s.roles.List(ctx, organizationID)
}

// GetRole returns a role of the organization.
func (s *Service) GetRole(ctx context.Context, organizationID, roleID string) (*Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.OrganizationID != organizationID {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// CreateRole adds a custom role. Permissions are extended with their catalog
// dependencies before being stored.
func (s *Service) CreateRole(ctx context.Context, organizationID, name string, permissions []string, actorID string) (*Role, error) {
	name, err := s.validRoleName(name)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Validate(permissions...); err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByName(ctx, organizationID, name); err == nil {
		return nil, ErrRoleAlreadyExists
	}

	now := time.Now().UTC()
	role := &Role{
		ID:             id.NewUUIDv7(),
		OrganizationID: organizationID,
		Name:           name,
		Permissions:    s.catalog.WithDependencies(rbac.NewSet(permissions...)).Sorted(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleCreated,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata:       map[string]any{"name": role.Name, "permissions": role.Permissions},
	})
	return role, nil
}

// CreateRoleFromTemplate adds a custom role holding a template's permissions.
func (s *Service) CreateRoleFromTemplate(ctx context.Context, organizationID, name, template, actorID string) (*Role, error) {
	if rbac.IsSystemRole(template) {
		return nil, fmt.Errorf("%w: %s", ErrSystemRole, template)
	}
	perms, err := s.catalog.PermissionsForTemplate(template)
	if err != nil {
		return nil, err
	}
	return s.CreateRole(ctx, organizationID, name, perms.Sorted(), actorID)
}

// UpdateRolePermissions replaces the permissions of a role. Admin cannot be
// changed. Unauthenticated may only hold anonymous-eligible permissions and
// gets exactly the listed ones, without their dependencies.
func (s *Service) UpdateRolePermissions(ctx context.Context, organizationID, roleID string, permissions []string, actorID string) (*Role, error) {
	role, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsAdmin() {
		return nil, ErrSystemRole
	}
	if err := s.catalog.Validate(permissions...); err != nil {
		return nil, err
	}

	set := rbac.NewSet(permissions...)
	if !role.IsUnauthenticated() {
		set = s.catalog.WithDependencies(set)
	} else {
		if extra := set.Difference(s.catalog.AnonymousPermissions()); extra.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotAnonymousEligible, strings.Join(extra.Sorted(), ", "))
		}
	}

	before := role.Permissions
	role.Permissions = set.Sorted()
	if err := s.roles.SetPermissions(ctx, role.ID, role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}
	role.UpdatedAt = time.Now().UTC()

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleUpdated,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata: map[string]any{
			"granted": rbac.NewSet(role.Permissions...).Difference(rbac.NewSet(before...)).Sorted(),
			"revoked": rbac.NewSet(before...).Difference(rbac.NewSet(role.Permissions...)).Sorted(),
		},
	})
	return role, nil
}

// RenameRole changes the name of a custom role.
func (s *Service) RenameRole(ctx context.Context, organizationID, roleID, name, actorID string) (*Role, error) {
	role, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRole
	}
	name, err = s.validRoleName(name)
	if err != nil {
		return nil, err
	}
	if existing, err := s.roles.GetByName(ctx, organizationID, name); err == nil && existing.ID != role.ID {
		return nil, ErrRoleAlreadyExists
	}
	if err := s.roles.Rename(ctx, role.ID, name); err != nil {
		return nil, fmt.Errorf("failed to rename role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleRenamed,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata:       map[string]any{"from": role.Name, "to": name},
	})
	role.Name = name
	return role, nil
}

// SetDefaultRole makes roleID the role new members receive.
func (s *Service) SetDefaultRole(ctx context.Context, organizationID, roleID, actorID string) error {
	role, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrRoleNotAssignable
	}
	if err := s.roles.SetDefault(ctx, organizationID, role.ID); err != nil {
		return fmt.Errorf("failed to set default role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleUpdated,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata:       map[string]any{"default": true},
	})
	return nil
}

// DeleteRole removes a custom role. A role with members is only deleted
// when reassignTo names another assignable role of the same organization;
// its members move there atomically.
func (s *Service) DeleteRole(ctx context.Context, organizationID, roleID, reassignTo, actorID string) error {
	role, err := s.GetRole(ctx, organizationID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	if role.IsDefault {
		return ErrDefaultRole
	}

	if reassignTo != "" {
		if reassignTo == role.ID {
			return ErrInvalidReassignment
		}
		target, err := s.GetRole(ctx, organizationID, reassignTo)
		if errors.Is(err, ErrRoleNotFound) {
			return fmt.Errorf("%w: target role not found", ErrInvalidReassignment)
		}
		if err != nil {
			return err
		}
		if target.IsUnauthenticated() {
			return ErrInvalidReassignment
		}
	} else {
		n, err := s.memberships.CountByRole(ctx, role.ID)
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if n > 0 {
			return ErrRoleHasMembers
		}
	}

	moved, err := s.roles.Delete(ctx, role.ID, reassignTo)
	if err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleDeleted,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata:       map[string]any{"name": role.Name, "reassign_to": reassignTo, "moved": moved},
	})
	return nil
}

func (s *Service) validRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return "", ErrInvalidRoleName
	}
	if rbac.IsSystemRole(name) {
		return "", fmt.Errorf("%w: %s is reserved", ErrInvalidRoleName, name)
	}
	return name, nil
}
