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
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// Service resolves memberships and permissions and administers roles and
// memberships. Nothing is cached: every call reads the repositories, so a
// role change is visible to the next request.
type Service struct {
	roles       RoleRepository
	memberships MembershipRepository
	catalog     *rbac.Catalog
	auditLogger audit.Logger
}

func NewService(roles RoleRepository, memberships MembershipRepository, catalog *rbac.Catalog, auditLogger audit.Logger) *Service {
	return &Service{
		roles:       roles,
		memberships: memberships,
		catalog:     catalog,
		auditLogger: auditLogger,
	}
}

// Catalog returns the permission catalog the service enforces.
func (s *Service) Catalog() *rbac.Catalog { return s.catalog }

// FindMembership returns the membership of userID in organizationID, or
// ErrNoMembership.
func (s *Service) FindMembership(ctx context.Context, userID, organizationID string) (*Membership, error) {
	m, err := s.memberships.Get(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	if m.OrganizationID != organizationID || m.UserID != userID {
		return nil, ErrNoMembership
	}
	return m, nil
}

// RoleOf loads the role of a membership.
func (s *Service) RoleOf(ctx context.Context, m *Membership) (*Role, error) {
	role, err := s.roles.GetByID(ctx, m.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role of membership %s: %w", m.ID, err)
	}
	if role.OrganizationID != m.OrganizationID {
		return nil, fmt.Errorf("membership %s references role of another organization", m.ID)
	}
	return role, nil
}

// EffectivePermissions returns the permissions granted by the membership's
// role. The Admin system role always yields the whole catalog, whatever its
// stored rows say.
func (s *Service) EffectivePermissions(ctx context.Context, m *Membership) (rbac.Set, error) {
	role, err := s.RoleOf(ctx, m)
	if err != nil {
		return nil, err
	}
	return s.permissionsOf(role), nil
}

func (s *Service) permissionsOf(role *Role) rbac.Set {
	if role.IsAdmin() {
		return s.catalog.ListAllPermissions()
	}
	set := rbac.NewSet(role.Permissions...).Intersect(s.catalog.ListAllPermissions())
	if role.IsUnauthenticated() {
		set = set.Intersect(s.catalog.AnonymousPermissions())
	}
	return set
}

// AnonymousPermissions returns the Unauthenticated role's permissions of an
// organization, limited to anonymous-eligible catalog entries.
func (s *Service) AnonymousPermissions(ctx context.Context, organizationID string) (rbac.Set, error) {
	role, err := s.roles.GetByName(ctx, organizationID, rbac.TemplateUnauthenticated)
	if errors.Is(err, ErrRoleNotFound) {
		return rbac.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load anonymous role: %w", err)
	}
	if !role.IsSystem {
		return rbac.NewSet(), nil
	}
	return s.permissionsOf(role), nil
}

// AddMember creates the membership of userID in organizationID. An empty
// roleID selects the organization's default role.
func (s *Service) AddMember(ctx context.Context, organizationID, userID, roleID, actorID string) (*Membership, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	role, err := s.assignableRole(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &Membership{
		ID:             id.NewUUIDv7(),
		UserID:         userID,
		OrganizationID: organizationID,
		RoleID:         role.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberAdded,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       userID,
		Metadata:       map[string]any{"role": role.Name},
	})
	return m, nil
}

// ChangeMemberRole moves a member to another role of the same organization.
func (s *Service) ChangeMemberRole(ctx context.Context, organizationID, userID, roleID, actorID string) (*Membership, error) {
	m, err := s.FindMembership(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	role, err := s.assignableRole(ctx, organizationID, roleID)
	if err != nil {
		return nil, err
	}
	if m.RoleID == role.ID {
		return m, nil
	}
	if err := s.ensureAdminRemains(ctx, m); err != nil {
		return nil, err
	}
	if err := s.memberships.UpdateRole(ctx, m.ID, role.ID); err != nil {
		return nil, fmt.Errorf("failed to change role: %w", err)
	}
	previous := m.RoleID
	m.RoleID = role.ID
	m.UpdatedAt = time.Now().UTC()

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberRoleChanged,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       userID,
		Metadata:       map[string]any{"from_role_id": previous, "to_role_id": role.ID},
	})
	return m, nil
}

// RemoveMember deletes the membership of userID.
func (s *Service) RemoveMember(ctx context.Context, organizationID, userID, actorID string) error {
	m, err := s.FindMembership(ctx, userID, organizationID)
	if err != nil {
		return err
	}
	if err := s.ensureAdminRemains(ctx, m); err != nil {
		return err
	}
	if err := s.memberships.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberRemoved,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       userID,
	})
	return nil
}

// ListMembers returns all memberships of an organization.
func (s *Service) ListMembers(ctx context.Context, organizationID string) ([]*Membership, error) {
	return s.memberships.List(ctx, organizationID)
}

func (s *Service) assignableRole(ctx context.Context, organizationID, roleID string) (*Role, error) {
	if roleID == "" {
		return s.defaultRole(ctx, organizationID)
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.OrganizationID != organizationID {
		return nil, Deny(KindCrossOrganizationReference, "")
	}
	if role.IsUnauthenticated() {
		return nil, ErrRoleNotAssignable
	}
	return role, nil
}

func (s *Service) defaultRole(ctx context.Context, organizationID string) (*Role, error) {
	roles, err := s.roles.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.IsDefault {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: organization has no default role", ErrRoleNotFound)
}

// ensureAdminRemains refuses to move the last Admin member out of the role.
func (s *Service) ensureAdminRemains(ctx context.Context, m *Membership) error {
	role, err := s.RoleOf(ctx, m)
	if err != nil {
		return err
	}
	if !role.IsAdmin() {
		return nil
	}
	n, err := s.memberships.CountByRole(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
