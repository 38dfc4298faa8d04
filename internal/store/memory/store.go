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

// Package memory is an in-process store. Scoped repositories apply the same
// organization predicate the database policies apply, so behaviour under
// isolation matches the Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
)

// Store holds all rows behind one lock.
type Store struct {
	mu          sync.RWMutex
	orgs        map[string]organization.Organization
	roles       map[string]authz.Role
	memberships map[string]authz.Membership
	users       map[string]identity.User
	credentials map[string]identity.Credentials
	machines    map[string]issue.Machine
	issues      map[string]issue.Issue
}

func New() *Store {
	return &Store{
		orgs:        make(map[string]organization.Organization),
		roles:       make(map[string]authz.Role),
		memberships: make(map[string]authz.Membership),
		users:       make(map[string]identity.User),
		credentials: make(map[string]identity.Credentials),
		machines:    make(map[string]issue.Machine),
		issues:      make(map[string]issue.Issue),
	}
}

func (s *Store) Organizations() *OrganizationRepository { return &OrganizationRepository{s: s} }
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }
func (s *Store) Memberships() *MembershipRepository { return &MembershipRepository{s: s} }
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Machines() *MachineRepository { return &MachineRepository{s: s} }
func (s *Store) Issues() *IssueRepository { return &IssueRepository{s: s} }
func (s *Store) Locator() *Locator { return &Locator{s: s} }

// writable checks a row against the bound scope, like WITH CHECK.
func writable(ctx context.Context, organizationID string) error {
	if _, err := isolation.Require(ctx); err != nil {
		return err
	}
	if !isolation.Allows(ctx, organizationID) {
		return isolation.ErrScopeViolation
	}
	return nil
}

// -----------------------------------------------------------------------------
// Organizations (not isolated)
// -----------------------------------------------------------------------------

type OrganizationRepository struct{ s *Store }

var _ organization.Repository = (*OrganizationRepository)(nil)

func (r *OrganizationRepository) Create(_ context.Context, org *organization.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if o.Subdomain == org.Subdomain {
			return organization.ErrSubdomainTaken
		}
	}
	r.s.orgs[org.ID] = *org
	return nil
}

func (r *OrganizationRepository) GetByID(_ context.Context, id string) (*organization.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, organization.ErrOrganizationNotFound
	}
	return &o, nil
}

func (r *OrganizationRepository) GetBySubdomain(_ context.Context, subdomain string) (*organization.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orgs {
		if o.Subdomain == subdomain {
			return &o, nil
		}
	}
	return nil, organization.ErrOrganizationNotFound
}

func (r *OrganizationRepository) List(_ context.Context, limit, offset int) ([]*organization.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*organization.Organization, 0, len(r.s.orgs))
	for _, o := range r.s.orgs {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subdomain < out[j].Subdomain })
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// -----------------------------------------------------------------------------
// Roles
// -----------------------------------------------------------------------------

type RoleRepository struct{ s *Store }

var _ authz.RoleRepository = (*RoleRepository)(nil)

func copyRole(r authz.Role) *authz.Role {
	r.Permissions = append([]string(nil), r.Permissions...)
	return &r
}

func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	if err := writable(ctx, role.OrganizationID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.OrganizationID == role.OrganizationID && strings.EqualFold(existing.Name, role.Name) {
			return authz.ErrRoleAlreadyExists
		}
	}
	r.s.roles[role.ID] = *copyRole(*role)
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok || !isolation.Allows(ctx, role.OrganizationID) {
		return nil, authz.ErrRoleNotFound
	}
	return copyRole(role), nil
}

func (r *RoleRepository) GetByName(ctx context.Context, organizationID, name string) (*authz.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.OrganizationID == organizationID && strings.EqualFold(role.Name, name) && isolation.Allows(ctx, role.OrganizationID) {
			return copyRole(role), nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (r *RoleRepository) List(ctx context.Context, organizationID string) ([]*authz.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*authz.Role
	for _, role := range r.s.roles {
		if role.OrganizationID == organizationID && isolation.Allows(ctx, role.OrganizationID) {
			out = append(out, copyRole(role))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *RoleRepository) update(ctx context.Context, id string, fn func(*authz.Role)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok || !isolation.Allows(ctx, role.OrganizationID) {
		return authz.ErrRoleNotFound
	}
	fn(&role)
	role.UpdatedAt = time.Now().UTC()
	r.s.roles[id] = role
	return nil
}

func (r *RoleRepository) Rename(ctx context.Context, id, name string) error {
	return r.update(ctx, id, func(role *authz.Role) { role.Name = name })
}

func (r *RoleRepository) SetPermissions(ctx context.Context, id string, permissions []string) error {
	return r.update(ctx, id, func(role *authz.Role) {
		role.Permissions = append([]string(nil), permissions...)
	})
}

func (r *RoleRepository) SetDefault(ctx context.Context, organizationID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	target, ok := r.s.roles[id]
	if !ok || target.OrganizationID != organizationID || !isolation.Allows(ctx, organizationID) {
		return authz.ErrRoleNotFound
	}
	for rid, role := range r.s.roles {
		if role.OrganizationID == organizationID {
			role.IsDefault = rid == id
			r.s.roles[rid] = role
		}
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id, reassignTo string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok || !isolation.Allows(ctx, role.OrganizationID) {
		return 0, authz.ErrRoleNotFound
	}
	if reassignTo != "" {
		target, ok := r.s.roles[reassignTo]
		if !ok || target.OrganizationID != role.OrganizationID {
			return 0, authz.ErrInvalidReassignment
		}
	}

	var affected []string
	for mid, m := range r.s.memberships {
		if m.RoleID == id {
			affected = append(affected, mid)
		}
	}
	if len(affected) > 0 && reassignTo == "" {
		return 0, authz.ErrRoleHasMembers
	}
	now := time.Now().UTC()
	for _, mid := range affected {
		m := r.s.memberships[mid]
		m.RoleID = reassignTo
		m.UpdatedAt = now
		r.s.memberships[mid] = m
	}
	delete(r.s.roles, id)
	return len(affected), nil
}

// -----------------------------------------------------------------------------
// Memberships
// -----------------------------------------------------------------------------

type MembershipRepository struct{ s *Store }

var _ authz.MembershipRepository = (*MembershipRepository)(nil)

func (r *MembershipRepository) Create(ctx context.Context, m *authz.Membership) error {
	if err := writable(ctx, m.OrganizationID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[m.RoleID]
	if !ok || role.OrganizationID != m.OrganizationID {
		return authz.ErrRoleNotFound
	}
	for _, existing := range r.s.memberships {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return authz.ErrMembershipExists
		}
	}
	r.s.memberships[m.ID] = *m
	return nil
}

func (r *MembershipRepository) Get(ctx context.Context, userID, organizationID string) (*authz.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.memberships {
		if m.UserID == userID && m.OrganizationID == organizationID && isolation.Allows(ctx, m.OrganizationID) {
			return &m, nil
		}
	}
	return nil, authz.ErrNoMembership
}

func (r *MembershipRepository) List(ctx context.Context, organizationID string) ([]*authz.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*authz.Membership
	for _, m := range r.s.memberships {
		if m.OrganizationID == organizationID && isolation.Allows(ctx, m.OrganizationID) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MembershipRepository) UpdateRole(ctx context.Context, id, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok || !isolation.Allows(ctx, m.OrganizationID) {
		return authz.ErrNoMembership
	}
	role, ok := r.s.roles[roleID]
	if !ok || role.OrganizationID != m.OrganizationID {
		return authz.ErrRoleNotFound
	}
	m.RoleID = roleID
	m.UpdatedAt = time.Now().UTC()
	r.s.memberships[id] = m
	return nil
}

func (r *MembershipRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok || !isolation.Allows(ctx, m.OrganizationID) {
		return authz.ErrNoMembership
	}
	delete(r.s.memberships, id)
	return nil
}

func (r *MembershipRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, m := range r.s.memberships {
		if m.RoleID == roleID && isolation.Allows(ctx, m.OrganizationID) {
			n++
		}
	}
	return n, nil
}
