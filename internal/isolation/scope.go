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

// Package isolation carries the per-request organization scope down to the
// data stores and checks that the database enforces it.
package isolation

import (
	"context"
	"errors"
)

var (
	// ErrNoScope is returned by stores asked to touch scoped rows without a
	// bound organization.
	ErrNoScope = errors.New("no organization scope bound to context")

	// ErrScopeViolation is returned when a write would store a row for an
	// organization other than the bound one.
	ErrScopeViolation = errors.New("row outside organization scope")

	// ErrPermissivePolicy marks an isolation policy that would admit rows of
	// other organizations.
	ErrPermissivePolicy = errors.New("permissive isolation policy")
)

// Database setting names bound for every scoped transaction.
const (
	SettingOrganizationID = "app.current_organization_id"
	SettingUserID         = "app.current_user_id"
	SettingRole           = "app.current_role"
)

// Scope is the organization context a data access runs under.
type Scope struct {
	OrganizationID string
	// UserID is empty for anonymous principals.
	UserID   string
	RoleName string
}

type scopeKey struct{}

// WithScope binds scope to ctx. An empty OrganizationID binds nothing.
func WithScope(ctx context.Context, scope Scope) context.Context {
	if scope.OrganizationID == "" {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the bound scope.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// Require returns the bound scope or ErrNoScope.
func Require(ctx context.Context) (Scope, error) {
	s, ok := FromContext(ctx)
	if !ok || s.OrganizationID == "" {
		return Scope{}, ErrNoScope
	}
	return s, nil
}

// Allows is the row predicate: a row is visible only when it belongs to the
// bound organization. Rows without an organization are never visible.
func Allows(ctx context.Context, rowOrganizationID string) bool {
	s, ok := FromContext(ctx)
	if !ok || s.OrganizationID == "" || rowOrganizationID == "" {
		return false
	}
	return s.OrganizationID == rowOrganizationID
}
