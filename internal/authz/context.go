package authz

import (
	"context"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// AuthorizationContext is what a gate resolved for one request. Operations
// read it instead of resolving organization, membership or permissions again.
type AuthorizationContext struct {
	Organization *organization.Organization
	// Membership and Role are nil for anonymous principals.
	Membership *Membership
	Role       *Role
	// UserID is empty for anonymous principals.
	UserID    string
	Anonymous bool
	// Source is the signal the organization was resolved from.
	Source      organization.Source
	permissions rbac.Set
}

// Can reports whether the effective permission set holds permission.
func (a *AuthorizationContext) Can(permission string) bool {
	return a.permissions.Has(permission)
}

// Require returns a PermissionDenied error unless Can(permission).
func (a *AuthorizationContext) Require(permission string) error {
	if !a.Can(permission) {
		return PermissionDenied(permission)
	}
	return nil
}

// Permissions returns a copy of the effective permission set.
func (a *AuthorizationContext) Permissions() rbac.Set {
	return a.permissions.Clone()
}

// OrganizationID returns the resolved organization ID.
func (a *AuthorizationContext) OrganizationID() string {
	return a.Organization.ID
}

// RequireSameOrganization fails with CrossOrganizationReference when a
// referenced resource belongs to another organization. Context is never
// switched to the resource's organization.
func (a *AuthorizationContext) RequireSameOrganization(resourceOrganizationID string) error {
	if resourceOrganizationID != a.Organization.ID {
		return Deny(KindCrossOrganizationReference, "")
	}
	return nil
}

// Scope returns the isolation scope data access must run under.
func (a *AuthorizationContext) Scope() isolation.Scope {
	s := isolation.Scope{OrganizationID: a.Organization.ID, UserID: a.UserID}
	switch {
	case a.Role != nil:
		s.RoleName = a.Role.Name
	case a.Anonymous:
		s.RoleName = rbac.TemplateUnauthenticated
	}
	return s
}

type authorizationKey struct{}

func withAuthorization(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, authorizationKey{}, ac)
}

// FromContext returns the AuthorizationContext attached by a gate.
func FromContext(ctx context.Context) (*AuthorizationContext, bool) {
	ac, ok := ctx.Value(authorizationKey{}).(*AuthorizationContext)
	return ac, ok
}

// Bind attaches ac and its isolation scope to ctx. Gates call it on
// success; background jobs acting for a user call it after authorizing.
func Bind(ctx context.Context, ac *AuthorizationContext) context.Context {
	return isolation.WithScope(withAuthorization(ctx, ac), ac.Scope())
}
