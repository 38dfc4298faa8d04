package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
)

func scoped(orgID string) context.Context {
	return isolation.WithScope(context.Background(), isolation.Scope{OrganizationID: orgID})
}

// TestPurpose: Validates that rows of another organization behave as missing.
// Scope: Unit Test
// Security: Row-level isolation in the in-process store
// Expected: Reads return ErrNotFound, lists are filtered, writes outside scope fail.
// Test Case ID: MEM-01
func TestStore_Isolation(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	require.NoError(t, s.Machines().Create(scoped("org-a"), &issue.Machine{ID: "m-a", OrganizationID: "org-a", Name: "Medieval Madness", CreatedAt: now}))
	require.NoError(t, s.Machines().Create(scoped("org-b"), &issue.Machine{ID: "m-b", OrganizationID: "org-b", Name: "Twilight Zone", CreatedAt: now}))
	require.NoError(t, s.Issues().Create(scoped("org-a"), &issue.Issue{ID: "i-a", OrganizationID: "org-a", MachineID: "m-a", Title: "Stuck ball", CreatedAt: now}))

	_, err := s.Machines().GetByID(scoped("org-b"), "m-a")
	assert.ErrorIs(t, err, issue.ErrNotFound)

	_, err = s.Issues().GetByID(scoped("org-b"), "i-a")
	assert.ErrorIs(t, err, issue.ErrNotFound)

	list, err := s.Machines().List(scoped("org-b"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m-b", list[0].ID)

	assert.ErrorIs(t, s.Issues().Delete(scoped("org-b"), "i-a"), issue.ErrNotFound)

	err = s.Machines().Create(scoped("org-a"), &issue.Machine{ID: "m-x", OrganizationID: "org-b"})
	assert.ErrorIs(t, err, isolation.ErrScopeViolation)

	// Issue against a machine of another organization.
	err = s.Issues().Create(scoped("org-a"), &issue.Issue{ID: "i-x", OrganizationID: "org-a", MachineID: "m-b"})
	assert.ErrorIs(t, err, isolation.ErrScopeViolation)
}

// TestPurpose: Validates that scoped access without a bound scope is refused.
// Scope: Unit Test
// Security: Deny by default
// Expected: Lists fail with ErrNoScope, reads see nothing.
// Test Case ID: MEM-02
func TestStore_NoScope(t *testing.T) {
	s := New()
	require.NoError(t, s.Machines().Create(scoped("org-a"), &issue.Machine{ID: "m-a", OrganizationID: "org-a"}))

	_, err := s.Machines().List(context.Background())
	assert.ErrorIs(t, err, isolation.ErrNoScope)

	_, err = s.Machines().GetByID(context.Background(), "m-a")
	assert.ErrorIs(t, err, issue.ErrNotFound)

	err = s.Machines().Create(context.Background(), &issue.Machine{ID: "m-b", OrganizationID: "org-a"})
	assert.ErrorIs(t, err, isolation.ErrNoScope)
}

// TestPurpose: Validates the ownership locator across isolation.
// Scope: Unit Test
// Expected: Owning organization is reported regardless of scope; unknown IDs are ErrNotFound.
// Test Case ID: MEM-03
func TestLocator(t *testing.T) {
	s := New()
	require.NoError(t, s.Machines().Create(scoped("org-b"), &issue.Machine{ID: "m-b", OrganizationID: "org-b"}))

	owner, err := s.Locator().OrganizationOf(scoped("org-a"), issue.KindMachine, "m-b")
	require.NoError(t, err)
	assert.Equal(t, "org-b", owner)

	_, err = s.Locator().OrganizationOf(scoped("org-a"), issue.KindIssue, "m-b")
	assert.ErrorIs(t, err, issue.ErrNotFound)
}

func TestRoleRepository_DeleteReassigns(t *testing.T) {
	s := New()
	ctx := scoped("org-a")
	require.NoError(t, s.Roles().Create(ctx, &authz.Role{ID: "r1", OrganizationID: "org-a", Name: "Old"}))
	require.NoError(t, s.Roles().Create(ctx, &authz.Role{ID: "r2", OrganizationID: "org-a", Name: "New"}))
	require.NoError(t, s.Memberships().Create(ctx, &authz.Membership{ID: "m1", UserID: "u1", OrganizationID: "org-a", RoleID: "r1"}))

	_, err := s.Roles().Delete(ctx, "r1", "")
	require.ErrorIs(t, err, authz.ErrRoleHasMembers)

	moved, err := s.Roles().Delete(ctx, "r1", "r2")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	m, err := s.Memberships().Get(ctx, "u1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, "r2", m.RoleID)

	err = s.Roles().Create(ctx, &authz.Role{ID: "r3", OrganizationID: "org-a", Name: "new"})
	assert.ErrorIs(t, err, authz.ErrRoleAlreadyExists)
}

func TestRepositories_ReturnCopies(t *testing.T) {
	s := New()
	ctx := scoped("org-a")
	require.NoError(t, s.Roles().Create(ctx, &authz.Role{ID: "r1", OrganizationID: "org-a", Name: "Tech", Permissions: []string{"issue:view"}}))

	r, err := s.Roles().GetByID(ctx, "r1")
	require.NoError(t, err)
	r.Permissions[0] = "role:manage"

	again, err := s.Roles().GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"issue:view"}, again.Permissions)
}

func TestOrganizationAndUserRepositories(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Organizations().Create(ctx, &organization.Organization{ID: "o1", Subdomain: "alpha"}))
	assert.ErrorIs(t, s.Organizations().Create(ctx, &organization.Organization{ID: "o2", Subdomain: "alpha"}), organization.ErrSubdomainTaken)

	o, err := s.Organizations().GetBySubdomain(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	users := s.Users()
	require.NoError(t, users.Create(ctx, &identity.User{ID: "u1", Email: "a@example.com"}, &identity.Credentials{UserID: "u1", PasswordHash: "h"}))
	assert.ErrorIs(t, users.Create(ctx, &identity.User{ID: "u2", Email: "a@example.com"}, nil), identity.ErrUserAlreadyExists)

	until := time.Now().Add(time.Minute)
	require.NoError(t, users.UpdateLockout(ctx, "u1", 3, &until))
	u, err := users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, u.FailedLoginAttempts)

	creds, err := users.GetCredentials(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h", creds.PasswordHash)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
