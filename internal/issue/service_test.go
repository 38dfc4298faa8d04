package issue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/store/memory"
)

type env struct {
	roles  *authz.Service
	engine *authz.Engine
	issues *issue.Service
	alpha  *organization.Organization
	beta   *organization.Organization
}

func setup(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	roles := authz.NewService(store.Roles(), store.Memberships(), rbac.Default(), audit.Nop{})
	orgs := organization.NewService(store.Organizations(), roles, audit.Nop{})
	resolver := organization.NewResolver(store.Organizations(), organization.ResolverConfig{BaseDomain: "pinpoint.test"})

	ctx := context.Background()
	alpha, err := orgs.CreateOrganization(ctx, "alpha", "Alpha", "")
	require.NoError(t, err)
	beta, err := orgs.CreateOrganization(ctx, "beta", "Beta", "")
	require.NoError(t, err)

	return &env{
		roles:  roles,
		engine: authz.NewEngine(resolver, roles),
		issues: issue.NewService(store.Machines(), store.Issues(), store.Locator(), roles, audit.Nop{}),
		alpha:  alpha,
		beta:   beta,
	}
}

func (e *env) join(t *testing.T, org *organization.Organization, userID, roleName string) {
	t.Helper()
	ctx := isolation.WithScope(context.Background(), isolation.Scope{OrganizationID: org.ID})
	role, err := e.roles.ListRoles(ctx, org.ID)
	require.NoError(t, err)
	for _, r := range role {
		if r.Name == roleName {
			_, err := e.roles.AddMember(ctx, org.ID, userID, r.ID, "")
			require.NoError(t, err)
			return
		}
	}
	t.Fatalf("no role %s", roleName)
}

// as authorizes userID (or an anonymous visitor when empty) for permission in org.
func (e *env) as(t *testing.T, org *organization.Organization, userID, permission string, anonymous bool) context.Context {
	t.Helper()
	req := authz.Request{Signals: organization.Signals{Host: org.Subdomain + ".pinpoint.test"}}
	if userID != "" {
		req.Session = &session.Session{UserID: userID, OrganizationID: org.ID}
	}
	var opts []authz.GateOption
	if anonymous {
		opts = append(opts, authz.AllowAnonymous())
	}
	ctx, _, err := e.engine.Require(permission, opts...).Authorize(context.Background(), req)
	require.NoError(t, err)
	return ctx
}

func (e *env) machine(t *testing.T, org *organization.Organization, admin string) *issue.Machine {
	t.Helper()
	m, err := e.issues.CreateMachine(e.as(t, org, admin, rbac.PermMachineCreate, false), "Attack from Mars", "Back wall")
	require.NoError(t, err)
	return m
}

// TestPurpose: Validates the anonymous report path.
// Scope: Unit Test
// Security: Anonymous reports are scoped to the visited organization and have no creator
// Expected: Issue created with nil CreatedBy; cross-organization machine yields CrossOrganizationReference.
// Test Case ID: ISS-01
func TestReportIssue_Anonymous(t *testing.T) {
	e := setup(t)
	e.join(t, e.alpha, "admin-a", rbac.TemplateAdmin)
	e.join(t, e.beta, "admin-b", rbac.TemplateAdmin)
	mA := e.machine(t, e.alpha, "admin-a")
	mB := e.machine(t, e.beta, "admin-b")

	ctx := e.as(t, e.alpha, "", rbac.PermIssueCreate, true)
	i, err := e.issues.ReportIssue(ctx, issue.ReportInput{MachineID: mA.ID, Title: "Left flipper weak", ReporterEmail: "visitor@example.com"})
	require.NoError(t, err)
	assert.Nil(t, i.CreatedBy)
	assert.True(t, i.Anonymous())
	assert.Equal(t, e.alpha.ID, i.OrganizationID)
	assert.Equal(t, issue.StatusNew, i.Status)

	_, err = e.issues.ReportIssue(ctx, issue.ReportInput{MachineID: mB.ID, Title: "Wrong place"})
	assert.ErrorIs(t, err, authz.ErrCrossOrganizationReference)

	_, err = e.issues.ReportIssue(ctx, issue.ReportInput{MachineID: "missing", Title: "Ghost"})
	assert.ErrorIs(t, err, authz.ErrNotFound)

	// Unauthenticated does not hold attachment:create by default.
	_, err = e.issues.ReportIssue(ctx, issue.ReportInput{MachineID: mA.ID, Title: "Photo", Attachments: []string{"a.jpg"}})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	_, err = e.issues.UpdateIssue(ctx, i.ID, issue.Patch{})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

// TestPurpose: Validates that another organization's admin cannot touch an issue.
// Scope: Unit Test
// Security: Admin of org B has no rights in org A
// Expected: NotFound for updates and deletes through B's context.
// Test Case ID: ISS-02
func TestUpdateIssue_OtherOrganization(t *testing.T) {
	e := setup(t)
	e.join(t, e.alpha, "admin-a", rbac.TemplateAdmin)
	e.join(t, e.beta, "admin-b", rbac.TemplateAdmin)
	m := e.machine(t, e.alpha, "admin-a")

	i, err := e.issues.ReportIssue(e.as(t, e.alpha, "admin-a", rbac.PermIssueCreate, false), issue.ReportInput{MachineID: m.ID, Title: "Drop target stuck"})
	require.NoError(t, err)
	require.NotNil(t, i.CreatedBy)
	assert.Equal(t, "admin-a", *i.CreatedBy)

	title := "hijacked"
	_, err = e.issues.UpdateIssue(e.as(t, e.beta, "admin-b", rbac.PermIssueEdit, false), i.ID, issue.Patch{Title: &title})
	assert.ErrorIs(t, err, authz.ErrNotFound)

	err = e.issues.DeleteIssue(e.as(t, e.beta, "admin-b", rbac.PermIssueDelete, false), i.ID)
	assert.ErrorIs(t, err, authz.ErrNotFound)

	got, err := e.issues.GetIssue(e.as(t, e.alpha, "admin-a", rbac.PermIssueView, false), i.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drop target stuck", got.Title)
}

// TestPurpose: Validates assignment rules on issue updates.
// Scope: Unit Test
// Security: Assignees must be members; assignment needs issue:assign
// Expected: Technicians may assign members; non-members are rejected; Members without issue:edit are denied.
// Test Case ID: ISS-03
func TestUpdateIssue_Assignment(t *testing.T) {
	e := setup(t)
	e.join(t, e.alpha, "admin-a", rbac.TemplateAdmin)
	e.join(t, e.alpha, "tech", rbac.TemplateTechnician)
	e.join(t, e.alpha, "member", rbac.TemplateMember)
	m := e.machine(t, e.alpha, "admin-a")

	i, err := e.issues.ReportIssue(e.as(t, e.alpha, "member", rbac.PermIssueCreate, false), issue.ReportInput{MachineID: m.ID, Title: "Spinner loose", Severity: issue.SeverityMinor})
	require.NoError(t, err)

	techCtx := e.as(t, e.alpha, "tech", rbac.PermIssueEdit, false)
	assignee := "member"
	status := issue.StatusInProgress
	updated, err := e.issues.UpdateIssue(techCtx, i.ID, issue.Patch{AssignedTo: &assignee, Status: &status})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "member", *updated.AssignedTo)
	assert.Equal(t, issue.StatusInProgress, updated.Status)

	stranger := "stranger"
	_, err = e.issues.UpdateIssue(techCtx, i.ID, issue.Patch{AssignedTo: &stranger})
	assert.ErrorIs(t, err, issue.ErrAssigneeNotMember)

	bad := issue.Severity("catastrophic")
	_, err = e.issues.UpdateIssue(techCtx, i.ID, issue.Patch{Severity: &bad})
	assert.ErrorIs(t, err, issue.ErrInvalidInput)

	memberCtx := e.as(t, e.alpha, "member", rbac.PermIssueView, false)
	_, err = e.issues.UpdateIssue(memberCtx, i.ID, issue.Patch{Status: &status})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	list, err := e.issues.ListIssues(memberCtx, issue.Filter{Status: issue.StatusInProgress})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOperationsRequireAuthorization(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	scoped := isolation.WithScope(ctx, isolation.Scope{OrganizationID: e.alpha.ID})

	calls := map[string]func(context.Context) error{
		"ReportIssue": func(ctx context.Context) error {
			_, err := e.issues.ReportIssue(ctx, issue.ReportInput{Title: "x"})
			return err
		},
		"GetMachine": func(ctx context.Context) error {
			_, err := e.issues.GetMachine(ctx, "m1")
			return err
		},
		"ListMachines": func(ctx context.Context) error {
			_, err := e.issues.ListMachines(ctx)
			return err
		},
		"GetIssue": func(ctx context.Context) error {
			_, err := e.issues.GetIssue(ctx, "i1")
			return err
		},
		"ListIssues": func(ctx context.Context) error {
			_, err := e.issues.ListIssues(ctx, issue.Filter{})
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, authz.KindInternal, authz.KindOf(call(ctx)))
			// An isolation scope alone is not an authorization.
			assert.Equal(t, authz.KindInternal, authz.KindOf(call(scoped)))
		})
	}
}

// TestPurpose: Validates what anonymous principals can read about issues.
// Scope: Unit Test
// Security: Visitors never learn who reported, created or works on an issue
// Expected: issue:view is denied by default; once granted, reads come back without people.
// Test Case ID: ISS-04
func TestReadIssues_Anonymous(t *testing.T) {
	e := setup(t)
	e.join(t, e.alpha, "admin-a", rbac.TemplateAdmin)
	e.join(t, e.alpha, "tech", rbac.TemplateTechnician)
	m := e.machine(t, e.alpha, "admin-a")

	reported, err := e.issues.ReportIssue(e.as(t, e.alpha, "", rbac.PermIssueCreate, true),
		issue.ReportInput{MachineID: m.ID, Title: "Tilt bob loose", ReporterEmail: "visitor@example.com"})
	require.NoError(t, err)
	assert.Empty(t, reported.ReporterEmail)

	assignee := "tech"
	_, err = e.issues.UpdateIssue(e.as(t, e.alpha, "admin-a", rbac.PermIssueEdit, false), reported.ID, issue.Patch{AssignedTo: &assignee})
	require.NoError(t, err)

	stored, err := e.issues.GetIssue(e.as(t, e.alpha, "admin-a", rbac.PermIssueView, false), reported.ID)
	require.NoError(t, err)
	assert.Equal(t, "visitor@example.com", stored.ReporterEmail)
	require.NotNil(t, stored.AssignedTo)

	anon := e.as(t, e.alpha, "", rbac.PermMachineView, true)
	_, err = e.issues.ListIssues(anon, issue.Filter{})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	_, err = e.issues.GetIssue(anon, reported.ID)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	adminCtx := isolation.WithScope(context.Background(), isolation.Scope{OrganizationID: e.alpha.ID, RoleName: rbac.TemplateAdmin})
	roles, err := e.roles.ListRoles(adminCtx, e.alpha.ID)
	require.NoError(t, err)
	for _, r := range roles {
		if r.IsUnauthenticated() {
			_, err := e.roles.UpdateRolePermissions(adminCtx, e.alpha.ID, r.ID, append(r.Permissions, rbac.PermIssueView), "admin-a")
			require.NoError(t, err)
		}
	}

	anon = e.as(t, e.alpha, "", rbac.PermIssueView, true)
	list, err := e.issues.ListIssues(anon, issue.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	got, err := e.issues.GetIssue(anon, reported.ID)
	require.NoError(t, err)
	for _, i := range []*issue.Issue{list[0], got} {
		assert.Empty(t, i.ReporterEmail)
		assert.Nil(t, i.CreatedBy)
		assert.Nil(t, i.AssignedTo)
		assert.Equal(t, "Tilt bob loose", i.Title)
	}
}
