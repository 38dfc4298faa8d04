package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/store/memory"
)

const bufSize = 1024 * 1024

type fixture struct {
	conn       *grpc.ClientConn
	authorizer *Authorizer
	sessions   *session.Manager
	roles      *authz.Service
	store      *memory.Store
	alpha      *organization.Organization
}

func startBufGRPC(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	roles := authz.NewService(store.Roles(), store.Memberships(), rbac.Default(), audit.Nop{})
	orgs := organization.NewService(store.Organizations(), roles, audit.Nop{})
	resolver := organization.NewResolver(store.Organizations(), organization.ResolverConfig{BaseDomain: "pinpoint.test"})
	sessions, err := session.NewManager(session.Config{Secret: []byte(strings.Repeat("g", 32))})
	require.NoError(t, err)

	alpha, err := orgs.CreateOrganization(context.Background(), "alpha", "Alpha", "")
	require.NoError(t, err)

	authorizer := NewAuthorizer(authz.NewEngine(resolver, roles), sessions, "", DefaultRules())
	issues := issue.NewService(store.Machines(), store.Issues(), store.Locator(), roles, audit.Nop{})
	srv := NewServer(authorizer, NewService(issues))

	listener := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(listener); err != nil {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = listener.Close()
	})
	return &fixture{conn: conn, authorizer: authorizer, sessions: sessions, roles: roles, store: store, alpha: alpha}
}

func (f *fixture) admin(t *testing.T) string {
	t.Helper()
	ctx := isolation.WithScope(context.Background(), isolation.Scope{OrganizationID: f.alpha.ID})
	list, err := f.roles.ListRoles(ctx, f.alpha.ID)
	require.NoError(t, err)
	for _, r := range list {
		if r.Name == rbac.TemplateAdmin {
			_, err := f.roles.AddMember(ctx, f.alpha.ID, "user-admin", r.ID, "")
			require.NoError(t, err)
		}
	}
	token, _, err := f.sessions.Issue("user-admin", f.alpha.ID)
	require.NoError(t, err)
	return token
}

func (f *fixture) machine(t *testing.T) string {
	t.Helper()
	m := &issue.Machine{ID: "machine-1", OrganizationID: f.alpha.ID, Name: "Attack from Mars", CreatedAt: time.Now()}
	ctx := isolation.WithScope(context.Background(), isolation.Scope{OrganizationID: f.alpha.ID})
	require.NoError(t, f.store.Machines().Create(ctx, m))
	return m.ID
}

func callCtx(t *testing.T, kv ...string) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func errorInfo(t *testing.T, err error) *errdetails.ErrorInfo {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	t.Fatalf("no ErrorInfo in %v", err)
	return nil
}

// TestPurpose: Validates that a member's call is authorized and sees its AuthorizationContext.
// Scope: Integration Test (gRPC over bufconn)
// Security: Bearer token and selector resolve to the member's organization
// Expected: WhoAmI returns the Admin role for alpha.
// Test Case ID: GRPC-01
func TestGRPC_WhoAmI_Member(t *testing.T) {
	f := startBufGRPC(t)
	token := f.admin(t)

	out := new(structpb.Struct)
	err := f.conn.Invoke(callCtx(t, "authorization", "Bearer "+token, "x-organization", "alpha"),
		MethodWhoAmI, &emptypb.Empty{}, out)
	require.NoError(t, err)
	assert.Equal(t, f.alpha.ID, out.GetFields()["organization_id"].GetStringValue())
	assert.Equal(t, rbac.TemplateAdmin, out.GetFields()["role"].GetStringValue())
	assert.False(t, out.GetFields()["anonymous"].GetBoolValue())
}

// TestPurpose: Validates the anonymous path over gRPC.
// Scope: Integration Test (gRPC over bufconn)
// Security: Anonymous callers get only Unauthenticated permissions, no attachments and no issue list
// Expected: WhoAmI is anonymous; ReportIssue succeeds without attachments and is PermissionDenied with them; ListIssues needs issue:view.
// Test Case ID: GRPC-02
func TestGRPC_AnonymousReport(t *testing.T) {
	f := startBufGRPC(t)
	machineID := f.machine(t)
	ctx := callCtx(t, "x-organization", "alpha")

	who := new(structpb.Struct)
	require.NoError(t, f.conn.Invoke(ctx, MethodWhoAmI, &emptypb.Empty{}, who))
	assert.True(t, who.GetFields()["anonymous"].GetBoolValue())

	in, err := structpb.NewStruct(map[string]any{"machine_id": machineID, "title": "Shooter lane jam"})
	require.NoError(t, err)
	created := new(structpb.Struct)
	require.NoError(t, f.conn.Invoke(ctx, MethodReportIssue, in, created))
	assert.Equal(t, "Shooter lane jam", created.GetFields()["title"].GetStringValue())
	assert.NotContains(t, created.GetFields(), "assigned_to")

	withAttachment, err := structpb.NewStruct(map[string]any{
		"machine_id":  machineID,
		"title":       "Photo",
		"attachments": []any{"https://img.example/a.png"},
	})
	require.NoError(t, err)
	err = f.conn.Invoke(ctx, MethodReportIssue, withAttachment, new(structpb.Struct))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	info := errorInfo(t, err)
	assert.Equal(t, string(authz.KindPermissionDenied), info.GetReason())
	assert.Equal(t, rbac.PermAttachmentCreate, info.GetMetadata()["required_permission"])

	err = f.conn.Invoke(ctx, MethodListIssues, &structpb.Struct{}, new(structpb.Struct))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, rbac.PermIssueView, errorInfo(t, err).GetMetadata()["required_permission"])
}

// TestPurpose: Validates gRPC codes for authorization failures.
// Scope: Integration Test (gRPC over bufconn)
// Expected: InvalidArgument without organization, NotFound for unknown selector, Unauthenticated for bad tokens.
// Test Case ID: GRPC-03
func TestGRPC_FailureCodes(t *testing.T) {
	f := startBufGRPC(t)

	err := f.conn.Invoke(callCtx(t), MethodWhoAmI, &emptypb.Empty{}, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, string(authz.KindMissingOrganizationContext), errorInfo(t, err).GetReason())

	err = f.conn.Invoke(callCtx(t, "x-organization", "nowhere"), MethodWhoAmI, &emptypb.Empty{}, new(structpb.Struct))
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = f.conn.Invoke(callCtx(t, "authorization", "Bearer garbage", "x-organization", "alpha"),
		MethodWhoAmI, &emptypb.Empty{}, new(structpb.Struct))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// Health checks bypass authorization.
	resp, err := healthpb.NewHealthClient(f.conn).Check(callCtx(t), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

// TestPurpose: Validates that methods without a gate are rejected.
// Scope: Unit Test
// Security: New RPCs fail closed until they are mapped to a permission
// Expected: PermissionDenied and the handler never runs.
// Test Case ID: GRPC-04
func TestAuthorizer_UnmappedMethodFailsClosed(t *testing.T) {
	f := startBufGRPC(t)

	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	}
	_, err := f.authorizer.UnaryInterceptor()(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/pinpoint.v1.IssueService/DeleteIssue"}, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.False(t, called)
}

func TestStatus_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{authz.Deny(authz.KindUnauthenticated, rbac.PermIssueEdit), codes.Unauthenticated},
		{authz.Deny(authz.KindNotAMember, rbac.PermIssueEdit), codes.PermissionDenied},
		{authz.Deny(authz.KindCrossOrganizationReference, ""), codes.FailedPrecondition},
		{organization.ErrOrganizationNotFound, codes.NotFound},
		{issue.ErrInvalidInput, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(Status(tt.err)), tt.err.Error())
	}
	assert.NoError(t, Status(nil))

	st, _ := status.FromError(Status(errors.New("connection refused by 10.0.0.5")))
	assert.NotContains(t, st.Message(), "10.0.0.5")

	st, _ = status.FromError(Status(errors.Join(issue.ErrInvalidInput, errors.New("connection refused by 10.0.0.5"))))
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, issue.ErrInvalidInput.Error(), st.Message())
}

// TestPurpose: Validates the two renderings of an issue.
// Scope: Unit Test
// Security: Anonymous callers never receive the assignee
// Expected: The public form has neither assigned_to nor anonymous; the member form has both.
// Test Case ID: GRPC-05
func TestIssueFields(t *testing.T) {
	creator, assignee := "u-1", "u-2"
	i := &issue.Issue{ID: "i1", Title: "Outlane post loose", CreatedBy: &creator, AssignedTo: &assignee, ReporterEmail: "x@example.com"}

	public := issueFields(i, true)
	assert.NotContains(t, public, "assigned_to")
	assert.NotContains(t, public, "anonymous")
	assert.Equal(t, "Outlane post loose", public["title"])

	member := issueFields(i, false)
	assert.Equal(t, "u-2", member["assigned_to"])
	assert.Equal(t, false, member["anonymous"])
	assert.NotContains(t, member, "reporter_email")
}
