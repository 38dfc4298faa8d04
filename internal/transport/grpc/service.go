package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// Full method names served by this package.
const (
	MethodWhoAmI      = "/pinpoint.v1.AuthorizationService/WhoAmI"
	MethodListIssues  = "/pinpoint.v1.IssueService/ListIssues"
	MethodReportIssue = "/pinpoint.v1.IssueService/ReportIssue"
)

// DefaultRules gates the methods of this package.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		MethodWhoAmI:      {Permission: rbac.PermMachineView, Anonymous: true},
		MethodListIssues:  {Permission: rbac.PermIssueView, Anonymous: true},
		MethodReportIssue: {Permission: rbac.PermIssueCreate, Anonymous: true},
	}
}

// AuthorizationServer reports the caller's effective access.
type AuthorizationServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// IssueServer serves issue reads and reports. Messages are Struct values
// keyed like the JSON API.
type IssueServer interface {
	ListIssues(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportIssue(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Service implements both servers on top of issue.Service.
type Service struct {
	issues *issue.Service
}

func NewService(issues *issue.Service) *Service {
	return &Service{issues: issues}
}

func (s *Service) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ac, ok := authz.FromContext(ctx)
	if !ok {
		return nil, Status(authz.Internal(errors.New("call served without a gate")))
	}
	role := ""
	if ac.Role != nil {
		role = ac.Role.Name
	}
	out, err := structpb.NewStruct(map[string]any{
		"organization_id": ac.Organization.ID,
		"subdomain":       ac.Organization.Subdomain,
		"user_id":         ac.UserID,
		"anonymous":       ac.Anonymous,
		"role":            role,
		"source":          string(ac.Source),
		"permissions":     anySlice(ac.Permissions().Sorted()),
	})
	if err != nil {
		return nil, Status(authz.Internal(err))
	}
	return out, nil
}

func (s *Service) ListIssues(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := issue.Filter{
		MachineID: in.GetFields()["machine_id"].GetStringValue(),
		Status:    issue.Status(in.GetFields()["status"].GetStringValue()),
		Limit:     int(in.GetFields()["limit"].GetNumberValue()),
	}
	issues, err := s.issues.ListIssues(ctx, f)
	if err != nil {
		return nil, Status(err)
	}
	public := anonymous(ctx)
	list := make([]any, 0, len(issues))
	for _, i := range issues {
		list = append(list, issueFields(i, public))
	}
	out, err := structpb.NewStruct(map[string]any{"issues": list})
	if err != nil {
		return nil, Status(authz.Internal(err))
	}
	return out, nil
}

func (s *Service) ReportIssue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	var attachments []string
	for _, v := range fields["attachments"].GetListValue().GetValues() {
		attachments = append(attachments, v.GetStringValue())
	}
	created, err := s.issues.ReportIssue(ctx, issue.ReportInput{
		MachineID:     fields["machine_id"].GetStringValue(),
		Title:         fields["title"].GetStringValue(),
		Description:   fields["description"].GetStringValue(),
		Severity:      issue.Severity(fields["severity"].GetStringValue()),
		ReporterEmail: fields["reporter_email"].GetStringValue(),
		Attachments:   attachments,
	})
	if err != nil {
		return nil, Status(err)
	}
	out, err := structpb.NewStruct(issueFields(created, anonymous(ctx)))
	if err != nil {
		return nil, Status(authz.Internal(err))
	}
	return out, nil
}

func anonymous(ctx context.Context) bool {
	ac, ok := authz.FromContext(ctx)
	return ok && ac.Anonymous
}

// issueFields renders an issue. The public form, served to anonymous
// callers, names no person and does not tell member reports apart.
func issueFields(i *issue.Issue, public bool) map[string]any {
	m := map[string]any{
		"id":              i.ID,
		"organization_id": i.OrganizationID,
		"machine_id":      i.MachineID,
		"title":           i.Title,
		"severity":        string(i.Severity),
		"status":          string(i.Status),
		"created_at":      i.CreatedAt.Format(time.RFC3339),
	}
	if public {
		return m
	}
	m["anonymous"] = i.Anonymous()
	if i.AssignedTo != nil {
		m["assigned_to"] = *i.AssignedTo
	}
	return m
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthorizationServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodWhoAmI}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthorizationServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listIssuesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IssueServer).ListIssues(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListIssues}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IssueServer).ListIssues(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func reportIssueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IssueServer).ReportIssue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReportIssue}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IssueServer).ReportIssue(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var authorizationServiceDesc = grpc.ServiceDesc{
	ServiceName: "pinpoint.v1.AuthorizationService",
	HandlerType: (*AuthorizationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams: []grpc.StreamDesc{},
}

var issueServiceDesc = grpc.ServiceDesc{
	ServiceName: "pinpoint.v1.IssueService",
	HandlerType: (*IssueServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListIssues", Handler: listIssuesHandler},
		{MethodName: "ReportIssue", Handler: reportIssueHandler},
	},
	Streams: []grpc.StreamDesc{},
}
