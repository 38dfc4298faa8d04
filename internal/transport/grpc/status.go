package grpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
)

// errorDomain is the ErrorInfo domain of every status this package returns.
const errorDomain = "pinpoint"

var kindCodes = map[authz.Kind]codes.Code{
	authz.KindUnauthenticated:            codes.Unauthenticated,
	authz.KindMissingOrganizationContext: codes.InvalidArgument,
	authz.KindNotAMember:                 codes.PermissionDenied,
	authz.KindPermissionDenied:           codes.PermissionDenied,
	authz.KindCrossOrganizationReference: codes.FailedPrecondition,
	authz.KindOrganizationNotFound:       codes.NotFound,
	authz.KindUnknownTemplate:            codes.NotFound,
	authz.KindNotFound:                   codes.NotFound,
	authz.KindInternal:                   codes.Internal,
}

// CodeFor returns the gRPC code of an authorization kind.
func CodeFor(kind authz.Kind) codes.Code {
	if c, ok := kindCodes[kind]; ok {
		return c
	}
	return codes.Internal
}

// Status converts err into a gRPC status error. Authorization failures
// carry an ErrorInfo whose reason is the kind; a missing permission is in
// its metadata under required_permission.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var structured *authz.Error
	if !errors.As(err, &structured) {
		for _, sentinel := range []error{issue.ErrInvalidInput, issue.ErrAssigneeNotMember} {
			if errors.Is(err, sentinel) {
				return status.Error(codes.InvalidArgument, sentinel.Error())
			}
		}
	}

	e := authz.Classify(err)
	msg := e.Message
	if msg == "" {
		msg = authz.SafeMessage(e.Kind)
	}
	st := status.New(CodeFor(e.Kind), msg)

	info := &errdetails.ErrorInfo{Reason: string(e.Kind), Domain: errorDomain}
	if e.Kind == authz.KindPermissionDenied && e.Permission != "" {
		info.Metadata = map[string]string{"required_permission": e.Permission}
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}
