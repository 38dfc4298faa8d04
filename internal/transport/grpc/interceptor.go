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

package grpc

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
)

// Rule is the gate of one gRPC method.
type Rule struct {
	Permission string
	Anonymous  bool
}

// excluded method prefixes that skip authorization
var exemptPrefixes = []string{
	"/grpc.health.v1.Health/",
}

func exempt(fullMethod string) bool {
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

// Authorizer runs the gate mapped to each method. Methods without a rule
// are rejected.
type Authorizer struct {
	sessions       *session.Manager
	selectorHeader string
	gates          map[string]*authz.Gate
}

// NewAuthorizer registers a gate for every rule. It panics on unknown
// permissions, like Engine.Require.
func NewAuthorizer(engine *authz.Engine, sessions *session.Manager, selectorHeader string, rules map[string]Rule) *Authorizer {
	if selectorHeader == "" {
		selectorHeader = "X-Organization"
	}
	a := &Authorizer{
		sessions:       sessions,
		selectorHeader: strings.ToLower(selectorHeader),
		gates:          make(map[string]*authz.Gate, len(rules)),
	}
	for method, rule := range rules {
		var opts []authz.GateOption
		if rule.Anonymous {
			opts = append(opts, authz.AllowAnonymous())
		}
		a.gates[method] = engine.Require(rule.Permission, opts...)
	}
	return a
}

// UnaryInterceptor authorizes unary calls
func (a *Authorizer) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if exempt(info.FullMethod) {
			return handler(ctx, req)
		}

		gate, ok := a.gates[info.FullMethod]
		if !ok {
			slog.WarnContext(ctx, "grpc method has no gate", logger.Operation(info.FullMethod))
			return nil, status.Error(codes.PermissionDenied, "method is not authorized")
		}

		areq, err := a.request(ctx)
		if err != nil {
			return nil, err
		}
		authorized, _, err := gate.Authorize(organization.WithMemo(ctx), areq)
		if err != nil {
			return nil, Status(err)
		}
		return handler(authorized, req)
	}
}

// request builds the gate input from call metadata. A call without an
// authorization header is anonymous; a malformed or invalid token fails.
func (a *Authorizer) request(ctx context.Context) (authz.Request, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	req := authz.Request{
		Signals: organization.Signals{
			Host:     first(md, ":authority"),
			Selector: strings.TrimSpace(first(md, a.selectorHeader)),
		},
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		req.IPAddress = p.Addr.String()
		if host, _, err := net.SplitHostPort(req.IPAddress); err == nil {
			req.IPAddress = host
		}
	}

	if len(md.Get("authorization")) == 0 {
		return req, nil
	}
	token, err := grpcauth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return req, err
	}
	sess, err := a.sessions.Verify(token)
	if err != nil {
		return req, status.Error(codes.Unauthenticated, "invalid session token")
	}
	req.Session = sess
	return req, nil
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// LoggingUnaryInterceptor logs every call except health checks
func LoggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if exempt(info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "grpc_request",
			logger.Operation(info.FullMethod),
			logger.String("code", code.String()),
			logger.Duration(time.Since(start).Milliseconds()),
		)
		return resp, err
	}
}
