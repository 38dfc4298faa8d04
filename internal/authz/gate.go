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
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
)

// Stage is the progress of one authorization decision.
type Stage string

const (
	StageUnchecked             Stage = "Unchecked"
	StageAuthenticationChecked Stage = "AuthenticationChecked"
	StageOrganizationResolved  Stage = "OrganizationResolved"
	StageMembershipResolved    Stage = "MembershipResolved"
	StagePermissionGranted     Stage = "PermissionGranted"
	StageDenied                Stage = "Denied"
)

// OrganizationResolver is the part of organization.Resolver gates use.
type OrganizationResolver interface {
	Resolve(ctx context.Context, sig organization.Signals) (organization.Resolution, error)
}

// Request is what a transport knows about the caller. Session is nil for
// anonymous requests. Signals.ClaimedOrganizationID is ignored; the claim
// is always taken from the verified session.
type Request struct {
	Session *session.Session
	Signals organization.Signals
	// IPAddress is recorded on denials.
	IPAddress string
}

// Engine builds and owns the named gates of the application.
type Engine struct {
	resolver    OrganizationResolver
	service     *Service
	catalog     *rbac.Catalog
	auditLogger audit.Logger
	tracer      trace.Tracer
	decisions   metric.Int64Counter

	mu    sync.RWMutex
	gates map[gateKey]*Gate
}

type gateKey struct {
	permission string
	anonymous  bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

func WithMeter(m metric.Meter) EngineOption {
	return func(e *Engine) {
		c, err := m.Int64Counter("pinpoint.authz.decisions",
			metric.WithDescription("Authorization decisions by permission and outcome"))
		if err == nil {
			e.decisions = c
		}
	}
}

func WithAuditLogger(l audit.Logger) EngineOption {
	return func(e *Engine) { e.auditLogger = l }
}

func NewEngine(resolver OrganizationResolver, service *Service, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver:    resolver,
		service:     service,
		catalog:     service.Catalog(),
		auditLogger: audit.Nop{},
		tracer:      otel.Tracer("pinpoint/authz"),
		gates:       make(map[gateKey]*Gate),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GateOption configures a Gate.
type GateOption func(*gateKey)

// AllowAnonymous lets visitors without a session, or signed-in users without
// a membership, pass using the organization's Unauthenticated permissions.
func AllowAnonymous() GateOption {
	return func(k *gateKey) { k.anonymous = true }
}

// Require returns the gate for permission. Gates are registered once and
// shared; asking twice returns the same instance. Unknown permissions, and
// anonymous gates for permissions anonymous visitors can never hold, panic
// so that wiring mistakes fail at startup.
func (e *Engine) Require(permission string, opts ...GateOption) *Gate {
	key := gateKey{permission: permission}
	for _, opt := range opts {
		opt(&key)
	}

	e.mu.RLock()
	g, ok := e.gates[key]
	e.mu.RUnlock()
	if ok {
		return g
	}

	if !e.catalog.Has(permission) {
		panic(fmt.Sprintf("authz: gate for unknown permission %q", permission))
	}
	if key.anonymous && !e.catalog.AnonymousEligible(permission) {
		panic(fmt.Sprintf("authz: permission %q is not anonymous-eligible", permission))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.gates[key]; ok {
		return g
	}
	g = &Gate{engine: e, permission: permission, anonymous: key.anonymous}
	e.gates[key] = g
	return g
}

// Gates returns the registered gates.
func (e *Engine) Gates() []*Gate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Gate, 0, len(e.gates))
	for _, g := range e.gates {
		out = append(out, g)
	}
	return out
}

// Gate enforces authentication, organization context, membership and one
// permission, in that order. It holds no per-request state.
type Gate struct {
	engine     *Engine
	permission string
	anonymous  bool
}

func (g *Gate) Permission() string { return g.permission }

func (g *Gate) Anonymous() bool { return g.anonymous }

func (g *Gate) String() string {
	if g.anonymous {
		return g.permission + " (anonymous)"
	}
	return g.permission
}

// Authorize runs the gate. On success the returned context carries the
// AuthorizationContext and the isolation scope for data access. On failure
// the error is an *Error; the decision is final for the request.
func (g *Gate) Authorize(ctx context.Context, req Request) (context.Context, *AuthorizationContext, error) {
	spanCtx, span := g.engine.tracer.Start(ctx, "authz.Authorize",
		trace.WithAttributes(
			attribute.String("authz.permission", g.permission),
			attribute.Bool("authz.anonymous_eligible", g.anonymous),
		))
	defer span.End()

	ac, stage, err := g.evaluate(spanCtx, req)
	g.record(spanCtx, req, ac, stage, err)

	if err != nil {
		span.SetStatus(codes.Error, string(KindOf(err)))
		return ctx, nil, err
	}
	span.SetAttributes(attribute.String("authz.organization_id", ac.Organization.ID))
	return Bind(ctx, ac), ac, nil
}

func (g *Gate) evaluate(ctx context.Context, req Request) (*AuthorizationContext, Stage, error) {
	sess := req.Session
	if sess == nil && !g.anonymous {
		return nil, StageUnchecked, Deny(KindUnauthenticated, g.permission)
	}
	if sess == nil {
		return g.evaluateAnonymous(ctx, req.Signals, "")
	}

	sig := req.Signals
	sig.ClaimedOrganizationID = sess.OrganizationID
	res, err := g.engine.resolver.Resolve(ctx, sig)
	if err != nil {
		return nil, StageAuthenticationChecked, Classify(err)
	}
	if res.Organization == nil {
		return nil, StageAuthenticationChecked, Deny(KindMissingOrganizationContext, g.permission)
	}
	org := res.Organization

	scoped := isolation.WithScope(ctx, isolation.Scope{OrganizationID: org.ID, UserID: sess.UserID})
	m, err := g.engine.service.FindMembership(scoped, sess.UserID, org.ID)
	if errors.Is(err, ErrNoMembership) {
		if g.anonymous {
			return g.evaluateAnonymous(ctx, req.Signals, sess.UserID)
		}
		return nil, StageOrganizationResolved, Deny(KindNotAMember, g.permission)
	}
	if err != nil {
		return nil, StageOrganizationResolved, Internal(err)
	}

	role, err := g.engine.service.RoleOf(scoped, m)
	if err != nil {
		return nil, StageMembershipResolved, Internal(err)
	}
	perms := g.engine.service.permissionsOf(role)

	ac := &AuthorizationContext{
		Organization: org,
		Membership:   m,
		Role:         role,
		UserID:       sess.UserID,
		Source:       res.Source,
		permissions:  perms,
	}
	if !perms.Has(g.permission) {
		return ac, StageMembershipResolved, PermissionDenied(g.permission)
	}
	return ac, StagePermissionGranted, nil
}

// evaluateAnonymous resolves the organization from request signals only and
// grants the Unauthenticated role's permissions. userID is the signed-in
// non-member, if any, for logging; the context stays anonymous.
func (g *Gate) evaluateAnonymous(ctx context.Context, sig organization.Signals, userID string) (*AuthorizationContext, Stage, error) {
	sig.ClaimedOrganizationID = ""
	res, err := g.engine.resolver.Resolve(ctx, sig)
	if err != nil {
		return nil, StageAuthenticationChecked, Classify(err)
	}
	if res.Organization == nil {
		return nil, StageAuthenticationChecked, Deny(KindMissingOrganizationContext, g.permission)
	}

	scoped := isolation.WithScope(ctx, isolation.Scope{OrganizationID: res.Organization.ID, RoleName: rbac.TemplateUnauthenticated})
	perms, err := g.engine.service.AnonymousPermissions(scoped, res.Organization.ID)
	if err != nil {
		return nil, StageOrganizationResolved, Internal(err)
	}

	ac := &AuthorizationContext{
		Organization: res.Organization,
		Anonymous:    true,
		Source:       res.Source,
		permissions:  perms,
	}
	if !perms.Has(g.permission) {
		return ac, StageOrganizationResolved, PermissionDenied(g.permission)
	}
	return ac, StagePermissionGranted, nil
}

func (g *Gate) record(ctx context.Context, req Request, ac *AuthorizationContext, stage Stage, err error) {
	outcome := "granted"
	kind := ""
	if err != nil {
		outcome = "denied"
		kind = string(KindOf(err))
	}
	if g.engine.decisions != nil {
		g.engine.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("permission", g.permission),
			attribute.String("outcome", outcome),
			attribute.String("kind", kind),
		))
	}
	if err == nil {
		return
	}

	userID := ""
	if req.Session != nil {
		userID = req.Session.UserID
	}
	orgID := ""
	if ac != nil {
		orgID = ac.Organization.ID
	}

	if KindOf(err) == KindInternal {
		slog.ErrorContext(ctx, "authorization failed",
			logger.Permission(g.permission),
			logger.Stage(string(stage)),
			logger.UserID(userID),
			logger.Error(err),
		)
		return
	}

	slog.InfoContext(ctx, "authorization denied",
		logger.Permission(g.permission),
		logger.Stage(string(stage)),
		logger.DenialKind(kind),
		logger.UserID(userID),
		logger.OrganizationID(orgID),
	)
	g.engine.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeAccessDenied,
		OrganizationID: orgID,
		ActorID:        userID,
		Resource:       g.permission,
		IPAddress:      req.IPAddress,
		Metadata:       map[string]any{"kind": kind, "stage": string(stage)},
	})
}
