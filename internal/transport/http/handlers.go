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

// @title PinPoint API
// @version 0.1.0
// @description Multi-tenant pinball machine issue tracker
// @BasePath /api/v1

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name pinpoint_session

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/metrics"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessions        *session.Manager
	authzService    *authz.Service
	engine          *authz.Engine
	resolver        authz.OrganizationResolver
	issueService    *issue.Service
	auditLogger     audit.Logger
	metrics         *metrics.HTTP
	health          func(context.Context) error
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	// SelectorHeader names the explicit organization selector header.
	SelectorHeader string
}

// Dependencies are the services a Handler serves.
type Dependencies struct {
	Identity    *identity.Service
	Sessions    *session.Manager
	Authz       *authz.Service
	Engine      *authz.Engine
	Resolver    authz.OrganizationResolver
	Issues      *issue.Service
	AuditLogger audit.Logger
	Metrics     *metrics.HTTP
	// Health probes the store; nil means always healthy.
	Health func(context.Context) error
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies, sessionConfig SessionConfig) *Handler {
	if deps.AuditLogger == nil {
		deps.AuditLogger = audit.Nop{}
	}
	if sessionConfig.CookieName == "" {
		sessionConfig.CookieName = "pinpoint_session"
	}
	if sessionConfig.CookiePath == "" {
		sessionConfig.CookiePath = "/"
	}
	if sessionConfig.SelectorHeader == "" {
		sessionConfig.SelectorHeader = "X-Organization"
	}
	return &Handler{
		identityService: deps.Identity,
		sessions:        deps.Sessions,
		authzService:    deps.Authz,
		engine:          deps.Engine,
		resolver:        deps.Resolver,
		issueService:    deps.Issues,
		auditLogger:     deps.AuditLogger,
		metrics:         deps.Metrics,
		health:          deps.Health,
		sessionConfig:   sessionConfig,
	}
}

// RouterConfig holds router level settings.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Public limits the anonymous report endpoint on top of the global limiter.
	Public *RateLimiter
}

// NewRouter creates a new HTTP router. Every organization scoped route is
// behind a gate; a route without one only sees unscoped data.
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(rateLimiter.Middleware)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(h.SessionMiddleware)
	r.Use(h.OrganizationMiddleware)

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Get("/swagger/doc.json", h.SwaggerDoc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/sign-in", h.SignIn)
		r.Post("/auth/sign-out", h.SignOut)

		r.With(h.Require(rbac.PermMachineView, authz.AllowAnonymous())).Get("/me/authorization", h.GetAuthorization)

		r.Route("/machines", func(r chi.Router) {
			r.With(h.Require(rbac.PermMachineView, authz.AllowAnonymous())).Get("/", h.ListMachines)
			r.With(h.Require(rbac.PermMachineView, authz.AllowAnonymous())).Get("/{machineID}", h.GetMachine)
			r.With(h.Require(rbac.PermMachineCreate)).Post("/", h.CreateMachine)
		})

		// Issue reads admit visitors only where an admin granted issue:view
		// to the Unauthenticated role.

		r.Route("/issues", func(r chi.Router) {
			r.With(h.Require(rbac.PermIssueView, authz.AllowAnonymous())).Get("/", h.ListIssues)
			r.With(h.Require(rbac.PermIssueCreate)).Post("/", h.ReportIssue)
			r.Route("/{issueID}", func(r chi.Router) {
				r.With(h.Require(rbac.PermIssueView, authz.AllowAnonymous())).Get("/", h.GetIssue)
				r.With(h.Require(rbac.PermIssueEdit)).Patch("/", h.UpdateIssue)
				r.With(h.Require(rbac.PermIssueDelete)).Delete("/", h.DeleteIssue)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(h.Require(rbac.PermRoleView)).Get("/", h.ListRoles)
			r.With(h.Require(rbac.PermRoleManage)).Post("/", h.CreateRole)
			r.With(h.Require(rbac.PermRoleManage)).Patch("/{roleID}", h.UpdateRole)
			r.With(h.Require(rbac.PermRoleManage)).Put("/{roleID}/permissions", h.UpdateRolePermissions)
			r.With(h.Require(rbac.PermRoleManage)).Delete("/{roleID}", h.DeleteRole)
		})

		r.Route("/members", func(r chi.Router) {
			r.With(h.Require(rbac.PermMemberView)).Get("/", h.ListMembers)
			r.With(h.Require(rbac.PermMemberManage)).Put("/{userID}", h.PutMember)
			r.With(h.Require(rbac.PermMemberManage)).Delete("/{userID}", h.RemoveMember)
		})

		r.With(h.Require(rbac.PermPinballMapSync)).Post("/integrations/pinballmap/sync", h.SyncPinballMap)

		// Anonymous reporting
		r.Group(func(r chi.Router) {
			if cfg.Public != nil {
				r.Use(cfg.Public.Middleware)
			}
			r.With(h.Require(rbac.PermIssueCreate, authz.AllowAnonymous())).
				Post("/public/machines/{machineID}/issues", h.ReportPublicIssue)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "pinpoint",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pinpoint",
	})
}

// SwaggerDoc serves the registered OpenAPI document
func (h *Handler) SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondError(w, http.StatusNotFound, "API documentation is not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    token,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		Expires:  expires,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}
