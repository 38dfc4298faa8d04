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

package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
)

// Organization Context Principles:
// 1. The organization of a request is resolved by the gate, never by handlers
// 2. The token claim is read from the verified session only
// 3. A user without a membership never acts inside another organization

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SessionMiddleware attaches the verified session, if any. Requests without
// a valid token continue anonymously; gates decide whether that is enough.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := h.sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := h.sessions.Verify(token)
		if err != nil {
			slog.DebugContext(r.Context(), "ignoring invalid session token", logger.Error(err))
			if fromCookie {
				h.clearSessionCookie(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// sessionToken reads a bearer token, falling back to the session cookie.
func (h *Handler) sessionToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if token := h.getSessionFromCookie(r); token != "" {
		return token, true
	}
	return "", false
}

// OrganizationMiddleware captures the organization signals of the request and
// makes resolution stable for its lifetime.
func (h *Handler) OrganizationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig := organization.Signals{
			Host:     r.Host,
			Selector: strings.TrimSpace(r.Header.Get(h.sessionConfig.SelectorHeader)),
		}
		ctx := organization.WithMemo(r.Context())
		ctx = withSignals(ctx, sig)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require returns middleware enforcing the gate for permission. On success
// the request context carries the AuthorizationContext and isolation scope.
func (h *Handler) Require(permission string, opts ...authz.GateOption) func(http.Handler) http.Handler {
	gate := h.engine.Require(permission, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _, err := gate.Authorize(r.Context(), authz.Request{
				Session:   session.FromContext(r.Context()),
				Signals:   signalsFrom(r.Context()),
				IPAddress: clientIP(r),
			})
			if err != nil {
				h.respondFailure(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
