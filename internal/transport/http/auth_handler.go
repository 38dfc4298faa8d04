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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
)

// SignInRequest represents sign-in credentials
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse carries the session token. OrganizationID is the home
// organization claim, empty when the user is not a member of the
// organization the request was made to.
type SignInResponse struct {
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

// SignIn authenticates a user and issues a session token
// @Summary Sign in
// @Description Authenticates with email and password and issues a session token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} SignInResponse
// @Failure 401 {object} errorBody
// @Failure 423 {object} errorBody
// @Router /auth/sign-in [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrAccountLocked):
		respondError(w, http.StatusLocked, "account is locked")
		return
	case err != nil:
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	claim := h.homeOrganization(r.Context(), signalsFrom(r.Context()), user.ID)
	token, sess, err := h.sessions.Issue(user.ID, claim)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, token, sess.ExpiresAt)
	respondJSON(w, http.StatusOK, SignInResponse{
		Token:          token,
		ExpiresAt:      sess.ExpiresAt,
		UserID:         user.ID,
		OrganizationID: claim,
	})
}

// homeOrganization returns the organization the request names, if userID is
// a member of it. The claim is only ever issued for an existing membership.
func (h *Handler) homeOrganization(ctx context.Context, sig organization.Signals, userID string) string {
	sig.ClaimedOrganizationID = ""
	res, err := h.resolver.Resolve(ctx, sig)
	if err != nil || res.Organization == nil {
		return ""
	}
	orgID := res.Organization.ID
	scoped := isolation.WithScope(ctx, isolation.Scope{OrganizationID: orgID, UserID: userID})
	if _, err := h.authzService.FindMembership(scoped, userID, orgID); err != nil {
		if !errors.Is(err, authz.ErrNoMembership) {
			slog.WarnContext(ctx, "membership lookup failed during sign-in",
				logger.UserID(userID),
				logger.OrganizationID(orgID),
				logger.Error(err),
			)
		}
		return ""
	}
	return orgID
}

// SignOut clears the session cookie. Tokens are stateless and expire on
// their own.
// @Summary Sign out
// @Tags Auth
// @Success 204
// @Router /auth/sign-out [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "signed out",
	})
}

// AuthorizationResponse describes the caller's effective access.
type AuthorizationResponse struct {
	OrganizationID string   `json:"organization_id"`
	Subdomain      string   `json:"subdomain"`
	UserID         string   `json:"user_id,omitempty"`
	Anonymous      bool     `json:"anonymous"`
	Role           string   `json:"role,omitempty"`
	Source         string   `json:"source"`
	Permissions    []string `json:"permissions"`
}

// GetAuthorization returns the AuthorizationContext the gate resolved
// @Summary Current authorization
// @Description Returns the organization, role and effective permissions of the caller
// @Tags Auth
// @Produce json
// @Param X-Organization header string false "Organization subdomain"
// @Success 200 {object} AuthorizationResponse
// @Failure 400 {object} errorBody
// @Failure 404 {object} errorBody
// @Router /me/authorization [get]
func (h *Handler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromContext(r.Context())
	if !ok {
		h.respondFailure(w, r, authz.Internal(errors.New("missing authorization context")))
		return
	}

	resp := AuthorizationResponse{
		OrganizationID: ac.Organization.ID,
		Subdomain:      ac.Organization.Subdomain,
		UserID:         ac.UserID,
		Anonymous:      ac.Anonymous,
		Source:         string(ac.Source),
		Permissions:    ac.Permissions().Sorted(),
	}
	if ac.Role != nil {
		resp.Role = ac.Role.Name
	}
	respondJSON(w, http.StatusOK, resp)
}
