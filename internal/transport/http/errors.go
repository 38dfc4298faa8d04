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
	"errors"
	"log/slog"
	"net/http"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error              string `json:"error"`
	Message            string `json:"message"`
	RequiredPermission string `json:"required_permission,omitempty"`
}

var kindStatus = map[authz.Kind]int{
	authz.KindUnauthenticated:            http.StatusUnauthorized,
	authz.KindMissingOrganizationContext: http.StatusBadRequest,
	authz.KindNotAMember:                 http.StatusForbidden,
	authz.KindPermissionDenied:           http.StatusForbidden,
	authz.KindCrossOrganizationReference: http.StatusUnprocessableEntity,
	authz.KindOrganizationNotFound:       http.StatusNotFound,
	authz.KindUnknownTemplate:            http.StatusNotFound,
	authz.KindNotFound:                   http.StatusNotFound,
	authz.KindInternal:                   http.StatusInternalServerError,
}

// StatusFor returns the HTTP status of an authorization kind.
func StatusFor(kind authz.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// domainErrors maps validation and conflict errors of the services. These
// are not authorization outcomes; the client sees the sentinel's text only,
// never what it wraps.
var domainErrors = []struct {
	err    error
	status int
}{
	{authz.ErrRoleAlreadyExists, http.StatusConflict},
	{authz.ErrMembershipExists, http.StatusConflict},
	{authz.ErrRoleHasMembers, http.StatusConflict},
	{authz.ErrSystemRole, http.StatusConflict},
	{authz.ErrDefaultRole, http.StatusConflict},
	{authz.ErrLastAdmin, http.StatusConflict},
	{identity.ErrUserAlreadyExists, http.StatusConflict},
	{authz.ErrInvalidRoleName, http.StatusBadRequest},
	{authz.ErrInvalidReassignment, http.StatusBadRequest},
	{authz.ErrRoleNotAssignable, http.StatusBadRequest},
	{authz.ErrNotAnonymousEligible, http.StatusBadRequest},
	{rbac.ErrUnknownPermission, http.StatusBadRequest},
	{issue.ErrInvalidInput, http.StatusBadRequest},
	{issue.ErrAssigneeNotMember, http.StatusBadRequest},
	{identity.ErrUserNotFound, http.StatusNotFound},
	{authz.ErrNoMembership, http.StatusNotFound},
}

func domainStatus(err error) (int, string, bool) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, d.err.Error(), true
		}
	}
	return 0, "", false
}

// respondFailure writes err as a JSON error. Authorization failures carry
// their safe message and, for PermissionDenied, the missing permission.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var structured *authz.Error
	if !errors.As(err, &structured) {
		if status, msg, ok := domainStatus(err); ok {
			respondError(w, status, msg)
			return
		}
	}

	e := authz.Classify(err)
	if e.Kind == authz.KindInternal {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
	} else if h.metrics != nil {
		h.metrics.Denied(string(e.Kind))
	}

	msg := e.Message
	if msg == "" {
		msg = authz.SafeMessage(e.Kind)
	}
	body := errorBody{Error: string(e.Kind), Message: msg}
	if e.Kind == authz.KindPermissionDenied {
		body.RequiredPermission = e.Permission
	}
	respondJSON(w, StatusFor(e.Kind), body)
}
