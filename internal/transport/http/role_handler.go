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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
)

// authorizationOf returns the context the route gate bound.
func authorizationOf(r *http.Request) (*authz.AuthorizationContext, error) {
	ac, ok := authz.FromContext(r.Context())
	if !ok {
		return nil, authz.Internal(errors.New("route served without a gate"))
	}
	return ac, nil
}

// CreateRoleRequest creates a role from explicit permissions or a template.
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Template    string   `json:"template,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// UpdateRoleRequest renames a role or makes it the default.
type UpdateRoleRequest struct {
	Name    *string `json:"name"`
	Default bool    `json:"default"`
}

// RolePermissionsRequest replaces the permissions of a role.
type RolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// ListRoles lists the roles of the current organization
// @Summary List roles
// @Tags Roles
// @Produce json
// @Success 200 {array} authz.Role
// @Security CookieAuth
// @Router /roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	roles, err := h.authzService.ListRoles(r.Context(), ac.OrganizationID())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"roles": nonNil(roles)})
}

// CreateRole adds a role to the current organization
// @Summary Create role
// @Description Creates a role from a template or an explicit permission list
// @Tags Roles
// @Accept json
// @Produce json
// @Param request body CreateRoleRequest true "Role"
// @Success 201 {object} authz.Role
// @Failure 400 {object} errorBody
// @Failure 409 {object} errorBody
// @Security CookieAuth
// @Router /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	var req CreateRoleRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Template != "" && len(req.Permissions) > 0 {
		respondError(w, http.StatusBadRequest, "template and permissions are mutually exclusive")
		return
	}

	var role *authz.Role
	if req.Template != "" {
		role, err = h.authzService.CreateRoleFromTemplate(r.Context(), ac.OrganizationID(), req.Name, req.Template, ac.UserID)
	} else {
		role, err = h.authzService.CreateRole(r.Context(), ac.OrganizationID(), req.Name, req.Permissions, ac.UserID)
	}
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, role)
}

// UpdateRole renames a role and optionally marks it as the default
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	var req UpdateRoleRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID := chi.URLParam(r, "roleID")
	if req.Name != nil {
		if _, err := h.authzService.RenameRole(r.Context(), ac.OrganizationID(), roleID, *req.Name, ac.UserID); err != nil {
			h.respondFailure(w, r, err)
			return
		}
	}
	if req.Default {
		if err := h.authzService.SetDefaultRole(r.Context(), ac.OrganizationID(), roleID, ac.UserID); err != nil {
			h.respondFailure(w, r, err)
			return
		}
	}

	role, err := h.authzService.GetRole(r.Context(), ac.OrganizationID(), roleID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// UpdateRolePermissions replaces the permissions of a role
// @Summary Replace role permissions
// @Tags Roles
// @Accept json
// @Produce json
// @Param roleID path string true "Role ID"
// @Param request body RolePermissionsRequest true "Permissions"
// @Success 200 {object} authz.Role
// @Failure 409 {object} errorBody
// @Security CookieAuth
// @Router /roles/{roleID}/permissions [put]
func (h *Handler) UpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	var req RolePermissionsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := h.authzService.UpdateRolePermissions(r.Context(), ac.OrganizationID(), chi.URLParam(r, "roleID"), req.Permissions, ac.UserID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// DeleteRole removes a role. Members of the role move to reassign_to.
// @Summary Delete role
// @Tags Roles
// @Param roleID path string true "Role ID"
// @Param reassign_to query string false "Role receiving the members"
// @Success 204
// @Failure 409 {object} errorBody
// @Security CookieAuth
// @Router /roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	reassignTo := r.URL.Query().Get("reassign_to")
	if err := h.authzService.DeleteRole(r.Context(), ac.OrganizationID(), chi.URLParam(r, "roleID"), reassignTo, ac.UserID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
