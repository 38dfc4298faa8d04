package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
)

// PutMemberRequest sets the role of a member. An empty role_id selects the
// organization default for new members.
type PutMemberRequest struct {
	RoleID string `json:"role_id"`
}

// ListMembers lists the memberships of the current organization
// @Summary List members
// @Tags Members
// @Produce json
// @Success 200 {array} authz.Membership
// @Security CookieAuth
// @Router /members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	members, err := h.authzService.ListMembers(r.Context(), ac.OrganizationID())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": nonNil(members)})
}

// PutMember adds a user to the organization or changes their role
// @Summary Add member or change role
// @Tags Members
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body PutMemberRequest true "Role"
// @Success 200 {object} authz.Membership
// @Success 201 {object} authz.Membership
// @Security CookieAuth
// @Router /members/{userID} [put]
func (h *Handler) PutMember(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	var req PutMemberRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := h.identityService.GetUser(r.Context(), userID); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	orgID := ac.OrganizationID()
	_, err = h.authzService.FindMembership(r.Context(), userID, orgID)
	switch {
	case errors.Is(err, authz.ErrNoMembership):
		m, err := h.authzService.AddMember(r.Context(), orgID, userID, req.RoleID, ac.UserID)
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, m)
	case err != nil:
		h.respondFailure(w, r, err)
	default:
		if req.RoleID == "" {
			respondError(w, http.StatusBadRequest, "role_id is required to change a member's role")
			return
		}
		m, err := h.authzService.ChangeMemberRole(r.Context(), orgID, userID, req.RoleID, ac.UserID)
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, m)
	}
}

// RemoveMember revokes a membership. Access ends with the next request.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if err := h.authzService.RemoveMember(r.Context(), ac.OrganizationID(), chi.URLParam(r, "userID"), ac.UserID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncPinballMap accepts a PinballMap synchronization request. The sync job
// itself runs outside the request.
// @Summary Request PinballMap sync
// @Tags Integrations
// @Success 202 {object} map[string]string
// @Security CookieAuth
// @Router /integrations/pinballmap/sync [post]
func (h *Handler) SyncPinballMap(w http.ResponseWriter, r *http.Request) {
	ac, err := authorizationOf(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "pinballmap sync requested",
		logger.OrganizationID(ac.OrganizationID()),
		logger.UserID(ac.UserID),
	)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":          "accepted",
		"organization_id": ac.OrganizationID(),
	})
}
