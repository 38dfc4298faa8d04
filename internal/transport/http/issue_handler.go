package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
)

// CreateMachineRequest represents a new machine
type CreateMachineRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ListMachines lists the machines of the current organization
// @Summary List machines
// @Tags Machines
// @Produce json
// @Success 200 {array} issue.Machine
// @Failure 403 {object} errorBody
// @Router /machines [get]
func (h *Handler) ListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.issueService.ListMachines(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"machines": nonNil(machines)})
}

// GetMachine returns one machine
// @Summary Get machine
// @Tags Machines
// @Produce json
// @Param machineID path string true "Machine ID"
// @Success 200 {object} issue.Machine
// @Failure 404 {object} errorBody
// @Router /machines/{machineID} [get]
func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	m, err := h.issueService.GetMachine(r.Context(), chi.URLParam(r, "machineID"))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// CreateMachine adds a machine to the current organization
// @Summary Create machine
// @Tags Machines
// @Accept json
// @Produce json
// @Success 201 {object} issue.Machine
// @Failure 403 {object} errorBody
// @Security CookieAuth
// @Router /machines [post]
func (h *Handler) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var req CreateMachineRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	m, err := h.issueService.CreateMachine(r.Context(), req.Name, req.Location)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ReportIssueRequest represents a new issue report
type ReportIssueRequest struct {
	MachineID     string         `json:"machine_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Severity      issue.Severity `json:"severity"`
	ReporterEmail string         `json:"reporter_email"`
	Attachments   []string       `json:"attachments"`
}

func (req ReportIssueRequest) input() issue.ReportInput {
	return issue.ReportInput{
		MachineID:     req.MachineID,
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		ReporterEmail: req.ReporterEmail,
		Attachments:   req.Attachments,
	}
}

// ListIssues lists issues, optionally filtered by machine_id and status
// @Summary List issues
// @Tags Issues
// @Produce json
// @Param machine_id query string false "Machine ID"
// @Param status query string false "Status" Enums(new, in_progress, resolved)
// @Param limit query int false "Maximum number of issues"
// @Success 200 {array} issue.Issue
// @Failure 400 {object} errorBody
// @Router /issues [get]
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := issue.Filter{
		MachineID: q.Get("machine_id"),
		Status:    issue.Status(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	issues, err := h.issueService.ListIssues(r.Context(), f)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	views := make([]any, 0, len(issues))
	for _, i := range issues {
		views = append(views, issueView(r, i))
	}
	respondJSON(w, http.StatusOK, map[string]any{"issues": views})
}

// ReportIssue creates an issue as the signed-in member
// @Summary Report issue
// @Tags Issues
// @Accept json
// @Produce json
// @Param request body ReportIssueRequest true "Issue"
// @Success 201 {object} issue.Issue
// @Failure 403 {object} errorBody
// @Failure 422 {object} errorBody
// @Router /issues [post]
func (h *Handler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	var req ReportIssueRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.report(w, r, req.input())
}

// ReportPublicIssue creates an issue from the public report form. The
// machine comes from the path; the gate admits anonymous visitors.
// @Summary Report issue anonymously
// @Tags Public
// @Accept json
// @Produce json
// @Param machineID path string true "Machine ID"
// @Param request body ReportIssueRequest true "Issue"
// @Success 201 {object} issue.Issue
// @Failure 403 {object} errorBody
// @Failure 422 {object} errorBody
// @Failure 429 {object} errorBody
// @Router /public/machines/{machineID}/issues [post]
func (h *Handler) ReportPublicIssue(w http.ResponseWriter, r *http.Request) {
	var req ReportIssueRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in := req.input()
	in.MachineID = chi.URLParam(r, "machineID")
	h.report(w, r, in)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, in issue.ReportInput) {
	if in.MachineID == "" {
		respondError(w, http.StatusBadRequest, "machine_id is required")
		return
	}
	i, err := h.issueService.ReportIssue(r.Context(), in)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, issueView(r, i))
}

// GetIssue returns one issue
// @Summary Get issue
// @Tags Issues
// @Produce json
// @Param issueID path string true "Issue ID"
// @Success 200 {object} issue.Issue
// @Failure 404 {object} errorBody
// @Router /issues/{issueID} [get]
func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	i, err := h.issueService.GetIssue(r.Context(), chi.URLParam(r, "issueID"))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issueView(r, i))
}

// UpdateIssueRequest is a partial update; absent fields are unchanged.
type UpdateIssueRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Severity    *issue.Severity `json:"severity"`
	Status      *issue.Status   `json:"status"`
	AssignedTo  *string         `json:"assigned_to"`
}

// UpdateIssue applies a partial update
// @Summary Update issue
// @Tags Issues
// @Accept json
// @Produce json
// @Param issueID path string true "Issue ID"
// @Param request body UpdateIssueRequest true "Changes"
// @Success 200 {object} issue.Issue
// @Failure 403 {object} errorBody
// @Security CookieAuth
// @Router /issues/{issueID} [patch]
func (h *Handler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req UpdateIssueRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	i, err := h.issueService.UpdateIssue(r.Context(), chi.URLParam(r, "issueID"), issue.Patch{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i)
}

// DeleteIssue removes an issue
// @Summary Delete issue
// @Tags Issues
// @Param issueID path string true "Issue ID"
// @Success 204
// @Security CookieAuth
// @Router /issues/{issueID} [delete]
func (h *Handler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := h.issueService.DeleteIssue(r.Context(), chi.URLParam(r, "issueID")); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// issueView serializes issues for anonymous principals without the fields
// that name people.
func issueView(r *http.Request, i *issue.Issue) any {
	if ac, ok := authz.FromContext(r.Context()); ok && ac.Anonymous {
		return i.Public()
	}
	return i
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
