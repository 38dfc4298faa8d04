// Package issue holds the organization-scoped machines and issues that the
// authorization gates protect.
package issue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAssigneeNotMember = errors.New("assignee is not a member of this organization")
)

type Severity string

const (
	SeverityMinor      Severity = "minor"
	SeverityPlayable   Severity = "playable"
	SeverityUnplayable Severity = "unplayable"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityPlayable, SeverityUnplayable:
		return true
	}
	return false
}

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Machine is a pinball machine owned by one organization.
type Machine struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Location       string    `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Issue is a problem report against a machine. CreatedBy is nil for reports
// submitted anonymously; such issues have no owner who could edit them.
type Issue struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	MachineID      string    `json:"machine_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Severity       Severity  `json:"severity"`
	Status         Status    `json:"status"`
	CreatedBy      *string   `json:"created_by"`
	ReporterEmail  string    `json:"reporter_email,omitempty"`
	AssignedTo     *string   `json:"assigned_to"`
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Anonymous reports whether the issue was submitted without an account.
func (i *Issue) Anonymous() bool { return i.CreatedBy == nil }

// PublicIssue is the view of an issue served to anonymous principals. It
// names no person: no creator, reporter email or assignee.
type PublicIssue struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	MachineID      string    `json:"machine_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Severity       Severity  `json:"severity"`
	Status         Status    `json:"status"`
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Public returns the anonymous view of i.
func (i *Issue) Public() *PublicIssue {
	return &PublicIssue{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		MachineID:      i.MachineID,
		Title:          i.Title,
		Description:    i.Description,
		Severity:       i.Severity,
		Status:         i.Status,
		Attachments:    i.Attachments,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func (i *Issue) redact() {
	i.CreatedBy = nil
	i.ReporterEmail = ""
	i.AssignedTo = nil
}

// Filter narrows ListIssues.
type Filter struct {
	MachineID string
	Status    Status
	Limit     int
}

// ResourceKind names a scoped table for ownership lookups.
type ResourceKind string

const (
	KindMachine ResourceKind = "machine"
	KindIssue   ResourceKind = "issue"
)

// MachineRepository defines machine storage under row isolation.
type MachineRepository interface {
	Create(ctx context.Context, m *Machine) error
	GetByID(ctx context.Context, id string) (*Machine, error)
	List(ctx context.Context) ([]*Machine, error)
}

// IssueRepository defines issue storage under row isolation. Rows of other
// organizations behave exactly like missing rows.
type IssueRepository interface {
	Create(ctx context.Context, i *Issue) error
	GetByID(ctx context.Context, id string) (*Issue, error)
	List(ctx context.Context, f Filter) ([]*Issue, error)
	Update(ctx context.Context, i *Issue) error
	Delete(ctx context.Context, id string) error
}

// OwnershipLocator reports which organization owns a resource, across
// isolation, without exposing the resource itself. It lets callers tell a
// cross-organization reference apart from a missing one.
type OwnershipLocator interface {
	OrganizationOf(ctx context.Context, kind ResourceKind, id string) (string, error)
}
