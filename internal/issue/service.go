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

package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// MemberLookup checks that an assignee belongs to the organization.
type MemberLookup interface {
	FindMembership(ctx context.Context, userID, organizationID string) (*authz.Membership, error)
}

// Service runs issue and machine operations. Every method expects a context
// that passed an authorization gate; organization and principal come from
// the AuthorizationContext, never from arguments.
type Service struct {
	machines    MachineRepository
	issues      IssueRepository
	locator     OwnershipLocator
	members     MemberLookup
	auditLogger audit.Logger
}

func NewService(machines MachineRepository, issues IssueRepository, locator OwnershipLocator, members MemberLookup, auditLogger audit.Logger) *Service {
	return &Service{
		machines:    machines,
		issues:      issues,
		locator:     locator,
		members:     members,
		auditLogger: auditLogger,
	}
}

func authorization(ctx context.Context) (*authz.AuthorizationContext, error) {
	ac, ok := authz.FromContext(ctx)
	if !ok {
		return nil, authz.Internal(errors.New("operation invoked without authorization context"))
	}
	return ac, nil
}

// notFound hides whether a row is missing or belongs to another organization.
func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		e := authz.Deny(authz.KindNotFound, "")
		e.Err = err
		return e
	}
	return err
}

// CreateMachine adds a machine to the current organization.
func (s *Service) CreateMachine(ctx context.Context, name, location string) (*Machine, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: machine name is required", ErrInvalidInput)
	}
	m := &Machine{
		ID:             id.NewUUIDv7(),
		OrganizationID: ac.OrganizationID(),
		Name:           name,
		Location:       strings.TrimSpace(location),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.machines.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create machine: %w", err)
	}
	return m, nil
}

// GetMachine returns a machine of the current organization.
func (s *Service) GetMachine(ctx context.Context, machineID string) (*Machine, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if err := ac.Require(rbac.PermMachineView); err != nil {
		return nil, err
	}
	m, err := s.machines.GetByID(ctx, machineID)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// ListMachines returns the machines of the current organization.
func (s *Service) ListMachines(ctx context.Context) ([]*Machine, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if err := ac.Require(rbac.PermMachineView); err != nil {
		return nil, err
	}
	return s.machines.List(ctx)
}

// ReportInput is a new issue report.
type ReportInput struct {
	MachineID     string
	Title         string
	Description   string
	Severity      Severity
	ReporterEmail string
	Attachments   []string
}

// ReportIssue creates an issue. For anonymous principals the issue has no
// creator. The machine must belong to the current organization; a machine
// of another organization fails with CrossOrganizationReference.
// Attachments additionally require attachment:create.
func (s *Service) ReportIssue(ctx context.Context, in ReportInput) (*Issue, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if err := ac.Require(rbac.PermIssueCreate); err != nil {
		return nil, err
	}
	if len(in.Attachments) > 0 {
		if err := ac.Require(rbac.PermAttachmentCreate); err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return nil, fmt.Errorf("%w: title must be 1-200 characters", ErrInvalidInput)
	}
	if in.Severity == "" {
		in.Severity = SeverityPlayable
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, in.Severity)
	}

	owner, err := s.locator.OrganizationOf(ctx, KindMachine, in.MachineID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := ac.RequireSameOrganization(owner); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	i := &Issue{
		ID:             id.NewUUIDv7(),
		OrganizationID: ac.OrganizationID(),
		MachineID:      in.MachineID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Severity:       in.Severity,
		Status:         StatusNew,
		Attachments:    in.Attachments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ac.Anonymous {
		i.ReporterEmail = strings.TrimSpace(in.ReporterEmail)
	} else {
		creator := ac.UserID
		i.CreatedBy = &creator
	}

	if err := s.issues.Create(ctx, i); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	if ac.Anonymous {
		slog.InfoContext(ctx, "anonymous issue reported",
			slog.String("organization_id", i.OrganizationID),
			slog.String("machine_id", i.MachineID),
		)
		s.auditLogger.Log(ctx, audit.Event{
			Type:           audit.TypeAnonymousReport,
			OrganizationID: i.OrganizationID,
			Resource:       i.ID,
			Metadata:       map[string]any{"machine_id": i.MachineID, "attachments": len(i.Attachments)},
		})
		i.redact()
	}
	return i, nil
}

// GetIssue returns an issue of the current organization. Anonymous
// principals get it without creator, reporter email and assignee.
func (s *Service) GetIssue(ctx context.Context, issueID string) (*Issue, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if err := ac.Require(rbac.PermIssueView); err != nil {
		return nil, err
	}
	i, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, notFound(err)
	}
	if ac.Anonymous {
		i.redact()
	}
	return i, nil
}

// ListIssues returns issues of the current organization, redacted like
// GetIssue for anonymous principals.
func (s *Service) ListIssues(ctx context.Context, f Filter) ([]*Issue, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if err := ac.Require(rbac.PermIssueView); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	issues, err := s.issues.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if ac.Anonymous {
		for _, i := range issues {
			i.redact()
		}
	}
	return issues, nil
}

// Patch is a partial issue update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Severity    *Severity
	Status      *Status
	// AssignedTo set to a pointer to "" clears the assignee.
	AssignedTo *string
}

// UpdateIssue applies a patch. Any member holding issue:edit may edit any
// issue of the organization; changing the assignee also needs issue:assign.
// Anonymous principals never edit.
func (s *Service) UpdateIssue(ctx context.Context, issueID string, p Patch) (*Issue, error) {
	ac, err := authorization(ctx)
	if err != nil {
		return nil, err
	}
	if ac.Anonymous {
		return nil, authz.PermissionDenied(rbac.PermIssueEdit)
	}
	if err := ac.Require(rbac.PermIssueEdit); err != nil {
		return nil, err
	}

	i, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, notFound(err)
	}

	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" || len(t) > 200 {
			return nil, fmt.Errorf("%w: title must be 1-200 characters", ErrInvalidInput)
		}
		i.Title = t
	}
	if p.Description != nil {
		i.Description = strings.TrimSpace(*p.Description)
	}
	if p.Severity != nil {
		if !p.Severity.Valid() {
			return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, *p.Severity)
		}
		i.Severity = *p.Severity
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
		}
		i.Status = *p.Status
	}
	if p.AssignedTo != nil {
		if err := ac.Require(rbac.PermIssueAssign); err != nil {
			return nil, err
		}
		if *p.AssignedTo == "" {
			i.AssignedTo = nil
		} else {
			if _, err := s.members.FindMembership(ctx, *p.AssignedTo, ac.OrganizationID()); err != nil {
				if errors.Is(err, authz.ErrNoMembership) {
					return nil, ErrAssigneeNotMember
				}
				return nil, err
			}
			assignee := *p.AssignedTo
			i.AssignedTo = &assignee
		}
	}
	i.UpdatedAt = time.Now().UTC()

	if err := s.issues.Update(ctx, i); err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

// DeleteIssue removes an issue of the current organization.
func (s *Service) DeleteIssue(ctx context.Context, issueID string) error {
	ac, err := authorization(ctx)
	if err != nil {
		return err
	}
	if err := ac.Require(rbac.PermIssueDelete); err != nil {
		return err
	}
	return notFound(s.issues.Delete(ctx, issueID))
}
