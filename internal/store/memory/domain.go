package memory

import (
	"context"
	"sort"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
)

// -----------------------------------------------------------------------------
// Users (global rows)
// -----------------------------------------------------------------------------

type UserRepository struct{ s *Store }

var _ identity.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *identity.User, creds *identity.Credentials) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	r.s.users[user.ID] = *user
	if creds != nil {
		r.s.credentials[user.ID] = *creds
	}
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (r *UserRepository) Update(_ context.Context, user *identity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[user.ID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.DisplayName = user.DisplayName
	u.Notifications = user.Notifications
	u.UpdatedAt = user.UpdatedAt
	r.s.users[user.ID] = u
	return nil
}

func (r *UserRepository) UpdateLockout(_ context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	r.s.users[userID] = u
	return nil
}

func (r *UserRepository) GetCredentials(_ context.Context, userID string) (*identity.Credentials, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.credentials[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &c, nil
}

// -----------------------------------------------------------------------------
// Machines and issues
// -----------------------------------------------------------------------------

type MachineRepository struct{ s *Store }

var _ issue.MachineRepository = (*MachineRepository)(nil)

func (r *MachineRepository) Create(ctx context.Context, m *issue.Machine) error {
	if err := writable(ctx, m.OrganizationID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.machines[m.ID] = *m
	return nil
}

func (r *MachineRepository) GetByID(ctx context.Context, id string) (*issue.Machine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.machines[id]
	if !ok || !isolation.Allows(ctx, m.OrganizationID) {
		return nil, issue.ErrNotFound
	}
	return &m, nil
}

func (r *MachineRepository) List(ctx context.Context) ([]*issue.Machine, error) {
	if _, err := isolation.Require(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*issue.Machine
	for _, m := range r.s.machines {
		if isolation.Allows(ctx, m.OrganizationID) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type IssueRepository struct{ s *Store }

var _ issue.IssueRepository = (*IssueRepository)(nil)

func copyIssue(i issue.Issue) *issue.Issue {
	i.Attachments = append([]string(nil), i.Attachments...)
	return &i
}

func (r *IssueRepository) Create(ctx context.Context, i *issue.Issue) error {
	if err := writable(ctx, i.OrganizationID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.machines[i.MachineID]
	if !ok || m.OrganizationID != i.OrganizationID {
		return isolation.ErrScopeViolation
	}
	r.s.issues[i.ID] = *copyIssue(*i)
	return nil
}

func (r *IssueRepository) GetByID(ctx context.Context, id string) (*issue.Issue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.issues[id]
	if !ok || !isolation.Allows(ctx, i.OrganizationID) {
		return nil, issue.ErrNotFound
	}
	return copyIssue(i), nil
}

func (r *IssueRepository) List(ctx context.Context, f issue.Filter) ([]*issue.Issue, error) {
	if _, err := isolation.Require(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*issue.Issue
	for _, i := range r.s.issues {
		if !isolation.Allows(ctx, i.OrganizationID) {
			continue
		}
		if f.MachineID != "" && i.MachineID != f.MachineID {
			continue
		}
		if f.Status != "" && i.Status != f.Status {
			continue
		}
		out = append(out, copyIssue(i))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return page(out, f.Limit, 0), nil
}

func (r *IssueRepository) Update(ctx context.Context, i *issue.Issue) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.issues[i.ID]
	if !ok || !isolation.Allows(ctx, existing.OrganizationID) {
		return issue.ErrNotFound
	}
	if i.OrganizationID != existing.OrganizationID || i.MachineID != existing.MachineID {
		return isolation.ErrScopeViolation
	}
	r.s.issues[i.ID] = *copyIssue(*i)
	return nil
}

func (r *IssueRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.issues[id]
	if !ok || !isolation.Allows(ctx, i.OrganizationID) {
		return issue.ErrNotFound
	}
	delete(r.s.issues, id)
	return nil
}

// Locator answers ownership questions across organizations. It returns only
// the owning organization ID, mirroring the resource_organization SQL function.
type Locator struct{ s *Store }

var _ issue.OwnershipLocator = (*Locator)(nil)

func (l *Locator) OrganizationOf(_ context.Context, kind issue.ResourceKind, id string) (string, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	switch kind {
	case issue.KindMachine:
		if m, ok := l.s.machines[id]; ok {
			return m.OrganizationID, nil
		}
	case issue.KindIssue:
		if i, ok := l.s.issues[id]; ok {
			return i.OrganizationID, nil
		}
	}
	return "", issue.ErrNotFound
}
