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

package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
)

// RoleSeeder creates the built-in roles of a new organization.
type RoleSeeder interface {
	SeedRoles(ctx context.Context, organizationID string) error
}

// Service provides organization administration.
type Service struct {
	repo        Repository
	seeder      RoleSeeder
	auditLogger audit.Logger
}

func NewService(repo Repository, seeder RoleSeeder, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		seeder:      seeder,
		auditLogger: auditLogger,
	}
}

// CreateOrganization registers a tenant and seeds its roles from the
// catalog templates.
func (s *Service) CreateOrganization(ctx context.Context, subdomain, name, actorID string) (*Organization, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if err := ValidateSubdomain(subdomain); err != nil {
		return nil, fmt.Errorf("%w: %q", err, subdomain)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	if _, err := s.repo.GetBySubdomain(ctx, subdomain); err == nil {
		return nil, ErrSubdomainTaken
	} else if !errors.Is(err, ErrOrganizationNotFound) {
		return nil, fmt.Errorf("failed to check subdomain: %w", err)
	}

	now := time.Now().UTC()
	org := &Organization{
		ID:        id.NewUUIDv7(),
		Subdomain: subdomain,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	if err := s.seeder.SeedRoles(ctx, org.ID); err != nil {
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	slog.InfoContext(ctx, "organization created",
		slog.String("organization_id", org.ID),
		slog.String("subdomain", org.Subdomain),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeOrganizationCreated,
		OrganizationID: org.ID,
		ActorID:        actorID,
		Resource:       org.Subdomain,
	})

	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	return s.repo.GetBySubdomain(ctx, strings.ToLower(subdomain))
}

func (s *Service) ListOrganizations(ctx context.Context, limit, offset int) ([]*Organization, error) {
	return s.repo.List(ctx, limit, offset)
}
