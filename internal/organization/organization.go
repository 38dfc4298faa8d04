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

// Package organization manages tenants and resolves which tenant a request
// is operating within.
package organization

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSubdomainTaken       = errors.New("subdomain already in use")
	ErrInvalidSubdomain     = errors.New("invalid subdomain")
)

// Organization is the tenant boundary. Every scoped row references exactly
// one organization.
type Organization struct {
	ID        string    `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines organization storage. Organizations are looked up
// before any request scope exists, so implementations must not apply row
// isolation to this table.
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Organization, error)
	List(ctx context.Context, limit, offset int) ([]*Organization, error)
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ReservedSubdomains never name an organization.
var ReservedSubdomains = []string{"www", "api", "app", "admin", "static"}

// ValidateSubdomain checks that s is a lowercase DNS label usable as an
// organization subdomain.
func ValidateSubdomain(s string) error {
	if !subdomainPattern.MatchString(s) {
		return ErrInvalidSubdomain
	}
	for _, r := range ReservedSubdomains {
		if s == r {
			return ErrInvalidSubdomain
		}
	}
	return nil
}
