package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
)

// OrganizationRepository implements organization.Repository. The
// organizations table is read before any scope exists, so it carries no
// row security.
type OrganizationRepository struct {
	db *DB
}

var _ organization.Repository = (*OrganizationRepository)(nil)

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create stores a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO organizations (id, subdomain, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, org.ID, org.Subdomain, org.Name, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return organization.ErrSubdomainTaken
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, orgID string) (*organization.Organization, error) {
	if !id.IsUUID(orgID) {
		return nil, organization.ErrOrganizationNotFound
	}
	return r.getOne(ctx, `WHERE id = $1`, orgID)
}

// GetBySubdomain retrieves an organization by its subdomain label
func (r *OrganizationRepository) GetBySubdomain(ctx context.Context, subdomain string) (*organization.Organization, error) {
	return r.getOne(ctx, `WHERE subdomain = $1`, subdomain)
}

func (r *OrganizationRepository) getOne(ctx context.Context, where string, arg any) (*organization.Organization, error) {
	var org organization.Organization
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT id, subdomain, name, created_at, updated_at
		FROM organizations `+where, arg).Scan(
		&org.ID, &org.Subdomain, &org.Name, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// List retrieves organizations ordered by subdomain
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*organization.Organization, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, subdomain, name, created_at, updated_at
		FROM organizations
		ORDER BY subdomain
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*organization.Organization
	for rows.Next() {
		var org organization.Organization
		if err := rows.Scan(&org.ID, &org.Subdomain, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}
