package organization

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, org *Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Organization), args.Error(1)
}

func (m *mockRepo) GetBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Organization), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Organization, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*Organization), args.Error(1)
}

var (
	orgA = &Organization{ID: "00000000-0000-0000-0000-00000000000a", Subdomain: "org-a", Name: "Org A"}
	orgB = &Organization{ID: "00000000-0000-0000-0000-00000000000b", Subdomain: "org-b", Name: "Org B"}
)

func newTestRepo() *mockRepo {
	repo := new(mockRepo)
	repo.On("GetBySubdomain", mock.Anything, "org-a").Return(orgA, nil)
	repo.On("GetBySubdomain", mock.Anything, "org-b").Return(orgB, nil)
	repo.On("GetBySubdomain", mock.Anything, mock.Anything).Return(nil, ErrOrganizationNotFound)
	repo.On("GetByID", mock.Anything, orgA.ID).Return(orgA, nil)
	repo.On("GetByID", mock.Anything, orgB.ID).Return(orgB, nil)
	repo.On("GetByID", mock.Anything, mock.Anything).Return(nil, ErrOrganizationNotFound)
	return repo
}

func newTestResolver(defaultSubdomain string) (*Resolver, *mockRepo) {
	repo := newTestRepo()
	return NewResolver(repo, ResolverConfig{BaseDomain: "pinpoint.example", DefaultSubdomain: defaultSubdomain}), repo
}

// TestPurpose: Validates the visited subdomain wins over a session claim for another organization.
// Scope: Unit Test
// Security: Multi-organization users are re-evaluated against the visited organization
// Expected: Host org-b resolves to org-b even though the claim names org-a.
// Test Case ID: ORG-01
func TestResolver_SubdomainBeatsClaim(t *testing.T) {
	r, _ := newTestResolver("")

	res, err := r.Resolve(context.Background(), Signals{
		Host:                  "org-b.pinpoint.example:8080",
		ClaimedOrganizationID: orgA.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, orgB.ID, res.Organization.ID)
	assert.Equal(t, SourceSubdomain, res.Source)
}

// TestPurpose: Validates fallback order when the host carries no organization.
// Scope: Unit Test
// Expected: Selector, then claim, then default, then none.
// Test Case ID: ORG-02
func TestResolver_FallbackOrder(t *testing.T) {
	ctx := context.Background()

	r, _ := newTestResolver("org-a")
	res, err := r.Resolve(ctx, Signals{Host: "pinpoint.example", Selector: "ORG-B", ClaimedOrganizationID: orgA.ID})
	require.NoError(t, err)
	assert.Equal(t, SourceSelector, res.Source)
	assert.Equal(t, orgB.ID, res.Organization.ID)

	res, err = r.Resolve(ctx, Signals{Host: "pinpoint.example", ClaimedOrganizationID: orgB.ID})
	require.NoError(t, err)
	assert.Equal(t, SourceClaim, res.Source)
	assert.Equal(t, orgB.ID, res.Organization.ID)

	res, err = r.Resolve(ctx, Signals{Host: "pinpoint.example"})
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, orgA.ID, res.Organization.ID)

	none, _ := newTestResolver("")
	res, err = none.Resolve(ctx, Signals{Host: "localhost"})
	require.NoError(t, err)
	assert.Nil(t, res.Organization)
	assert.Equal(t, SourceNone, res.Source)
}

// TestPurpose: Validates that a claim naming a deleted organization fails with OrganizationNotFound.
// Scope: Unit Test
// Expected: ErrOrganizationNotFound.
// Test Case ID: ORG-03
func TestResolver_ClaimForDeletedOrganization(t *testing.T) {
	r, _ := newTestResolver("org-a")

	_, err := r.Resolve(context.Background(), Signals{ClaimedOrganizationID: "00000000-0000-0000-0000-0000000000ff"})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	_, err = r.Resolve(context.Background(), Signals{Selector: "ghost"})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

// TestPurpose: Validates that an unknown visited subdomain never falls back to the caller's claim.
// Scope: Unit Test
// Security: A typo subdomain must not silently switch the request to the home organization
// Expected: Without a default the result is no organization.
// Test Case ID: ORG-04
func TestResolver_UnknownSubdomainIgnoresClaim(t *testing.T) {
	r, _ := newTestResolver("")

	res, err := r.Resolve(context.Background(), Signals{Host: "ghost.pinpoint.example", ClaimedOrganizationID: orgA.ID})
	require.NoError(t, err)
	assert.Nil(t, res.Organization)
}

func TestResolver_SubdomainFromHost(t *testing.T) {
	r, _ := newTestResolver("")

	tests := []struct {
		host  string
		label string
		ok    bool
	}{
		{"org-a.pinpoint.example", "org-a", true},
		{"ORG-A.PinPoint.Example.", "org-a", true},
		{"org-a.pinpoint.example:443", "org-a", true},
		{"pinpoint.example", "", false},
		{"www.pinpoint.example", "", false},
		{"a.b.pinpoint.example", "", false},
		{"org-a.evil.example", "", false},
		{"org-a.pinpoint.example.evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			label, ok := r.SubdomainFromHost(tt.host)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
		})
	}
}

// TestPurpose: Validates resolution is stable within one request lifecycle.
// Scope: Unit Test
// Expected: Identical Organization values and a single repository lookup.
// Test Case ID: ORG-05
func TestResolver_MemoIdempotent(t *testing.T) {
	r, repo := newTestResolver("")
	ctx := WithMemo(context.Background())
	sig := Signals{Host: "org-a.pinpoint.example"}

	first, err := r.Resolve(ctx, sig)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, sig)
	require.NoError(t, err)

	assert.Same(t, first.Organization, second.Organization)
	repo.AssertNumberOfCalls(t, "GetBySubdomain", 1)
}

// TestPurpose: Validates concurrent requests for different organizations resolve independently.
// Scope: Unit Test
// Security: No resolved organization leaks from one request into another
// Expected: Each goroutine sees its own host's organization.
// Test Case ID: ORG-06
func TestResolver_ConcurrentRequestsIndependent(t *testing.T) {
	r, _ := newTestResolver("")

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 100; i++ {
		for _, want := range []*Organization{orgA, orgB} {
			wg.Add(1)
			go func(want *Organization) {
				defer wg.Done()
				ctx := WithMemo(context.Background())
				res, err := r.Resolve(ctx, Signals{Host: want.Subdomain + ".pinpoint.example"})
				if err != nil {
					errs <- err
					return
				}
				if res.Organization.ID != want.ID {
					errs <- errors.New("resolved " + res.Organization.ID + " for " + want.Subdomain)
				}
			}(want)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type mockSeeder struct {
	mock.Mock
}

func (m *mockSeeder) SeedRoles(ctx context.Context, organizationID string) error {
	return m.Called(ctx, organizationID).Error(0)
}

// TestPurpose: Validates organization creation seeds roles and rejects taken subdomains.
// Scope: Unit Test
// Expected: Roles seeded for the new ID; duplicate subdomain fails with ErrSubdomainTaken.
// Test Case ID: ORG-07
func TestService_CreateOrganization(t *testing.T) {
	repo := newTestRepo()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*organization.Organization")).Return(nil)
	seeder := new(mockSeeder)
	seeder.On("SeedRoles", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	svc := NewService(repo, seeder, audit.Nop{})

	org, err := svc.CreateOrganization(context.Background(), " Org-C ", "Org C", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-c", org.Subdomain)
	seeder.AssertCalled(t, "SeedRoles", mock.Anything, org.ID)

	_, err = svc.CreateOrganization(context.Background(), "org-a", "dup", "user-1")
	assert.ErrorIs(t, err, ErrSubdomainTaken)

	_, err = svc.CreateOrganization(context.Background(), "www", "reserved", "user-1")
	assert.ErrorIs(t, err, ErrInvalidSubdomain)
}
