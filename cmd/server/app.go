package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/audit"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/config"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/identity"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/issue"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/store/memory"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/store/postgres"
)

// repositories is the storage a process runs against.
type repositories struct {
	organizations organization.Repository
	roles         authz.RoleRepository
	memberships   authz.MembershipRepository
	users         identity.UserRepository
	machines      issue.MachineRepository
	issues        issue.IssueRepository
	locator       issue.OwnershipLocator
	ping          func(context.Context) error
	close         func()
}

func openDatabase(ctx context.Context, d config.DatabaseConfig) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	})
}

// openRepositories opens the configured store. The postgres store refuses
// to start when row level security on the scoped tables is incomplete.
func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store, data is lost on exit")
		s := memory.New()
		return &repositories{
			organizations: s.Organizations(),
			roles:         s.Roles(),
			memberships:   s.Memberships(),
			users:         s.Users(),
			machines:      s.Machines(),
			issues:        s.Issues(),
			locator:       s.Locator(),
			close:         func() {},
		}, nil
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	report, err := db.VerifyIsolation(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify row isolation: %w", err)
	}
	if err := report.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("row isolation is not enforced for this connection, run migrate and serve as a role without SUPERUSER or BYPASSRLS: %w", err)
	}
	slog.Info("connected to database", logger.Component("store"))

	return &repositories{
		organizations: postgres.NewOrganizationRepository(db),
		roles:         postgres.NewRoleRepository(db),
		memberships:   postgres.NewMembershipRepository(db),
		users:         postgres.NewUserRepository(db),
		machines:      postgres.NewMachineRepository(db),
		issues:        postgres.NewIssueRepository(db),
		locator:       postgres.NewLocator(db),
		ping:          db.Ping,
		close:         db.Close,
	}, nil
}

// services are the domain services shared by both transports.
type services struct {
	audit         audit.Logger
	identity      *identity.Service
	authz         *authz.Service
	organizations *organization.Service
	resolver      *organization.Resolver
	issues        *issue.Service
}

func newServices(cfg *config.Config, repos *repositories) *services {
	auditLogger := audit.NewSlogLogger(slog.Default())
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	identityService := identity.NewService(
		repos.users,
		passwordHasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	authzService := authz.NewService(repos.roles, repos.memberships, rbac.Default(), auditLogger)

	return &services{
		audit:         auditLogger,
		identity:      identityService,
		authz:         authzService,
		organizations: organization.NewService(repos.organizations, authzService, auditLogger),
		resolver: organization.NewResolver(repos.organizations, organization.ResolverConfig{
			BaseDomain:       cfg.Organization.BaseDomain,
			DefaultSubdomain: cfg.Organization.DefaultSubdomain,
		}),
		issues: issue.NewService(repos.machines, repos.issues, repos.locator, authzService, auditLogger),
	}
}
