package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/config"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and row level security policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx, cfg.Database.Migrator())
		if err != nil {
			return err
		}
		defer db.Close()

		slog.Info("applying schema", logger.Component("migrate"), logger.String("app_role", cfg.Database.User))
		if err := db.Migrate(ctx, cfg.Database.User); err != nil {
			return err
		}
		report, err := db.VerifySchema(ctx)
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("schema applied but row isolation is incomplete: %w", err)
		}
		slog.Info("migration successful", logger.Component("migrate"))
		return nil
	},
}

var verifyIsolationCmd = &cobra.Command{
	Use:   "verify-isolation",
	Short: "Check row level security on every organization scoped table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := db.VerifyIsolation(ctx)
		if err != nil {
			return err
		}
		for _, f := range report.Findings {
			slog.Error("isolation finding", logger.Error(f))
		}
		if !report.OK() {
			return fmt.Errorf("%d isolation findings", len(report.Findings))
		}
		slog.Info("row isolation verified", logger.String("tables", fmt.Sprint(isolation.ScopedTables)))
		return nil
	},
}

var bootstrapOpts struct {
	subdomain     string
	name          string
	adminEmail    string
	adminPassword string
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create an organization and its first Admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver == config.DriverMemory {
			return errors.New("bootstrap needs a persistent store")
		}
		return bootstrap(cmd.Context())
	},
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapOpts.subdomain, "subdomain", "", "organization subdomain")
	f.StringVar(&bootstrapOpts.name, "name", "", "organization display name")
	f.StringVar(&bootstrapOpts.adminEmail, "admin-email", "", "email of the first Admin")
	f.StringVar(&bootstrapOpts.adminPassword, "admin-password", "", "password of the first Admin")
	for _, name := range []string{"subdomain", "name", "admin-email", "admin-password"} {
		_ = bootstrapCmd.MarkFlagRequired(name)
	}
}

func bootstrap(ctx context.Context) error {
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()
	svc := newServices(cfg, repos)

	org, err := svc.organizations.CreateOrganization(ctx, bootstrapOpts.subdomain, bootstrapOpts.name, "")
	if err != nil {
		return err
	}
	user, err := svc.identity.CreateUser(ctx, bootstrapOpts.adminEmail, bootstrapOpts.adminEmail, bootstrapOpts.adminPassword)
	if err != nil {
		return err
	}

	scoped := isolation.WithScope(ctx, isolation.Scope{OrganizationID: org.ID, UserID: user.ID, RoleName: rbac.TemplateAdmin})
	roles, err := svc.authz.ListRoles(scoped, org.ID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r.Name != rbac.TemplateAdmin {
			continue
		}
		if _, err := svc.authz.AddMember(scoped, org.ID, user.ID, r.ID, user.ID); err != nil {
			return err
		}
		slog.Info("organization bootstrapped",
			logger.OrganizationID(org.ID),
			logger.String("subdomain", org.Subdomain),
			logger.UserID(user.ID),
		)
		return nil
	}
	return fmt.Errorf("organization %s has no %s role", org.Subdomain, rbac.TemplateAdmin)
}
