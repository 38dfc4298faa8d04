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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/metrics"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/tracing"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/session"
	transportGRPC "github.com/timothyfroehlich/PinPoint-sub001/internal/transport/grpc"
	transportHTTP "github.com/timothyfroehlich/PinPoint-sub001/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	slog.Info("starting pinpoint", logger.String("store", cfg.StoreDriver))

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.OTELEndpoint,
		Insecure:       true,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	meter := metrics.NewMeter(metrics.Config{Enabled: cfg.Observability.OTELEnabled})

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()
	svc := newServices(cfg, repos)

	sessions, err := session.NewManager(session.Config{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Lifetime: cfg.Session.Lifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}

	engine := authz.NewEngine(svc.resolver, svc.authz,
		authz.WithTracer(tracer.Tracer()),
		authz.WithMeter(meter),
		authz.WithAuditLogger(svc.audit),
	)

	// HTTP
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()
	var publicLimiter *transportHTTP.RateLimiter
	if cfg.RateLimit.PublicRequestsPerSecond > 0 && cfg.RateLimit.PublicBurst > 0 {
		publicLimiter = transportHTTP.NewRateLimiter(cfg.RateLimit.PublicRequestsPerSecond, cfg.RateLimit.PublicBurst)
		defer publicLimiter.Close()
	}

	handler := transportHTTP.NewHandler(transportHTTP.Dependencies{
		Identity:    svc.identity,
		Sessions:    sessions,
		Authz:       svc.authz,
		Engine:      engine,
		Resolver:    svc.resolver,
		Issues:      svc.issues,
		AuditLogger: svc.audit,
		Metrics:     metrics.NewHTTP(),
		Health:      repos.ping,
	}, transportHTTP.SessionConfig{
		CookieName:     cfg.Session.CookieName,
		CookieDomain:   cfg.Session.CookieDomain,
		CookiePath:     cfg.Session.CookiePath,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: sameSiteMode(cfg.Session.CookieSameSite),
		SelectorHeader: cfg.Organization.SelectorHeader,
	})
	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Public:         publicLimiter,
	})
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC
	grpcServer := transportGRPC.NewServer(
		transportGRPC.NewAuthorizer(engine, sessions, cfg.Organization.SelectorHeader, transportGRPC.DefaultRules()),
		transportGRPC.NewService(svc.issues),
	)
	grpcListener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting http server", logger.Component("server"), logger.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(grpcListener)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		grpcServer.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", logger.Error(err))
		}
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", logger.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func sameSiteMode(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
