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

package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
)

// Server wraps the gRPC server and its health service.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// NewServer creates the gRPC server. Interceptor order: logging, then
// authorization, then panic recovery around the handler.
func NewServer(authorizer *Authorizer, svc *Service) *Server {
	recoveryOpt := grpcrecovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
		slog.ErrorContext(ctx, "grpc handler panicked", logger.String("panic", fmt.Sprint(p)))
		return status.Error(codes.Internal, "internal error")
	})

	s := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			LoggingUnaryInterceptor(),
			authorizer.UnaryInterceptor(),
			grpcrecovery.UnaryServerInterceptor(recoveryOpt),
		)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	s.RegisterService(&authorizationServiceDesc, svc)
	s.RegisterService(&issueServiceDesc, svc)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{srv: s, health: hs}
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC listener started", logger.String("address", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop marks the server not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
