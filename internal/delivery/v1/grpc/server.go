package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	cfg    *cfg.GRPCConfig
	logger logger.Logger
}

func NewGRPCServer(cfg *cfg.GRPCConfig, logger logger.Logger) *GRPCServer {
	return &GRPCServer{
		server: grpc.NewServer(grpc.ChainUnaryInterceptor(recoverInterceptor(logger))),
		health: health.NewServer(),
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterServices регистрирует стандартный сервис здоровья. Возвращённый HealthReporter
// переключает его статус по состоянию модели.
func (s *GRPCServer) RegisterServices(status ModelStatusSource) *HealthReporter {
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return NewHealthReporter(s.health, status, s.logger)
}

func (s *GRPCServer) Start() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	lis, err := net.Listen(s.cfg.NetworkMode, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infof("gRPC server stopped gracefully")
		return nil
	case <-ctx.Done():
		s.server.Stop()
		s.logger.Warnf("gRPC server forced to stop after timeout")
		return ctx.Err()
	}
}

// recoverInterceptor превращает панику обработчика в codes.Internal.
func recoverInterceptor(logger logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf(fmt.Errorf("panic: %v", r), "gRPC %s panicked", info.FullMethod)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
