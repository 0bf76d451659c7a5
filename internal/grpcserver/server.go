package grpcserver

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health check service name clients probe for.
const ServiceName = "deliveries.Dashboard"

// Server exposes grpc.health.v1.Health. The dashboard reports SERVING only
// after the order collection has been loaded.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger))),
		health: health.NewServer(),
		logger: logger.Named("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.SetReady(false)
	return s
}

// SetReady switches the reported status of the dashboard service and of the
// server as a whole.
func (s *Server) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	s.logger.Info("Health status changed", zap.String("status", status.String()))
}

// Run serves until Shutdown is called.
func (s *Server) Run(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("gRPC server stopped")
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("RPC failed", zap.String("rpc_method", info.FullMethod), zap.Error(err))
		} else {
			logger.Debug("RPC served", zap.String("rpc_method", info.FullMethod))
		}
		return resp, err
	}
}
