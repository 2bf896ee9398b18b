// Package grpc hosts the Calculator service over gRPC and provides the
// client-side Adder that calls it.
package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server implements the Calculator gRPC service
type Server struct {
	adder  calculator.Adder
	server *grpc.Server
	health *health.Server
}

// NewServer creates a gRPC server answering with adder.
func NewServer(adder calculator.Adder) *Server {
	s := &Server{
		adder:  adder,
		health: health.NewServer(),
	}

	s.server = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			tracingInterceptor,
			loggingInterceptor,
			metricsInterceptor,
			errorHandlingInterceptor,
		),
	)
	RegisterCalculatorServer(s.server, s)
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return s
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr asks for port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	logging.Op().Info("gRPC server started", "addr", lis.Addr().String())

	go func() {
		if err := s.server.Serve(lis); err != nil {
			logging.Op().Error("gRPC server error", "error", err)
		}
	}()

	return lis.Addr(), nil
}

// Serve serves on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks the service as not serving and gracefully stops the server
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// Add handles a Calculator.Add request.
func (s *Server) Add(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int32Value, error) {
	r, err := parseAddRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	v, err := s.adder.Add(ctx, r.X, r.Y)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Int32(v), nil
}
