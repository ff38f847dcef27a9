// Package grpchealth serves the standard grpc.health.v1 service so
// orchestrators that probe over gRPC can check the process.
package grpchealth

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "receipts.v1.ReceiptProcessor"

type Server struct {
	addr   string
	lis    net.Listener
	health *health.Server
	Server *grpc.Server
}

func New(addr string) *Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		addr:   addr,
		health: hs,
		Server: s,
	}
}

// Start listens on the configured address and blocks serving.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.lis = lis
	return s.Server.Serve(lis)
}

// SetServing flips both the overall and the receipts service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks the process not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
