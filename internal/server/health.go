package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/bigtracks/internal/monitoring"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/timeutil"
)

// Health mirrors the runner's job statuses into a gRPC health service.
// Each movie is a service named by its absolute path; the empty service
// name is the server itself and is always SERVING.
type Health struct {
	*health.Server
	s *Server
}

// NewHealth returns a health service reporting on s's runner.
func (s *Server) NewHealth() *Health {
	h := &Health{Server: health.NewServer(), s: s}
	h.Sync()
	return h
}

// servingStatus maps a movie's status to a health status.
func servingStatus(st string) healthpb.HealthCheckResponse_ServingStatus {
	switch st {
	case status.Done:
		return healthpb.HealthCheckResponse_SERVING
	case status.Dead:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
}

// Sync re-reads every movie's status.
func (h *Health) Sync() {
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for i, info := range h.s.runner.ReadStatuses() {
		st, _ := info["status"].(string)
		h.SetServingStatus(h.s.runner.Movies[i].Path, servingStatus(st))
	}
}

// Poll calls Sync every interval until ctx is cancelled.
func (h *Health) Poll(ctx context.Context, interval time.Duration) {
	t := timeutil.Or(h.s.runner.Clock).NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			h.Sync()
		}
	}
}

// ServeGRPC serves the health service on addr until ctx is cancelled.
func (h *Health) ServeGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h.Server)

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("gRPC health server listening on %s", lis.Addr())
		errc <- srv.Serve(lis)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	h.Shutdown()
	srv.GracefulStop()
	return <-errc
}
