package app

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"todo/backend/internal/rpc"
)

const pingTimeout = 5 * time.Second

// WatchHealth pings the repository every interval and mirrors the result into
// hs, for both the server as a whole and the todo service. It returns when
// ctx is done.
func (s *Service) WatchHealth(ctx context.Context, hs *health.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.reportHealth(ctx, hs)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) reportHealth(ctx context.Context, hs *health.Server) grpc_health_v1.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.repo.Ping(pingCtx); err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		s.logger.WarnContext(ctx, "repository ping failed", "err", err)
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(rpc.ServiceName, status)
	return status
}
