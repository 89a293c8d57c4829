package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/logwindow/internal/runtime"
	"github.com/rzbill/logwindow/pkg/log"
)

// ServiceName is the health service name reported alongside the overall ("")
// status.
const ServiceName = "logwindow.Store"

const (
	probeInterval = 5 * time.Second
	probeTimeout  = 2 * time.Second
)

// healthProber keeps a grpc health.Server in line with the backend.
type healthProber struct {
	rt       *runtime.Runtime
	srv      *health.Server
	logger   log.Logger
	interval time.Duration
	last     healthpb.HealthCheckResponse_ServingStatus
}

func newHealthProber(rt *runtime.Runtime, logger log.Logger) *healthProber {
	if logger == nil {
		logger = log.NewNop()
	}
	return &healthProber{
		rt:       rt,
		srv:      health.NewServer(),
		logger:   logger,
		interval: probeInterval,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// probe pings the backend once and publishes the result.
func (p *healthProber) probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if err := p.rt.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if p.last != status {
			p.logger.Warn("backend unhealthy", log.Err(err))
		}
	} else if p.last == healthpb.HealthCheckResponse_NOT_SERVING {
		p.logger.Info("backend healthy again")
	}
	p.last = status
	p.srv.SetServingStatus("", status)
	p.srv.SetServingStatus(ServiceName, status)
	return status
}

// run probes on every tick until ctx is done, then marks the server as
// shutting down so watchers see NOT_SERVING.
func (p *healthProber) run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.srv.Shutdown()
			return
		case <-t.C:
			p.probe(ctx)
		}
	}
}
