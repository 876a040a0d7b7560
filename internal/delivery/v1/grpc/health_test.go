package grpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubStatus struct {
	state atomic.Int32
}

func (s *stubStatus) ModelStatus() *usecase.ModelStatusRes {
	return usecase.NewModelStatusRes(domain.ModelState(s.state.Load()), "m-v1", "cpu")
}

func check(t *testing.T, h *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter_FollowsModelState(t *testing.T) {
	h := health.NewServer()
	status := &stubStatus{}
	r := NewHealthReporter(h, status, logger.NewNopLogger())

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ServiceName))

	status.state.Store(int32(domain.ModelLoaded))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, r.Sync())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ServiceName))

	status.state.Store(int32(domain.ModelFailedPermanently))
	r.Sync()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ServiceName))
}

func TestHealthReporter_Run(t *testing.T) {
	h := health.NewServer()
	status := &stubStatus{}
	r := NewHealthReporter(h, status, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	status.state.Store(int32(domain.ModelLoaded))
	assert.Eventually(t, func() bool {
		return check(t, h, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
