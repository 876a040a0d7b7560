package grpc

import (
	"context"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName имя сервиса извлечения признаков в протоколе здоровья.
const ServiceName = "fingerprint.v1.FeatureExtractor"

// ModelStatusSource источник состояния модели; ModelStatus не должен запускать загрузку.
type ModelStatusSource interface {
	ModelStatus() *usecase.ModelStatusRes
}

// HealthReporter публикует SERVING, только когда модель загружена.
// Процесс при этом жив всегда, поэтому общий статус ("") не меняется.
type HealthReporter struct {
	health *health.Server
	status ModelStatusSource
	logger logger.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(h *health.Server, status ModelStatusSource, logger logger.Logger) *HealthReporter {
	r := &HealthReporter{
		health: h,
		status: status,
		logger: logger,
		last:   healthpb.HealthCheckResponse_UNKNOWN,
	}
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.Sync()
	return r
}

// Sync приводит статус ServiceName к текущему состоянию модели.
func (r *HealthReporter) Sync() healthpb.HealthCheckResponse_ServingStatus {
	next := healthpb.HealthCheckResponse_NOT_SERVING
	if r.status.ModelStatus().Loaded() {
		next = healthpb.HealthCheckResponse_SERVING
	}

	if next != r.last {
		r.health.SetServingStatus(ServiceName, next)
		r.logger.Infof("health: %s -> %s", ServiceName, next)
		r.last = next
	}
	return next
}

// Run периодически вызывает Sync до отмены ctx.
func (r *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sync()
		}
	}
}
