// Package telemetry wires OpenTelemetry tracing for the identity service.
package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/infra/config"
)

// ShutdownFunc flushes and stops telemetry exporters.
type ShutdownFunc func(ctx context.Context) error

// Setup installs the global tracer provider when tracing is enabled. With tracing disabled the
// otel no-op provider stays in place and the returned shutdown does nothing.
func Setup(ctx context.Context, cfg config.TelemetrySettings, logger *zap.Logger) (ShutdownFunc, error) {
	if !cfg.TracingEnabled {
		logger.Info("OpenTelemetry tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	tp, err := NewTracerProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return tp.Shutdown, nil
}
