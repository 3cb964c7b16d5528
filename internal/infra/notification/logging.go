// Package notification holds OTP delivery gateways that do not need a broker.
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
)

// LoggingGateway writes OTPs to the log instead of delivering them. Codes are only
// included when revealCodes is set, which app wiring does outside production.
type LoggingGateway struct {
	logger      *zap.Logger
	revealCodes bool
}

// NewLoggingGateway constructs a gateway for local development.
func NewLoggingGateway(l *zap.Logger, revealCodes bool) *LoggingGateway {
	if l == nil {
		l = zap.NewNop()
	}
	return &LoggingGateway{logger: l, revealCodes: revealCodes}
}

// SendOTP logs the delivery. It fails only when ctx has already ended.
func (g *LoggingGateway) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []zap.Field{zap.String("email", logger.MaskEmail(email))}
	if g.revealCodes {
		fields = append(fields, zap.String("otp", code))
	}
	logger.WithContext(ctx, g.logger).Info("otp delivery (log driver)", fields...)
	return nil
}

var _ port.NotificationGateway = (*LoggingGateway)(nil)
