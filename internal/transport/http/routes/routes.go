package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/infra/config"
	"github.com/joyebene/unimart-backend/internal/transport/http/handlers"
	"github.com/joyebene/unimart-backend/internal/transport/http/middleware"
)

// IdentityService is everything the HTTP layer needs from the identity core.
type IdentityService interface {
	handlers.IdentityService
	middleware.Authenticator
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Identity    IdentityService
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Identity != nil {
		authGroup := r.Group("/api/v1/auth")
		identityHandler := handlers.NewIdentityHandler(deps.Identity, deps.Logger)
		identityHandler.RegisterRoutes(authGroup, middleware.RequireAuth(deps.Identity, deps.Logger), buildRateLimits(deps))
	}

	return r
}

// buildRateLimits counts every limited endpoint per client IP. Endpoints that send or check a code
// are also counted per email, so one inbox cannot be flooded or guessed at from many addresses.
func buildRateLimits(deps Dependencies) handlers.Middlewares {
	if deps.RateLimiter == nil || deps.Config == nil {
		return handlers.Middlewares{}
	}

	settings := deps.Config.RateLimit
	window := settings.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	perIP := func(name string, max int) middleware.Limit {
		return middleware.Limit{Name: name + "_ip", Max: max, Window: window, Key: middleware.ByClientIP()}
	}
	perEmail := func(name string, max int) middleware.Limit {
		return middleware.Limit{Name: name + "_email", Max: max, Window: window, Key: middleware.ByEmail()}
	}
	enforce := func(limits ...middleware.Limit) []gin.HandlerFunc {
		return []gin.HandlerFunc{deps.RateLimiter.Enforce(limits...)}
	}

	// verify-otp and reset-password draw on one budget of code guesses.
	codeChecks := enforce(perIP("auth_otp_check", settings.OTPVerifyMaxAttempts), perEmail("auth_otp_check", settings.OTPVerifyMaxAttempts))

	return handlers.Middlewares{
		Register:       enforce(perIP("auth_register", settings.RegisterMaxAttempts)),
		Login:          enforce(perIP("auth_login", settings.LoginMaxAttempts)),
		ResendOTP:      enforce(perIP("auth_resend_otp", settings.OTPMaxAttempts), perEmail("auth_resend_otp", settings.OTPMaxAttempts)),
		ForgotPassword: enforce(perIP("auth_forgot_password", settings.OTPMaxAttempts), perEmail("auth_forgot_password", settings.OTPMaxAttempts)),
		VerifyOTP:      codeChecks,
		ResetPassword:  codeChecks,
	}
}
