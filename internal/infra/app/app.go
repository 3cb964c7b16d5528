package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/config"
	"github.com/joyebene/unimart-backend/internal/infra/database"
	kafkainfra "github.com/joyebene/unimart-backend/internal/infra/kafka"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
	"github.com/joyebene/unimart-backend/internal/infra/notification"
	redisinfra "github.com/joyebene/unimart-backend/internal/infra/redis"
	"github.com/joyebene/unimart-backend/internal/infra/security"
	"github.com/joyebene/unimart-backend/internal/infra/telemetry"
	"github.com/joyebene/unimart-backend/internal/repository/memory"
	postgresrepo "github.com/joyebene/unimart-backend/internal/repository/postgres"
	redisrepo "github.com/joyebene/unimart-backend/internal/repository/redis"
	"github.com/joyebene/unimart-backend/internal/transport/http/middleware"
	"github.com/joyebene/unimart-backend/internal/transport/http/routes"
	"github.com/joyebene/unimart-backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns the HTTP server and every resource it was built from.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	shutdown telemetry.ShutdownFunc
}

// New builds the dependency graph. Any error leaves no resources open.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	sessions, err := security.NewSessionIssuer(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("init session issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2ConfigFromSettings(cfg.Argon2))
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	accounts, tx, err := a.accountStore(ctx)
	if err != nil {
		return nil, err
	}

	gateway, events, err := a.notifications()
	if err != nil {
		return nil, err
	}

	identity := usecase.NewIdentityService(accounts, tx, gateway, sessions, security.NewOTPPolicy(cfg.OTP)).
		WithPasswordHasher(hasher).
		WithPasswordValidator(security.NewPasswordPolicy(cfg.Password)).
		WithEventPublisher(events).
		WithDeliveryTimeout(cfg.Notification.Timeout).
		WithLogger(log)

	rateLimiter, err := a.rateLimiter(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Identity:    identity,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

func (a *Application) accountStore(ctx context.Context) (port.AccountRepository, port.AccountTransactor, error) {
	if a.cfg.Storage.Driver == "memory" {
		a.logger.Warn("using in-memory credential store, accounts are lost on restart")
		store := memory.NewAccountStore()
		return store, store, nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	return postgresrepo.NewAccountRepository(pool), postgresrepo.NewTransactor(pool, a.logger), nil
}

func (a *Application) notifications() (port.NotificationGateway, port.EventPublisher, error) {
	if a.cfg.Notification.Driver == "log" {
		a.logger.Info("otp delivery logs codes locally, events are not published")
		return notification.NewLoggingGateway(a.logger, !a.cfg.App.IsProduction()), kafkainfra.NewStubPublisher(a.logger), nil
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.cfg.Notification.Timeout, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka producer: %w", err)
	}
	a.producer = producer
	a.logger.Info("kafka producer initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))

	return kafkainfra.NewOTPGateway(producer, a.cfg.Kafka.OTPTopic, a.logger),
		kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger), nil
}

func (a *Application) rateLimiter(ctx context.Context) (*middleware.RateLimiter, error) {
	if !a.cfg.Redis.Enabled {
		a.logger.Warn("redis disabled, auth endpoints are not rate limited")
		return nil, nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client

	window := a.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	store := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: a.cfg.Redis.RateLimitPrefix,
		TTL:       window * 2,
	})

	return middleware.NewRateLimiter(store, a.logger), nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and releases resources.
func (a *Application) Run(ctx context.Context) error {
	defer a.release(context.Background())

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, strconv.Itoa(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("notification", a.cfg.Notification.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down identity API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := a.shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutdown telemetry", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
