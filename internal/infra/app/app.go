package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/infra/database"
	kafkainfra "github.com/finledger/finledger-backend/internal/infra/kafka"
	"github.com/finledger/finledger-backend/internal/infra/logger"
	redisinfra "github.com/finledger/finledger-backend/internal/infra/redis"
	"github.com/finledger/finledger-backend/internal/infra/security"
	memoryrepo "github.com/finledger/finledger-backend/internal/repository/memory"
	postgresrepo "github.com/finledger/finledger-backend/internal/repository/postgres"
	redisrepo "github.com/finledger/finledger-backend/internal/repository/redis"
	"github.com/finledger/finledger-backend/internal/transport/http/middleware"
	"github.com/finledger/finledger-backend/internal/transport/http/routes"
	"github.com/finledger/finledger-backend/internal/usecase"
)

// Application wires configuration, stores, services, and transport together.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	purgers  []port.Purger
}

// New builds the application graph.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	signer, err := security.NewTokenSigner(keyProvider, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	app := &Application{cfg: cfg, logger: log, pool: pool}

	// Durable stores live in Postgres.
	users := postgresrepo.NewUserRepository(pool)
	pending := postgresrepo.NewPendingRegistrationRepository(pool)
	userTokens := postgresrepo.NewUserTokenRepository(pool)
	sessions := postgresrepo.NewSessionRepository(pool)
	resetSessions := postgresrepo.NewResetSessionRepository(pool)
	app.purgers = append(app.purgers, pending, userTokens, sessions, resetSessions)

	// Volatile stores prefer Redis and fall back to in-memory variants.
	var (
		lockout     port.LockoutTracker
		otp         port.OTPChallenges
		revocations port.RevocationStore
		rateLimits  port.RateLimitStore
	)
	if cfg.Redis.Host != "" {
		redisClient, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		app.redis = redisClient

		prefix := cfg.Redis.KeyPrefix
		lockout = redisrepo.NewLockoutRepository(redisClient.Client(), prefix+":lockout", cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration)
		otp = redisrepo.NewOTPRepository(redisClient.Client(), prefix+":otp")
		revocations = redisrepo.NewRevocationRepository(redisClient.Client(), prefix+":revoked")
		rateLimits = redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: prefix + ":rate-limit",
			TTL:       cfg.RateLimit.WindowDuration * 2,
		})
	} else {
		log.Info("redis not configured, using in-memory volatile stores")
		memLockout := memoryrepo.NewLockoutTracker(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration)
		memOTP := memoryrepo.NewOTPStore()
		memRevocations := memoryrepo.NewRevocationStore()
		lockout = memLockout
		otp = memOTP
		revocations = memRevocations
		rateLimits = memoryrepo.NewRateLimitStore()
		app.purgers = append(app.purgers, memLockout, memOTP, memRevocations)
	}

	// Outbound events and mail go through Kafka when brokers are present.
	var (
		events port.EventPublisher
		mail   port.MailSender
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
			mail = kafkainfra.NewStubMailSender(log)
		} else {
			app.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			mail = kafkainfra.NewMailSender(producer, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
		mail = kafkainfra.NewStubMailSender(log)
	}

	staticCode := cfg.Auth.OTPStaticCode
	if cfg.App.Env == "production" {
		staticCode = ""
	}
	codes := security.NewCodeGenerator(cfg.Auth.OTPLength, staticCode)

	authService := usecase.NewAuthService(cfg, users, lockout, otp, sessions, revocations, signer, codes, mail, log)
	registrationService := usecase.NewRegistrationService(cfg, users, pending, sessions, signer, codes, mail, events, log)
	passwordResetService := usecase.NewPasswordResetService(cfg, users, userTokens, resetSessions, sessions, revocations, signer, codes, mail, events, log)

	app.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimits, log),
		Database:    pool,
		Cache:       app.redis,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			PasswordReset: passwordResetService,
		},
	})

	return app, nil
}

// Run starts the HTTP server and the purge scheduler, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go a.runPurgeScheduler(purgeCtx)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// runPurgeScheduler sweeps every store's expired state on a fixed interval.
// Stores also prune opportunistically; the sweep only bounds growth.
func (a *Application) runPurgeScheduler(ctx context.Context) {
	interval := a.cfg.Auth.PurgeInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			for _, purger := range a.purgers {
				if err := purger.Purge(ctx, now); err != nil {
					a.logger.Warn("store purge failed", zap.Error(err))
				}
			}
		}
	}
}

func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
