package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/core/port"
	"github.com/avelor/identity-auth/internal/infra/config"
	"github.com/avelor/identity-auth/internal/infra/database"
	kafkainfra "github.com/avelor/identity-auth/internal/infra/kafka"
	"github.com/avelor/identity-auth/internal/infra/logger"
	redisinfra "github.com/avelor/identity-auth/internal/infra/redis"
	"github.com/avelor/identity-auth/internal/infra/security"
	"github.com/avelor/identity-auth/internal/infra/telemetry"
	postgresrepo "github.com/avelor/identity-auth/internal/repository/postgres"
	redisrepo "github.com/avelor/identity-auth/internal/repository/redis"
	"github.com/avelor/identity-auth/internal/usecase"
)

// Application owns the wired service graph and the background loops.
type Application struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	metrics   *telemetry.Provider
	Sessions  *usecase.SessionService
	Passwords *usecase.PasswordService
	Codes     *usecase.VerificationCodeService
	reapers   []*usecase.Reaper
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	issuer, err := security.NewTokenIssuer(keyProvider, cfg.JWT.SigningKeyID, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	stampCache := redisrepo.NewSecurityStampCache(redisClient.Client(), cfg.Redis.SecurityStampPrefix)

	var (
		producer       *kafkainfra.Producer
		eventPublisher port.EventPublisher
		notifier       port.Notifier
	)
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
			notifier = kafkainfra.NewNotifier(nil, log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			notifier = kafkainfra.NewNotifier(producer, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
		notifier = kafkainfra.NewNotifier(nil, log)
	}

	accounts := postgresrepo.NewAccountRepository(pool)
	credentials := postgresrepo.NewCredentialRepository(pool)
	tokens := postgresrepo.NewRefreshTokenStore(pool)
	codes := postgresrepo.NewVerificationCodeStore(pool)

	sessions, err := usecase.NewSessionService(accounts, credentials, tokens, stampCache, hasher, issuer, eventPublisher, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init session service: %w", err)
	}
	sessions.WithMetrics(metrics.LoginCounter(), metrics.AuthFailureCounter())
	sessions.WithStampTTL(cfg.Redis.SecurityStampTTL)

	validator := security.NewPasswordValidator(
		security.MinLengthRule(cfg.Password.MinLength),
		security.RequirePasswordStrengthRule(cfg.Password.MinScore),
	)

	passwords, err := usecase.NewPasswordService(credentials, tokens, stampCache, hasher, validator, eventPublisher, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password service: %w", err)
	}

	codeService, err := usecase.NewVerificationCodeService(codes, notifier, eventPublisher, log, cfg.Codes.Length, cfg.Codes.TTL)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init verification code service: %w", err)
	}

	tokenReaper, err := usecase.NewReaper("refresh_tokens", cfg.Reaper.TokenInterval, tokens.DeleteExpired, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token reaper: %w", err)
	}
	tokenReaper.WithCounter(metrics.ReaperDeletionCounter("refresh_tokens"))

	codeReaper, err := usecase.NewReaper("verification_codes", cfg.Reaper.CodeInterval, codes.DeleteExpired, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init code reaper: %w", err)
	}
	codeReaper.WithCounter(metrics.ReaperDeletionCounter("verification_codes"))

	return &Application{
		cfg:       cfg,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		producer:  producer,
		metrics:   metrics,
		Sessions:  sessions,
		Passwords: passwords,
		Codes:     codeService,
		reapers:   []*usecase.Reaper{tokenReaper, codeReaper},
	}, nil
}

// Run starts the background loops and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	a.logger.Info("starting auth core",
		zap.String("env", a.cfg.App.Env),
		zap.String("name", a.cfg.App.Name),
	)

	for _, reaper := range a.reapers {
		go reaper.Run(ctx)
	}

	metricsErrCh := make(chan error, 1)
	go func() {
		if err := a.metrics.Serve(ctx, a.logger); err != nil {
			metricsErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		return nil
	case err := <-metricsErrCh:
		return err
	}
}
