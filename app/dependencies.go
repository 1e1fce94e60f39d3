package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/rcfms-admin/config"
	"github.com/upb/rcfms-admin/identity"
	"github.com/upb/rcfms-admin/internal/observability"
	"github.com/upb/rcfms-admin/middleware"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
	"github.com/upb/rcfms-admin/repositories/memory"
	"github.com/upb/rcfms-admin/repositories/postgres"
	"github.com/upb/rcfms-admin/services/account"
	"github.com/upb/rcfms-admin/services/audit"
	principals "github.com/upb/rcfms-admin/services/identity"
	"github.com/upb/rcfms-admin/services/notify"
	"github.com/upb/rcfms-admin/services/provisioning"
	"github.com/upb/rcfms-admin/services/users"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Storage. RepoFactory is nil with the memory driver.
	RepoFactory *postgres.RepositoryFactory
	DB          *postgres.DB
	AuditDB     *postgres.DB

	// Repositories
	Profiles   repositories.ProfileRepository
	Identities repositories.IdentityRepository
	AuditLogs  repositories.AuditRepository
	TxManager  repositories.TransactionManager

	// Identity
	Tokens           *identity.TokenIssuer
	IdentityProvider *identity.Provider
	Resolver         *principals.Resolver
	AuthMiddleware   *middleware.AuthMiddleware
	LoginLimiter     *middleware.RateLimiter

	// Services
	AuditRecorder *audit.Recorder
	Notifier      *notify.Dispatcher
	Provisioning  *provisioning.Service
	Users         *users.Service
	Accounts      *account.Service

	kafka  *notify.KafkaSender
	closed bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initIdentity(cfg); err != nil {
		_ = deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	if err := deps.initNotifications(cfg); err != nil {
		deps.LoginLimiter.Stop()
		_ = deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	deps.initServices()

	logger.Info("all dependencies initialized successfully",
		zap.String("storage", cfg.StorageDriver))
	return deps, nil
}

// initStorage opens postgres (and the audit DB when configured) or builds the memory store
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.UsesMemoryStorage() {
		store := memory.NewStore()
		d.setRepositories(store.Repositories(), store.TransactionManager())
		d.Logger.Warn("using in-memory storage; data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.AuditDB = factory.GetAuditDB()

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		d.RepoFactory = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.setRepositories(factory.NewRepositories(), factory.GetTransactionManager())
	return nil
}

func (d *Dependencies) setRepositories(repos *repositories.Repositories, tx repositories.TransactionManager) {
	d.Profiles = repos.Profiles
	d.Identities = repos.Identities
	d.AuditLogs = repos.AuditLogs
	d.TxManager = tx
	d.Logger.Info("repositories initialized")
}

// initIdentity builds the token issuer, password provider and principal resolver
func (d *Dependencies) initIdentity(cfg *config.Config) error {
	tokens, err := identity.NewTokenIssuer(identity.TokenConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	provider, err := identity.NewProvider(d.Identities, tokens, d.Logger, identity.Config{
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if err != nil {
		return err
	}

	d.Tokens = tokens
	d.IdentityProvider = provider
	d.Resolver = principals.NewResolver(provider, d.Profiles, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Resolver, d.Logger)
	d.LoginLimiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.LoginPerMinute,
		Burst:             cfg.RateLimit.LoginBurst,
	}, d.Logger)
	return nil
}

// initNotifications starts the credentials dispatcher over every configured channel
func (d *Dependencies) initNotifications(cfg *config.Config) error {
	senders := []notify.Sender{notify.NewLogSender(d.Logger)}

	if cfg.SMTP.Enabled() {
		senders = append(senders, notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
		d.Logger.Info("smtp notifications enabled", zap.String("host", cfg.SMTP.Host))
	}

	if cfg.Kafka.Enabled() {
		d.kafka = notify.NewKafkaSender(notify.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		senders = append(senders, d.kafka)
		d.Logger.Info("kafka notifications enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	d.Notifier = notify.NewDispatcher(d.Logger, d.Metrics, notify.Config{
		BufferSize:  cfg.Notify.BufferSize,
		WorkerCount: cfg.Notify.WorkerCount,
		SendTimeout: cfg.Notify.SendTimeout,
	}, senders...)
	return d.Notifier.Start()
}

func (d *Dependencies) initServices() {
	d.AuditRecorder = audit.NewRecorder(d.AuditLogs, d.Profiles, d.Logger, d.Metrics.AuditWriteFailures, audit.DefaultConfig())
	d.Provisioning = provisioning.NewService(
		d.Profiles,
		d.TxManager,
		d.IdentityProvider,
		d.Notifier,
		d.AuditRecorder,
		d.Metrics,
		d.Logger,
	)
	d.Users = users.NewService(d.Profiles, d.AuditRecorder, d.Logger)
	d.Accounts = account.NewService(d.IdentityProvider, d.Profiles, d.AuditRecorder, d.Logger)
}

// BootstrapAdmin creates the configured super admin when no profile exists yet.
// It returns a nil profile when bootstrap is disabled or the store is not empty.
func (d *Dependencies) BootstrapAdmin(ctx context.Context) (*models.Profile, identity.Secret, error) {
	if !d.Config.Bootstrap.Enabled() {
		return nil, identity.Secret{}, nil
	}
	return d.Provisioning.EnsureSuperAdmin(ctx, provisioning.BootstrapAdmin{
		Email:    d.Config.Bootstrap.Email,
		FullName: d.Config.Bootstrap.FullName,
		WorkID:   d.Config.Bootstrap.WorkID,
	})
}

// SQLDB returns the main pool for readiness checks, nil with the memory driver
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

// AuditSQLDB returns the separate audit pool, nil when audit shares the main DB
func (d *Dependencies) AuditSQLDB() *sql.DB {
	if d.AuditDB == nil {
		return nil
	}
	return d.AuditDB.DB
}

// Close gracefully shuts down all dependencies. Queued notifications are
// drained until ctx expires.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.LoginLimiter != nil {
		d.LoginLimiter.Stop()
	}

	if d.Notifier != nil {
		timeout := d.Config.Notify.SendTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Notifier.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain notifications: %w", err))
		}
	}

	if d.kafka != nil {
		if err := d.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka writer: %w", err))
		}
	}

	if err := d.closeStorage(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	} else if d.RepoFactory != nil {
		d.Logger.Info("database connection closed")
	}

	// Sync logger
	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

func (d *Dependencies) closeStorage() error {
	if d.RepoFactory == nil {
		return nil
	}
	return d.RepoFactory.Close()
}
