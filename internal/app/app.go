// Package app builds the shared object graph used by the server and cronjob
// binaries from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"fishtank-backend/internal/cache"
	"fishtank-backend/internal/config"
	"fishtank-backend/internal/events"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/notify"
	"fishtank-backend/internal/repository"
	"fishtank-backend/internal/repository/firestore"
	"fishtank-backend/internal/repository/memory"
	"fishtank-backend/internal/repository/postgres"
	"fishtank-backend/internal/security"
	"fishtank-backend/internal/service"
)

// App holds the wired coordinator and everything that must be closed on
// shutdown.
type App struct {
	Config      *config.Config
	Store       repository.Store
	Coordinator *service.Coordinator
	Verifier    security.Verifier

	closers []io.Closer
}

// New opens the configured store and builds the coordinator with its profile
// cache and decision notifiers.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Store: store}

	profiles := store.Profiles()
	var profileCache *cache.ProfileCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not reachable, profile cache will fall back to the store", "addr", cfg.Redis.Addr, "error", err)
		}
		a.closers = append(a.closers, client)
		profileCache = cache.NewProfileCache(profiles, client, time.Duration(cfg.Redis.ProfileTTLSeconds)*time.Second)
		profiles = profileCache
		logger.Info("Profile cache enabled", "addr", cfg.Redis.Addr, "ttl_seconds", cfg.Redis.ProfileTTLSeconds)
	}

	notifiers, err := a.buildNotifiers(ctx, profileCache)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Verifier, err = NewVerifier(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Coordinator = service.NewJoinRequestCoordinator(
		store.Fishtanks(),
		store.JoinRequests(),
		profiles,
		service.CoordinatorOptions{
			EnrichConcurrency: cfg.Coordinator.EnrichConcurrency,
			ResolveRetries:    cfg.Coordinator.ResolveRetries,
		},
		notifiers...,
	)
	return a, nil
}

// buildNotifiers wires the enabled notifiers. profiles may be nil when no
// cache is configured.
func (a *App) buildNotifiers(ctx context.Context, profiles *cache.ProfileCache) ([]service.Notifier, error) {
	cfg := a.Config
	var notifiers []service.Notifier

	if cfg.Push.Enabled {
		push, err := notify.NewPushNotifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if profiles != nil {
			push.WithInvalidator(profiles)
		}
		notifiers = append(notifiers, push)
		logger.Info("Push notifications enabled", "project", cfg.Firebase.ProjectID)
	}
	if cfg.SendGrid.APIKey != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
		logger.Info("Decision emails enabled", "from", cfg.SendGrid.FromEmail)
	}
	if cfg.SMTP.Host != "" {
		notifiers = append(notifiers, notify.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From))
		logger.Info("SMTP decision emails enabled", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub)
		notifiers = append(notifiers, pub)
		logger.Info("Decision events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	return notifiers, nil
}

// Close releases the store and any optional clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}

// OpenStore returns the document store selected by storage.type.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	case config.StoragePostgres:
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("Database connection established")
		return postgres.NewStore(db, cfg.GetDatabaseConnectionString()), nil
	case config.StorageFirestore:
		store, err := firestore.Open(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Firestore connection established", "project", cfg.Firebase.ProjectID)
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
}

// NewVerifier returns the bearer token verifier selected by auth.provider.
func NewVerifier(ctx context.Context, cfg *config.Config) (security.Verifier, error) {
	switch cfg.Auth.Provider {
	case config.AuthProviderJWT:
		return security.NewTokenManager(cfg.Auth.JWTSecret), nil
	case config.AuthProviderFirebase:
		return security.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	}
	return nil, fmt.Errorf("unsupported auth provider: %s", cfg.Auth.Provider)
}
