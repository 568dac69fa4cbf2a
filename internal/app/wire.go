package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/yieldbet/marketd/internal/blob/s3"
	"github.com/yieldbet/marketd/internal/cache/redis"
	"github.com/yieldbet/marketd/internal/config"
	"github.com/yieldbet/marketd/internal/domain"
	"github.com/yieldbet/marketd/internal/notify"
	"github.com/yieldbet/marketd/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the application modes
// build their services from. Wire constructs it; the returned cleanup tears
// it down in reverse order.
type Dependencies struct {
	// Postgres
	PG        *postgres.Client
	Ledger    domain.LedgerStore
	Markets   domain.ExtendedMarketStore
	Bets      domain.ExtendedBetStore
	Users     domain.UserStore
	EventLog  domain.EventLogStore
	Protocols domain.ProtocolStore

	// Redis (nil when unavailable; realtime fan-out degrades gracefully)
	Redis       *redis.Client
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus

	// Cold storage (nil unless s3.enabled)
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs the dependency graph from cfg. Postgres is mandatory;
// Redis and S3 are optional and their absence disables the dependent
// features rather than failing startup.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.Ledger = postgres.NewLedgerStore(pool)
	deps.Markets = postgres.NewExtendedMarketStore(pool)
	deps.Bets = postgres.NewExtendedBetStore(pool)
	deps.Users = postgres.NewUserStore(pool)
	deps.EventLog = postgres.NewEventLogStore(pool)
	deps.Protocols = postgres.NewProtocolStore(pool)

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		logger.Warn("wire: redis unavailable, caching and realtime fan-out disabled",
			slog.String("addr", cfg.Redis.Addr),
			slog.Any("error", err),
		)
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Redis = redisClient
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	var senders []notify.Sender
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
