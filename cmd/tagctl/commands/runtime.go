package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/batch"
	"github.com/benvon/tagtube/internal/cache"
	"github.com/benvon/tagtube/internal/cleanup"
	"github.com/benvon/tagtube/internal/config"
	"github.com/benvon/tagtube/internal/database"
	"github.com/benvon/tagtube/internal/library"
	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/queue"
	"github.com/benvon/tagtube/internal/telemetry"
	"github.com/benvon/tagtube/internal/videos"
	"github.com/benvon/tagtube/internal/youtube"
)

// ProviderFactory builds the metadata provider before rate limiting is applied
type ProviderFactory func(cfg *config.Config, log *zap.Logger) (youtube.Provider, error)

// DefaultProvider picks oEmbed or the Data API from configuration
func DefaultProvider(cfg *config.Config, log *zap.Logger) (youtube.Provider, error) {
	switch cfg.MetadataProvider {
	case config.ProviderDataAPI:
		apiCfg := youtube.DataAPIConfig{APIKey: cfg.YouTube.APIKey}
		if cfg.YouTube.HasOAuth() {
			apiCfg.OAuth = &youtube.OAuthCredentials{
				ClientID:     cfg.YouTube.OAuthClientID,
				ClientSecret: cfg.YouTube.OAuthClientSecret,
				RefreshToken: cfg.YouTube.OAuthRefreshToken,
			}
		}
		return youtube.NewDataAPIClient(apiCfg, log)
	default:
		return youtube.NewOEmbedClient(log), nil
	}
}

type globalOptions struct {
	configPath string
	debug      bool
	provider   ProviderFactory
}

// runtime holds everything a command needs, built from configuration
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *database.DB
	tags    *database.TagAssociationRepository
	videos  *database.VideoRepository
	sweeper *cleanup.Sweeper
	lib     library.Library

	redis    *redis.Client
	queue    *queue.RabbitMQQueue
	async    *cleanup.AsyncNotifier
	backend  cache.Backend
	shutdown telemetry.ShutdownFunc
}

func newRuntime(ctx context.Context, opts *globalOptions) (rt *runtime, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.debug {
		cfg.DebugMode = true
	}

	log, err := logger.New(logger.Format(cfg.LogFormat), cfg.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt = &runtime{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if rt.shutdown, err = telemetry.Setup(ctx, cfg.OTELEnabled, "tagtube-cli", cfg.OTELEndpoint); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if rt.db, err = database.New(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	// A local SQLite file is created on first use; Postgres is migrated explicitly.
	if rt.db.Dialect() == database.DialectSQLite {
		if err = rt.db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	rt.tags = database.NewTagAssociationRepository(rt.db)
	rt.tags.SetLogger(log)
	rt.videos = database.NewVideoRepository(rt.db)
	rt.sweeper = cleanup.NewSweeper(rt.tags, rt.videos, log)

	if cfg.RedisURL != "" {
		if rt.redis, err = cache.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
	}

	factory := opts.provider
	if factory == nil {
		factory = DefaultProvider
	}
	provider, err := factory(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init metadata provider: %w", err)
	}
	limited, err := youtube.NewRateLimited(provider, cfg.MetadataRate, rt.redis, log)
	if err != nil {
		return nil, err
	}
	store := videos.NewStore(rt.videos, limited, videos.Options{
		LookupTimeout: cfg.MetadataTimeout,
		Concurrency:   cfg.MetadataConcurrency,
	}, log)

	var notifier library.CleanupNotifier
	if cfg.RabbitMQURL != "" {
		if rt.queue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL, log); err != nil {
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		notifier = cleanup.NewQueueNotifier(rt.queue, cfg.SweepDelay)
	} else {
		rt.async = cleanup.NewAsyncNotifier(rt.sweeper, 0, log)
		notifier = rt.async
	}

	if rt.redis != nil {
		rt.backend = cache.NewRedisBackend(rt.redis, "")
	} else {
		memory, err := cache.NewMemoryBackend(cfg.CacheMaxEntries)
		if err != nil {
			return nil, err
		}
		rt.backend = memory
	}

	loader := batch.New(rt.tags, store)
	rt.lib = cache.NewLibrary(library.NewCoordinator(loader, loader, notifier, log), rt.backend, cfg.CacheTTL, log)
	return rt, nil
}

// Close waits for in-process sweeps and releases every connection
func (rt *runtime) Close() {
	if rt.async != nil {
		rt.async.Wait()
	}
	var errs []error
	if rt.queue != nil {
		errs = append(errs, rt.queue.Close())
	}
	if rt.backend != nil {
		errs = append(errs, rt.backend.Close())
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	if rt.shutdown != nil {
		errs = append(errs, rt.shutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		rt.logger.Warn("failed_to_close_resources", zap.Error(err))
	}
	_ = logger.Sync(rt.logger)
}
