package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clearbasin/planengine/internal/ai"
	"github.com/clearbasin/planengine/internal/cache"
	"github.com/clearbasin/planengine/internal/config"
	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/storage"
)

// appContext bundles what every command needs after bootstrap.
type appContext struct {
	cfg    *config.Config
	logger *observability.Logger
	db     *sql.DB
}

func bootstrap(ctx context.Context) (*appContext, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "planengine",
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger := observability.NewLogger(logCfg)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &appContext{cfg: cfg, logger: logger, db: db}, nil
}

func (a *appContext) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newCacheClient picks the model-response cache backend. "none" disables
// caching entirely.
func newCacheClient(cfg config.CacheConfig, logger *observability.Logger) cache.Client {
	switch cfg.Driver {
	case "redis":
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, falling back to in-memory cache")
			return cache.NewMemoryClient(cfg.MaxEntries)
		}
		return client
	case "none":
		return nil
	default:
		return cache.NewMemoryClient(cfg.MaxEntries)
	}
}

func newModelClient(a *appContext) *ai.Client {
	return ai.NewClient(ai.Config{
		APIKey:      a.cfg.Model.APIKey,
		BaseURL:     a.cfg.Model.BaseURL,
		Model:       a.cfg.Model.Model,
		Temperature: a.cfg.Model.Temperature,
		Timeout:     a.cfg.Model.Timeout,
	}, newCacheClient(a.cfg.Cache, a.logger), a.cfg.Cache.TTL, a.logger)
}

// newOracle picks the merge oracle: model backed when credentials exist,
// deterministic fallback otherwise.
func newOracle(client *ai.Client, logger *observability.Logger) ai.MergeOracle {
	if client.Available() {
		return ai.NewModelOracle(client)
	}
	logger.Warn().Msg("model credentials missing, merge decisions use conservative fallback")
	return ai.NewConservativeOracle()
}
