package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	gcs "cloud.google.com/go/storage"
	redisv9 "github.com/redis/go-redis/v9"

	"evalboard/internal/blob"
	"evalboard/internal/cache"
	"evalboard/internal/config"
	redisClient "evalboard/internal/platform/redis"
)

// App holds the process-wide handles, constructed once and injected
// downstream. Redis and Blob stay nil when their backend is unconfigured or
// unreachable; the pipeline degrades instead of refusing to boot.
type App struct {
	Config *config.Config
	Redis  *redisv9.Client
	Cache  cache.ResultCache
	Blob   *blob.Store

	gcsClient *gcs.Client
	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		StartedAt: time.Now(),
	}

	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("redis unavailable, falling back to in-memory result cache: %v", err)
		} else {
			app.Redis = redisCli
		}
	} else {
		log.Printf("redis not configured, using in-memory result cache")
	}
	if app.Redis != nil {
		app.Cache = cache.NewRedisResultCache(app.Redis)
	} else {
		app.Cache = cache.NewMemoryResultCache()
	}

	if cfg.Blob.Bucket != "" {
		gcsCli, err := gcs.NewClient(ctx)
		if err != nil {
			log.Printf("gcs client init failed, blob uploads disabled: %v", err)
		} else {
			app.gcsClient = gcsCli
			app.Blob = blob.NewStore(gcsCli, cfg.Blob.Bucket,
				time.Duration(cfg.Blob.SignedURLTTLMinutes)*time.Minute)
		}
	}

	if cfg.LLM.APIKey == "" {
		log.Printf("warning: LLM_API_KEY not set, extraction of uncached files will fail")
	}

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
