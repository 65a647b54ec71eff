package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/openai"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

type Clients struct {
	OpenAI      openai.Client
	VectorStore pinecone.VectorStore
	// Redis is nil when REDIS_ADDR is unset; Locks then falls back to an
	// in-process locker, which is only correct for a single replica.
	Redis *goredis.Client
	Locks doclock.Locker
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	openaiClient, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	vs, err := resolveVectorStore(log, cfg)
	if err != nil {
		return Clients{}, err
	}

	out := Clients{OpenAI: openaiClient, VectorStore: vs}
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; using in-process document locks")
		out.Locks = doclock.NewLocal(cfg.Lock)
		return out, nil
	}
	rdb, err := doclock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	locks, err := doclock.NewRedis(log, rdb, cfg.Lock)
	if err != nil {
		_ = rdb.Close()
		return Clients{}, fmt.Errorf("init redis locker: %w", err)
	}
	out.Redis = rdb
	out.Locks = locks
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
