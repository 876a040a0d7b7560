package clients

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const redisClientName = "image-fingerprint"

// RedisClient обёртка над go-redis для кэша отпечатков.
type RedisClient struct {
	Client *r.Client
	addr   string
}

func NewRedisClient(cfg *cfg.RedisCfg) *RedisClient {
	client := r.NewClient(&r.Options{
		Addr:                  cfg.Addr,
		ClientName:            redisClientName,
		Username:              cfg.User,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		MaxRetries:            cfg.MaxRetries,
		DialTimeout:           cfg.DialTimeout,
		ReadTimeout:           cfg.Timeout,
		WriteTimeout:          cfg.Timeout,
		ContextTimeoutEnabled: true,
	})

	return &RedisClient{
		Client: client,
		addr:   cfg.Addr,
	}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("redis %s: %w", c.addr, err))
	}

	return nil
}

func (c *RedisClient) Close() error {
	return c.Client.Close()
}
