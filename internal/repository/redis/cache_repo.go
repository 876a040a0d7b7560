package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/redis/converter"
	"github.com/DRSN-tech/image-fingerprint/pkg/clients"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// CacheRepo кэширует записи реестра отпечатков по хэшу содержимого.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.FingerprintConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.FingerprintConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetFingerprint возвращает отпечаток из кэша или e.ErrCacheMiss.
// Повреждённая или чужая запись удаляется и считается промахом.
func (c *CacheRepo) GetFingerprint(ctx context.Context, hash domain.ContentHash) (*domain.Fingerprint, error) {
	key := fingerprintKey(hash)

	val, err := c.client.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, e.ErrCacheMiss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model, err := unmarshalFingerprint(val)
	if err != nil || model.ContentHash != hash.String() {
		c.logger.Warnf("Dropping corrupted cache entry: key=%s err=%v", key, err)
		if err := c.client.Client.Del(ctx, key).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, e.ErrCacheMiss
	}

	return c.conv.ToEntity(model), nil
}

// SetFingerprint кэширует отпечаток с TTL из конфигурации.
func (c *CacheRepo) SetFingerprint(ctx context.Context, fp *domain.Fingerprint) error {
	data, err := json.Marshal(c.conv.ToRedisModel(fp))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, fingerprintKey(fp.ContentHash), data, c.cfg.FingerprintTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func unmarshalFingerprint(data []byte) (*converter.FingerprintRedisModel, error) {
	var model converter.FingerprintRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// fingerprintKey возвращает Redis-ключ для одного отпечатка
func fingerprintKey(hash domain.ContentHash) string {
	return fmt.Sprintf("fingerprint:%s", hash)
}
