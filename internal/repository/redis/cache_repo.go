package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/clients"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const generationKey = "search:generation"

type CacheRepo struct {
	client     *clients.RedisClient
	productsCv converter.ProductConverter
	searchCv   converter.SearchResultConverter
	cfg        *cfg.RedisCfg
	logger     logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Generation возвращает текущее поколение кэша поиска. Отсутствующий ключ — поколение 0.
func (c *CacheRepo) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return 0, nil
		}
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return gen, nil
}

// BumpGeneration инвалидирует все закэшированные результаты поиска разом.
func (c *CacheRepo) BumpGeneration(ctx context.Context) error {
	if err := c.client.Client.Incr(ctx, generationKey).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetSearch возвращает закэшированный результат поиска. Промах — (nil, false, nil).
func (c *CacheRepo) GetSearch(ctx context.Context, key string) (*usecase.SearchRes, bool, error) {
	data, err := c.client.Client.Get(ctx, searchKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, false, nil
		}
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.SearchResultRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, false, nil
	}

	return c.searchCv.ToUseCase(&model), true, nil
}

// SetSearch кэширует результат поиска на SearchTTL.
func (c *CacheRepo) SetSearch(ctx context.Context, key string, res *usecase.SearchRes) error {
	data, err := json.Marshal(c.searchCv.ToRedisModel(res))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, searchKey(key), data, c.cfg.SearchTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetProducts возвращает закэшированные карточки товаров по ID, игнорируя промахи и логируя их
func (c *CacheRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	keys := c.buildProductCacheKeys(ids)

	values, err := c.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[int64]domain.Product, len(values))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			c.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			continue // cache miss
		}

		var model converter.ProductRedisModel
		if err := json.Unmarshal(data, &model); err != nil {
			c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		if model.ID != ids[i] {
			c.logger.Warnf("Cache ID mismatch: key_id: %d, model_id: %d", ids[i], model.ID)
			if err := c.client.Client.Del(ctx, keys[i]).Err(); err != nil {
				c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue // cache miss
		}
		result[ids[i]] = *c.productsCv.ToEntity(&model)
	}

	return result, nil
}

// SetProducts кэширует несколько карточек одним pipeline. Ошибки сериализации логируются.
func (c *CacheRepo) SetProducts(ctx context.Context, products []domain.Product) error {
	pipeline := c.client.Client.Pipeline()
	for i := range products {
		data, err := json.Marshal(c.productsCv.ToRedisModel(&products[i]))
		if err != nil {
			c.logger.Warnf("Failed to marshal product for caching (Product ID: %d): %v", products[i].ID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		pipeline.Set(ctx, productKey(products[i].ID), data, c.cfg.ProductTTL)
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DeleteProducts удаляет карточки из кэша по ID
func (c *CacheRepo) DeleteProducts(ctx context.Context, ids []int64) error {
	if err := c.client.Client.Del(ctx, c.buildProductCacheKeys(ids)...).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *CacheRepo) buildProductCacheKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	return keys
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func searchKey(hash string) string {
	return "search:result:" + hash
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
