package address

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// Cache stores serialized lookup levels. Get returns "" on a miss.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}

type redisCache struct {
	client      redis.UniversalClient
	serviceName string
}

func NewRedisCache(client redis.UniversalClient, serviceName string) Cache {
	return &redisCache{client: client, serviceName: serviceName}
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

const memoryCacheCapacity = 10000

// MemoryCache is the Cache used when no Redis is configured. Expired entries
// are evicted in the background between Start and Close.
type MemoryCache struct {
	cache       *ttlcache.Cache[string, string]
	serviceName string
}

func NewMemoryCache(serviceName string) *MemoryCache {
	return &MemoryCache{
		cache:       ttlcache.New[string, string](ttlcache.WithCapacity[string, string](memoryCacheCapacity)),
		serviceName: serviceName,
	}
}

// Start runs the expiry loop until Close is called. It blocks.
func (m *MemoryCache) Start() {
	m.cache.Start()
}

func (m *MemoryCache) Close() {
	m.cache.Stop()
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	m.cache.Set(key, s, ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	item := m.cache.Get(key)
	if item == nil {
		return "", nil
	}
	return item.Value(), nil
}

func (m *MemoryCache) Len() int {
	return m.cache.Len()
}

func (m *MemoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.serviceName, operation, key)
}
