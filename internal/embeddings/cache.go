package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/metrics"
)

// Cache is a two-level read-through cache for embedding vectors. L1 is an
// in-process LRU; L2 is optional Redis behind a circuit breaker. L2 failures
// degrade to the API path and never surface to callers.
type Cache struct {
	l1     *lru.Cache[string, []float32]
	l2     *circuitbreaker.RedisWrapper
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache builds the cache. redisURL may be empty to run L1-only; an
// unreachable Redis is reported once at Warn and then treated as absent.
func NewCache(size int, redisURL string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = 10000
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l1, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}

	c := &Cache{l1: l1, ttl: ttl, logger: logger}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("Invalid REDIS_URL, embedding cache runs in-process only",
				zap.String("redis_url", redisURL),
				zap.Error(err),
			)
			return c, nil
		}
		wrapper := circuitbreaker.NewRedisWrapper(redis.NewClient(opts), logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := wrapper.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unreachable, embedding cache runs in-process only",
				zap.Error(err),
			)
			_ = wrapper.Close()
			return c, nil
		}
		c.l2 = wrapper
	}

	return c, nil
}

// Get checks L1 then L2, promoting L2 hits into L1.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.l1.Get(key); ok {
		metrics.EmbeddingCacheHits.WithLabelValues("l1").Inc()
		return v, true
	}
	if c.l2 == nil {
		return nil, false
	}
	b, err := c.l2.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	v, ok := decodeVector(b)
	if !ok {
		return nil, false
	}
	c.l1.Add(key, v)
	metrics.EmbeddingCacheHits.WithLabelValues("l2").Inc()
	return v, true
}

// Put writes to both levels. The L2 write is best effort.
func (c *Cache) Put(ctx context.Context, key string, v []float32) {
	c.l1.Add(key, v)
	if c.l2 != nil {
		_ = c.l2.Set(ctx, key, encodeVector(v), c.ttl).Err()
	}
}

// Redis exposes the L2 wrapper for health checks. Nil when the cache is
// memory only.
func (c *Cache) Redis() *circuitbreaker.RedisWrapper {
	return c.l2
}

// Close releases the Redis connection if one is held.
func (c *Cache) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

// MakeKey derives the cache key for one text under one model and task type.
func MakeKey(model, taskType, text string) string {
	h := sha256.Sum256([]byte(model + "|" + taskType + "|" + text))
	return "emb:" + hex.EncodeToString(h[:])
}

// encodeVector packs float32s as little-endian 4-byte frames for Redis.
func encodeVector(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, true
}
