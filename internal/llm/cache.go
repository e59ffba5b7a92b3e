package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
)

// CacheConfig holds response cache configuration
type CacheConfig struct {
	MemoryMaxSize int
	MemoryTTL     time.Duration
	RedisTTL      time.Duration
	RedisPrefix   string
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryMaxSize: 256,
		MemoryTTL:     10 * time.Minute,
		RedisTTL:      time.Hour,
		RedisPrefix:   "smartfill:llm:",
	}
}

// CacheStats tracks cache statistics
type CacheStats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Misses     int64 `json:"misses"`
}

type cacheEntry struct {
	resp      *RemoteResponse
	createdAt time.Time
}

// ResponseCache keeps raw provider responses in memory with an optional
// Redis layer behind it. Identical prompts to the same provider within the
// TTL reuse the earlier response.
type ResponseCache struct {
	config CacheConfig
	redis  *redis.Client
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	stats   CacheStats
}

// NewResponseCache creates a cache. redisClient may be nil.
func NewResponseCache(config CacheConfig, redisClient *redis.Client, logger *zap.Logger) *ResponseCache {
	if config.MemoryMaxSize <= 0 {
		config.MemoryMaxSize = DefaultCacheConfig().MemoryMaxSize
	}
	if config.RedisPrefix == "" {
		config.RedisPrefix = DefaultCacheConfig().RedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{
		config:  config,
		redis:   redisClient,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// Key hashes the scope and prompt. The scope names the provider, model and
// API key the answer came from.
func (c *ResponseCache) Key(scope string, p Prompt) string {
	data, _ := json.Marshal(map[string]string{
		"scope":  scope,
		"system": p.System,
		"user":   p.User,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get looks the key up in memory, then Redis.
func (c *ResponseCache) Get(ctx context.Context, key string) (*RemoteResponse, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.createdAt) < c.config.MemoryTTL {
		c.stats.MemoryHits++
		c.mu.Unlock()
		return e.resp, true
	}
	c.mu.Unlock()

	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.config.RedisPrefix+key).Bytes()
		if err == nil {
			var resp RemoteResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.setMemory(key, &resp)
				c.mu.Lock()
				c.stats.RedisHits++
				c.mu.Unlock()
				return &resp, true
			}
		} else if err != redis.Nil {
			c.logger.Debug("response cache redis get failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores resp under key.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *RemoteResponse) {
	c.setMemory(key, resp)

	if c.redis != nil {
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, c.config.RedisPrefix+key, data, c.config.RedisTTL).Err(); err != nil {
			c.logger.Debug("response cache redis set failed", zap.Error(err))
		}
	}
}

// Stats returns a snapshot of the hit counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *ResponseCache) setMemory(key string, resp *RemoteResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.config.MemoryMaxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{resp: resp, createdAt: c.now()}
}

// evictOldest drops the oldest tenth of the entries.
func (c *ResponseCache) evictOldest() {
	toRemove := c.config.MemoryMaxSize / 10
	if toRemove < 1 {
		toRemove = 1
	}
	for i := 0; i < toRemove && len(c.order) > 0; i++ {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

// CachedProvider serves repeated prompts from a ResponseCache.
type CachedProvider struct {
	inner Provider
	cache *ResponseCache
	scope string
}

// WithCache wraps inner. Providers sharing a cache must use distinct scopes
// unless they answer identically; see Scope.
func WithCache(inner Provider, cache *ResponseCache, scope string) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, scope: scope}
}

// Scope identifies a provider, model and API key without keeping the key.
func Scope(provider domain.ModelProvider, model, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return string(provider) + "|" + model + "|" + hex.EncodeToString(sum[:8])
}

// Name implements Provider.
func (p *CachedProvider) Name() domain.ModelProvider { return p.inner.Name() }

// Generate implements Provider.
func (p *CachedProvider) Generate(ctx context.Context, prompt Prompt) (*RemoteResponse, error) {
	key := p.cache.Key(p.scope, prompt)
	if resp, ok := p.cache.Get(ctx, key); ok {
		return resp, nil
	}
	resp, err := p.inner.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	p.cache.Set(ctx, key, resp)
	return resp, nil
}
