// Package cache provides Redis-backed caching for analysis results.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

const (
	// Cache key prefixes
	keyPrefix      = "netimpact:cache:"
	analysisPrefix = "analysis:"

	// indexKey holds question -> stored-at (unix seconds) for every analysis
	// written, including ones whose value has since expired.
	indexKey = keyPrefix + "index:analysis"
)

// Stats describes the analysis cache.
type Stats struct {
	TotalItems   int   `json:"total_items"`
	ActiveItems  int   `json:"active_items"`
	ExpiredItems int   `json:"expired_items"`
	TTLSeconds   int64 `json:"ttl_seconds"`
}

// Cache provides Redis-backed response caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a new Redis-backed cache.
func New(redisURL string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), config.RedisConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if ttl <= 0 {
		ttl = config.CacheTTLAnalysis
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "cache"),
	}, nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// TTL returns the analysis TTL.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get retrieves a cached value. Returns nil if not found or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a value in the cache with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// GetJSON retrieves and unmarshals a cached JSON value.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil // Cache miss
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals and stores a JSON value in the cache.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// =============================================================================
// ANALYSIS RESULTS
// =============================================================================

// AnalysisKey returns the cache key for a question.
func AnalysisKey(question string) string {
	return analysisPrefix + question
}

// GetReport returns the cached intelligence report for a question, or nil on
// a miss. Reports are cached before post-processing so per-request filters
// still apply to a cache hit.
func (c *Cache) GetReport(ctx context.Context, question string) (*types.IntelligenceReport, error) {
	var report types.IntelligenceReport
	found, err := c.GetJSON(ctx, AnalysisKey(question), &report)
	if err != nil {
		return nil, fmt.Errorf("reading cached analysis: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &report, nil
}

// PutReport caches a report for a question with the analysis TTL.
func (c *Cache) PutReport(ctx context.Context, question string, report *types.IntelligenceReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+AnalysisKey(question), data, c.ttl)
	pipe.HSet(ctx, indexKey, question, time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching analysis: %w", err)
	}

	c.logger.Debug("analysis cached", "question_len", len(question), "ttl", c.ttl)
	return nil
}

// Queries returns the questions with an unexpired cached result, sorted.
// Index entries whose value has expired are pruned.
func (c *Cache) Queries(ctx context.Context) ([]string, error) {
	active, expired, err := c.scanIndex(ctx)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		if err := c.client.HDel(ctx, indexKey, expired...).Err(); err != nil {
			c.logger.Warn("failed to prune cache index", "error", err)
		}
	}
	sort.Strings(active)
	return active, nil
}

// Stats reports how many results are cached and how many have expired since
// they were written.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	active, expired, err := c.scanIndex(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalItems:   len(active) + len(expired),
		ActiveItems:  len(active),
		ExpiredItems: len(expired),
		TTLSeconds:   int64(c.ttl.Seconds()),
	}, nil
}

// Clear removes every cached result and the index. Returns the number of
// keys deleted.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.DeletePattern(ctx, analysisPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("clearing analyses: %w", err)
	}
	if err := c.client.Del(ctx, indexKey).Err(); err != nil {
		return n, fmt.Errorf("clearing index: %w", err)
	}
	c.logger.Info("analysis cache cleared", "deleted", n)
	return n, nil
}

func (c *Cache) scanIndex(ctx context.Context) (active, expired []string, err error) {
	questions, err := c.client.HKeys(ctx, indexKey).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("reading cache index: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(questions))
	for i, q := range questions {
		cmds[i] = pipe.Exists(ctx, keyPrefix+AnalysisKey(q))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("checking cached keys: %w", err)
	}

	for i, q := range questions {
		if cmds[i].Val() > 0 {
			active = append(active, q)
		} else {
			expired = append(expired, q)
		}
	}
	return active, expired, nil
}

// Delete removes a key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// DeletePattern removes all keys matching a pattern and returns how many
// were deleted. Uses SCAN so large keyspaces do not block Redis.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := c.client.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}
