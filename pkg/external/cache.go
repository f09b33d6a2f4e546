package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
)

const cachePrefix = "genekor:evaluation"

// CachedEvaluation represents a cached evaluation with metadata
type CachedEvaluation struct {
	Evaluation *domain.Evaluation `json:"evaluation"`
	CachedAt   time.Time          `json:"cached_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// ResultCache keeps finished evaluations in Redis, scoped to a ClinVar
// release so that a new release never serves stale evidence.
type ResultCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(config domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewResultCacheFromClient(client, config.DefaultTTL, logger), nil
}

// NewResultCacheFromClient wraps an existing client.
func NewResultCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ResultCache{redis: client, defaultTTL: ttl, logger: logger}
}

// Get returns the cached evaluation of target under release. Corrupted and
// expired entries are removed and reported as misses.
func (c *ResultCache) Get(ctx context.Context, release string, target *domain.VariantRecord) (*domain.Evaluation, bool) {
	if target == nil {
		return nil, false
	}
	key := EvaluationKey(release, target)

	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to read evaluation cache")
		}
		c.misses.Add(1)
		return nil, false
	}

	var cached CachedEvaluation
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Evaluation == nil {
		c.redis.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return cached.Evaluation, true
}

// Set caches evaluation under release with the default TTL.
func (c *ResultCache) Set(ctx context.Context, release string, evaluation *domain.Evaluation) error {
	if evaluation == nil || evaluation.Target == nil {
		return fmt.Errorf("caching evaluation: missing target")
	}

	now := time.Now()
	cached := CachedEvaluation{
		Evaluation: evaluation,
		CachedAt:   now,
		ExpiresAt:  now.Add(c.defaultTTL),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation cache data: %w", err)
	}

	return c.redis.Set(ctx, EvaluationKey(release, evaluation.Target), data, c.defaultTTL).Err()
}

// InvalidateRelease removes every evaluation cached for release.
func (c *ResultCache) InvalidateRelease(ctx context.Context, release string) (int, error) {
	pattern := fmt.Sprintf("%s:%s:*", cachePrefix, release)
	iter := c.redis.Scan(ctx, 0, pattern, 500).Iterator()

	removed := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}
	return removed, nil
}

// Stats returns hit and miss counters since start.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Ping checks if Redis connection is alive
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *ResultCache) Close() error {
	return c.redis.Close()
}

// EvaluationKey hashes every target field that can change its evaluation,
// identity and classification history included, into a key scoped to release.
func EvaluationKey(release string, target *domain.VariantRecord) string {
	categories := make([]string, len(target.SubmitterCategories))
	for i, c := range target.SubmitterCategories {
		categories[i] = strconv.Itoa(c)
	}
	submissions := make([]string, len(target.SubmissionSignificances))
	for i, s := range target.SubmissionSignificances {
		submissions[i] = string(s)
	}

	data := strings.Join([]string{
		release,
		target.GeneSymbol,
		target.NucleotideChange.String,
		target.ProteinChange.String,
		string(target.Consequence),
		strconv.FormatInt(target.VariationID, 10),
		string(target.Significance),
		target.ReviewStatus,
		strconv.Itoa(target.SubmitterCount),
		strings.Join(categories, ","),
		strings.Join(submissions, ","),
	}, "|")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s:%s:%x", cachePrefix, release, hash[:16])
}
