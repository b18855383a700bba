package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/YelzhanWeb/coffeequeue/internal/config"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

const (
	summaryKey    = "coffeequeue:summary"
	generationKey = "coffeequeue:summary:generation"
)

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
}

// SummaryCache stores one summary per generation. Invalidate bumps the generation counter,
// so older keys are never read again and expire on their TTL.
type SummaryCache struct {
	client client
	ttl    time.Duration
}

var _ interfaces.SummaryCache = (*SummaryCache)(nil)

// Connect opens a client and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewSummaryCache(c client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: c, ttl: ttl}
}

func summaryKeyFor(generation int64) string {
	return fmt.Sprintf("%s:%d", summaryKey, generation)
}

func (c *SummaryCache) Get(ctx context.Context) (*domain.Summary, int64, bool, error) {
	generation, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, false, fmt.Errorf("failed to read summary generation: %w", err)
	}

	raw, err := c.client.Get(ctx, summaryKeyFor(generation)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, generation, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var summary domain.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &summary, generation, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, generation int64, summary *domain.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := c.client.Set(ctx, summaryKeyFor(generation), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

func (c *SummaryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}
