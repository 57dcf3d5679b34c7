package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"docquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const searchGenerationKey = "search:generation"

// SearchCache caches search result pages. Every key embeds the current
// generation counter, so Invalidate only has to INCR it; stale pages age out
// through their TTL.
// Key layout: search:{generation}:{query key} -> JSON(domain.Page)
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) Get(ctx context.Context, key string) (domain.Page[domain.DocumentSummary], bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		return domain.Page[domain.DocumentSummary]{}, false
	}
	raw, err := c.client.Get(ctx, c.pageKey(gen, key)).Bytes()
	if err != nil {
		return domain.Page[domain.DocumentSummary]{}, false
	}
	var page domain.Page[domain.DocumentSummary]
	if err := json.Unmarshal(raw, &page); err != nil {
		return domain.Page[domain.DocumentSummary]{}, false
	}
	if page.Items == nil {
		page.Items = []domain.DocumentSummary{}
	}
	return page, true
}

func (c *SearchCache) Put(ctx context.Context, key string, page domain.Page[domain.DocumentSummary]) {
	gen, err := c.generation(ctx)
	if err != nil {
		log.Printf("search cache generation: %v", err)
		return
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.pageKey(gen, key), payload, c.ttl).Err(); err != nil {
		log.Printf("search cache put: %v", err)
	}
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, searchGenerationKey).Err(); err != nil {
		return fmt.Errorf("bump search generation: %w", err)
	}
	return nil
}

func (c *SearchCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, searchGenerationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *SearchCache) pageKey(gen int64, key string) string {
	return fmt.Sprintf("search:%d:%s", gen, key)
}
