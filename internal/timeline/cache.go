package timeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
)

// cacheTTL bounds staleness of the public timeline between invalidations.
const cacheTTL = 60 * time.Second

// Cache is a Redis read-through cache for the public timeline of an event.
// Misses and Redis errors fall back to the database.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCache creates a public timeline cache.
func NewCache(client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, logger: logger}
}

func cacheKey(eventID uuid.UUID) string {
	return "timeline:public:" + eventID.String()
}

// Get returns the cached public timeline, or ok=false on miss or error.
func (c *Cache) Get(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, bool) {
	raw, err := c.client.Get(ctx, cacheKey(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("timeline cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var items []models.TimelineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("timeline cache decode failed", zap.Error(err))
		return nil, false
	}
	return items, true
}

// Set stores the public timeline for an event.
func (c *Cache) Set(ctx context.Context, eventID uuid.UUID, items []models.TimelineItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(eventID), raw, cacheTTL).Err(); err != nil {
		c.logger.Warn("timeline cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached public timeline after any mutation.
func (c *Cache) Invalidate(ctx context.Context, eventID uuid.UUID) {
	if err := c.client.Del(ctx, cacheKey(eventID)).Err(); err != nil {
		c.logger.Warn("timeline cache invalidate failed", zap.Error(err))
	}
}
