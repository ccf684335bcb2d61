package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/models"
)

const generationKey = "catalog:tree:gen"

// TreeCache caches live product trees for admin previews. Every catalog
// mutation bumps a generation counter, which orphans all earlier entries at
// once; orphans expire through their TTL. A nil *TreeCache is a valid,
// disabled cache. Redis errors are logged and treated as misses.
type TreeCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewTreeCache creates a new TreeCache.
func NewTreeCache(redis *RedisClient, ttl time.Duration) *TreeCache {
	return &TreeCache{redis: redis, ttl: ttl}
}

func treeKey(gen, productID int64) string {
	return fmt.Sprintf("catalog:tree:%d:%d", gen, productID)
}

func (c *TreeCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.redis.Get(ctx, generationKey)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// NoGeneration is returned by Get when the generation could not be read;
// Set ignores it.
const NoGeneration int64 = -1

// Get returns the cached tree of productID for the current generation, and
// that generation. A caller that misses builds the tree and passes the same
// generation to Set: if a write lands in between, the entry is stored under
// a generation that is already orphaned.
func (c *TreeCache) Get(ctx context.Context, productID int64) (*models.ProductTree, int64, bool) {
	if c == nil {
		return nil, NoGeneration, false
	}
	gen, err := c.generation(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("tree cache generation read failed")
		return nil, NoGeneration, false
	}
	raw, err := c.redis.Get(ctx, treeKey(gen, productID))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Int64("product_id", productID).Msg("tree cache read failed")
		}
		return nil, gen, false
	}
	var tree models.ProductTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("tree cache entry corrupt")
		return nil, gen, false
	}
	return &tree, gen, true
}

// Set stores tree under gen, the generation observed before the tree was read.
func (c *TreeCache) Set(ctx context.Context, gen int64, tree *models.ProductTree) {
	if c == nil || gen == NoGeneration {
		return
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, treeKey(gen, tree.ProductID), b, c.ttl); err != nil {
		log.Warn().Err(err).Int64("product_id", tree.ProductID).Msg("tree cache write failed")
	}
}

// Invalidate starts a new generation.
func (c *TreeCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if _, err := c.redis.Incr(ctx, generationKey); err != nil {
		log.Warn().Err(err).Msg("tree cache invalidation failed")
	}
}
