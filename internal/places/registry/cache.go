package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/geodb-places/internal/cache/keys"
	"github.com/mohammed-shakir/geodb-places/internal/cache/redisstore"
	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

// GroupCache holds place groups built during a cycle.
type GroupCache interface {
	Get(ctx context.Context, id string) (*places.PlaceGroup, bool, error)
	Set(ctx context.Context, id string, g *places.PlaceGroup) error
	// Purge drops every cached group.
	Purge(ctx context.Context) error
}

// LRUCache is an in-process GroupCache bounded by size and age.
type LRUCache struct {
	lru *expirable.LRU[string, *places.PlaceGroup]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 256
	}
	return &LRUCache{lru: expirable.NewLRU[string, *places.PlaceGroup](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, id string) (*places.PlaceGroup, bool, error) {
	g, ok := c.lru.Get(id)
	if ok {
		observability.IncCacheHit("memory")
	} else {
		observability.IncCacheMiss("memory")
	}
	return g, ok, nil
}

func (c *LRUCache) Set(_ context.Context, id string, g *places.PlaceGroup) error {
	c.lru.Add(id, g)
	return nil
}

func (c *LRUCache) Purge(context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *LRUCache) Len() int { return c.lru.Len() }

// RedisCache shares built groups between replicas. Groups are stored as their
// served GeoJSON document.
type RedisCache struct {
	store  *redisstore.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(store *redisstore.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "geodb-places"
	}
	return &RedisCache{store: store, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*places.PlaceGroup, bool, error) {
	b, ok, err := c.store.Get(ctx, keys.GroupKey(c.prefix, id))
	if err != nil || !ok {
		return nil, false, err
	}
	g, err := places.GroupFromGeoJSON(b)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached group %q: %w", id, err)
	}
	return g, true, nil
}

func (c *RedisCache) Set(ctx context.Context, id string, g *places.PlaceGroup) error {
	b, err := g.MarshalGeoJSON()
	if err != nil {
		return fmt.Errorf("encode group %q: %w", id, err)
	}
	return c.store.Set(ctx, keys.GroupKey(c.prefix, id), b, c.ttl)
}

func (c *RedisCache) Purge(ctx context.Context) error {
	_, err := c.store.DelMatching(ctx, keys.GroupPattern(c.prefix))
	return err
}
