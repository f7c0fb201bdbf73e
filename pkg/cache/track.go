package cache

import (
	"context"
	"encoding/json"
	"time"
)

// CachedLink is one directed edge of a cached solution's used_links.
type CachedLink struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CachedTrackSolution is the JSON-serializable form of a single track's
// solve result, keyed by namespace + optimizer kind + graph hash so a
// topology reload naturally invalidates every stale entry.
type CachedTrackSolution struct {
	Success    bool         `json:"success"`
	Cost       float64      `json:"cost"`
	MaxDelay   float64      `json:"max_delay"`
	UsedLinks  []CachedLink `json:"used_links,omitempty"`
	ComputedAt time.Time    `json:"computed_at"`
}

// TrackCache wraps a Cache with the JSON encode/decode and key-building
// this service needs for memoizing optimizer results when a track's
// subscriber set and graph are unchanged since the last solve.
type TrackCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewTrackCache wraps cache with a default TTL, used when a Set call
// passes ttl<=0.
func NewTrackCache(cache Cache, defaultTTL time.Duration) *TrackCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &TrackCache{cache: cache, defaultTTL: defaultTTL}
}

// Get looks up a cached solution by its pre-built key.
func (tc *TrackCache) Get(ctx context.Context, key string) (*CachedTrackSolution, bool, error) {
	data, err := tc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedTrackSolution
	if err := json.Unmarshal(data, &result); err != nil {
		_ = tc.cache.Delete(ctx, key)
		return nil, false, nil
	}
	return &result, true, nil
}

// Set stores a solution under key, defaulting to the cache's TTL.
func (tc *TrackCache) Set(ctx context.Context, key string, sol *CachedTrackSolution, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = tc.defaultTTL
	}
	sol.ComputedAt = time.Now()

	data, err := json.Marshal(sol)
	if err != nil {
		return err
	}
	return tc.cache.Set(ctx, key, data, ttl)
}

// InvalidateNamespace drops every cached solution for namespace, across
// all optimizer kinds and graph versions — used when a track's subscriber
// set or delay budget changes.
func (tc *TrackCache) InvalidateNamespace(ctx context.Context, namespace string) (int64, error) {
	return tc.cache.DeleteByPattern(ctx, "track:"+namespace+":*")
}

// InvalidateAll drops every cached track solution, used after a topology
// reload since every graph hash component of the key changes anyway but a
// bulk reload is cheaper than waiting for natural TTL expiry.
func (tc *TrackCache) InvalidateAll(ctx context.Context) (int64, error) {
	return tc.cache.DeleteByPattern(ctx, "track:*")
}
