package cachemanager

import (
	"context"
	"time"
)

// Loader produces the value for a cache miss from the caller's input.
type Loader[V any, I any] func(ctx context.Context, input I) (V, error)

// ReadThroughCache answers from a CacheManager and falls back to a Loader,
// storing what the loader returns. Loader errors are never cached.
type ReadThroughCache[K comparable, V any, I any] struct {
	store   CacheManager[K, V]
	load    Loader[V, I]
	bypass  bool
	refresh bool
}

// ReadThroughOption configures a ReadThroughCache.
type ReadThroughOption func(*readThroughOptions)

type readThroughOptions struct {
	bypass  bool
	refresh bool
}

// WithBypass sends every lookup straight to the loader when enabled.
func WithBypass(enabled bool) ReadThroughOption {
	return func(o *readThroughOptions) {
		o.bypass = enabled
	}
}

// WithRefreshOnHit restarts an entry's TTL each time it is served.
func WithRefreshOnHit() ReadThroughOption {
	return func(o *readThroughOptions) {
		o.refresh = true
	}
}

// NewReadThroughCache wraps store with load.
func NewReadThroughCache[K comparable, V any, I any](store CacheManager[K, V], load Loader[V, I], opts ...ReadThroughOption) *ReadThroughCache[K, V, I] {
	var o readThroughOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &ReadThroughCache[K, V, I]{store: store, load: load, bypass: o.bypass, refresh: o.refresh}
}

// Get returns the value stored under key, loading it from input on a miss.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.load(ctx, input)
	}

	var (
		value V
		hit   bool
	)
	if r.refresh {
		value, hit = r.store.GetWithRefresh(ctx, key, ttl)
	} else {
		value, hit = r.store.Get(ctx, key)
	}
	if hit {
		return value, nil
	}

	value, err := r.load(ctx, input)
	if err != nil {
		return value, err
	}
	r.store.Set(ctx, key, value, ttl)
	return value, nil
}

// Invalidate drops cached values.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context, keys ...K) error {
	return r.store.Delete(ctx, keys...)
}
