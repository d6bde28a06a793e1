// Package cache holds parsed project configurations in memory.
//
// A Cache is explicitly constructed and injected; there is no process-wide
// instance. Loads on a miss are deduplicated per project, and no lock is held
// while reading from the store or parsing.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/getmockd/mockapi/pkg/logging"
	"github.com/getmockd/mockapi/pkg/metrics"
	"github.com/getmockd/mockapi/pkg/project"
	"github.com/getmockd/mockapi/pkg/store"
)

// ErrProjectNotFound is returned by Get for a project the source does not
// hold.
var ErrProjectNotFound = errors.New("project does not exist")

// Source provides the raw configuration text of a project.
type Source interface {
	ReadRaw(ctx context.Context, name string) (string, error)
}

// Cache maps project names to parsed configurations.
//
// Entries live until Invalidate; there is no TTL or eviction since the set of
// projects is controlled by the operator.
type Cache struct {
	src     Source
	log     *slog.Logger
	metrics *metrics.Set

	mu      sync.RWMutex
	entries map[string]*project.Config
	// gens counts invalidations per project. A load only inserts its result
	// if no invalidation happened since it started.
	gens map[string]uint64

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records lookups, loads and invalidations in set.
func WithMetrics(set *metrics.Set) Option {
	return func(c *Cache) { c.metrics = set }
}

// New creates an empty cache reading from src.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:     src,
		log:     logging.Nop(),
		entries: make(map[string]*project.Config),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the configuration of the named project, loading and parsing it
// on a miss. The returned Config is shared and must be treated as read-only.
//
// Errors: ErrProjectNotFound when the source has no such project, a
// *project.ParseError when the stored text is invalid, or the source's error.
// Failed loads are not cached.
func (c *Cache) Get(ctx context.Context, name string) (*project.Config, error) {
	c.mu.RLock()
	cfg, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		metrics.Inc(c.lookups(), "hit")
		return cfg, nil
	}
	metrics.Inc(c.lookups(), "miss")

	v, err, shared := c.group.Do(name, func() (any, error) {
		return c.load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("project load shared", "project", name)
	}
	return v.(*project.Config), nil
}

func (c *Cache) load(ctx context.Context, name string) (*project.Config, error) {
	c.mu.RLock()
	gen := c.gens[name]
	c.mu.RUnlock()

	raw, err := c.src.ReadRaw(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
			metrics.Inc(c.loads(), "not_found")
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		metrics.Inc(c.loads(), "error")
		return nil, fmt.Errorf("failed to read project %s: %w", name, err)
	}

	cfg, err := project.ParseString(raw)
	if err != nil {
		metrics.Inc(c.loads(), "error")
		c.log.Debug("project parse failed", "project", name, "error", err)
		return nil, err
	}
	cfg.Prepare()

	c.mu.Lock()
	if c.gens[name] == gen {
		c.entries[name] = cfg
	}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.Inc(c.loads(), "ok")
	c.setEntries(size)
	c.log.Debug("project loaded", "project", name, "endpoints", len(cfg.Endpoints))
	return cfg, nil
}

// Invalidate drops the cached configuration of a project. The next Get
// reloads it from the source, and a load already in flight will not
// repopulate the entry. Invalidating an unknown project is a no-op.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.gens[name]++
	size := len(c.entries)
	c.mu.Unlock()

	c.group.Forget(name)

	if c.metrics != nil {
		_ = c.metrics.CacheInvalidations.Inc()
	}
	c.setEntries(size)
	c.log.Debug("project invalidated", "project", name)
}

// Len returns the number of cached configurations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cached reports whether the project currently has a cached configuration.
func (c *Cache) Cached(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

func (c *Cache) lookups() *metrics.Counter {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.CacheLookups
}

func (c *Cache) loads() *metrics.Counter {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.CacheLoads
}

func (c *Cache) setEntries(n int) {
	if c.metrics != nil {
		_ = c.metrics.CacheEntries.Set(float64(n))
	}
}
