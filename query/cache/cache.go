// Package cache provides query result caching keyed by query fingerprint.
package cache

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/satishbabariya/salesreport/internal/debug"
	"github.com/satishbabariya/salesreport/query"
)

// Config bounds the cache.
type Config struct {
	// MaxEntries is the capacity; the least recently used entry is evicted
	// when it is exceeded.
	MaxEntries int
	// TTL is used when GetOrCompute is called without a ttl.
	TTL time.Duration
	// ComputeTimeout bounds a single computation. Zero disables the bound.
	ComputeTimeout time.Duration
	// SweepInterval is the period of the expiry sweeper started by Start.
	SweepInterval time.Duration
	// Disabled turns result storage off. A disabled cache still runs at most
	// one computation per fingerprint but keeps nothing.
	Disabled bool
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:     100,
		TTL:            15 * time.Minute,
		ComputeTimeout: 30 * time.Second,
		SweepInterval:  time.Hour,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.MaxEntries)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	}
	if c.ComputeTimeout < 0 {
		return fmt.Errorf("cache compute timeout must not be negative, got %s", c.ComputeTimeout)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("cache sweep interval must not be negative, got %s", c.SweepInterval)
	}
	return nil
}

// Entry is a complete cached result.
type Entry struct {
	Rows      query.Rows
	CreatedAt time.Time
	TTL       time.Duration
	// Tags are the base tables the result was read from.
	Tags []string
}

// Expired reports whether the entry is stale at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Observer receives cache events, e.g. to export metrics.
type Observer interface {
	ObserveLookup(hit bool)
	ObserveEviction()
	ObserveCompute(d time.Duration, err error)
	ObserveSize(n int)
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	StoreHits int64
	Computes  int64
	Evictions int64
	Size      int
	MaxSize   int
	HitRate   float64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithStore sets the persistent tier.
func WithStore(store Store) Option {
	return func(c *Cache) { c.store = store }
}

// WithObserver sets the event observer.
func WithObserver(observer Observer) Option {
	return func(c *Cache) { c.observer = observer }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Cache maps fingerprints to result sets with TTL expiry, LRU capacity and
// single-flight computation.
type Cache struct {
	cfg      Config
	clock    clockwork.Clock
	entries  *lru.Cache[query.Fingerprint, *Entry]
	group    singleflight.Group
	// gen is bumped by every invalidation. A computation started under an
	// older generation returns its rows but does not store them. genMu is
	// held for writing while invalidating and for reading while storing.
	gen   atomic.Uint64
	genMu sync.RWMutex
	store    Store
	observer Observer
	logger   *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	storeHits atomic.Int64
	computes  atomic.Int64
	evictions atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a cache.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: debug.Logger(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")

	entries, err := lru.NewWithEvict[query.Fingerprint, *Entry](cfg.MaxEntries, c.onRemove)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// onRemove runs after an entry leaves memory through eviction, expiry or
// invalidation.
func (c *Cache) onRemove(fp query.Fingerprint, _ *Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(fp); err != nil {
		c.logger.Warn("delete persisted entry", "fingerprint", fp.Short(), "error", err)
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// lookup returns a fresh entry from memory, dropping it if expired.
func (c *Cache) lookup(fp query.Fingerprint) (*Entry, bool) {
	if c.cfg.Disabled {
		return nil, false
	}
	e, ok := c.entries.Get(fp)
	if !ok {
		return nil, false
	}
	if e.Expired(c.clock.Now()) {
		c.entries.Remove(fp)
		c.observeSize()
		return nil, false
	}
	return e, true
}

func (c *Cache) insert(fp query.Fingerprint, e *Entry) {
	if c.entries.Add(fp, e) {
		c.evictions.Add(1)
		if c.observer != nil {
			c.observer.ObserveEviction()
		}
	}
	c.observeSize()
}

func (c *Cache) observeSize() {
	if c.observer != nil {
		c.observer.ObserveSize(c.entries.Len())
	}
}

// Invalidate removes the entry for fp from memory and the persistent tier.
// A computation for fp already in flight is not stored.
func (c *Cache) Invalidate(fp query.Fingerprint) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gen.Add(1)
	if !c.entries.Remove(fp) && c.store != nil {
		if err := c.store.Delete(fp); err != nil {
			c.logger.Warn("delete persisted entry", "fingerprint", fp.Short(), "error", err)
		}
	}
	c.observeSize()
}

// InvalidateAll removes every entry. Computations in flight are not stored.
func (c *Cache) InvalidateAll() {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gen.Add(1)
	c.entries.Purge()
	if c.store != nil {
		if err := c.store.Purge(); err != nil {
			c.logger.Warn("purge persisted entries", "error", err)
		}
	}
	c.observeSize()
}

// InvalidateTable removes every in-memory entry read from table and returns
// how many were removed. Persisted entries are tagged too and removed with
// them.
func (c *Cache) InvalidateTable(table string) int {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gen.Add(1)
	removed := 0
	for _, fp := range c.entries.Keys() {
		e, ok := c.entries.Peek(fp)
		if ok && slices.Contains(e.Tags, table) {
			if c.entries.Remove(fp) {
				removed++
			}
		}
	}
	if c.store != nil {
		n, err := c.store.DeleteTagged(table)
		if err != nil {
			c.logger.Warn("delete persisted entries by table", "table", table, "error", err)
		}
		removed += n
	}
	c.observeSize()
	return removed
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	removed := 0
	for _, fp := range c.entries.Keys() {
		if e, ok := c.entries.Peek(fp); ok && e.Expired(now) {
			if c.entries.Remove(fp) {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Debug("swept expired entries", "count", removed)
	}
	c.observeSize()
	return removed
}

// Len returns the number of entries in memory, including expired ones not
// yet swept.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	stats := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		StoreHits: c.storeHits.Load(),
		Computes:  c.computes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
		MaxSize:   c.cfg.MaxEntries,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Start launches the periodic expiry sweeper. It is a no-op when the sweep
// interval is zero.
func (c *Cache) Start() {
	if c.cfg.SweepInterval <= 0 {
		return
	}
	c.startOnce.Do(func() {
		ticker := c.clock.NewTicker(c.cfg.SweepInterval)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer ticker.Stop()
			for {
				select {
				case <-c.done:
					return
				case <-ticker.Chan():
					c.Sweep()
				}
			}
		}()
	})
}

// Close stops the sweeper. Cached entries stay readable.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

func (c *Cache) persist(fp query.Fingerprint, e *Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(fp, e); err != nil {
		c.logger.Warn("persist entry", "fingerprint", fp.Short(), "error", err)
	}
}
