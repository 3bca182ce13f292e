package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/satishbabariya/salesreport/query"
)

// ComputeFunc produces the rows for a fingerprint on a cache miss. Its
// context is cancelled when the computation times out.
type ComputeFunc func(ctx context.Context) (query.Rows, error)

type callOptions struct {
	timeout time.Duration
	tags    []string
}

// CallOption configures a single GetOrCompute call.
type CallOption func(*callOptions)

// WithTimeout overrides the configured compute timeout. Zero disables it.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithTags records the base tables a result depends on, for InvalidateTable.
func WithTags(tables ...string) CallOption {
	return func(o *callOptions) { o.tags = append(o.tags, tables...) }
}

type fillResult struct {
	rows   query.Rows
	cached bool
}

// GetOrCompute returns the rows cached under fp, or runs compute and caches
// its result for ttl (the configured TTL when ttl is zero). wasCached reports
// whether the rows came from the cache.
//
// Concurrent callers for one fingerprint share a single compute call and its
// outcome. Failed computations are never stored. A caller whose ctx ends
// stops waiting with ctx.Err(); the shared computation keeps running for the
// remaining callers.
func (c *Cache) GetOrCompute(ctx context.Context, fp query.Fingerprint, compute ComputeFunc, ttl time.Duration, opts ...CallOption) (rows query.Rows, wasCached bool, err error) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	o := callOptions{timeout: c.cfg.ComputeTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if e, ok := c.lookup(fp); ok {
		c.recordLookup(true)
		return e.Rows.Clone(), true, nil
	}
	// The flight outlives any single waiter. Keying it by generation makes
	// callers arriving after an invalidation start a fresh one.
	gen := c.gen.Load()
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(gen, fp), func() (interface{}, error) {
		return c.fill(flightCtx, gen, fp, compute, ttl, o)
	})
	// Counted after joining the flight.
	c.recordLookup(false)

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		out := res.Val.(*fillResult)
		return out.rows.Clone(), out.cached, nil
	}
}

func (c *Cache) recordLookup(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.observer != nil {
		c.observer.ObserveLookup(hit)
	}
}

func flightKey(gen uint64, fp query.Fingerprint) string {
	return strconv.FormatUint(gen, 10) + "/" + string(fp)
}

// fill runs inside the flight for fp, started under generation gen.
func (c *Cache) fill(ctx context.Context, gen uint64, fp query.Fingerprint, compute ComputeFunc, ttl time.Duration, o callOptions) (*fillResult, error) {
	// A previous flight may have stored the entry after our lookup.
	if e, ok := c.lookup(fp); ok {
		return &fillResult{rows: e.Rows, cached: true}, nil
	}

	if e := c.load(gen, fp); e != nil {
		return &fillResult{rows: e.Rows, cached: true}, nil
	}

	start := c.clock.Now()
	rows, err := c.run(ctx, fp, compute, o.timeout)
	elapsed := c.clock.Since(start)
	c.computes.Add(1)
	if c.observer != nil {
		c.observer.ObserveCompute(elapsed, err)
	}
	if err != nil {
		c.logger.Debug("compute failed", "fingerprint", fp.Short(), "duration", elapsed, "error", err)
		return nil, err
	}
	c.logger.Debug("computed", "fingerprint", fp.Short(), "rows", len(rows), "duration", elapsed)

	if rows == nil {
		rows = query.Rows{}
	}
	if c.cfg.Disabled {
		return &fillResult{rows: rows}, nil
	}
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.gen.Load() != gen {
		c.logger.Debug("invalidated during compute, not storing", "fingerprint", fp.Short())
		return &fillResult{rows: rows}, nil
	}
	e := &Entry{Rows: rows, CreatedAt: c.clock.Now(), TTL: ttl, Tags: o.tags}
	c.insert(fp, e)
	c.persist(fp, e)
	return &fillResult{rows: rows}, nil
}

// load promotes a fresh persisted entry into memory unless an invalidation
// happened since gen.
func (c *Cache) load(gen uint64, fp query.Fingerprint) *Entry {
	if c.store == nil || c.cfg.Disabled {
		return nil
	}
	e, err := c.store.Load(fp)
	if err != nil {
		c.logger.Warn("load persisted entry", "fingerprint", fp.Short(), "error", err)
		return nil
	}
	if e == nil {
		return nil
	}
	if e.Expired(c.clock.Now()) {
		if err := c.store.Delete(fp); err != nil {
			c.logger.Warn("delete persisted entry", "fingerprint", fp.Short(), "error", err)
		}
		return nil
	}
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.gen.Load() != gen {
		return nil
	}
	c.storeHits.Add(1)
	c.insert(fp, e)
	return e
}

type outcome struct {
	rows query.Rows
	err  error
}

// run calls compute, bounded by timeout when it is positive.
func (c *Cache) run(ctx context.Context, fp query.Fingerprint, compute ComputeFunc, timeout time.Duration) (query.Rows, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("compute %s panicked: %v", fp.Short(), r)}
			}
		}()
		rows, err := compute(ctx)
		done <- outcome{rows: rows, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := c.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}

	select {
	case out := <-done:
		if out.err != nil {
			return nil, annotate(fp, out.err)
		}
		return out.rows, nil
	case <-expired:
		c.logger.Warn("compute timed out", "fingerprint", fp.Short(), "timeout", timeout)
		return nil, &query.TimeoutError{Fingerprint: fp, Timeout: timeout}
	}
}

func annotate(fp query.Fingerprint, err error) error {
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.WithFingerprint(fp)
	}
	return err
}
