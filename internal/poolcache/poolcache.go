// Package poolcache implements C3, the shadow-fork pool cache: a
// capacity-bounded, concurrency-safe view of AMM pool reserves that
// refreshes from a StateProvider when a read finds a stale or missing
// entry, deduplicating concurrent refreshes of the same pool via
// singleflight.
package poolcache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/types"
)

// StateProvider fetches the authoritative current state for one pool. It is
// the only collaborator this package depends on; production wiring plugs in
// a shadow-fork RPC client or local state reader.
type StateProvider interface {
	FetchPool(ctx context.Context, poolID uint64) (*types.PoolState, error)
}

// Cache serves PoolState reads bounded by capacity, transparently
// refreshing entries older than MaxAge. Reads never block on each other's
// refreshes beyond the singleflight merge; writers replace whole entries,
// never mutate one in place, so a Clone()'d read is always consistent.
type Cache struct {
	entries  *lru.Cache[uint64, *types.PoolState]
	provider StateProvider
	maxAge   time.Duration
	fetchTO  time.Duration
	sf       singleflight.Group

	metrics *telemetry.Core
	hits    atomic.Uint64
	reads   atomic.Uint64
}

// New builds a Cache with room for capacity pools. maxAge is the staleness
// threshold that triggers a refresh-on-read; fetchTimeout bounds how long a
// synchronous refresh is allowed to block before the read gives up and
// returns errs.StaleMiss.
func New(capacity int, provider StateProvider, maxAge, fetchTimeout time.Duration) (*Cache, error) {
	entries, err := lru.New[uint64, *types.PoolState](capacity)
	if err != nil {
		return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}
	return &Cache{
		entries:  entries,
		provider: provider,
		maxAge:   maxAge,
		fetchTO:  fetchTimeout,
	}, nil
}

// Get returns a defensive clone of the current PoolState for poolID,
// refreshing it first if the cached entry is missing or older than maxAge.
// If the refresh fails for any reason, including exceeding fetchTimeout,
// a stale-but-present entry is served instead, since a slightly old quote
// beats no quote. With no cached entry, a refresh that exceeds
// fetchTimeout yields errs.StaleMiss and any other failure yields
// errs.PoolUnknown.
func (c *Cache) Get(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	cur, ok := c.entries.Get(poolID)
	if ok && time.Since(cur.FetchedAt) < c.maxAge {
		c.recordHit(true)
		return cur.Clone(), nil
	}
	c.recordHit(false)

	fresh, err := c.refresh(ctx, poolID)
	if err == nil {
		return fresh.Clone(), nil
	}
	if ok {
		// Serve the stale entry rather than fail the caller outright.
		return cur.Clone(), nil
	}
	return nil, err
}

// recordHit updates the rolling hit-rate gauge: hit counts a fresh,
// unexpired entry served without a refresh; everything else (missing or
// stale) counts as a miss, whether or not the ensuing refresh succeeds.
func (c *Cache) recordHit(hit bool) {
	if c.metrics == nil {
		return
	}
	reads := c.reads.Add(1)
	var hits uint64
	if hit {
		hits = c.hits.Add(1)
	} else {
		hits = c.hits.Load()
	}
	c.metrics.PoolCacheHitRate.Update(float64(hits) / float64(reads))
}

// SetMetrics attaches metrics to the cache, so every subsequent Get updates
// the rolling searcher/poolcache/hitrate gauge. Safe to call once at
// construction time before concurrent reads begin.
func (c *Cache) SetMetrics(metrics *telemetry.Core) {
	c.metrics = metrics
}

// Invalidate drops a cached entry, forcing the next Get to refresh.
func (c *Cache) Invalidate(poolID uint64) {
	c.entries.Remove(poolID)
}

// Warm inserts a snapshot directly into the cache without going through the
// provider, used to hydrate from a warm-start snapshot at startup.
func (c *Cache) Warm(state *types.PoolState) {
	if state == nil {
		return
	}
	c.entries.Add(state.PoolID, state.Clone())
}

func (c *Cache) refresh(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	v, err, _ := c.sf.Do(singleflightKey(poolID), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTO)
		defer cancel()

		state, ferr := c.provider.FetchPool(fetchCtx, poolID)
		if ferr != nil {
			if fetchCtx.Err() != nil {
				return nil, errs.Wrap(errs.StageSimulate, errs.StaleMiss, errs.Transient, ferr)
			}
			return nil, errs.Wrap(errs.StageSimulate, errs.PoolUnknown, errs.Transient, ferr)
		}
		c.entries.Add(poolID, state)
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.PoolState), nil
}

func singleflightKey(poolID uint64) string {
	return strconv.FormatUint(poolID, 10)
}
