package poolcache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/types"
)

type fakeProvider struct {
	calls atomic.Int32
	delay time.Duration
	state func(poolID uint64) *types.PoolState
	err   error
}

func (p *fakeProvider) FetchPool(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.state(poolID), nil
}

func poolAt(id uint64, slot uint64) *types.PoolState {
	return &types.PoolState{
		PoolID:    id,
		ReserveA:  uint256.NewInt(1_000_000),
		ReserveB:  uint256.NewInt(2_000_000),
		FeeBps:    30,
		Slot:      slot,
		FetchedAt: time.Now(),
	}
}

func TestCache_RefreshesOnMiss(t *testing.T) {
	p := &fakeProvider{state: func(id uint64) *types.PoolState { return poolAt(id, 1) }}
	c, err := poolcache.New(10, p, time.Minute, time.Second)
	require.NoError(t, err)

	got, err := c.Get(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.PoolID)
	require.EqualValues(t, 1, p.calls.Load())
}

func TestCache_ServesFreshWithoutRefetch(t *testing.T) {
	p := &fakeProvider{state: func(id uint64) *types.PoolState { return poolAt(id, 1) }}
	c, err := poolcache.New(10, p, time.Minute, time.Second)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), 5)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.calls.Load())
}

func TestCache_StaleMissOnTimeout(t *testing.T) {
	p := &fakeProvider{delay: 50 * time.Millisecond, state: func(id uint64) *types.PoolState { return poolAt(id, 1) }}
	c, err := poolcache.New(10, p, time.Minute, 5*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), 5)
	require.Error(t, err)
}

func TestCache_ServesStaleOnRefreshFailureIfPresent(t *testing.T) {
	good := &fakeProvider{state: func(id uint64) *types.PoolState { return poolAt(id, 1) }}
	c, err := poolcache.New(10, good, time.Millisecond, time.Second)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), 5)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond) // entry goes stale

	good.err = context.Canceled
	got, err := c.Get(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.PoolID)
}

func TestCache_WarmHydratesWithoutFetch(t *testing.T) {
	p := &fakeProvider{state: func(id uint64) *types.PoolState { return poolAt(id, 1) }}
	c, err := poolcache.New(10, p, time.Minute, time.Second)
	require.NoError(t, err)

	c.Warm(poolAt(9, 7))
	got, err := c.Get(context.Background(), 9)
	require.NoError(t, err)
	require.EqualValues(t, 7, got.Slot)
	require.EqualValues(t, 0, p.calls.Load())
}
