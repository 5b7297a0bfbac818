package poolcache_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/types"
)

func TestQuote_ConstantProduct(t *testing.T) {
	pool := &types.PoolState{
		ReserveA: uint256.NewInt(1_000_000),
		ReserveB: uint256.NewInt(1_000_000),
		FeeBps:   30, // 0.3%
	}
	out, err := poolcache.Quote(pool, uint256.NewInt(1_000), true)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)
	require.True(t, out.Lt(uint256.NewInt(1_000)))
}

func TestQuote_ZeroAmountInIsZeroOut(t *testing.T) {
	pool := &types.PoolState{
		ReserveA: uint256.NewInt(1_000_000),
		ReserveB: uint256.NewInt(1_000_000),
		FeeBps:   30,
	}
	out, err := poolcache.Quote(pool, uint256.NewInt(0), true)
	require.NoError(t, err)
	require.True(t, out.IsZero())
}

func TestQuote_ReversedSide(t *testing.T) {
	pool := &types.PoolState{
		ReserveA: uint256.NewInt(500_000),
		ReserveB: uint256.NewInt(2_000_000),
		FeeBps:   30,
	}
	outA, err := poolcache.Quote(pool, uint256.NewInt(1_000), true)
	require.NoError(t, err)
	outB, err := poolcache.Quote(pool, uint256.NewInt(1_000), false)
	require.NoError(t, err)
	require.NotEqual(t, outA.Uint64(), outB.Uint64())
}

func TestQuote_ZeroReserveIsZeroOut(t *testing.T) {
	empty := &types.PoolState{
		ReserveA: uint256.NewInt(0),
		ReserveB: uint256.NewInt(1_000_000),
		FeeBps:   30,
	}
	out, err := poolcache.Quote(empty, uint256.NewInt(1_000), true)
	require.NoError(t, err)
	require.True(t, out.IsZero())

	out, err = poolcache.Quote(empty, uint256.NewInt(1_000), false)
	require.NoError(t, err)
	require.True(t, out.IsZero())
}

func TestQuote_NilPool(t *testing.T) {
	_, err := poolcache.Quote(nil, uint256.NewInt(1), true)
	require.Error(t, err)
}

func TestQuote_InvalidFee(t *testing.T) {
	pool := &types.PoolState{
		ReserveA: uint256.NewInt(1_000_000),
		ReserveB: uint256.NewInt(1_000_000),
		FeeBps:   20_000,
	}
	_, err := poolcache.Quote(pool, uint256.NewInt(1_000), true)
	require.Error(t, err)
}
