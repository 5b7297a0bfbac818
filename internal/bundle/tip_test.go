package bundle_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/bundle"
)

func TestEstimateTip_Table(t *testing.T) {
	cases := []struct {
		name                    string
		netProfit               *uint256.Int
		competitorFeePercentile int
		congestion              int
		want                    uint64
	}{
		{"zero profit bids nothing", uint256.NewInt(0), 50, 50, 0},
		{"nil profit bids nothing", nil, 50, 50, 0},
		{"no pressure bids the base rate", uint256.NewInt(1_000_000), 0, 0, 50_000},
		{"max pressure bids the max rate", uint256.NewInt(1_000_000), 100, 100, 500_000},
		{"mid pressure bids between base and max", uint256.NewInt(1_000_000), 50, 50, 275_000},
		{"out-of-range inputs clamp instead of misbehaving", uint256.NewInt(1_000_000), 500, -10, 275_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := bundle.EstimateTip(c.netProfit, c.competitorFeePercentile, c.congestion)
			require.Equal(t, c.want, got.Uint64())
		})
	}
}

func TestEstimateTip_NeverExceedsProfit(t *testing.T) {
	profit := uint256.NewInt(7)
	got := bundle.EstimateTip(profit, 100, 100)
	require.True(t, got.Lte(profit))
}
