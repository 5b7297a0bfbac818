package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/bundle"
	"github.com/lux-mev/searcher/internal/config"
	"github.com/lux-mev/searcher/internal/pipeline"
	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/prefilter"
	"github.com/lux-mev/searcher/internal/sizer"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/types"
	"github.com/lux-mev/searcher/internal/wiretx/wiretxtest"
)

type alwaysKnownRegistry struct{}

func (alwaysKnownRegistry) IsDEXProgram(target []byte) bool { return true }

type fakeRawBuilder struct{}

func (fakeRawBuilder) BuildLeg(intent types.SwapIntent, fee uint64) ([]byte, error) {
	return []byte{byte(fee)}, nil
}

type fakeProvider struct{}

func (fakeProvider) FetchPool(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	return &types.PoolState{
		PoolID:    poolID,
		ReserveA:  uint256.NewInt(10_000_000),
		ReserveB:  uint256.NewInt(10_000_000),
		FeeBps:    30,
		FetchedAt: time.Now(),
	}, nil
}

func buildOrchestrator(t *testing.T, enableSandwich bool) *pipeline.Orchestrator {
	t.Helper()
	return buildOrchestratorWithMinProfit(t, enableSandwich, 0)
}

func buildOrchestratorWithMinProfit(t *testing.T, enableSandwich bool, minProfit uint64) *pipeline.Orchestrator {
	t.Helper()
	filter, err := prefilter.New()
	require.NoError(t, err)
	require.NoError(t, filter.Add(77))

	pools, err := poolcache.New(10, fakeProvider{}, time.Minute, time.Second)
	require.NoError(t, err)

	tbl := sizer.Build(sizer.Dims{FeeTiers: 4, VictimBins: 8, LiquidityBins: 8})
	sz, err := sizer.New(sizer.TableEstimator{Table: tbl})
	require.NoError(t, err)

	signer, _, err := bundle.GenerateEd25519Signer()
	require.NoError(t, err)
	builder := bundle.New(signer, fakeRawBuilder{}, enableSandwich)

	cfg := config.Defaults()
	cfg.EnableSandwich = enableSandwich
	cfg.SimulationOnly = true
	cfg.MinProfitThreshold = minProfit
	cfg.RelayURLs = []string{"a", "b"}

	return pipeline.New(alwaysKnownRegistry{}, filter, pools, sz, builder, nil, telemetry.New(), cfg)
}

func swapRaw(t *testing.T, poolID uint64, inAmount uint64) []byte {
	t.Helper()
	target := make([]byte, 20)
	target[0] = 0xAA
	payload := wiretxtest.EncodeSwapPayload(wiretxtest.SwapOpts{
		InTokenID:  1,
		OutTokenID: 2,
		InAmount:   uint256.NewInt(inAmount),
		MinOut:     uint256.NewInt(0),
		PoolID:     poolID,
	})
	return wiretxtest.EncodeTx(wiretxtest.TxOpts{ID: 1, Target: target, Fee: 5, Payload: payload})
}

func TestProcess_DropsUnmonitoredPool(t *testing.T) {
	o := buildOrchestrator(t, true)
	raw := swapRaw(t, 999, 100_000) // not added to filter

	result := o.Process(context.Background(), raw, 0, pipeline.NewBudget(10*time.Millisecond))
	require.Equal(t, pipeline.StateDropped, result.State)
	require.Equal(t, "filter", result.DropStage)
}

func TestProcess_BuildsSandwichWhenEnabled(t *testing.T) {
	o := buildOrchestrator(t, true)
	raw := swapRaw(t, 77, 100_000)

	result := o.Process(context.Background(), raw, 0, pipeline.NewBudget(50*time.Millisecond))
	require.Equal(t, pipeline.StateBuilt, result.State)
}

func TestProcess_BuildsArbitrageWhenSandwichDisabled(t *testing.T) {
	o := buildOrchestrator(t, false)
	raw := swapRaw(t, 77, 100_000)

	result := o.Process(context.Background(), raw, 0, pipeline.NewBudget(50*time.Millisecond))
	require.Equal(t, pipeline.StateBuilt, result.State)
}

func TestProcess_DropsBelowMinProfitThreshold(t *testing.T) {
	o := buildOrchestratorWithMinProfit(t, false, ^uint64(0))
	raw := swapRaw(t, 77, 100_000)

	result := o.Process(context.Background(), raw, 0, pipeline.NewBudget(50*time.Millisecond))
	require.Equal(t, pipeline.StateDropped, result.State)
	require.Equal(t, "viability", result.DropStage)
}

func TestProcess_BudgetExhaustedDropsImmediately(t *testing.T) {
	o := buildOrchestrator(t, true)
	raw := swapRaw(t, 77, 100_000)

	expired := pipeline.NewBudget(-time.Millisecond)
	result := o.Process(context.Background(), raw, 0, expired)
	require.Equal(t, pipeline.StateDropped, result.State)
}

func TestEnqueueAndRunWorkers(t *testing.T) {
	o := buildOrchestrator(t, true)
	require.NoError(t, o.Enqueue(swapRaw(t, 77, 50_000), 0, 10))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results := make(chan pipeline.Result, 1)
	o.RunWorkers(ctx, 1, func(r pipeline.Result) {
		select {
		case results <- r:
		default:
		}
	})

	select {
	case r := <-results:
		require.Equal(t, pipeline.StateBuilt, r.State)
	default:
		t.Fatal("expected at least one result to be observed")
	}
}
