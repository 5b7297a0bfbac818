package engine_test

import (
	"context"
	"errors"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	gomega "github.com/onsi/gomega"

	"github.com/holiman/uint256"
	gomock "go.uber.org/mock/gomock"

	"github.com/lux-mev/searcher/internal/bundle"
	"github.com/lux-mev/searcher/internal/config"
	"github.com/lux-mev/searcher/internal/engine/enginemocks"
	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/pipeline"
	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/prefilter"
	"github.com/lux-mev/searcher/internal/queue"
	"github.com/lux-mev/searcher/internal/relay"
	"github.com/lux-mev/searcher/internal/sizer"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/types"
	"github.com/lux-mev/searcher/internal/wiretx/wiretxtest"
)

type passThroughRawBuilder struct{}

func (passThroughRawBuilder) BuildLeg(intent types.SwapIntent, fee uint64) ([]byte, error) {
	return []byte{byte(fee)}, nil
}

func staticPool(poolID uint64) *types.PoolState {
	return &types.PoolState{
		PoolID:    poolID,
		ReserveA:  uint256.NewInt(1_000_000),
		ReserveB:  uint256.NewInt(1_000_000),
		FeeBps:    30,
		FetchedAt: time.Now(),
	}
}

type staticProvider struct{ pool *types.PoolState }

func (p staticProvider) FetchPool(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	return p.pool, nil
}

func newSandwichTestBuilder() *bundle.Builder {
	signer, _, _ := bundle.GenerateEd25519Signer()
	return bundle.New(signer, passThroughRawBuilder{}, true)
}

func newArbitrageTestBuilder() *bundle.Builder {
	signer, _, _ := bundle.GenerateEd25519Signer()
	return bundle.New(signer, passThroughRawBuilder{}, false)
}

func swapFrame(poolID uint64, fee uint64, inAmount uint64, target []byte) []byte {
	payload := wiretxtest.EncodeSwapPayload(wiretxtest.SwapOpts{
		InTokenID:  1,
		OutTokenID: 2,
		InAmount:   uint256.NewInt(inAmount),
		MinOut:     uint256.NewInt(0),
		PoolID:     poolID,
	})
	return wiretxtest.EncodeTx(wiretxtest.TxOpts{ID: 1, Target: target, Fee: fee, Payload: payload})
}

func monitoredTarget() []byte {
	target := make([]byte, 20)
	target[0] = 0xBB
	return target
}

type registryAll struct{}

func (registryAll) IsDEXProgram(target []byte) bool { return true }

var _ = ginkgo.Describe("searcher pipeline scenarios", func() {
	var (
		filter *prefilter.Filter
		sz     *sizer.Sizer
	)

	ginkgo.BeforeEach(func() {
		var err error
		filter, err = prefilter.New()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(filter.Add(7)).To(gomega.Succeed())

		tbl := sizer.Build(sizer.Dims{FeeTiers: 4, VictimBins: 8, LiquidityBins: 8})
		sz, err = sizer.New(sizer.TableEstimator{Table: tbl})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	// S1 — Non-target transaction. Input bytes decode to a swap on a pool
	// id the prefilter does not monitor. Expected: Dropped{stage=Filter}.
	ginkgo.It("S1 drops a transaction on a non-monitored pool at the Filter stage", func() {
		pools, err := poolcache.New(10, staticProvider{staticPool(999)}, time.Minute, time.Second)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		cfg := config.Defaults()
		cfg.SimulationOnly = true
		cfg.RelayURLs = []string{"a", "b"}

		orch := pipeline.New(registryAll{}, filter, pools, sz, newArbitrageTestBuilder(), nil, telemetry.New(), cfg)

		raw := swapFrame(999 /* not monitored */, 5, 10_000, monitoredTarget())
		result := orch.Process(context.Background(), raw, 0, pipeline.NewBudget(10*time.Millisecond))

		gomega.Expect(result.State).To(gomega.Equal(pipeline.StateDropped))
		gomega.Expect(result.DropStage).To(gomega.Equal("filter"))
	})

	// S2 — Arbitrage happy path. Pool P, reserves (1e6,1e6), fee=30bps,
	// dx=10000. Expected: a two-transaction Bundle dispatched to every
	// configured relay, at least one success.
	ginkgo.It("S2 builds and dispatches a two-leg arbitrage bundle on a profitable swap", func() {
		pools, err := poolcache.New(10, staticProvider{staticPool(7)}, time.Minute, time.Second)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		metrics := telemetry.New()
		clientA := enginemocks.NewMockClient(gomock.NewController(ginkgo.GinkgoT()))
		clientA.EXPECT().Name().Return("relay-a").AnyTimes()
		clientA.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		clientB := enginemocks.NewMockClient(gomock.NewController(ginkgo.GinkgoT()))
		clientB.EXPECT().Name().Return("relay-b").AnyTimes()
		clientB.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

		dispatcher, err := relay.New([]relay.Client{clientA, clientB}, 200*time.Millisecond, metrics)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		cfg := config.Defaults()
		cfg.SimulationOnly = false
		cfg.EnableSandwich = false
		cfg.RelayURLs = []string{"a", "b"}

		orch := pipeline.New(registryAll{}, filter, pools, sz, newArbitrageTestBuilder(), dispatcher, metrics, cfg)

		raw := swapFrame(7, 5, 10_000, monitoredTarget())
		result := orch.Process(context.Background(), raw, 0, pipeline.NewBudget(10*time.Millisecond))

		gomega.Expect(result.State).To(gomega.Equal(pipeline.StateDispatched))
	})

	// S3 — Sandwich gated by the ethics flag. enable_sandwich=true and
	// simulation_only=false at startup. Expected: config refuses to
	// validate with SandwichWithoutSimulationOnly.
	ginkgo.It("S3 refuses sandwich mode without simulation_only", func() {
		cfg := config.Defaults()
		cfg.EnableSandwich = true
		cfg.SimulationOnly = false
		cfg.RelayURLs = []string{"a", "b"}

		err := cfg.Validate()
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(errs.Is(err, errs.SandwichWithoutSimulationOnly)).To(gomega.BeTrue())
	})

	// S4 — Budget overrun on Simulate. A slow PoolCache fetch pushes the
	// stage past the per-transaction budget. Budget.CheckIn samples the
	// deadline at each stage boundary rather than interrupting a stage
	// mid-flight, so the overrun surfaces at the next boundary entered
	// after Simulate's slow fetch returns: the drop is tagged with the
	// Size stage, and Build/Submit are never entered.
	ginkgo.It("S4 drops with BudgetExceeded once Simulate's slow fetch exhausts the budget", func() {
		ctrl := gomock.NewController(ginkgo.GinkgoT())
		provider := enginemocks.NewMockStateProvider(ctrl)
		provider.EXPECT().FetchPool(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, poolID uint64) (*types.PoolState, error) {
				select {
				case <-time.After(5 * time.Millisecond):
				case <-ctx.Done():
				}
				return staticPool(poolID), nil
			}).AnyTimes()

		pools, err := poolcache.New(10, provider, time.Minute, 50*time.Millisecond)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		cfg := config.Defaults()
		cfg.SimulationOnly = true
		cfg.RelayURLs = []string{"a", "b"}

		orch := pipeline.New(registryAll{}, filter, pools, sz, newArbitrageTestBuilder(), nil, telemetry.New(), cfg)

		raw := swapFrame(7, 5, 10_000, monitoredTarget())
		// Long enough to clear Ingest/Filter/the Simulate check-in itself,
		// nowhere near enough to survive the 5ms injected fetch latency
		// once Size's check-in samples the deadline again.
		budget := pipeline.NewBudget(2 * time.Millisecond)
		result := orch.Process(context.Background(), raw, 0, budget)

		gomega.Expect(result.State).To(gomega.Equal(pipeline.StateDropped))
		gomega.Expect(result.DropStage).To(gomega.Equal("size"))
	})

	// S5 — Queue overflow with priority eviction. Capacity=3, enqueue
	// [10,20,30] (full), enqueue 25 -> accepted, evicts 10, leaving
	// {20,25,30}; enqueue 5 -> rejected, queue unchanged.
	ginkgo.It("S5 evicts the lowest priority on overflow and rejects a new lowest", func() {
		q := queue.New(3)
		gomega.Expect(q.Push("p10", 10)).To(gomega.Succeed())
		gomega.Expect(q.Push("p20", 20)).To(gomega.Succeed())
		gomega.Expect(q.Push("p30", 30)).To(gomega.Succeed())

		gomega.Expect(q.Push("p25", 25)).To(gomega.Succeed())
		gomega.Expect(q.Len()).To(gomega.Equal(3))

		err := q.Push("p5", 5)
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(errs.Is(err, errs.QueueOverflow)).To(gomega.BeTrue())
		gomega.Expect(q.Len()).To(gomega.Equal(3))

		seen := map[queue.Priority]bool{}
		for i := 0; i < 3; i++ {
			_, p, ok := q.Pop()
			gomega.Expect(ok).To(gomega.BeTrue())
			seen[p] = true
		}
		gomega.Expect(seen).To(gomega.Equal(map[queue.Priority]bool{20: true, 25: true, 30: true}))
	})

	// S6 — Relay partial failure. Dispatch to {A,B,C}: A succeeds in
	// 20ms, B times out, C rejects in 10ms. Expected: one success, every
	// relay's per-relay stats updated, engine continues.
	ginkgo.It("S6 tolerates partial relay failure and records one success", func() {
		ctrl := gomock.NewController(ginkgo.GinkgoT())

		clientA := enginemocks.NewMockClient(ctrl)
		clientA.EXPECT().Name().Return("A").AnyTimes()
		clientA.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, bd *types.Bundle) error {
				select {
				case <-time.After(20 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})

		clientB := enginemocks.NewMockClient(ctrl)
		clientB.EXPECT().Name().Return("B").AnyTimes()
		clientB.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, bd *types.Bundle) error {
				<-ctx.Done()
				return ctx.Err()
			})

		clientC := enginemocks.NewMockClient(ctrl)
		clientC.EXPECT().Name().Return("C").AnyTimes()
		clientC.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, bd *types.Bundle) error {
				time.Sleep(10 * time.Millisecond)
				return errors.New("rejected")
			})

		metrics := telemetry.New()
		dispatcher, err := relay.New([]relay.Client{clientA, clientB, clientC}, 50*time.Millisecond, metrics)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		bd := &types.Bundle{ID: 1, Txs: []types.SignedTx{{Raw: []byte("leg")}}, Tip: uint256.NewInt(1)}
		bd.Seal()

		outcomes, err := dispatcher.Dispatch(context.Background(), bd)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(outcomes).To(gomega.HaveLen(3))

		successCount := 0
		for _, o := range outcomes {
			if o.Success {
				successCount++
			}
		}
		gomega.Expect(successCount).To(gomega.Equal(1))
	})
})
