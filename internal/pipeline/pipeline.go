// Package pipeline implements C8, the PipelineOrchestrator: the six-stage
// Ingest→Filter→Simulate→Size→Build→Submit state machine that turns raw
// ingress bytes into a dispatched bundle (or a recorded drop) within a
// fixed total time budget, plus the worker pool that runs it concurrently
// over a backpressure queue.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/bundle"
	"github.com/lux-mev/searcher/internal/config"
	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/prefilter"
	"github.com/lux-mev/searcher/internal/queue"
	"github.com/lux-mev/searcher/internal/relay"
	"github.com/lux-mev/searcher/internal/sizer"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/types"
	"github.com/lux-mev/searcher/internal/wiretx"
)

// Orchestrator wires every pipeline stage's collaborator together and
// drives one transaction from raw bytes to a Result.
type Orchestrator struct {
	registry   wiretx.Registry
	filter     *prefilter.Filter
	pools      *poolcache.Cache
	sizer      *sizer.Sizer
	builder    *bundle.Builder
	dispatcher *relay.Dispatcher
	metrics    *telemetry.Core
	cfg        config.Config

	q *queue.Queue
}

// New builds an Orchestrator. All collaborators are required except
// dispatcher, which may be nil for a simulation-only deployment (Process
// then stops after Build and never calls Submit).
func New(
	registry wiretx.Registry,
	filter *prefilter.Filter,
	pools *poolcache.Cache,
	sz *sizer.Sizer,
	builder *bundle.Builder,
	dispatcher *relay.Dispatcher,
	metrics *telemetry.Core,
	cfg config.Config,
) *Orchestrator {
	if pools != nil && metrics != nil {
		pools.SetMetrics(metrics)
	}
	return &Orchestrator{
		registry:   registry,
		filter:     filter,
		pools:      pools,
		sizer:      sz,
		builder:    builder,
		dispatcher: dispatcher,
		metrics:    metrics,
		cfg:        cfg,
		q:          queue.New(cfg.QueueCapacity),
	}
}

// Enqueue admits a raw transaction into the backpressure queue, priced by
// its declared fee so the highest-fee transactions survive overflow.
func (o *Orchestrator) Enqueue(raw []byte, arrivedAt int64, fee uint64) error {
	if err := o.q.Push(ingressTask{raw: raw, arrivedAt: arrivedAt}, queue.Priority(fee)); err != nil {
		if o.metrics != nil {
			o.metrics.QueueEvictions.Mark(1)
		}
		return err
	}
	if o.metrics != nil {
		o.metrics.QueueDepth.Update(float64(o.q.Len()))
	}
	return nil
}

type ingressTask struct {
	raw       []byte
	arrivedAt int64
}

// RunWorkers starts n worker goroutines draining the backpressure queue
// until ctx is cancelled, calling onResult for every processed
// transaction. It blocks until every worker has exited. Unlike RunWorker,
// a panic (an Invariant-tier error) inside one worker is not recovered
// here and crashes the process; callers that need per-worker supervision
// call RunWorker directly inside their own recover wrapper (see
// internal/engine).
func (o *Orchestrator) RunWorkers(ctx context.Context, n int, onResult func(Result)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunWorker(ctx, onResult)
		}()
	}
	wg.Wait()
}

// RunWorker drains the backpressure queue on the calling goroutine until
// ctx is cancelled, calling onResult for every processed transaction. A
// panic raised by Process (an Invariant-tier error) propagates out of
// RunWorker unrecovered; a supervisor wraps each call in its own recover.
func (o *Orchestrator) RunWorker(ctx context.Context, onResult func(Result)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		v, _, ok := o.q.Pop()
		if !ok {
			// Queue momentarily empty; yield briefly rather than busy-spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		task := v.(ingressTask)
		budget := NewBudget(time.Duration(o.cfg.BudgetTotalUS) * time.Microsecond)
		result := o.Process(ctx, task.raw, task.arrivedAt, budget)
		onResult(result)
	}
}

// Process runs one transaction through every stage, stopping and
// returning a Dropped Result the moment any stage fails or the budget is
// exhausted.
func (o *Orchestrator) Process(ctx context.Context, raw []byte, arrivedAt int64, budget Budget) Result {
	stageStart := time.Now()

	tx, intent, err := wiretx.Decode(raw, arrivedAt, o.registry)
	o.observe(errs.StageIngest, stageStart, err)
	if err != nil {
		return dropped(string(errs.StageIngest), err)
	}
	if intent == nil {
		return dropped(string(errs.StageFilter), errs.New(errs.StageFilter, errs.BelowThreshold, errs.Transient))
	}

	stageStart = time.Now()
	if err := budget.CheckIn(errs.StageFilter); err != nil {
		o.observe(errs.StageFilter, stageStart, err)
		return dropped(string(errs.StageFilter), err)
	}
	if !o.filter.Contains(intent.PoolID) {
		err := errs.New(errs.StageFilter, errs.BelowThreshold, errs.Transient)
		o.observe(errs.StageFilter, stageStart, err)
		return dropped(string(errs.StageFilter), err)
	}
	o.observe(errs.StageFilter, stageStart, nil)

	stageStart = time.Now()
	if err := budget.CheckIn(errs.StageSimulate); err != nil {
		o.observe(errs.StageSimulate, stageStart, err)
		return dropped(string(errs.StageSimulate), err)
	}
	pool, err := o.pools.Get(ctx, intent.PoolID)
	o.observe(errs.StageSimulate, stageStart, err)
	if err != nil {
		return dropped(string(errs.StageSimulate), err)
	}

	stageStart = time.Now()
	if err := budget.CheckIn(errs.StageSize); err != nil {
		o.observe(errs.StageSize, stageStart, err)
		return dropped(string(errs.StageSize), err)
	}
	sizing, err := o.sizer.Size(pool, intent.InAmount)
	o.observe(errs.StageSize, stageStart, err)
	if err != nil {
		return dropped(string(errs.StageSize), err)
	}

	// A pending swap is, by default, an arbitrage candidate: the pool's
	// post-trade price can be captured directly with no reference to any
	// other transaction. It only becomes a sandwich candidate — bracketing
	// this same transaction as the victim — when the operator has opted
	// into the (simulation-only) sandwich research path.
	opp := types.Opportunity{
		Kind:       types.KindArbitrage,
		Tx:         tx,
		Intent:     *intent,
		Sizing:     sizing,
		DetectedAt: time.Now(),
	}
	if o.cfg.EnableSandwich {
		opp.Kind = types.KindSandwich
	}

	// legFees is the fee schedule Build will charge each leg; computed once
	// here so the cost estimate below and the Build call downstream never
	// drift apart.
	var legFees []uint64
	if opp.Kind == types.KindSandwich {
		legFees = []uint64{tx.Fee, tx.Fee + bundle.FeeRelationshipMargin}
	} else {
		legFees = []uint64{tx.Fee, tx.Fee + 1}
	}

	feeCost := uint256.NewInt(0)
	for _, fee := range legFees {
		feeCost.Add(feeCost, uint256.NewInt(fee))
	}
	opp.EstimatedCompute = uint64(len(legFees)) * tx.GasLimit
	opp.EstimatedFeeCost = feeCost

	netBeforeTip := uint256.NewInt(0)
	if sizing.GrossProfit != nil && sizing.GrossProfit.Gt(feeCost) {
		netBeforeTip.Sub(sizing.GrossProfit, feeCost)
	}

	congestion := 0
	if cap := o.q.Capacity(); cap > 0 {
		congestion = o.q.Len() * 100 / cap
	}
	competitorPercentile := o.q.FeePercentile(queue.Priority(tx.Fee))
	opp.EstimatedTip = bundle.EstimateTip(netBeforeTip, competitorPercentile, congestion)

	netProfit := uint256.NewInt(0)
	if netBeforeTip.Gt(opp.EstimatedTip) {
		netProfit.Sub(netBeforeTip, opp.EstimatedTip)
	}
	opp.NetProfit = netProfit

	stageStart = time.Now()
	if opp.NetProfit.Lt(uint256.NewInt(o.cfg.MinProfitThreshold)) {
		err := errs.New(errs.StageViability, errs.NoProfitableSize, errs.Transient)
		o.observe(errs.StageViability, stageStart, err)
		return dropped(string(errs.StageViability), err)
	}
	o.observe(errs.StageViability, stageStart, nil)
	if o.metrics != nil {
		o.metrics.OpportunitiesFound.Mark(1)
	}

	stageStart = time.Now()
	if err := budget.CheckIn(errs.StageBuild); err != nil {
		o.observe(errs.StageBuild, stageStart, err)
		return dropped(string(errs.StageBuild), err)
	}

	var bd *types.Bundle
	if opp.Kind == types.KindSandwich {
		victimRaw := types.SignedTx{Raw: tx.Payload}
		maxFee := o.cfg.MaxPriorityFee
		if maxFee == 0 {
			maxFee = ^uint64(0) // 0 means unbounded, as on the arbitrage path below
		}
		bd, err = o.builder.BuildSandwich(opp, victimRaw, maxFee)
	} else {
		if o.cfg.MaxPriorityFee != 0 {
			for _, fee := range legFees {
				if fee > o.cfg.MaxPriorityFee {
					err = errs.New(errs.StageBuild, errs.FeeCapExceeded, errs.Transient)
					break
				}
			}
		}
		if err == nil {
			bd, err = o.builder.BuildArbitrage(opp, legFees)
		}
	}
	o.observe(errs.StageBuild, stageStart, err)
	if err != nil {
		return dropped(string(errs.StageBuild), err)
	}
	if o.metrics != nil {
		o.metrics.OpportunitiesBuilt.Mark(1)
	}

	if o.cfg.SimulationOnly || o.dispatcher == nil {
		return Result{State: StateBuilt}
	}

	stageStart = time.Now()
	if err := budget.CheckIn(errs.StageSubmit); err != nil {
		o.observe(errs.StageSubmit, stageStart, err)
		return dropped(string(errs.StageSubmit), err)
	}
	_, err = o.dispatcher.Dispatch(ctx, bd)
	o.observe(errs.StageSubmit, stageStart, err)
	if err != nil {
		return dropped(string(errs.StageSubmit), err)
	}

	return Result{State: StateDispatched}
}

func (o *Orchestrator) observe(stage errs.Stage, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveStage(string(stage), time.Since(start), err != nil)

	// An Invariant-tier error means a collaborator's own precondition broke,
	// not that the input was bad; that is a bug, not a drop, so it unwinds
	// the worker goroutine instead of returning a Dropped Result. The
	// engine's supervisor recovers it, marks the engine unhealthy, and
	// restarts the worker.
	if ae, ok := errs.As(err); ok && ae.Tier == errs.Invariant {
		panic(ae)
	}
}
