// Package engine wires every collaborator package into one running
// searcher: construction/shutdown ordering, the ingress transport, and
// the supervisor that recovers an Invariant-tier panic out of one worker
// and restarts it without taking down the others.
package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lux-mev/searcher/internal/config"
	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/pipeline"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/wiretx"
)

// Engine owns the wired Orchestrator, the ingress transport feeding it,
// and the worker supervisor. Construct with New, then Start/Stop it.
type Engine struct {
	cfg          config.Config
	orchestrator *pipeline.Orchestrator
	ingress      Ingress
	metrics      *telemetry.Core
	logger       *throttledLogger
	onResult     func(pipeline.Result)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and wires orchestrator/ingress/metrics together. It
// refuses to construct an Engine for a config that fails Validate (most
// notably enable_sandwich=true without simulation_only=true), matching
// cmd/searcher's contract of aborting before any worker starts. onResult
// may be nil; every processed transaction's Result is then simply
// discarded after its metrics have been recorded.
func New(cfg config.Config, orchestrator *pipeline.Orchestrator, ingress Ingress, metrics *telemetry.Core, onResult func(pipeline.Result)) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if onResult == nil {
		onResult = func(pipeline.Result) {}
	}
	return &Engine{
		cfg:          cfg,
		orchestrator: orchestrator,
		ingress:      ingress,
		metrics:      metrics,
		logger:       newThrottledLogger(),
		onResult:     onResult,
	}, nil
}

// Start launches the ingress transport and cfg.NumWorkers supervised
// workers. It returns once everything has been launched; call Stop to
// shut down.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if e.ingress != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.ingress.Listen(runCtx, e.onFrame); err != nil && runCtx.Err() == nil {
				log.Error("ingress transport exited", "err", err)
			}
		}()
	}

	for i := 0; i < e.cfg.NumWorkers; i++ {
		e.wg.Add(1)
		go func(id int) {
			defer e.wg.Done()
			e.superviseWorker(runCtx, id)
		}(i)
	}
}

// Stop cancels every launched goroutine and blocks until they exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// HealthCheck reports whether the engine is degraded (an Invariant-tier
// error was recovered from a worker and it has not yet been cleared).
func (e *Engine) HealthCheck(context.Context) (interface{}, error) {
	if e.metrics != nil && e.metrics.Unhealthy() {
		return map[string]string{"status": "degraded"}, errs.New(errs.StageStartup, errs.EngineDegraded, errs.Operational)
	}
	return map[string]string{"status": "ok"}, nil
}

func (e *Engine) onFrame(raw []byte, arrivedAt int64) {
	fee, _ := wiretx.PeekFee(raw)
	if err := e.orchestrator.Enqueue(raw, arrivedAt, fee); err != nil {
		e.logger.logDrop(string(errs.StageIngest), "enqueue_rejected", err)
	}
}

// superviseWorker runs RunWorker in a loop, recovering any panic it
// raises (an Invariant-tier error surfaced by Process), marking the
// engine unhealthy, logging it, and immediately restarting the worker —
// the same recover-log-continue shape as a supervised goroutine, without
// tearing down and re-launching a fresh one each time.
func (e *Engine) superviseWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.runWorkerOnce(ctx, id)
	}
}

func (e *Engine) runWorkerOnce(ctx context.Context, id int) {
	defer func() {
		if r := recover(); r != nil {
			if e.metrics != nil {
				e.metrics.SetUnhealthy()
			}
			if ae, ok := r.(*errs.Error); ok {
				e.logger.logInvariant(ae.Kind, r)
			} else {
				e.logger.logInvariant("unknown", r)
			}
		}
	}()
	e.orchestrator.RunWorker(ctx, e.onResult)
}
