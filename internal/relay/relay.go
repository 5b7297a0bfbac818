// Package relay implements C6, the RelayDispatcher: fan-out submission of
// a sealed Bundle to multiple relays in parallel, tracking each relay's
// rolling success rate. RankedClients exposes relays ordered by that rate;
// Dispatch itself always submits to every configured relay and does not
// skip or deprioritize a relay with a low success rate.
package relay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/types"
)

// Client submits a sealed Bundle to one relay. Production wiring injects a
// concrete transport (see httpclient.go for a reference implementation);
// this package only depends on the narrow interface.
type Client interface {
	Name() string
	Submit(ctx context.Context, bundle *types.Bundle) error
}

// DefaultTimeout bounds how long a single relay is given to accept a
// bundle before it is considered failed for that dispatch.
const DefaultTimeout = 500 * time.Millisecond

// Dispatcher fans a bundle out to every configured relay in parallel,
// each under its own timeout, and records per-relay outcomes for the
// weighted-selection success-rate gauges.
type Dispatcher struct {
	clients []Client
	timeout time.Duration
	metrics *telemetry.Core

	mu        sync.Mutex
	inflight  map[uint64]struct{} // bundle ids currently being dispatched
	successes map[string]*rollingRate
}

// rollingRate is an EWMA-style rolling success rate with alpha=0.1 per
// observation; the first observation seeds the value directly.
type rollingRate struct {
	mu    sync.Mutex
	value float64
	init  bool
}

const ewmaAlpha = 0.1

func (r *rollingRate) observe(success bool) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	x := 0.0
	if success {
		x = 1.0
	}
	if !r.init {
		r.value = x
		r.init = true
	} else {
		r.value = ewmaAlpha*x + (1-ewmaAlpha)*r.value
	}
	return r.value
}

func (r *rollingRate) get() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// New builds a Dispatcher over clients, using DefaultTimeout unless
// timeout is positive.
func New(clients []Client, timeout time.Duration, metrics *telemetry.Core) (*Dispatcher, error) {
	if len(clients) == 0 {
		return nil, errs.New(errs.StageStartup, errs.InvalidConfig, errs.Config)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		clients:   clients,
		timeout:   timeout,
		metrics:   metrics,
		inflight:  make(map[uint64]struct{}),
		successes: make(map[string]*rollingRate),
	}
	for _, c := range clients {
		d.successes[c.Name()] = &rollingRate{}
	}
	return d, nil
}

// Dispatch submits bundle to every relay concurrently, returning one
// RelayOutcome per relay. A bundle id already in flight is rejected with
// errs.DuplicateDispatch rather than submitted twice.
func (d *Dispatcher) Dispatch(ctx context.Context, bundle *types.Bundle) ([]types.RelayOutcome, error) {
	if !bundle.Sealed() {
		return nil, errs.New(errs.StageSubmit, errs.InvalidSandwichOrder, errs.Invariant)
	}

	d.mu.Lock()
	if _, dup := d.inflight[bundle.ID]; dup {
		d.mu.Unlock()
		return nil, errs.New(errs.StageSubmit, errs.DuplicateDispatch, errs.Invariant)
	}
	d.inflight[bundle.ID] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inflight, bundle.ID)
		d.mu.Unlock()
	}()

	outcomes := make([]types.RelayOutcome, len(d.clients))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range d.clients {
		i, c := i, c
		g.Go(func() error {
			outcomes[i] = d.submitOne(gctx, c, bundle)
			return nil
		})
	}
	// errgroup's error is always nil here since submitOne never returns an
	// error itself; per-relay failures are captured in outcomes instead so
	// one relay's failure never cancels the others' in-flight submissions.
	_ = g.Wait()

	if d.metrics != nil {
		d.metrics.BundlesDispatched.Mark(1)
	}
	return outcomes, nil
}

func (d *Dispatcher) submitOne(ctx context.Context, c Client, bundle *types.Bundle) types.RelayOutcome {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := c.Submit(callCtx, bundle)
	latency := time.Since(start)
	success := err == nil

	rate := d.successes[c.Name()].observe(success)
	if d.metrics != nil {
		d.metrics.RelayGauge(c.Name()).Update(rate)
	}

	return types.RelayOutcome{
		RelayName: c.Name(),
		BundleID:  bundle.ID,
		Success:   success,
		Latency:   latency,
		Err:       err,
	}
}

// SuccessRate returns the current rolling success rate for a relay name,
// or 0 if unknown.
func (d *Dispatcher) SuccessRate(name string) float64 {
	r, ok := d.successes[name]
	if !ok {
		return 0
	}
	return r.get()
}

// RankedClients returns clients ordered by descending rolling success
// rate, used by callers that want to prefer reliable relays for a
// latency-sensitive resubmission rather than fan out to all of them again.
func (d *Dispatcher) RankedClients() []Client {
	ranked := make([]Client, len(d.clients))
	copy(ranked, d.clients)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && d.SuccessRate(ranked[j].Name()) > d.SuccessRate(ranked[j-1].Name()); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}
