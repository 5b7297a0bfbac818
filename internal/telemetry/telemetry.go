// Package telemetry implements C9, MetricsCore: the engine's metric
// registry and health signal, built on go-ethereum's metrics package the
// same way its own packages (core/txpool, triedb/pathdb) register
// Meters, Gauges, and Timers against a shared Registry.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// Core holds every metric this engine emits, registered once at startup
// against its own Registry so a Prometheus bridge (see prombridge.go) can
// gather them without the rest of the engine depending on Prometheus
// directly.
type Core struct {
	Registry metrics.Registry

	StageLatency map[string]metrics.Timer // per-stage processing time
	StageDrops   map[string]metrics.Meter // per-stage drop count; the drop reason is not recorded

	OpportunitiesFound metrics.Meter
	OpportunitiesBuilt metrics.Meter
	BundlesDispatched  metrics.Meter
	QueueDepth         metrics.GaugeFloat64
	QueueEvictions     metrics.Meter
	PoolCacheHitRate   metrics.GaugeFloat64

	relayMu                sync.Mutex
	relaySuccessRateByName map[string]metrics.GaugeFloat64

	unhealthy atomic.Bool
}

// Stages names every pipeline stage StageLatency/StageDrops track.
var Stages = []string{"ingest", "filter", "simulate", "size", "viability", "build", "submit"}

// New constructs a Core with every named metric pre-registered, the way
// go-ethereum's triedb/pathdb pre-declares its meters as package vars
// rather than registering them lazily on first use.
func New() *Core {
	reg := metrics.NewRegistry()
	c := &Core{
		Registry:               reg,
		StageLatency:           make(map[string]metrics.Timer, len(Stages)),
		StageDrops:             make(map[string]metrics.Meter, len(Stages)),
		OpportunitiesFound:     metrics.NewRegisteredMeter("searcher/opportunities/found", reg),
		OpportunitiesBuilt:     metrics.NewRegisteredMeter("searcher/opportunities/built", reg),
		BundlesDispatched:      metrics.NewRegisteredMeter("searcher/bundles/dispatched", reg),
		QueueDepth:             metrics.NewRegisteredGaugeFloat64("searcher/queue/depth", reg),
		QueueEvictions:         metrics.NewRegisteredMeter("searcher/queue/evictions", reg),
		PoolCacheHitRate:       metrics.NewRegisteredGaugeFloat64("searcher/poolcache/hitrate", reg),
		relaySuccessRateByName: make(map[string]metrics.GaugeFloat64),
	}
	for _, s := range Stages {
		c.StageLatency[s] = metrics.NewRegisteredTimer("searcher/stage/"+s+"/latency", reg)
		c.StageDrops[s] = metrics.NewRegisteredMeter("searcher/stage/"+s+"/drops", reg)
	}
	return c
}

// RelayGauge lazily registers (or returns) the per-relay success-rate
// gauge for name. Dispatch fans out to every relay concurrently, so this
// must be safe to call from multiple goroutines at once.
func (c *Core) RelayGauge(name string) metrics.GaugeFloat64 {
	c.relayMu.Lock()
	defer c.relayMu.Unlock()
	if g, ok := c.relaySuccessRateByName[name]; ok {
		return g
	}
	g := metrics.NewRegisteredGaugeFloat64("searcher/relay/"+name+"/success_rate", c.Registry)
	c.relaySuccessRateByName[name] = g
	return g
}

// ObserveStage records one stage's processing duration and, if dropped,
// marks one drop on that stage's drop meter (the reason is not recorded).
func (c *Core) ObserveStage(stage string, d time.Duration, dropped bool) {
	if t, ok := c.StageLatency[stage]; ok {
		t.Update(d)
	}
	if dropped {
		if m, ok := c.StageDrops[stage]; ok {
			m.Mark(1)
		}
	}
}

// SetUnhealthy/SetHealthy/Unhealthy implement the engine-wide health
// signal: the engine's worker supervisor sets it when it recovers an
// Invariant-tier panic, and Engine.HealthCheck reads it.
func (c *Core) SetUnhealthy() { c.unhealthy.Store(true) }
func (c *Core) SetHealthy()   { c.unhealthy.Store(false) }
func (c *Core) Unhealthy() bool { return c.unhealthy.Load() }
