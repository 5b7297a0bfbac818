package engine

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/lux-mev/searcher/internal/errs"
)

// throttledLogger logs a Transient error at most once per second per
// (stage, kind) bucket, so a hot failure path (e.g. a pool that is
// permanently unknown) cannot flood the log at pipeline throughput.
type throttledLogger struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newThrottledLogger() *throttledLogger {
	return &throttledLogger{limiters: make(map[string]*rate.Limiter)}
}

func (t *throttledLogger) logDrop(stage, reason string, err error) {
	key := stage + "|" + reason
	t.mu.Lock()
	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Second), 1)
		t.limiters[key] = lim
	}
	t.mu.Unlock()

	if !lim.Allow() {
		return
	}
	log.Warn("transaction dropped", "stage", stage, "reason", reason, "err", err)
}

func (t *throttledLogger) logInvariant(kind errs.Kind, recovered interface{}) {
	log.Error("invariant violation recovered, worker restarting", "kind", kind, "recovered", recovered)
}
