package pipeline

import (
	"time"

	"github.com/lux-mev/searcher/internal/errs"
)

// Budget tracks a monotonic deadline for one transaction's trip through
// the pipeline. Each stage samples Remaining() at its boundary rather
// than relying on a context timer firing mid-computation, so a stage that
// is already over budget never even starts its work.
type Budget struct {
	deadline time.Time
}

// NewBudget starts a budget of total duration from now.
func NewBudget(total time.Duration) Budget {
	return Budget{deadline: time.Now().Add(total)}
}

// Remaining returns how much time is left; zero or negative means the
// budget is exhausted.
func (b Budget) Remaining() time.Duration {
	return time.Until(b.deadline)
}

// CheckIn returns errs.BudgetExceeded if the budget is already exhausted,
// tagged with the given stage for metrics/logging.
func (b Budget) CheckIn(stage errs.Stage) error {
	if b.Remaining() <= 0 {
		return errs.New(stage, errs.BudgetExceeded, errs.Transient)
	}
	return nil
}
