package sizer

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/types"
)

// Estimator independently proposes a front-run amount for the same pool
// and victim trade. Production wiring can register several (table lookup,
// a local simulation sweep, a learned model); Sizer takes their median and
// flags consensus when enough of them agree.
type Estimator interface {
	Estimate(pool *types.PoolState, victimIn *uint256.Int) (*uint256.Int, error)
}

// agreementBps is how close two estimates must be (relative, in basis
// points) to count as "in agreement" for the consensus flag.
const agreementBps = 1_000 // 10%

// TableEstimator is the default, always-available Estimator: a precomputed
// Table lookup (a ppm fraction) converted back into an absolute amount by
// scaling the victim's input amount.
type TableEstimator struct {
	Table *Table
}

func (e TableEstimator) Estimate(pool *types.PoolState, victimIn *uint256.Int) (*uint256.Int, error) {
	if pool == nil || pool.ReserveA == nil || victimIn == nil {
		return nil, errs.New(errs.StageSize, errs.PoolUnknown, errs.Transient)
	}
	liquidity := pool.ReserveA
	if liquidity.IsZero() {
		return nil, errs.New(errs.StageSize, errs.NoProfitableSize, errs.Transient)
	}
	victimRatio := ratio(victimIn, liquidity)
	liqRatio := 1.0 // liquidity itself is the normalization unit; see table.go's unit-pool model
	ppm := e.Table.Lookup(pool.FeeBps, victimRatio, liqRatio)
	if ppm == 0 {
		return uint256.NewInt(0), nil
	}
	return mulPPM(victimIn, ppm), nil
}

// Sizer computes a SizingResult for a detected swap intent against the
// current pool state, combining one or more Estimators.
type Sizer struct {
	estimators []Estimator
}

// New builds a Sizer from at least one Estimator; additional estimators
// enable the consensus/confidence scoring described on SizingResult.
func New(estimators ...Estimator) (*Sizer, error) {
	if len(estimators) == 0 {
		return nil, errs.New(errs.StageStartup, errs.InvalidConfig, errs.Config)
	}
	return &Sizer{estimators: estimators}, nil
}

// Size runs every registered estimator, takes the median front-run amount,
// and derives the matching back-run amount and gross profit by simulating
// the full front/victim/back sequence through poolcache.Quote.
func (s *Sizer) Size(pool *types.PoolState, victimIn *uint256.Int) (types.SizingResult, error) {
	estimates := make([]*uint256.Int, 0, len(s.estimators))
	for _, e := range s.estimators {
		amt, err := e.Estimate(pool, victimIn)
		if err != nil {
			continue
		}
		estimates = append(estimates, amt)
	}
	if len(estimates) == 0 {
		return types.SizingResult{}, errs.New(errs.StageSize, errs.NoProfitableSize, errs.Transient)
	}

	front := median(estimates)
	if front.IsZero() {
		return types.SizingResult{}, errs.New(errs.StageSize, errs.NoProfitableSize, errs.Transient)
	}

	confidence, consensus := agreement(estimates, front)

	frontOut, err := poolcache.Quote(pool, front, true)
	if err != nil {
		return types.SizingResult{}, err
	}

	// Simulate the victim trade against reserves shifted by the front-run.
	shifted := pool.Clone()
	shifted.ReserveA = new(uint256.Int).Add(pool.ReserveA, front)
	shifted.ReserveB = new(uint256.Int).Sub(pool.ReserveB, frontOut)

	victimOut, err := poolcache.Quote(shifted, victimIn, true)
	if err != nil {
		return types.SizingResult{}, err
	}

	afterVictim := shifted.Clone()
	afterVictim.ReserveA = new(uint256.Int).Add(shifted.ReserveA, victimIn)
	afterVictim.ReserveB = new(uint256.Int).Sub(shifted.ReserveB, victimOut)

	backOut, err := poolcache.Quote(afterVictim, frontOut, false)
	if err != nil {
		return types.SizingResult{}, err
	}

	if !backOut.Gt(front) {
		return types.SizingResult{}, errs.New(errs.StageSize, errs.NoProfitableSize, errs.Transient)
	}
	gross := new(uint256.Int).Sub(backOut, front)

	return types.SizingResult{
		FrontRunAmount: front,
		BackRunAmount:  frontOut,
		GrossProfit:    gross,
		Confidence:     confidence,
		Consensus:      consensus,
	}, nil
}

func median(vals []*uint256.Int) *uint256.Int {
	sorted := make([]*uint256.Int, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lt(sorted[j]) })
	return sorted[len(sorted)/2]
}

// agreement scores [0,100] confidence as the fraction of estimates within
// agreementBps (10%) of the chosen median, and flags consensus only when
// there is more than one estimate and every one of them is within that
// bound.
func agreement(vals []*uint256.Int, pivot *uint256.Int) (confidence int, consensus bool) {
	if pivot.IsZero() {
		return 0, false
	}
	agree := 0
	for _, v := range vals {
		if withinBps(v, pivot, agreementBps) {
			agree++
		}
	}
	confidence = agree * 100 / len(vals)
	consensus = len(vals) > 1 && agree >= len(vals)
	return
}

func withinBps(v, pivot *uint256.Int, bps uint64) bool {
	diff := new(uint256.Int)
	if v.Gt(pivot) {
		diff.Sub(v, pivot)
	} else {
		diff.Sub(pivot, v)
	}
	bound := mulPPM(pivot, uint32(bps*100)) // bps -> ppm
	return diff.Lte(bound)
}

func ratio(a, b *uint256.Int) float64 {
	if b.IsZero() {
		return 0
	}
	return a.Float64() / b.Float64()
}

func mulPPM(v *uint256.Int, ppm uint32) *uint256.Int {
	const ppmScale = 1_000_000
	num := new(uint256.Int).Mul(v, uint256.NewInt(uint64(ppm)))
	return num.Div(num, uint256.NewInt(ppmScale))
}
