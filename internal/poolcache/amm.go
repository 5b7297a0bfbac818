package poolcache

import (
	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/types"
)

// feeDenominator is the basis-point scale FeeBps is expressed in.
const feeDenominator = 10_000

// Quote computes the constant-product output amount for a swap of amountIn
// against pool, taking the input side indicated by inIsA. The exact integer
// formula (fee in basis points b):
//
//	dy = (y * dx * (10000 - b)) / (x * 10000 + dx * (10000 - b))
//
// All arithmetic is done in 256-bit widening multiplies/divides so reserves
// near the uint256 range never silently wrap.
func Quote(pool *types.PoolState, amountIn *uint256.Int, inIsA bool) (*uint256.Int, error) {
	if pool == nil || pool.ReserveA == nil || pool.ReserveB == nil {
		return nil, errs.New(errs.StageSize, errs.PoolUnknown, errs.Transient)
	}
	if amountIn == nil || amountIn.IsZero() {
		return uint256.NewInt(0), nil
	}
	if pool.FeeBps > feeDenominator {
		return nil, errs.New(errs.StageSize, errs.InvalidConfig, errs.Config)
	}

	x, y := pool.ReserveA, pool.ReserveB
	if !inIsA {
		x, y = pool.ReserveB, pool.ReserveA
	}
	if x.IsZero() || y.IsZero() {
		return uint256.NewInt(0), nil
	}

	feeMult := new(uint256.Int).SetUint64(uint64(feeDenominator - pool.FeeBps))

	numerator, overflow := new(uint256.Int).MulOverflow(y, new(uint256.Int).Mul(amountIn, feeMult))
	if overflow {
		return nil, errs.New(errs.StageSize, errs.BudgetExceeded, errs.Operational)
	}

	denomLeft, overflow := new(uint256.Int).MulOverflow(x, uint256.NewInt(feeDenominator))
	if overflow {
		return nil, errs.New(errs.StageSize, errs.BudgetExceeded, errs.Operational)
	}
	denomRight, overflow := new(uint256.Int).MulOverflow(amountIn, feeMult)
	if overflow {
		return nil, errs.New(errs.StageSize, errs.BudgetExceeded, errs.Operational)
	}
	denominator := new(uint256.Int).Add(denomLeft, denomRight)
	if denominator.IsZero() {
		return nil, errs.New(errs.StageSize, errs.NoProfitableSize, errs.Transient)
	}

	out := new(uint256.Int).Div(numerator, denominator)
	return out, nil
}
