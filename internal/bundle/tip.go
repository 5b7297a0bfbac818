package bundle

import "github.com/holiman/uint256"

// baseTipBps/maxTipBps bound the fraction of net profit (before tip) bid
// away as a relay tip: 5% under no competitive or network pressure, rising
// linearly to 50% when both the competitor-fee percentile and congestion
// scalar are maxed out.
const (
	baseTipBps        = 500
	maxTipBps         = 5000
	tipBpsDenominator = 10_000
)

// EstimateTip computes the relay tip bid as a pure function of expected
// net profit before tip, a competitor fee percentile (how this
// opportunity's own fee ranks among other currently-queued transactions,
// [0,100]), and a congestion scalar ([0,100], how full the backpressure
// queue is). Both pressure inputs push the bid rate linearly from
// baseTipBps toward maxTipBps; the result is clamped so the bid never
// exceeds the profit it is drawn from, the same clamp discipline
// go-ethereum's params.CalcBaseFee applies to its own bounds.
func EstimateTip(netProfitBeforeTip *uint256.Int, competitorFeePercentile, congestion int) *uint256.Int {
	if netProfitBeforeTip == nil || netProfitBeforeTip.Sign() <= 0 {
		return uint256.NewInt(0)
	}
	competitorFeePercentile = clampPercent(competitorFeePercentile)
	congestion = clampPercent(congestion)

	pressure := (competitorFeePercentile + congestion) / 2
	bps := baseTipBps + (maxTipBps-baseTipBps)*pressure/100

	tip := new(uint256.Int).Mul(netProfitBeforeTip, uint256.NewInt(uint64(bps)))
	tip.Div(tip, uint256.NewInt(tipBpsDenominator))
	if tip.Gt(netProfitBeforeTip) {
		return new(uint256.Int).Set(netProfitBeforeTip)
	}
	return tip
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
