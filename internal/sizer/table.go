// Package sizer implements C4, the Sizer: computing the optimal front-run
// and back-run amounts for a sandwich (or the optimal leg amount for an
// arbitrage) against a given pool state and victim trade, using a
// precomputed table instead of searching the continuous amount space on
// the hot path.
package sizer

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/lux-mev/searcher/internal/errs"
)

// tableMagic and tableVersion identify a persisted table file; a mismatch
// (or any other read error) triggers a full in-process rebuild rather than
// a startup failure, since the table is a cache, not a source of truth.
const (
	tableMagic   uint32 = 0x53495A31 // "SIZ1"
	tableVersion uint32 = 1
)

// Dims controls the resolution of the precomputed table along its three
// log-bucketed axes: fee tier, victim size, and pool liquidity.
type Dims struct {
	FeeTiers     int
	VictimBins   int
	LiquidityBins int
}

// DefaultDims matches the resolution used to build the table shipped with
// this engine: coarse enough to stay small, fine enough that log-bucket
// interpolation error stays under the sizing tolerance.
var DefaultDims = Dims{FeeTiers: 8, VictimBins: 64, LiquidityBins: 64}

// Table is a row-major array of precomputed optimal front-run fractions
// (expressed in parts-per-million of the victim's input amount), indexed
// by (feeTier, victimBin, liquidityBin). A fraction rather than an
// absolute amount is stored so one table serves pools of any size.
type Table struct {
	dims  Dims
	cells []uint32 // ppm of victim amount, row-major [fee][victim][liquidity]
}

// Build computes a fresh table by brute-force optimizing the front-run
// fraction at each grid point. This runs offline (at startup or via the
// sizing-table build subcommand), never on the per-transaction hot path.
func Build(dims Dims) *Table {
	t := &Table{dims: dims, cells: make([]uint32, dims.FeeTiers*dims.VictimBins*dims.LiquidityBins)}
	for fi := 0; fi < dims.FeeTiers; fi++ {
		feeBps := feeAtBucket(fi, dims.FeeTiers)
		for vi := 0; vi < dims.VictimBins; vi++ {
			victimRatio := logBucketValue(vi, dims.VictimBins)
			for li := 0; li < dims.LiquidityBins; li++ {
				liqRatio := logBucketValue(li, dims.LiquidityBins)
				t.cells[t.index(fi, vi, li)] = optimalFrontRunPPM(feeBps, victimRatio, liqRatio)
			}
		}
	}
	return t
}

func (t *Table) index(fi, vi, li int) int {
	return (fi*t.dims.VictimBins+vi)*t.dims.LiquidityBins + li
}

// Lookup returns the precomputed optimal front-run fraction (ppm of the
// victim's input amount) for (feeBps, victimOverPool,
// liquidity-relative-size). The two ratio axes map to their nearest log
// bucket; feeBps maps to the fee tier at or below it (bucketForFee
// truncates), and no correction is applied for the difference between
// feeBps and that tier's representative fee.
func (t *Table) Lookup(feeBps uint32, victimRatio, liqRatio float64) uint32 {
	fi := bucketForFee(feeBps, t.dims.FeeTiers)
	vi := bucketForLog(victimRatio, t.dims.VictimBins)
	li := bucketForLog(liqRatio, t.dims.LiquidityBins)
	return t.cells[t.index(fi, vi, li)]
}

// Dims reports the table's resolution.
func (t *Table) Dims() Dims { return t.dims }

// WriteTo serializes the table: a small header (magic, version, dims)
// followed by the row-major cell array.
func (t *Table) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	hdr := make([]byte, 4*5)
	binary.BigEndian.PutUint32(hdr[0:], tableMagic)
	binary.BigEndian.PutUint32(hdr[4:], tableVersion)
	binary.BigEndian.PutUint32(hdr[8:], uint32(t.dims.FeeTiers))
	binary.BigEndian.PutUint32(hdr[12:], uint32(t.dims.VictimBins))
	binary.BigEndian.PutUint32(hdr[16:], uint32(t.dims.LiquidityBins))
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	for _, c := range t.cells {
		var cell [4]byte
		binary.BigEndian.PutUint32(cell[:], c)
		if _, err := bw.Write(cell[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTable deserializes a table previously written by WriteTo. A header
// mismatch (wrong magic/version) is reported as errs.InvalidConfig so the
// caller can fall back to Build.
func ReadTable(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, 4*5)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}
	if binary.BigEndian.Uint32(hdr[0:]) != tableMagic || binary.BigEndian.Uint32(hdr[4:]) != tableVersion {
		return nil, errs.New(errs.StageStartup, errs.InvalidConfig, errs.Config)
	}
	dims := Dims{
		FeeTiers:      int(binary.BigEndian.Uint32(hdr[8:])),
		VictimBins:    int(binary.BigEndian.Uint32(hdr[12:])),
		LiquidityBins: int(binary.BigEndian.Uint32(hdr[16:])),
	}
	n := dims.FeeTiers * dims.VictimBins * dims.LiquidityBins
	cells := make([]uint32, n)
	buf := make([]byte, 4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
		}
		cells[i] = binary.BigEndian.Uint32(buf)
	}
	return &Table{dims: dims, cells: cells}, nil
}

func feeAtBucket(i, n int) uint32 {
	// Fee tiers span 1 bps to 100 bps, evenly spaced in that range.
	if n <= 1 {
		return 30
	}
	return uint32(1 + (i*(100-1))/(n-1))
}

func bucketForFee(feeBps uint32, n int) int {
	if n <= 1 {
		return 0
	}
	if feeBps <= 1 {
		return 0
	}
	if feeBps >= 100 {
		return n - 1
	}
	idx := int((feeBps - 1) * uint32(n-1) / 99)
	return clamp(idx, 0, n-1)
}

// logBucketValue maps a bucket index back to a representative ratio value
// on a log scale spanning 1e-6 to 1.0, matching bucketForLog's forward map.
func logBucketValue(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	const logMin, logMax = -6.0, 0.0
	frac := float64(i) / float64(n-1)
	return math.Pow(10, logMin+frac*(logMax-logMin))
}

// bucketForLog is the inverse of logBucketValue: given a ratio in (0,1],
// returns the nearest bucket index on the same log scale.
func bucketForLog(ratio float64, n int) int {
	if n <= 1 {
		return 0
	}
	if ratio <= 0 {
		return 0
	}
	const logMin, logMax = -6.0, 0.0
	l := math.Log10(ratio)
	frac := (l - logMin) / (logMax - logMin)
	idx := int(frac*float64(n-1) + 0.5)
	return clamp(idx, 0, n-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// optimalFrontRunPPM finds the front-run fraction (in ppm of the victim's
// input amount) that maximizes estimateFrontRunProfit for the given fee
// and victim/liquidity ratios, with fee multiplier
// m = (10000-feeBps)/10000. It is a coarse grid search over 200 evenly
// spaced fractions from 0.5% to 100% of the victim's input, not a closed
// form; this is affordable because it only runs at table-build time. It
// returns 0 when no fraction on the grid is profitable.
func optimalFrontRunPPM(feeBps uint32, victimRatio, liqRatio float64) uint32 {
	m := float64(10_000-feeBps) / 10_000
	best := 0.0
	bestProfit := -1.0
	for step := 1; step <= 200; step++ {
		frac := float64(step) / 200.0 // front-run size as a fraction of victim input
		profit := estimateFrontRunProfit(frac, m, victimRatio, liqRatio)
		if profit > bestProfit {
			bestProfit = profit
			best = frac
		}
	}
	if bestProfit <= 0 {
		return 0
	}
	ppm := best * 1_000_000
	if ppm > math.MaxUint32 {
		ppm = math.MaxUint32
	}
	return uint32(ppm)
}

// estimateFrontRunProfit is a simplified constant-product sandwich payoff
// model normalized to a unit pool: x=1, scaled by liqRatio, victim input
// scaled by victimRatio*liqRatio.
func estimateFrontRunProfit(frontFrac, feeMult, victimRatio, liqRatio float64) float64 {
	x := liqRatio
	if x <= 0 {
		return -1
	}
	victimIn := victimRatio * liqRatio
	frontIn := frontFrac * victimIn
	if frontIn <= 0 {
		return -1
	}

	// front-run leg: x -> x+frontIn*feeMult effective reserve shift.
	frontOut := (x * frontIn * feeMult) / (x + frontIn*feeMult)
	xAfterFront := x + frontIn
	yAfterFront := x - frontOut // mirrored unit y=x at start

	// victim leg against shifted reserves.
	victimOut := (yAfterFront * victimIn * feeMult) / (xAfterFront + victimIn*feeMult)
	xAfterVictim := xAfterFront + victimIn
	yAfterVictim := yAfterFront - victimOut

	// back-run leg: sell frontOut back.
	backIn := frontOut
	backOut := (xAfterVictim * backIn * feeMult) / (yAfterVictim + backIn*feeMult)

	return backOut - frontIn
}
