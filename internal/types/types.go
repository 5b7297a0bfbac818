// Package types holds the data model shared across every pipeline stage:
// the borrowed Transaction view, the decoded SwapIntent, AMM PoolState,
// SizingResult, Opportunity, Bundle, and RelayOutcome.
package types

import (
	"time"

	"github.com/holiman/uint256"
)

// Transaction is a borrowed view over the ingress byte buffer. It is never
// mutated and its lifetime is bounded by one pipeline cycle. The backing
// slice is the frame the ingress transport delivered; this module does not
// pool or reuse those buffers.
type Transaction struct {
	ID         uint64 // fixed-width numeric id, computed once at parse time
	Sender     []byte // borrowed
	Target     []byte // borrowed: target program/contract identifier
	Payload    []byte // borrowed: full payload bytes
	Fee        uint64 // priority fee, base units
	GasLimit   uint64 // declared resource limit
	AcquiredAt int64  // microseconds since epoch, set at ingress
}

// ArrivalTime returns AcquiredAt as a time.Time for logging/metrics use.
func (t Transaction) ArrivalTime() time.Time {
	return time.UnixMicro(t.AcquiredAt)
}

// SwapIntent is decoded from a Transaction's payload when it cleanly
// resolves to a DEX swap instruction. Absent (nil) otherwise.
type SwapIntent struct {
	InTokenID  uint64
	OutTokenID uint64
	InAmount   *uint256.Int
	MinOut     *uint256.Int
	PoolID     uint64
}

// PoolState is a mutable snapshot of one AMM pool's constant-product
// reserves. Readers obtain a consistent copy; writers replace atomically on
// refresh — see internal/poolcache.
type PoolState struct {
	PoolID    uint64
	ReserveA  *uint256.Int
	ReserveB  *uint256.Int
	FeeBps    uint32 // basis points, 0-10000
	Slot      uint64 // sequence number of last refresh
	FetchedAt time.Time
}

// Clone returns a deep copy safe for a reader to hold past the refresher's
// next write.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	return &PoolState{
		PoolID:    p.PoolID,
		ReserveA:  new(uint256.Int).Set(p.ReserveA),
		ReserveB:  new(uint256.Int).Set(p.ReserveB),
		FeeBps:    p.FeeBps,
		Slot:      p.Slot,
		FetchedAt: p.FetchedAt,
	}
}

// OpportunityKind distinguishes arbitrage from the research-only sandwich
// path; sandwich is gated (see internal/config) behind enable_sandwich &&
// simulation_only.
type OpportunityKind uint8

const (
	KindArbitrage OpportunityKind = iota
	KindSandwich
)

func (k OpportunityKind) String() string {
	if k == KindSandwich {
		return "sandwich"
	}
	return "arbitrage"
}

// SizingResult is the output of the Sizer (C4): the optimal front/back
// amounts and the expected gross profit they produce under the pool
// snapshot used, plus a confidence score and a consensus flag set when
// redundant estimators agree.
type SizingResult struct {
	FrontRunAmount *uint256.Int
	BackRunAmount  *uint256.Int
	GrossProfit    *uint256.Int // base units; > 0 is an emission precondition
	Confidence     int          // [0,100]
	Consensus      bool
}

// Opportunity bundles a detected profitable response together with its cost
// estimates and the originating transaction.
type Opportunity struct {
	Kind             OpportunityKind
	Tx               Transaction
	Intent           SwapIntent
	Sizing           SizingResult
	EstimatedCompute uint64
	EstimatedFeeCost *uint256.Int
	EstimatedTip     *uint256.Int
	NetProfit        *uint256.Int // GrossProfit - EstimatedFeeCost - EstimatedTip
	DetectedAt       time.Time
}

// SignedTx is a transaction that has passed through the Signer collaborator.
type SignedTx struct {
	Raw       []byte
	Signature []byte
}

// Bundle is an ordered, immutable-after-build sequence of signed
// transactions plus a tip and a relay target slot. For a sandwich bundle,
// Txs is exactly [front-run, victim-reference, back-run]; for arbitrage,
// 1-2 swap transactions.
type Bundle struct {
	ID         uint64
	Kind       OpportunityKind
	Txs        []SignedTx
	Tip        *uint256.Int
	TargetSlot uint64
	BuiltAt    time.Time

	sealed bool // set by Seal; bundle.Builder only returns sealed bundles; Txs must not be mutated after
}

// Seal freezes the ordering array. Any later attempt to reuse Txs as a
// mutable slice is a programming error the builder protects against by
// only ever handing out Seal()ed bundles.
func (b *Bundle) Seal() *Bundle {
	b.sealed = true
	return b
}

func (b *Bundle) Sealed() bool { return b.sealed }

// RelayOutcome reports one relay's response to a dispatched Bundle.
type RelayOutcome struct {
	RelayName string
	BundleID  uint64
	Success   bool
	Latency   time.Duration
	Err       error
}
