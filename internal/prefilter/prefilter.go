// Package prefilter implements the cheap pre-simulation membership test
// that decides whether a transaction's target program is even worth
// handing to the simulator. It combines an exact monitored-id set with a
// probabilistic Bloom filter built over that same set; the exact set is
// consulted first, and the Bloom filter is rebuilt from it on every
// update.
package prefilter

import (
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/bloomfilter/v2"

	"github.com/lux-mev/searcher/internal/errs"
)

const (
	// bloomBits sizes the filter at 2^20 bits, trading memory for a false
	// positive rate well under the 0.1% budget at the expected watch-list
	// cardinality.
	bloomBits = 1 << 20
	// bloomK is the number of hash functions; 7 is the optimal choice at
	// roughly 10 bits per inserted element (k = (m/n)·ln 2).
	bloomK = 7
)

// idKey is the fixed-width key both the exact set and the Bloom filter
// index on: a monitored program/pool identifier.
type idKey = uint64

// Filter answers "might this target matter" with no false negatives: a
// monitored id always returns true; an unmonitored id returns true only
// with probability bounded by the configured false-positive rate.
//
// Updates never mutate the live filter in place. Add/Remove rebuild a new
// Bloom filter from the current exact set and swap it in atomically, so a
// concurrent Contains call always observes either the old or the new
// generation, never a half-built one.
type Filter struct {
	exact mapset.Set[idKey]
	bloom atomic.Pointer[bloomfilter.Filter]
}

// New builds an empty Filter.
func New() (*Filter, error) {
	f := &Filter{exact: mapset.NewSet[idKey]()}
	bf, err := bloomfilter.New(bloomBits, bloomK)
	if err != nil {
		return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}
	f.bloom.Store(bf)
	return f, nil
}

// Contains reports whether id might be a monitored program/pool. False
// means "definitely not"; true means "check further" (exact match or
// Bloom-filter positive, possibly a false one).
func (f *Filter) Contains(id idKey) bool {
	if f.exact.Contains(id) {
		return true
	}
	return f.bloom.Load().Contains(hashID(id))
}

// hashID spreads id across a 64-bit key the way bloomfilter.Hashable
// expects: a pre-mixed value, not a raw counter, so sequential pool ids
// don't cluster into the same bit ranges.
func hashID(id idKey) bloomfilter.Hashable {
	x := id
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return bloomfilter.Hashable(x)
}

// Add inserts id into the monitored set and rebuilds the Bloom filter from
// the full updated set before swapping it in.
func (f *Filter) Add(id idKey) error {
	f.exact.Add(id)
	return f.rebuild()
}

// Remove deletes id from the monitored set and rebuilds the Bloom filter.
// Bloom filters cannot support removal directly (no way to unset a shared
// bit), so every removal is a full rebuild from the exact set.
func (f *Filter) Remove(id idKey) error {
	f.exact.Remove(id)
	return f.rebuild()
}

// Size returns the number of exactly-tracked ids.
func (f *Filter) Size() int {
	return f.exact.Cardinality()
}

func (f *Filter) rebuild() error {
	bf, err := bloomfilter.New(bloomBits, bloomK)
	if err != nil {
		return errs.Wrap(errs.StageFilter, errs.InvalidConfig, errs.Config, err)
	}
	for id := range f.exact.Iter() {
		bf.Add(hashID(id))
	}
	f.bloom.Store(bf)
	return nil
}
