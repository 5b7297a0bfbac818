package poolcache

import (
	"encoding/binary"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/types"
)

// snapshotEntryLen is the fixed encoded size of one PoolState: pool id,
// two 32-byte reserves, fee bps, slot, fetch timestamp (unix micros).
const snapshotEntryLen = 8 + 32 + 32 + 4 + 8 + 8

// Snapshot is a byte-level warm-start store for pool state, backed by
// fastcache the way go-ethereum's state/snapshot disk layer caches clean
// trie nodes: a fixed-memory cache keyed by a simple binary key, which
// HydrateInto can copy into a Cache. It lives in process memory only (no
// file is written or read), so its contents do not survive a restart.
type Snapshot struct {
	cache *fastcache.Cache
}

// NewSnapshot allocates a fastcache instance sized maxBytes.
func NewSnapshot(maxBytes int) *Snapshot {
	return &Snapshot{cache: fastcache.New(maxBytes)}
}

// Save encodes state and stores it under its pool id.
func (s *Snapshot) Save(state *types.PoolState) {
	if state == nil {
		return
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, state.PoolID)
	s.cache.Set(key, encodePoolState(state))
}

// Load returns the stored PoolState for poolID, or nil if absent.
func (s *Snapshot) Load(poolID uint64) *types.PoolState {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, poolID)
	buf, ok := s.cache.HasGet(nil, key)
	if !ok {
		return nil
	}
	return decodePoolState(buf)
}

// HydrateInto warms cache with every entry this snapshot can reach for the
// given pool ids, skipping any that were never saved.
func (s *Snapshot) HydrateInto(cache *Cache, poolIDs []uint64) {
	for _, id := range poolIDs {
		if state := s.Load(id); state != nil {
			cache.Warm(state)
		}
	}
}

func encodePoolState(p *types.PoolState) []byte {
	buf := make([]byte, snapshotEntryLen)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], p.PoolID)
	off += 8
	a := p.ReserveA.Bytes32()
	copy(buf[off:off+32], a[:])
	off += 32
	b := p.ReserveB.Bytes32()
	copy(buf[off:off+32], b[:])
	off += 32
	binary.BigEndian.PutUint32(buf[off:], p.FeeBps)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], p.Slot)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(p.FetchedAt.UnixMicro()))
	return buf
}

func decodePoolState(buf []byte) *types.PoolState {
	if len(buf) != snapshotEntryLen {
		return nil
	}
	off := 0
	poolID := binary.BigEndian.Uint64(buf[off:])
	off += 8
	a := new(uint256.Int).SetBytes(buf[off : off+32])
	off += 32
	b := new(uint256.Int).SetBytes(buf[off : off+32])
	off += 32
	feeBps := binary.BigEndian.Uint32(buf[off:])
	off += 4
	slot := binary.BigEndian.Uint64(buf[off:])
	off += 8
	fetchedAt := time.UnixMicro(int64(binary.BigEndian.Uint64(buf[off:])))

	return &types.PoolState{
		PoolID:    poolID,
		ReserveA:  a,
		ReserveB:  b,
		FeeBps:    feeBps,
		Slot:      slot,
		FetchedAt: fetchedAt,
	}
}
