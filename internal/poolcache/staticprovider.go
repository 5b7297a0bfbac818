package poolcache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/types"
)

// poolStateJSON is the on-disk representation of one pool's reserves, the
// same field set chaincmd's genesis loader uses for its own JSON config:
// plain decimal strings for anything that does not fit a JSON number.
type poolStateJSON struct {
	PoolID   uint64 `json:"pool_id"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
	FeeBps   uint32 `json:"fee_bps"`
}

// StaticProvider is the reference StateProvider: pool reserves loaded
// once from a JSON file at startup and served unchanged until an operator
// restarts the process with an updated file. It exists so the engine has
// something real to run against before a live shadow-fork RPC client is
// wired in; swap it for a different StateProvider for production use
// against a live chain.
type StaticProvider struct {
	mu    sync.RWMutex
	pools map[uint64]*types.PoolState
}

// LoadStaticProvider reads path (a JSON array of poolStateJSON) and
// builds a StaticProvider over it.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}
	defer f.Close()

	var entries []poolStateJSON
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}

	pools := make(map[uint64]*types.PoolState, len(entries))
	now := time.Now()
	for _, e := range entries {
		a := new(uint256.Int)
		if err := a.SetFromDecimal(e.ReserveA); err != nil {
			return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
		}
		b := new(uint256.Int)
		if err := b.SetFromDecimal(e.ReserveB); err != nil {
			return nil, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
		}
		pools[e.PoolID] = &types.PoolState{
			PoolID:    e.PoolID,
			ReserveA:  a,
			ReserveB:  b,
			FeeBps:    e.FeeBps,
			FetchedAt: now,
		}
	}
	return &StaticProvider{pools: pools}, nil
}

// FetchPool implements StateProvider.
func (p *StaticProvider) FetchPool(ctx context.Context, poolID uint64) (*types.PoolState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state, ok := p.pools[poolID]
	if !ok {
		return nil, errs.New(errs.StageSimulate, errs.PoolUnknown, errs.Transient)
	}
	return state.Clone(), nil
}

// PoolIDs returns every pool id this provider knows about; cmd/searcher
// uses it to seed the prefilter at startup.
func (p *StaticProvider) PoolIDs() []uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint64, 0, len(p.pools))
	for id := range p.pools {
		ids = append(ids, id)
	}
	return ids
}
