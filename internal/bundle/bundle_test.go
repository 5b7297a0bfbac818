package bundle_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/bundle"
	"github.com/lux-mev/searcher/internal/types"
)

type fakeRawBuilder struct{}

func (fakeRawBuilder) BuildLeg(intent types.SwapIntent, fee uint64) ([]byte, error) {
	return []byte{byte(fee), byte(intent.PoolID)}, nil
}

func newBuilder(t *testing.T, allowSandwich bool) *bundle.Builder {
	t.Helper()
	signer, _, err := bundle.GenerateEd25519Signer()
	require.NoError(t, err)
	return bundle.New(signer, fakeRawBuilder{}, allowSandwich)
}

func sandwichOpportunity() types.Opportunity {
	return types.Opportunity{
		Kind: types.KindSandwich,
		Tx:   types.Transaction{Fee: 100},
		Intent: types.SwapIntent{
			InTokenID:  1,
			OutTokenID: 2,
			PoolID:     5,
		},
		Sizing: types.SizingResult{
			FrontRunAmount: uint256.NewInt(1000),
			BackRunAmount:  uint256.NewInt(1100),
		},
		EstimatedTip: uint256.NewInt(50),
	}
}

func TestBuildSandwich_Ordering(t *testing.T) {
	b := newBuilder(t, true)
	victim := types.SignedTx{Raw: []byte("victim")}

	bd, err := b.BuildSandwich(sandwichOpportunity(), victim, 1000)
	require.NoError(t, err)
	require.True(t, bd.Sealed())
	require.Len(t, bd.Txs, 3)
	require.Equal(t, victim.Raw, bd.Txs[1].Raw)
}

func TestBuildSandwich_RejectedWhenNotAllowed(t *testing.T) {
	b := newBuilder(t, false)
	_, err := b.BuildSandwich(sandwichOpportunity(), types.SignedTx{}, 1000)
	require.Error(t, err)
}

func TestBuildSandwich_FeeCapExceeded(t *testing.T) {
	b := newBuilder(t, true)
	_, err := b.BuildSandwich(sandwichOpportunity(), types.SignedTx{}, 50)
	require.Error(t, err)
}

func TestBuildSandwich_WrongKindRejected(t *testing.T) {
	b := newBuilder(t, true)
	opp := sandwichOpportunity()
	opp.Kind = types.KindArbitrage
	_, err := b.BuildSandwich(opp, types.SignedTx{}, 1000)
	require.Error(t, err)
}

func TestBuildArbitrage_SingleLeg(t *testing.T) {
	b := newBuilder(t, false)
	opp := types.Opportunity{
		Kind:         types.KindArbitrage,
		Intent:       types.SwapIntent{PoolID: 3},
		EstimatedTip: uint256.NewInt(10),
	}
	bd, err := b.BuildArbitrage(opp, []uint64{25})
	require.NoError(t, err)
	require.Len(t, bd.Txs, 1)
	require.True(t, bd.Sealed())
}

func TestBuildArbitrage_RequiresLegFees(t *testing.T) {
	b := newBuilder(t, false)
	opp := types.Opportunity{Kind: types.KindArbitrage}
	_, err := b.BuildArbitrage(opp, nil)
	require.Error(t, err)
}
