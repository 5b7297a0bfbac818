// Package bundle implements C5, the BundleBuilder: assembling a sealed,
// signed Bundle from an Opportunity, enforcing the hard ordering invariant
// for sandwich bundles and the fee-relationship policy between the
// constituent transactions.
package bundle

import (
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/types"
)

// RawBuilder constructs the unsigned wire bytes for one leg of a bundle
// (front-run, back-run, or a plain arbitrage leg) given a swap intent and
// a fee to pay. It is a narrow collaborator so BundleBuilder never needs
// to know this engine's concrete wire format.
type RawBuilder interface {
	BuildLeg(intent types.SwapIntent, fee uint64) ([]byte, error)
}

// Builder assembles Bundles. Sandwich construction is only permitted when
// allowSandwich is true, which callers must derive from
// config.Config{EnableSandwich, SimulationOnly} before constructing a
// Builder — enforced here a second time as a belt-and-braces invariant
// check, not as the primary gate.
type Builder struct {
	signer      Signer
	raw         RawBuilder
	allowSandwich bool
	nextID      atomic.Uint64
}

// New builds a Builder. allowSandwich must only be true when the caller
// has already verified config.Config.EnableSandwich && SimulationOnly;
// Builder itself does not read Config to avoid a layering dependency.
func New(signer Signer, raw RawBuilder, allowSandwich bool) *Builder {
	return &Builder{signer: signer, raw: raw, allowSandwich: allowSandwich}
}

// FeeRelationshipMargin is the fee-unit gap the back-run leg keeps above
// the victim's fee. The front-run leg pays exactly the victim's fee (no
// margin); the back-run pays the victim's fee plus this margin, so it
// lands in a strictly higher priority bucket than the transaction it
// follows.
// Exported so callers estimating a sandwich's cost ahead of Build (see
// internal/pipeline) can reproduce the same fee schedule.
const FeeRelationshipMargin = 1

// BuildSandwich assembles a 3-transaction bundle in the fixed order
// [front-run, victim-reference, back-run]. victimRaw is the victim's own
// already-signed bytes (this engine never re-signs or modifies a
// transaction it did not originate); front-run and back-run are built and
// signed here.
func (b *Builder) BuildSandwich(opp types.Opportunity, victimRaw types.SignedTx, maxFee uint64) (*types.Bundle, error) {
	if !b.allowSandwich {
		return nil, errs.New(errs.StageBuild, errs.InvalidConfig, errs.Config)
	}
	if opp.Kind != types.KindSandwich {
		return nil, errs.New(errs.StageBuild, errs.InvalidSandwich, errs.Transient)
	}

	victimFee := opp.Tx.Fee
	frontFee := victimFee
	backFee := victimFee + FeeRelationshipMargin
	if frontFee > maxFee || backFee > maxFee {
		return nil, errs.New(errs.StageBuild, errs.FeeCapExceeded, errs.Transient)
	}

	frontIntent := opp.Intent
	frontIntent.InAmount = opp.Sizing.FrontRunAmount

	backIntent := opp.Intent
	backIntent.InTokenID, backIntent.OutTokenID = opp.Intent.OutTokenID, opp.Intent.InTokenID
	backIntent.InAmount = opp.Sizing.BackRunAmount

	frontSigned, err := b.signLeg(frontIntent, frontFee)
	if err != nil {
		return nil, err
	}
	backSigned, err := b.signLeg(backIntent, backFee)
	if err != nil {
		return nil, err
	}

	txs := []types.SignedTx{frontSigned, victimRaw, backSigned}
	if err := validateSandwichOrder(txs, victimFee, frontFee, backFee); err != nil {
		return nil, err
	}

	bd := &types.Bundle{
		ID:   b.nextID.Add(1),
		Kind: types.KindSandwich,
		Txs:  txs,
		Tip:  bundleTip(opp),
	}
	return bd.Seal(), nil
}

// BuildArbitrage assembles a 1-leg (or, for a two-hop route, 2-leg)
// arbitrage bundle. Arbitrage has no ordering invariant beyond "in the
// order the route requires", which the caller encodes via legFees order.
func (b *Builder) BuildArbitrage(opp types.Opportunity, legFees []uint64) (*types.Bundle, error) {
	if opp.Kind != types.KindArbitrage {
		return nil, errs.New(errs.StageBuild, errs.InvalidSandwich, errs.Transient)
	}
	if len(legFees) == 0 {
		return nil, errs.New(errs.StageBuild, errs.InvalidConfig, errs.Config)
	}

	txs := make([]types.SignedTx, 0, len(legFees))
	for _, fee := range legFees {
		signed, err := b.signLeg(opp.Intent, fee)
		if err != nil {
			return nil, err
		}
		txs = append(txs, signed)
	}

	bd := &types.Bundle{
		ID:   b.nextID.Add(1),
		Kind: types.KindArbitrage,
		Txs:  txs,
		Tip:  bundleTip(opp),
	}
	return bd.Seal(), nil
}

func (b *Builder) signLeg(intent types.SwapIntent, fee uint64) (types.SignedTx, error) {
	raw, err := b.raw.BuildLeg(intent, fee)
	if err != nil {
		return types.SignedTx{}, err
	}
	sig, err := b.signer.Sign(raw)
	if err != nil {
		return types.SignedTx{}, errs.Wrap(errs.StageBuild, errs.SignerContractBreak, errs.Invariant, err)
	}
	return types.SignedTx{Raw: raw, Signature: sig}, nil
}

// validateSandwichOrder re-checks, at construction time, the invariant
// that a sandwich bundle is exactly [front-run, victim, back-run] with
// front-run's fee >= victim's fee and back-run's fee > victim's fee. A
// violation here indicates a bug in BuildSandwich itself, not bad input,
// so it is an Invariant-tier error.
func validateSandwichOrder(txs []types.SignedTx, victimFee, frontFee, backFee uint64) error {
	if len(txs) != 3 {
		return errs.New(errs.StageBuild, errs.InvalidSandwichOrder, errs.Invariant)
	}
	if frontFee < victimFee || backFee <= victimFee {
		return errs.New(errs.StageBuild, errs.InvalidSandwichOrder, errs.Invariant)
	}
	return nil
}

// bundleTip reads the opportunity's already-computed tip estimate (see
// EstimateTip), floored at zero for an opportunity nothing ever priced.
func bundleTip(opp types.Opportunity) *uint256.Int {
	if opp.EstimatedTip != nil {
		return new(uint256.Int).Set(opp.EstimatedTip)
	}
	return uint256.NewInt(0)
}
