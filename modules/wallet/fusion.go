package wallet

import (
	"context"
	"fmt"

	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto"
	"github.com/kryptokrona/kryptokrona-walletcore-go/modules"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// FuseResult is returned on a successful fusion transaction.
type FuseResult struct {
	TransactionHash types.Hash
	InputCount      int
	Outputs         []types.Amount
	OutputAmount    types.Amount // sum of Outputs
}

// Fuse consolidates up to MaxFusionInputs of the caller's own spendable
// dust into the pretty-denomination split of their sum (one or more
// outputs) addressed to destinationAddress, a maintenance
// operation that improves future input selection without changing total
// balance (fusion transactions pay no fee). Returns ErrFullyOptimized once
// fewer than MinFusionInputs candidates remain, or if the best achievable
// in/out ratio never reaches MinInOutRatio.
//
// Grounded on the teacher's SiacoinDefragTransaction pattern (no direct
// counterpart exists in rivine's wallet, so this composes the same
// input-selection/signing machinery as Send with the fusion-specific
// termination rule from the specification's "Fusion (self-send
// consolidation)" module).
func (b *TransactionBuilder) Fuse(ctx context.Context, destinationAddress string) (FuseResult, error) {
	if !b.tryBeginBuild() {
		return FuseResult{}, ErrBuildInProgress
	}
	defer b.endBuild()

	candidates := b.registry.SelectFusionInputs(b.cfg.MaxFusionInputs, b.currentHeight(), 0)
	if len(candidates) < b.cfg.MinFusionInputs {
		return FuseResult{}, ErrFullyOptimized
	}

	mixin, err := b.resolveMixin(ctx, 0)
	if err != nil {
		return FuseResult{}, err
	}

	// Build a candidate transaction from the full pool, then check whether
	// it clears the in/out ratio and size ceiling. Either failure means this
	// many inputs don't fuse well enough; drop the largest (last, since
	// SelectFusionInputs orders smallest-first) and try again with one
	// fewer, down to MinFusionInputs.
	var selected []candidateInput
	var outputs []types.Amount
	var signed crypto.SignedTransaction
	for {
		if len(candidates) < b.cfg.MinFusionInputs {
			return FuseResult{}, ErrFullyOptimized
		}

		var ok bool
		outputs, ok = fusionOutputs(candidates, b.cfg.MinInOutRatio)
		if !ok {
			candidates = candidates[:len(candidates)-1]
			continue
		}

		destinations := make([]types.TxDestination, len(outputs))
		for i, amt := range outputs {
			destinations[i] = types.TxDestination{Address: destinationAddress, Amount: amt}
		}
		if err := validateOutputsPretty(destinations); err != nil {
			return FuseResult{}, err
		}

		owned, rings, err := b.gatherRings(ctx, candidates, mixin)
		if err != nil {
			return FuseResult{}, err
		}

		signed, err = b.provider.CreateSignedTransaction(crypto.SignRequest{
			Destinations: destinations,
			OwnedOutputs: owned,
			Rings:        rings,
			Mixin:        mixin,
			Fee:          0,
		})
		if err != nil {
			return FuseResult{}, err
		}

		if signed.Size > b.cfg.MaxFusionTxSize {
			candidates = candidates[:len(candidates)-1]
			continue
		}

		selected = candidates
		break
	}

	accepted, reason, err := b.node.SendTransaction(ctx, signed.RawHex)
	if err != nil {
		return FuseResult{}, fmt.Errorf("%w: %v", ErrNodeUnreachable, err)
	}
	if !accepted {
		return FuseResult{}, fmt.Errorf("%w: %s", ErrNodeRejected, reason)
	}

	b.commit(selected, signed.Hash)

	transfers := make(map[types.Key]int64)
	for _, c := range selected {
		transfers[c.owner] -= int64(c.input.Amount)
	}
	fusionDestinations := make([]types.TxDestination, len(outputs))
	for i, amt := range outputs {
		fusionDestinations[i] = types.TxDestination{Address: destinationAddress, Amount: amt}
	}
	b.recordChangeUnconfirmed(signed, fusionDestinations, 0, transfers)

	var outputTotal types.Amount
	for _, amt := range outputs {
		outputTotal += amt
	}

	record := types.Transaction{
		Transfers:  transfers,
		Hash:       signed.Hash,
		Fee:        0,
		IsCoinbase: false,
	}
	b.registry.RecordTransaction(record)
	b.sink.Notify(modules.Event{Kind: modules.EventTransaction, Transaction: &record})
	b.sink.Notify(modules.Event{Kind: classifyTransfer(record.TotalAmount()), Transaction: &record})

	return FuseResult{TransactionHash: signed.Hash, InputCount: len(selected), Outputs: outputs, OutputAmount: outputTotal}, nil
}

// fusionOutputs computes the denomination split a fusion of candidates
// would produce and reports whether the resulting in/out ratio clears
// minInOutRatio. candidates is assumed smallest-first, as SelectFusionInputs
// already orders them, but the sum is independent of order.
func fusionOutputs(candidates []candidateInput, minInOutRatio int) ([]types.Amount, bool) {
	var sum types.Amount
	for _, c := range candidates {
		var err error
		sum, err = sum.Add(c.input.Amount)
		if err != nil {
			return nil, false
		}
	}
	outputs := types.SplitAmountIntoDenominations(sum)
	if len(outputs) == 0 {
		return outputs, false
	}
	ratio := len(candidates) / len(outputs)
	return outputs, ratio >= minInOutRatio
}
