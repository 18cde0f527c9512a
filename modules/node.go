// Package modules defines the narrow, abstract interfaces the wallet core
// consumes from its environment: an untrusted remote Node, an AddressCodec,
// and an EventSink. The core depends only on these interfaces; concrete
// implementations (HTTP transport, mnemonic/address codecs, log/metrics
// sinks) are external collaborators per the specification's scope.
package modules

import (
	"context"

	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// NodeInfo summarizes a remote node's current state.
type NodeInfo struct {
	LocalHeight   uint64
	NetworkHeight uint64
	IsCacheAPI    bool
	Version       string // advertised node protocol version, optional (may be empty)
}

// NodeFee is the optional node operator fee a Node may request be attached
// to relayed transactions.
type NodeFee struct {
	Address string
	Amount  types.Amount
}

// WalletSyncData is the result of a single fetch from a Node.
type WalletSyncData struct {
	Blocks   []types.RawBlock
	TopBlock *types.RawBlock // set when the node knows of a block beyond Blocks, used for progress reporting
}

// RandomOutputsForAmount is one amount's worth of ring-signature decoy
// candidates returned by a Node.
type RandomOutputsForAmount struct {
	Amount types.Amount
	Outputs []types.Decoy
}

// Node is the abstract interface to an untrusted remote node. The core never
// assumes a transport; every method may fail with a transient error (see
// the error taxonomy in modules/wallet/errors.go) that the caller is
// expected to retry.
type Node interface {
	Info(ctx context.Context) (NodeInfo, error)
	Fee(ctx context.Context) (NodeFee, error)

	GetWalletSyncData(ctx context.Context, checkpoints []types.Hash, startHeight uint64, startTimestamp uint64, count int) (WalletSyncData, error)

	// GetGlobalIndexesForRange returns, for every transaction hash with an
	// output in the half-open block range [start, end), the global output
	// index of each of its outputs. Only required when the node does not
	// already embed global indexes into the blocks it returns.
	GetGlobalIndexesForRange(ctx context.Context, start, end uint64) (map[types.Hash][]uint64, error)

	GetRandomOutputsByAmount(ctx context.Context, amounts []types.Amount, count int) ([]RandomOutputsForAmount, error)

	// GetCancelledTransactions reports which of the given transaction
	// hashes are neither in the node's pool nor in a block.
	GetCancelledTransactions(ctx context.Context, hashes []types.Hash) ([]types.Hash, error)

	// MixinBounds reports the [min, max] mixin allowed at the node's
	// current height, and MixinForHeight is the node's recommended default.
	MixinBounds(ctx context.Context) (min, max uint64, err error)
	MixinForHeight(ctx context.Context) (uint64, error)

	SendTransaction(ctx context.Context, rawHex string) (accepted bool, rejectReason string, err error)
}
