// Package wallet implements the core wallet synchronization and
// transaction-construction engine: scanning blocks for owned outputs,
// tracking spendable balance across any number of subwallets, and
// constructing ring-signed spend and fusion transactions. It depends only
// on the abstract collaborators in package modules and package crypto; it
// never assumes a transport, a persistence backend, or a concrete address
// or key-derivation scheme.
package wallet

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kryptokrona/kryptokrona-walletcore-go/config"
	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto"
	"github.com/kryptokrona/kryptokrona-walletcore-go/modules"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// Wallet is the top-level owner tying together the registry, synchronizer,
// transaction builder and scheduler. Ownership flows one way, top-down:
// Wallet owns all four; the Synchronizer and TransactionBuilder each hold a
// borrowed reference to the Registry, never the reverse, so there is never
// a cycle to reason about during shutdown.
//
// Grounded on the teacher's modules/wallet/wallet.go top-level Wallet
// struct, which plays the same tree-root role over its own persist/scan
// subsystems.
type Wallet struct {
	log *logrus.Entry

	node     modules.Node
	codec    modules.AddressCodec
	provider crypto.Provider
	sink     modules.EventSink
	cfg      config.Config

	privateViewKey types.Key
	startHeight    uint64
	startTimestamp uint64

	registry *SubWalletRegistry
	sync     *Synchronizer
	builder  *TransactionBuilder
	scheduler *Scheduler
}

// NewWallet constructs a fresh wallet seeded with privateViewKey, starting
// sync from (startHeight, startTimestamp). sink may be nil.
func NewWallet(node modules.Node, codec modules.AddressCodec, provider crypto.Provider, sink modules.EventSink, cfg config.Config, privateViewKey types.Key, startHeight, startTimestamp uint64, log *logrus.Entry) *Wallet {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if sink == nil {
		sink = modules.NopEventSink{}
	}

	registry := NewSubWalletRegistry(provider, log, 0)
	status := NewSyncStatus()
	sync := NewSynchronizer(node, registry, provider, cfg, privateViewKey, status, log, startHeight, startTimestamp, sink)
	builder := NewTransactionBuilder(node, codec, provider, registry, status, sink, cfg, privateViewKey, log)

	w := &Wallet{
		log:            log,
		node:           node,
		codec:          codec,
		provider:       provider,
		sink:           sink,
		cfg:            cfg,
		privateViewKey: privateViewKey,
		startHeight:    startHeight,
		startTimestamp: startTimestamp,
		registry:       registry,
		sync:           sync,
		builder:        builder,
	}
	w.scheduler = NewScheduler(sync, cfg, w.refreshNode, w.checkLockedTransactions, log)
	return w
}

// AddSubWallet registers a new bucket. privateSpendKey is nil for a
// view-only subwallet.
func (w *Wallet) AddSubWallet(publicSpendKey types.Key, privateSpendKey *types.Key) {
	w.registry.AddSubWallet(publicSpendKey, privateSpendKey)
}

// Balance sums unlocked/locked balance across every subwallet as of the
// synchronizer's current height.
func (w *Wallet) Balance(nowUnixSeconds uint64) (unlocked, locked types.Amount) {
	return w.registry.Balance(w.sync.Status().Height(), nowUnixSeconds)
}

// Height is the wallet's current synced height.
func (w *Wallet) Height() uint64 {
	return w.sync.Status().Height()
}

// Send constructs, signs and relays a spend transaction.
func (w *Wallet) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	return w.builder.Send(ctx, req)
}

// Fuse constructs, signs and relays a fusion (dust consolidation)
// transaction addressed back to destinationAddress.
func (w *Wallet) Fuse(ctx context.Context, destinationAddress string) (FuseResult, error) {
	return w.builder.Fuse(ctx, destinationAddress)
}

// Start launches the background scheduler (sync_tick, node_refresh,
// locked_tx_check).
func (w *Wallet) Start(ctx context.Context) error {
	return w.scheduler.Start(ctx)
}

// Stop halts the background scheduler and the synchronizer's own
// in-flight work, waiting for both to finish.
func (w *Wallet) Stop() error {
	if err := w.scheduler.Close(); err != nil {
		return err
	}
	return w.sync.Close()
}

// refreshNode is the node_refresh periodic task: polls node info and feeds
// the protocol-compatibility gate. It does not query the node fee and emits
// no events.
func (w *Wallet) refreshNode(ctx context.Context) error {
	rpcCtx, cancel := context.WithTimeout(ctx, w.cfg.NodeRPCTimeout)
	defer cancel()
	info, err := w.node.Info(rpcCtx)
	if err != nil {
		return err
	}
	w.sync.CheckNodeCompat(info)
	return nil
}

// checkLockedTransactions is the locked_tx_check periodic task: for every
// input reserved by an in-flight spend, it asks the node whether that
// spend's parent transaction is still pooled or has confirmed. A
// transaction the node no longer knows about (and is not in a block we've
// already scanned, or it would already be marked spent) is treated as
// cancelled or dropped, and the reservation is released so the input
// becomes spendable again.
//
// Grounded on the specification's decision that checkLockedTransactions be
// implemented as an active reconciliation task rather than a passive
// timeout, since a node can drop a transaction from its pool well before
// RespendTimeout elapses and there is no reason to make a sender wait out
// the full timeout when the node can simply be asked. RespendTimeout is
// kept as a fallback: a reservation the node never clears one way or the
// other (unreachable node, a buggy GetCancelledTransactions implementation)
// does not hold an input hostage forever.
func (w *Wallet) checkLockedTransactions(ctx context.Context) error {
	locked := w.registry.LockedInputs()
	if len(locked) == 0 {
		return nil
	}

	currentHeight := w.sync.Status().Height()

	hashSet := make(map[types.Hash]struct{})
	for _, c := range locked {
		hashSet[c.input.ReservedForTxHash] = struct{}{}
	}
	hashes := make([]types.Hash, 0, len(hashSet))
	for h := range hashSet {
		hashes = append(hashes, h)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, w.cfg.NodeRPCTimeout)
	defer cancel()
	cancelled, err := w.node.GetCancelledTransactions(rpcCtx, hashes)
	if err != nil {
		w.releaseExpiredReservations(locked, currentHeight)
		return err
	}
	cancelledSet := make(map[types.Hash]struct{}, len(cancelled))
	for _, h := range cancelled {
		cancelledSet[h] = struct{}{}
	}

	var remaining []candidateInput
	for _, c := range locked {
		if _, ok := cancelledSet[c.input.ReservedForTxHash]; ok {
			if err := w.registry.RemoveCancelled(c.input.KeyImage); err != nil {
				w.log.WithError(err).Warn("wallet: failed to release a cancelled reservation")
			}
			continue
		}
		remaining = append(remaining, c)
	}
	w.releaseExpiredReservations(remaining, currentHeight)
	return nil
}

// releaseExpiredReservations releases any reservation older than
// config.RespendTimeout blocks, regardless of what the node reported. This
// is the fallback path for when the node cannot or will not answer.
func (w *Wallet) releaseExpiredReservations(locked []candidateInput, currentHeight uint64) {
	for _, c := range locked {
		if currentHeight < c.input.ReservedAtHeight {
			continue
		}
		if currentHeight-c.input.ReservedAtHeight < w.cfg.RespendTimeout {
			continue
		}
		w.log.WithField("keyImage", c.input.KeyImage).Warn("wallet: releasing a reservation past RespendTimeout without node confirmation")
		if err := w.registry.RemoveCancelled(c.input.KeyImage); err != nil {
			w.log.WithError(err).Warn("wallet: failed to release an expired reservation")
		}
	}
}
