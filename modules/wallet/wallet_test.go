package wallet

import (
	"context"
	"testing"

	"github.com/kryptokrona/kryptokrona-walletcore-go/config"
	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto/cryptoref"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// TestWalletScansAndTracksBalance implements scenario S6: an incoming
// output becomes visible in the wallet's balance once the block containing
// it is synced.
func TestWalletScansAndTracksBalance(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	privSpend, pubSpend := cryptoref.GenerateKeyPair()

	node := &fakeNode{blocks: []types.RawBlock{
		buildOwnedBlock(t, provider, privView, pubSpend, 1, 500),
	}}

	cfg := config.Default()
	cfg.FetchBatchSize = 10
	cfg.BlocksPerTick = 10

	w := NewWallet(node, newFakeCodec(), provider, nil, cfg, privView, 1, 0, nil)
	w.AddSubWallet(pubSpend, &privSpend)

	if _, err := w.sync.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	unlocked, _ := w.Balance(0)
	if unlocked != 500 {
		t.Fatalf("expected balance 500 after sync, got %d", unlocked)
	}
	if w.Height() != 1 {
		t.Fatalf("expected height 1, got %d", w.Height())
	}
}

func TestWalletRecordRoundTrip(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	privSpend, pubSpend := cryptoref.GenerateKeyPair()

	w := NewWallet(&fakeNode{}, newFakeCodec(), provider, nil, config.Default(), privView, 100, 12345, nil)
	w.AddSubWallet(pubSpend, &privSpend)
	_ = w.registry.StoreConfirmedInput(pubSpend, types.TransactionInput{KeyImage: keyFromByte(5), Amount: 42})

	rec := w.ToRecord()
	if rec.FileFormatVersion != WalletFileFormatVersion {
		t.Fatalf("unexpected file format version: %d", rec.FileFormatVersion)
	}

	w2 := NewWallet(&fakeNode{}, newFakeCodec(), provider, nil, config.Default(), types.Key{}, 0, 0, nil)
	w2.RestoreFromRecord(rec)

	if w2.privateViewKey != privView {
		t.Fatal("private view key not restored")
	}
	unlocked, _ := w2.Balance(0)
	if unlocked != 42 {
		t.Fatalf("expected restored balance 42, got %d", unlocked)
	}
}

// TestCheckLockedTransactionsReleasesCancelled verifies that a reserved
// input is returned to the spendable pool once the node reports its parent
// transaction as cancelled, without waiting for RespendTimeout.
func TestCheckLockedTransactionsReleasesCancelled(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	privSpend, pubSpend := cryptoref.GenerateKeyPair()

	txHash := hashFromByte(0x55)
	node := &cancellingNode{cancelled: []types.Hash{txHash}}

	w := NewWallet(node, newFakeCodec(), provider, nil, config.Default(), privView, 0, 0, nil)
	w.AddSubWallet(pubSpend, &privSpend)
	_ = w.registry.StoreConfirmedInput(pubSpend, types.TransactionInput{KeyImage: keyFromByte(7), Amount: 100})
	if err := w.registry.MarkLocked(keyFromByte(7), txHash, 0); err != nil {
		t.Fatal(err)
	}

	if err := w.checkLockedTransactions(context.Background()); err != nil {
		t.Fatal(err)
	}

	spendable := false
	for _, c := range w.registry.spendableCandidates(0, 0) {
		if c.input.KeyImage == keyFromByte(7) {
			spendable = true
		}
	}
	if !spendable {
		t.Fatal("expected input to be spendable again after its spend was reported cancelled")
	}
}

// TestCheckLockedTransactionsExpiresAfterRespendTimeout verifies the
// fallback path: a reservation the node never confirms as cancelled is
// still released once RespendTimeout blocks have passed.
func TestCheckLockedTransactionsExpiresAfterRespendTimeout(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	privSpend, pubSpend := cryptoref.GenerateKeyPair()

	node := &cancellingNode{cancelled: nil}

	cfg := config.Default()
	cfg.RespendTimeout = 5

	w := NewWallet(node, newFakeCodec(), provider, nil, cfg, privView, 0, 0, nil)
	w.AddSubWallet(pubSpend, &privSpend)
	_ = w.registry.StoreConfirmedInput(pubSpend, types.TransactionInput{KeyImage: keyFromByte(9), Amount: 100})
	if err := w.registry.MarkLocked(keyFromByte(9), hashFromByte(0x66), 0); err != nil {
		t.Fatal(err)
	}
	for h := uint64(1); h <= 6; h++ {
		if err := w.sync.Status().StoreBlockHash(h, hashFromByte(byte(h))); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.checkLockedTransactions(context.Background()); err != nil {
		t.Fatal(err)
	}

	spendable := false
	for _, c := range w.registry.spendableCandidates(w.sync.Status().Height(), 0) {
		if c.input.KeyImage == keyFromByte(9) {
			spendable = true
		}
	}
	if !spendable {
		t.Fatal("expected reservation past RespendTimeout to be released even without node confirmation")
	}
}

type cancellingNode struct {
	fakeNode
	cancelled []types.Hash
}

func (n *cancellingNode) GetCancelledTransactions(ctx context.Context, hashes []types.Hash) ([]types.Hash, error) {
	return n.cancelled, nil
}
