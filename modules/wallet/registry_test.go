package wallet

import (
	"testing"

	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto/cryptoref"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

func newTestRegistry() *SubWalletRegistry {
	return NewSubWalletRegistry(cryptoref.New(), nil, 0)
}

func TestRegistryStoreAndOwnerOf(t *testing.T) {
	r := newTestRegistry()
	priv := keyFromByte(2)
	r.AddSubWallet(keyFromByte(1), &priv)

	in := types.TransactionInput{KeyImage: keyFromByte(10), Amount: 100, BlockHeight: 1}
	if err := r.StoreConfirmedInput(keyFromByte(1), in); err != nil {
		t.Fatal(err)
	}

	w, err := r.ownerOf(keyFromByte(10))
	if err != nil {
		t.Fatal(err)
	}
	if w.PublicSpendKey() != keyFromByte(1) {
		t.Fatal("ownerOf returned the wrong bucket")
	}
}

func TestRegistryDuplicateKeyImageAcrossBucketsRejected(t *testing.T) {
	r := newTestRegistry()
	privA := keyFromByte(2)
	privB := keyFromByte(3)
	r.AddSubWallet(keyFromByte(1), &privA)
	r.AddSubWallet(keyFromByte(100), &privB)

	in := types.TransactionInput{KeyImage: keyFromByte(10), Amount: 100}
	if err := r.StoreConfirmedInput(keyFromByte(1), in); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreConfirmedInput(keyFromByte(100), in); err == nil {
		t.Fatal("expected error storing the same key image under a second bucket")
	}
}

func TestRegistrySelectInputsForAmount(t *testing.T) {
	r := newTestRegistry()
	priv := keyFromByte(2)
	r.AddSubWallet(keyFromByte(1), &priv)
	for i := byte(0); i < 5; i++ {
		_ = r.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{
			KeyImage: keyFromByte(10 + i),
			Amount:   100,
		})
	}

	selected, sum, err := r.SelectInputsForAmount(250, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum < 250 {
		t.Fatalf("selected sum %d below target", sum)
	}
	if len(selected) < 3 {
		t.Fatalf("expected at least 3 inputs of 100 to reach 250, got %d", len(selected))
	}
}

func TestRegistrySelectInputsForAmountInsufficientBalance(t *testing.T) {
	r := newTestRegistry()
	priv := keyFromByte(2)
	r.AddSubWallet(keyFromByte(1), &priv)
	_ = r.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(10), Amount: 50})

	_, _, err := r.SelectInputsForAmount(1000, 1, 0)
	if err != ErrNotEnoughBalance {
		t.Fatalf("expected ErrNotEnoughBalance, got %v", err)
	}
}

func TestRegistryRemoveForkedAcrossBuckets(t *testing.T) {
	r := newTestRegistry()
	privA := keyFromByte(2)
	privB := keyFromByte(3)
	r.AddSubWallet(keyFromByte(1), &privA)
	r.AddSubWallet(keyFromByte(100), &privB)

	_ = r.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(10), BlockHeight: 50, Amount: 10})
	_ = r.StoreConfirmedInput(keyFromByte(100), types.TransactionInput{KeyImage: keyFromByte(20), BlockHeight: 101, Amount: 10})

	r.RemoveForked(101)

	if _, err := r.ownerOf(keyFromByte(20)); err == nil {
		t.Fatal("expected forked input to be removed")
	}
	if _, err := r.ownerOf(keyFromByte(10)); err != nil {
		t.Fatal("pre-fork input should survive")
	}
}

func TestRegistrySnapshotRoundTrip(t *testing.T) {
	r := newTestRegistry()
	priv := keyFromByte(2)
	r.AddSubWallet(keyFromByte(1), &priv)
	_ = r.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(10), Amount: 10})

	snap := r.Snapshot()

	r2 := newTestRegistry()
	r2.RestoreSnapshot(snap)
	if _, err := r2.ownerOf(keyFromByte(10)); err != nil {
		t.Fatal("expected restored registry to own the key image")
	}
}
