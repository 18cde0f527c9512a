package wallet

import (
	"testing"

	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto/cryptoref"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// TestScanSingleAndMultiplePathsAgree is the testable-property check named
// in the specification: the single-spend-key optimized path
// (DerivePublicKey) and the general multi-subwallet path (UnderivePublicKey)
// must recognize exactly the same outputs as belonging to the same owner.
func TestScanSingleAndMultiplePathsAgree(t *testing.T) {
	provider := cryptoref.New()
	privView, pubView := cryptoref.GenerateKeyPair()
	_ = pubView
	privSpend, pubSpend := cryptoref.GenerateKeyPair()
	_ = privSpend

	txPriv, txPub := cryptoref.GenerateKeyPair()
	_ = txPriv

	derivation, err := provider.KeyDerivation(txPub, privView)
	if err != nil {
		t.Fatal(err)
	}
	ownedKey, err := provider.DerivePublicKey(derivation, 0, pubSpend)
	if err != nil {
		t.Fatal(err)
	}

	tx := types.RawTransaction{
		TxPublicKey: txPub,
		KeyOutputs: []types.KeyOutput{
			{Key: ownedKey, Amount: 100},
			{Key: keyFromByte(0xFF), Amount: 200}, // unrelated, must not match
		},
	}

	target := scanTarget{publicSpendKey: pubSpend, privateSpendKey: &privSpend}

	singlePath, err := ScanBlockOutputs(provider, privView, []scanTarget{target}, tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(singlePath) != 1 || singlePath[0].Output.Key != ownedKey {
		t.Fatalf("single-spend-key path: expected exactly one match, got %+v", singlePath)
	}

	otherSpend := keyFromByte(0xAB)
	otherTarget := scanTarget{publicSpendKey: otherSpend}
	multiPath, err := ScanBlockOutputs(provider, privView, []scanTarget{target, otherTarget}, tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(multiPath) != 1 || multiPath[0].Output.Key != ownedKey || multiPath[0].Owner != pubSpend {
		t.Fatalf("multi-subwallet path: expected exactly one match owned by pubSpend, got %+v", multiPath)
	}
}

func TestScanIgnoresZeroTxPublicKey(t *testing.T) {
	provider := cryptoref.New()
	_, pubView := cryptoref.GenerateKeyPair()
	_, pubSpend := cryptoref.GenerateKeyPair()

	tx := types.RawTransaction{KeyOutputs: []types.KeyOutput{{Key: keyFromByte(1), Amount: 1}}}
	found, err := ScanBlockOutputs(provider, pubView, []scanTarget{{publicSpendKey: pubSpend}}, tx)
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Fatal("expected no matches for a zero transaction public key")
	}
}
