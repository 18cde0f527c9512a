package wallet

import (
	"context"
	"testing"

	"github.com/kryptokrona/kryptokrona-walletcore-go/config"
	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto/cryptoref"
	"github.com/kryptokrona/kryptokrona-walletcore-go/modules"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

type fakeCodec struct {
	addresses map[string]types.DecodedAddress
}

func (c *fakeCodec) Decode(address string) (types.DecodedAddress, error) {
	d, ok := c.addresses[address]
	if !ok {
		return types.DecodedAddress{}, ErrInvalidAddress
	}
	return d, nil
}
func (c *fakeCodec) EncodeIntegrated(standardAddress string, paymentID types.Hash) (string, error) {
	return standardAddress, nil
}
func (c *fakeCodec) Validate(address string) error {
	if _, ok := c.addresses[address]; !ok {
		return ErrInvalidAddress
	}
	return nil
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{addresses: map[string]types.DecodedAddress{
		"addr1": {PublicSpendKey: keyFromByte(1)},
		"addr2": {PublicSpendKey: keyFromByte(2)},
	}}
}

type fusionNode struct {
	fakeNode
	mixin uint64
}

func (n *fusionNode) MixinForHeight(ctx context.Context) (uint64, error) { return n.mixin, nil }
func (n *fusionNode) GetRandomOutputsByAmount(ctx context.Context, amounts []types.Amount, count int) ([]modules.RandomOutputsForAmount, error) {
	out := make([]modules.RandomOutputsForAmount, 0, len(amounts))
	for _, a := range amounts {
		decoys := make([]types.Decoy, 0, count)
		for i := 0; i < count; i++ {
			decoys = append(decoys, types.Decoy{GlobalIndex: uint64(i + 1), Key: keyFromByte(byte(i + 50))})
		}
		out = append(out, modules.RandomOutputsForAmount{Amount: a, Outputs: decoys})
	}
	return out, nil
}

// TestSendViewOnlyWalletCannotSpend implements scenario S3: a view-only
// bucket must never be selectable for spending. SelectInputsForAmount
// already skips view-only buckets entirely, so a wallet with only
// view-only buckets and otherwise-matching balance must fail with
// ErrNotEnoughBalance rather than silently using the wallet's view key to
// forge a spend it cannot cryptographically back.
func TestSendViewOnlyWalletCannotSpend(t *testing.T) {
	provider := cryptoref.New()
	registry := NewSubWalletRegistry(provider, nil, 0)
	registry.AddSubWallet(keyFromByte(1), nil) // view-only, no private spend key
	_ = registry.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{Amount: 1000})

	builder := NewTransactionBuilder(&fusionNode{mixin: 3}, newFakeCodec(), provider, registry, nil, nil, config.Default(), keyFromByte(9), nil)

	_, err := builder.Send(context.Background(), SendRequest{
		Destinations: []types.TxDestination{{Address: "addr2", Amount: 10}},
	})
	if err != ErrNotEnoughBalance {
		t.Fatalf("expected ErrNotEnoughBalance for a view-only-only wallet, got %v", err)
	}
}

// TestFuseInsufficientCandidatesReturnsFullyOptimized implements half of
// scenario S5: fewer than MinFusionInputs spendable inputs must report
// ErrFullyOptimized rather than attempt a degenerate fusion.
func TestFuseInsufficientCandidatesReturnsFullyOptimized(t *testing.T) {
	provider := cryptoref.New()
	priv := keyFromByte(2)
	registry := NewSubWalletRegistry(provider, nil, 0)
	registry.AddSubWallet(keyFromByte(1), &priv)
	for i := byte(0); i < 10; i++ {
		_ = registry.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(20 + i), Amount: 1})
	}

	cfg := config.Default()
	builder := NewTransactionBuilder(&fusionNode{mixin: 3}, newFakeCodec(), provider, registry, nil, nil, cfg, keyFromByte(9), nil)

	_, err := builder.Fuse(context.Background(), "addr1")
	if err != ErrFullyOptimized {
		t.Fatalf("expected ErrFullyOptimized with only 10 candidates (min %d), got %v", cfg.MinFusionInputs, err)
	}
}

// TestFuseConsolidatesDustIntoPrettyOutput implements the other half of
// scenario S5: 40 inputs of amount 1 must fuse into a single output of 40.
func TestFuseConsolidatesDustIntoPrettyOutput(t *testing.T) {
	provider := cryptoref.New()
	priv := keyFromByte(2)
	registry := NewSubWalletRegistry(provider, nil, 0)
	registry.AddSubWallet(keyFromByte(1), &priv)
	for i := byte(0); i < 40; i++ {
		_ = registry.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(60 + i), Amount: 1})
	}

	cfg := config.Default()
	cfg.MaxFusionInputs = 40
	cfg.MinFusionInputs = 12
	cfg.MinInOutRatio = 4
	builder := NewTransactionBuilder(&fusionNode{mixin: 3}, newFakeCodec(), provider, registry, nil, nil, cfg, keyFromByte(9), nil)

	result, err := builder.Fuse(context.Background(), "addr1")
	if err != nil {
		t.Fatal(err)
	}
	if result.OutputAmount != 40 {
		t.Fatalf("expected fused output of 40, got %d", result.OutputAmount)
	}
	if ratio := result.InputCount / len(result.Outputs); ratio < cfg.MinInOutRatio {
		t.Fatalf("expected in/out ratio of at least %d, got %d", cfg.MinInOutRatio, ratio)
	}
}

// TestSendNotEnoughFakeOutputsLeavesStateUnchanged implements scenario S4:
// when the node cannot supply enough decoys, the builder must fail cleanly
// without locking any input.
func TestSendNotEnoughFakeOutputsLeavesStateUnchanged(t *testing.T) {
	provider := cryptoref.New()
	priv := keyFromByte(2)
	registry := NewSubWalletRegistry(provider, nil, 0)
	registry.AddSubWallet(keyFromByte(1), &priv)
	_ = registry.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{KeyImage: keyFromByte(10), Amount: 1000})

	cfg := config.Default()
	builder := NewTransactionBuilder(&starvedNode{mixin: 3}, newFakeCodec(), provider, registry, nil, nil, cfg, keyFromByte(9), nil)

	_, err := builder.Send(context.Background(), SendRequest{
		Destinations: []types.TxDestination{{Address: "addr2", Amount: 10}},
		Mixin:        5,
	})
	if err != ErrNotEnoughFakeOutputs {
		t.Fatalf("expected ErrNotEnoughFakeOutputs, got %v", err)
	}
	if locked := registry.LockedInputs(); len(locked) != 0 {
		t.Fatalf("expected no locked inputs after a failed build, got %d", len(locked))
	}
	if err := registry.MarkSpent(keyFromByte(10), 1); err != nil {
		t.Fatalf("input should remain spendable after a failed build: %v", err)
	}
}

type collidingNode struct {
	fakeNode
	mixin uint64
}

func (n *collidingNode) MixinForHeight(ctx context.Context) (uint64, error) { return n.mixin, nil }
func (n *collidingNode) GetRandomOutputsByAmount(ctx context.Context, amounts []types.Amount, count int) ([]modules.RandomOutputsForAmount, error) {
	out := make([]modules.RandomOutputsForAmount, 0, len(amounts))
	for _, a := range amounts {
		decoys := []types.Decoy{
			{GlobalIndex: 1, Key: keyFromByte(50)}, // collides with the wallet's own output key
			{GlobalIndex: 2, Key: keyFromByte(51)},
			{GlobalIndex: 3, Key: keyFromByte(52)},
		}
		out = append(out, modules.RandomOutputsForAmount{Amount: a, Outputs: decoys})
	}
	return out, nil
}

// TestSendDropsCollidingDecoy implements the other half of scenario S4: the
// node returns exactly mixin decoys and one of them collides with the
// wallet's own output key. The collision must be dropped and the send must
// still proceed, rather than failing as though too few decoys came back.
func TestSendDropsCollidingDecoy(t *testing.T) {
	provider := cryptoref.New()
	priv := keyFromByte(2)
	registry := NewSubWalletRegistry(provider, nil, 0)
	registry.AddSubWallet(keyFromByte(1), &priv)
	_ = registry.StoreConfirmedInput(keyFromByte(1), types.TransactionInput{
		KeyImage:  keyFromByte(10),
		Amount:    1000,
		OutputKey: keyFromByte(50),
	})

	cfg := config.Default()
	builder := NewTransactionBuilder(&collidingNode{mixin: 3}, newFakeCodec(), provider, registry, nil, nil, cfg, keyFromByte(9), nil)

	_, err := builder.Send(context.Background(), SendRequest{
		Destinations: []types.TxDestination{{Address: "addr2", Amount: 900}},
		Mixin:        3,
		Fee:          100,
	})
	if err != nil {
		t.Fatalf("expected send to succeed by dropping the colliding decoy, got %v", err)
	}
}

type starvedNode struct {
	fakeNode
	mixin uint64
}

func (n *starvedNode) MixinForHeight(ctx context.Context) (uint64, error) { return n.mixin, nil }
func (n *starvedNode) GetRandomOutputsByAmount(ctx context.Context, amounts []types.Amount, count int) ([]modules.RandomOutputsForAmount, error) {
	out := make([]modules.RandomOutputsForAmount, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, modules.RandomOutputsForAmount{Amount: a, Outputs: []types.Decoy{{GlobalIndex: 1, Key: keyFromByte(1)}}})
	}
	return out, nil
}
