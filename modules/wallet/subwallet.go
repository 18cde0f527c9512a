package wallet

import (
	"sync"

	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// SubWallet owns one spend-key bucket's view of the chain: every input ever
// seen paying to its public spend key, confirmed or not, spent or not.
// Exactly one SubWallet exists per owned spend key; the SubWalletRegistry is
// what resolves an arbitrary output key to the right bucket.
//
// Grounded on the teacher's SiacoinElement-tracking pattern in
// modules/wallet/persist.go, generalized from a single flat output set to
// per-subwallet buckets plus an explicit unconfirmed staging area.
type SubWallet struct {
	mu sync.RWMutex

	publicSpendKey types.Key
	privateSpendKey *types.Key // nil for a view-only (watch-only) subwallet

	inputs       map[types.Key]*types.TransactionInput // keyed by key image
	unconfirmed  []types.UnconfirmedInput
}

// NewSubWallet creates an empty bucket for publicSpendKey. privateSpendKey
// is nil for a view-only wallet.
func NewSubWallet(publicSpendKey types.Key, privateSpendKey *types.Key) *SubWallet {
	return &SubWallet{
		publicSpendKey:  publicSpendKey,
		privateSpendKey: privateSpendKey,
		inputs:          make(map[types.Key]*types.TransactionInput),
	}
}

// PublicSpendKey identifies this bucket.
func (w *SubWallet) PublicSpendKey() types.Key {
	return w.publicSpendKey
}

// IsViewOnly reports whether this bucket holds a spend key at all. Per
// invariant 6, a view-only wallet must never be used to construct a
// spending transaction.
func (w *SubWallet) IsViewOnly() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.privateSpendKey == nil
}

// PrivateSpendKey returns the private spend key and true, or the zero key
// and false if this bucket is view-only.
func (w *SubWallet) PrivateSpendKey() (types.Key, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.privateSpendKey == nil {
		return types.Key{}, false
	}
	return *w.privateSpendKey, true
}

// HasKeyImage reports whether this bucket already owns an input with the
// given key image, used to enforce invariant 2 (key image uniqueness)
// before a new input is admitted.
func (w *SubWallet) HasKeyImage(keyImage types.Key) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.inputs[keyImage]
	return ok
}

// StoreInput admits a newly-discovered confirmed input into this bucket. It
// is the caller's responsibility (the SubWalletRegistry) to ensure the key
// image is not already present in any other bucket.
func (w *SubWallet) StoreInput(input types.TransactionInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inputs[input.KeyImage] = &input
}

// AmountOf returns the amount of the input identified by keyImage, if this
// bucket owns it.
func (w *SubWallet) AmountOf(keyImage types.Key) (types.Amount, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	in, ok := w.inputs[keyImage]
	if !ok {
		return 0, false
	}
	return in.Amount, true
}

// MarkSpent records that input (identified by key image) was spent at
// spendHeight. Returns ErrUnknownKeyImage if this bucket has no such input.
func (w *SubWallet) MarkSpent(keyImage types.Key, spendHeight uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	in, ok := w.inputs[keyImage]
	if !ok {
		return ErrUnknownKeyImage
	}
	in.SpendHeight = spendHeight
	in.ReservedForTxHash = types.Hash{}
	in.ReservedAtHeight = 0
	return nil
}

// MarkLocked flags input as reserved by an in-flight, not-yet-confirmed
// spend (parentTxHash) as of atHeight, preventing it from being selected
// again until the respend timeout elapses or the spend is
// confirmed/cancelled.
func (w *SubWallet) MarkLocked(keyImage types.Key, parentTxHash types.Hash, atHeight uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	in, ok := w.inputs[keyImage]
	if !ok {
		return ErrUnknownKeyImage
	}
	in.ReservedForTxHash = parentTxHash
	in.ReservedAtHeight = atHeight
	return nil
}

// RemoveCancelled clears the reservation on an input whose spending
// transaction the node reports as cancelled or never relayed, returning it
// to the spendable pool.
func (w *SubWallet) RemoveCancelled(keyImage types.Key) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	in, ok := w.inputs[keyImage]
	if !ok {
		return ErrUnknownKeyImage
	}
	in.ReservedForTxHash = types.Hash{}
	in.ReservedAtHeight = 0
	in.SpendHeight = 0
	return nil
}

// LockedInputs returns every input currently reserved by an in-flight
// spend, for the locked_tx_check background task to reconcile against the
// node's view of cancelled/pooled transactions.
func (w *SubWallet) LockedInputs() []types.TransactionInput {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []types.TransactionInput
	for _, in := range w.inputs {
		if in.IsReserved() {
			out = append(out, *in)
		}
	}
	return out
}

// RemoveForked discards every input first seen at or above forkHeight, and
// unmarks (un-spends) any surviving input whose SpendHeight is at or above
// forkHeight. Called by the registry during reorg handling.
func (w *SubWallet) RemoveForked(forkHeight uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ki, in := range w.inputs {
		if in.BlockHeight >= forkHeight {
			delete(w.inputs, ki)
			continue
		}
		if in.SpendHeight >= forkHeight {
			in.SpendHeight = 0
		}
	}
}

// Balance returns (unlocked, locked) totals across every input in this
// bucket, given the chain tip height and current wall-clock time.
func (w *SubWallet) Balance(currentHeight, nowUnixSeconds uint64) (unlocked, locked types.Amount) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, in := range w.inputs {
		if !in.IsUnspent() {
			continue
		}
		if in.Unlocked(currentHeight, nowUnixSeconds) {
			unlocked += in.Amount
		} else {
			locked += in.Amount
		}
	}
	return unlocked, locked
}

// SpendableInputs returns every unspent, unlocked input in this bucket.
func (w *SubWallet) SpendableInputs(currentHeight, nowUnixSeconds uint64) []types.TransactionInput {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.TransactionInput, 0, len(w.inputs))
	for _, in := range w.inputs {
		if in.IsUnspent() && !in.IsReserved() && in.Unlocked(currentHeight, nowUnixSeconds) {
			out = append(out, *in)
		}
	}
	return out
}

// AllInputs returns every input in this bucket regardless of state, for
// persistence and diagnostics.
func (w *SubWallet) AllInputs() []types.TransactionInput {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.TransactionInput, 0, len(w.inputs))
	for _, in := range w.inputs {
		out = append(out, *in)
	}
	return out
}

// RecordUnconfirmed appends an unconfirmed change/incoming output awaiting
// confirmation, not yet spendable.
func (w *SubWallet) RecordUnconfirmed(u types.UnconfirmedInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unconfirmed = append(w.unconfirmed, u)
}

// PromoteUnconfirmed stores input in the confirmed input set and drops any
// unconfirmed entry whose OutputKey matches input.OutputKey from the
// unconfirmed staging area.
func (w *SubWallet) PromoteUnconfirmed(parentTxHash types.Hash, input types.TransactionInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.unconfirmed[:0]
	for _, u := range w.unconfirmed {
		if u.OutputKey != input.OutputKey {
			kept = append(kept, u)
		}
	}
	w.unconfirmed = kept
	w.inputs[input.KeyImage] = &input
}

// SubWalletRecord is the persistence-contract record shape for a SubWallet.
type SubWalletRecord struct {
	PublicSpendKey  types.Key                    `msgpack:"publicSpendKey"`
	PrivateSpendKey *types.Key                   `msgpack:"privateSpendKey,omitempty"`
	Inputs          []types.TransactionInput     `msgpack:"inputs"`
	Unconfirmed     []types.UnconfirmedInput     `msgpack:"unconfirmed"`
}

// ToRecord exports w as an opaque record.
func (w *SubWallet) ToRecord() SubWalletRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec := SubWalletRecord{
		PublicSpendKey: w.publicSpendKey,
		Unconfirmed:    append([]types.UnconfirmedInput{}, w.unconfirmed...),
	}
	if w.privateSpendKey != nil {
		k := *w.privateSpendKey
		rec.PrivateSpendKey = &k
	}
	for _, in := range w.inputs {
		rec.Inputs = append(rec.Inputs, *in)
	}
	return rec
}

// SubWalletFromRecord reconstructs a SubWallet from a record produced by
// ToRecord.
func SubWalletFromRecord(r SubWalletRecord) *SubWallet {
	w := NewSubWallet(r.PublicSpendKey, r.PrivateSpendKey)
	for _, in := range r.Inputs {
		input := in
		w.inputs[input.KeyImage] = &input
	}
	w.unconfirmed = append([]types.UnconfirmedInput{}, r.Unconfirmed...)
	return w
}
