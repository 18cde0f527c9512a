package wallet

import (
	"fmt"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"

	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// SubWalletRegistry owns every SubWallet in the wallet and resolves an
// arbitrary scanned output to the bucket that owns it. It is the only
// component permitted to move an input between buckets or to touch more
// than one bucket at a time, which keeps SubWallet's own locking simple.
//
// Grounded on the teacher's modules/wallet/update.go outputs-to-elements
// resolution pass, generalized from a single flat map to a registry of
// independently-lockable buckets with an LRU front for hot-path lookups.
type SubWalletRegistry struct {
	mu sync.RWMutex

	provider crypto.Provider
	log      *logrus.Entry

	subwallets map[types.Key]*SubWallet // keyed by public spend key
	keyImageOwner *lru.Cache             // key image -> public spend key, hot-path cache

	transactions map[types.Hash]types.Transaction
}

// NewSubWalletRegistry creates an empty registry. cacheSize bounds the
// key-image ownership LRU; pass 0 for a sensible default.
func NewSubWalletRegistry(provider crypto.Provider, log *logrus.Entry, cacheSize int) *SubWalletRegistry {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is excluded above.
		panic(err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SubWalletRegistry{
		provider:      provider,
		log:           log,
		subwallets:    make(map[types.Key]*SubWallet),
		keyImageOwner: cache,
		transactions:  make(map[types.Hash]types.Transaction),
	}
}

// RecordTransaction stores or overwrites tx under its hash, so that a
// wallet-owned transfer is queryable from the moment it is built (still
// unconfirmed, BlockHeight == 0) through its eventual confirmation, when the
// Synchronizer calls this again with the confirmed BlockHeight set.
func (r *SubWalletRegistry) RecordTransaction(tx types.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.Hash] = tx
}

// GetTransaction returns the recorded transaction for hash, if any.
func (r *SubWalletRegistry) GetTransaction(hash types.Hash) (types.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.transactions[hash]
	return tx, ok
}

// Transactions returns every recorded transaction, unordered.
func (r *SubWalletRegistry) Transactions() []types.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		out = append(out, tx)
	}
	return out
}

// AddSubWallet registers a new bucket. privateSpendKey is nil for a
// view-only subwallet.
func (r *SubWalletRegistry) AddSubWallet(publicSpendKey types.Key, privateSpendKey *types.Key) *SubWallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := NewSubWallet(publicSpendKey, privateSpendKey)
	r.subwallets[publicSpendKey] = w
	return w
}

// SubWallets returns every registered bucket's public spend key.
func (r *SubWalletRegistry) SubWallets() []types.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Key, 0, len(r.subwallets))
	for k := range r.subwallets {
		out = append(out, k)
	}
	return out
}

func (r *SubWalletRegistry) get(publicSpendKey types.Key) (*SubWallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.subwallets[publicSpendKey]
	return w, ok
}

// ownerOf resolves a key image to the bucket that owns it, consulting the
// LRU cache first and falling back to a linear scan across every bucket.
// The scan result repopulates the cache. Returns ErrUnknownKeyImage if no
// bucket owns it.
func (r *SubWalletRegistry) ownerOf(keyImage types.Key) (*SubWallet, error) {
	if v, ok := r.keyImageOwner.Get(keyImage); ok {
		spendKey := v.(types.Key)
		if w, ok := r.get(spendKey); ok && w.HasKeyImage(keyImage) {
			return w, nil
		}
		r.keyImageOwner.Remove(keyImage)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for spendKey, w := range r.subwallets {
		if w.HasKeyImage(keyImage) {
			r.keyImageOwner.Add(keyImage, spendKey)
			return w, nil
		}
	}
	return nil, ErrUnknownKeyImage
}

// DeriveTxInputKeyImage computes the key image (and private ephemeral key)
// for an output owned by publicSpendKey, using that bucket's private spend
// key and the provided transaction public key / private view key / output
// index via the crypto provider. Returns ErrKeysNotDeterministic if the
// owning bucket is view-only.
func (r *SubWalletRegistry) DeriveTxInputKeyImage(publicSpendKey, privateViewKey, txPublicKey types.Key, outputIndex uint64) (keyImage types.Key, privateEphemeral types.Key, err error) {
	w, ok := r.get(publicSpendKey)
	if !ok {
		return types.Key{}, types.Key{}, ErrUnknownAddress
	}
	privSpend, ok := w.PrivateSpendKey()
	if !ok {
		return types.Key{}, types.Key{}, ErrKeysNotDeterministic
	}
	return r.provider.GenerateKeyImage(txPublicKey, privateViewKey, publicSpendKey, privSpend, outputIndex)
}

// StoreConfirmedInput admits input into the bucket for owner, after
// enforcing invariant 2: the key image must not already belong to any
// other bucket.
func (r *SubWalletRegistry) StoreConfirmedInput(owner types.Key, input types.TransactionInput) error {
	// A zero key image means the owning bucket is view-only and could not
	// compute one; uniqueness (invariant 2) cannot be enforced for it, and
	// is not attempted, matching CryptoNote's inherent view-only blind spot.
	if input.KeyImage != (types.Key{}) {
		if existing, err := r.ownerOf(input.KeyImage); err == nil && existing.PublicSpendKey() != owner {
			return fmt.Errorf("%w: key image already owned by a different subwallet", ErrSuspiciousNode)
		}
	}
	w, ok := r.get(owner)
	if !ok {
		return ErrUnknownAddress
	}
	w.StoreInput(input)
	if input.KeyImage != (types.Key{}) {
		r.keyImageOwner.Add(input.KeyImage, owner)
	}
	return nil
}

// RecordUnconfirmed stages an unconfirmed change/incoming output against
// owner, ahead of on-chain confirmation.
func (r *SubWalletRegistry) RecordUnconfirmed(owner types.Key, u types.UnconfirmedInput) error {
	w, ok := r.get(owner)
	if !ok {
		return ErrUnknownAddress
	}
	w.RecordUnconfirmed(u)
	return nil
}

// PromoteOnConfirmation moves a matching unconfirmed entry into the
// confirmed input set, called once the scanner observes the real output.
func (r *SubWalletRegistry) PromoteOnConfirmation(owner types.Key, parentTxHash types.Hash, input types.TransactionInput) error {
	w, ok := r.get(owner)
	if !ok {
		return ErrUnknownAddress
	}
	w.PromoteUnconfirmed(parentTxHash, input)
	r.keyImageOwner.Add(input.KeyImage, owner)
	return nil
}

// SpentInputInfo resolves keyImage to its owning bucket's public spend key
// and the input's amount, without mutating anything. Used to build a
// transaction's signed transfer map before MarkSpent is called.
func (r *SubWalletRegistry) SpentInputInfo(keyImage types.Key) (owner types.Key, amount types.Amount, ok bool) {
	w, err := r.ownerOf(keyImage)
	if err != nil {
		return types.Key{}, 0, false
	}
	amount, ok = w.AmountOf(keyImage)
	if !ok {
		return types.Key{}, 0, false
	}
	return w.PublicSpendKey(), amount, true
}

// MarkSpent locates the bucket owning keyImage and marks it spent.
func (r *SubWalletRegistry) MarkSpent(keyImage types.Key, spendHeight uint64) error {
	w, err := r.ownerOf(keyImage)
	if err != nil {
		return err
	}
	return w.MarkSpent(keyImage, spendHeight)
}

// MarkLocked locates the bucket owning keyImage and reserves it pending
// confirmation of parentTxHash, recording atHeight as the reservation's
// start height for RespendTimeout-based fallback expiry.
func (r *SubWalletRegistry) MarkLocked(keyImage types.Key, parentTxHash types.Hash, atHeight uint64) error {
	w, err := r.ownerOf(keyImage)
	if err != nil {
		return err
	}
	return w.MarkLocked(keyImage, parentTxHash, atHeight)
}

// LockedInputs returns every reserved input across every bucket, paired
// with the owning bucket's public spend key.
func (r *SubWalletRegistry) LockedInputs() []candidateInput {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []candidateInput
	for owner, w := range r.subwallets {
		for _, in := range w.LockedInputs() {
			out = append(out, candidateInput{owner: owner, input: in})
		}
	}
	return out
}

// RemoveCancelled locates the bucket owning keyImage and returns it to the
// spendable pool.
func (r *SubWalletRegistry) RemoveCancelled(keyImage types.Key) error {
	w, err := r.ownerOf(keyImage)
	if err != nil {
		return err
	}
	return w.RemoveCancelled(keyImage)
}

// RemoveForked discards every input first seen at or above forkHeight
// across every bucket, and invalidates the key-image cache wholesale since
// individual eviction would require a reverse index.
func (r *SubWalletRegistry) RemoveForked(forkHeight uint64) {
	r.mu.RLock()
	wallets := make([]*SubWallet, 0, len(r.subwallets))
	for _, w := range r.subwallets {
		wallets = append(wallets, w)
	}
	r.mu.RUnlock()

	for _, w := range wallets {
		w.RemoveForked(forkHeight)
	}
	r.keyImageOwner.Purge()
}

// Balance sums unlocked/locked across every bucket.
func (r *SubWalletRegistry) Balance(currentHeight, nowUnixSeconds uint64) (unlocked, locked types.Amount) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.subwallets {
		u, l := w.Balance(currentHeight, nowUnixSeconds)
		unlocked += u
		locked += l
	}
	return unlocked, locked
}

// candidateInput pairs a spendable input with the bucket it came from, so
// selection can later call back into the owning bucket's private key.
type candidateInput struct {
	owner types.Key
	input types.TransactionInput
}

func (r *SubWalletRegistry) spendableCandidates(currentHeight, nowUnixSeconds uint64) []candidateInput {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []candidateInput
	for owner, w := range r.subwallets {
		if w.IsViewOnly() {
			continue
		}
		for _, in := range w.SpendableInputs(currentHeight, nowUnixSeconds) {
			out = append(out, candidateInput{owner: owner, input: in})
		}
	}
	return out
}

// SelectInputsForAmount greedily accumulates randomly-shuffled spendable
// inputs until their sum is at least target, matching the specification's
// random-shuffle-then-greedy selection strategy (favors privacy over
// minimizing input count). Returns ErrNotEnoughBalance if no combination of
// spendable inputs reaches target.
func (r *SubWalletRegistry) SelectInputsForAmount(target types.Amount, currentHeight, nowUnixSeconds uint64) ([]candidateInput, types.Amount, error) {
	candidates := r.spendableCandidates(currentHeight, nowUnixSeconds)
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var selected []candidateInput
	var sum types.Amount
	for _, c := range candidates {
		if sum >= target {
			break
		}
		var err error
		sum, err = sum.Add(c.input.Amount)
		if err != nil {
			return nil, 0, err
		}
		selected = append(selected, c)
	}
	if sum < target {
		return nil, 0, ErrNotEnoughBalance
	}
	return selected, sum, nil
}

// SelectFusionInputs returns up to MaxFusionInputs spendable inputs, chosen
// to prefer consolidating the smallest amounts first (the natural fusion
// objective), for candidate fusion-transaction construction.
func (r *SubWalletRegistry) SelectFusionInputs(maxInputs int, currentHeight, nowUnixSeconds uint64) []candidateInput {
	candidates := r.spendableCandidates(currentHeight, nowUnixSeconds)
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].input.Amount > candidates[j].input.Amount {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}
	if len(candidates) > maxInputs {
		candidates = candidates[:maxInputs]
	}
	return candidates
}

// RegistrySnapshot is a point-in-time, immutable view of every bucket's
// persisted shape, safe to hand to a persistence layer without holding the
// registry lock for the duration of a write.
type RegistrySnapshot struct {
	SubWallets []SubWalletRecord
}

// Snapshot captures every bucket's current record form.
func (r *SubWalletRegistry) Snapshot() RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := RegistrySnapshot{SubWallets: make([]SubWalletRecord, 0, len(r.subwallets))}
	for _, w := range r.subwallets {
		snap.SubWallets = append(snap.SubWallets, w.ToRecord())
	}
	return deepCopySnapshot(snap)
}

// deepCopySnapshot returns an independent copy of snap so that a caller
// holding onto a Snapshot() result (an EventSink, a persistence layer) can
// never observe a later in-place mutation of the registry's own records.
// ToRecord already copies its own slices, but this guards the snapshot as
// a whole against any future field that isn't copied by value.
func deepCopySnapshot(snap RegistrySnapshot) RegistrySnapshot {
	copied, err := copystructure.Copy(snap)
	if err != nil {
		return snap
	}
	return copied.(RegistrySnapshot)
}

// RestoreSnapshot replaces the registry's buckets with those described by
// snap, used when loading a persisted wallet.
func (r *SubWalletRegistry) RestoreSnapshot(snap RegistrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subwallets = make(map[types.Key]*SubWallet, len(snap.SubWallets))
	for _, rec := range snap.SubWallets {
		r.subwallets[rec.PublicSpendKey] = SubWalletFromRecord(rec)
	}
	r.keyImageOwner.Purge()
}
