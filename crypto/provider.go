// Package crypto defines the abstract elliptic-curve operations the wallet
// core relies on. The core never touches a curve directly: it calls through
// the Provider interface so that the underlying primitives (CryptoNote's
// ed25519-family scalar/point operations) can live in a separate,
// independently-audited implementation. See cryptoref for a reference
// implementation used only by tests.
package crypto

import "github.com/kryptokrona/kryptokrona-walletcore-go/types"

// OwnedOutput is an output the caller has already proven ownership of and
// wants spent, paired with the private ephemeral key needed to sign for it.
type OwnedOutput struct {
	GlobalIndex      uint64
	Key              types.Key
	Amount           types.Amount
	PrivateEphemeral types.Key
}

// RingParticipants groups the decoys gathered for one input amount, the
// caller's own output among them at OwnIndex.
type RingParticipants struct {
	Amount  types.Amount
	Decoys  []types.Decoy
	OwnIndex int
}

// SignRequest bundles everything CreateSignedTransaction needs to build and
// sign a ring-signature transaction.
type SignRequest struct {
	Destinations []types.TxDestination
	OwnedOutputs []OwnedOutput
	Rings        []RingParticipants
	Mixin        uint64
	Fee          types.Amount
	PaymentID    string
}

// SignedTransaction is the result of a successful CreateSignedTransaction
// call.
type SignedTransaction struct {
	RawHex      string
	Hash        types.Hash
	Size        int
	TxPublicKey types.Key
}

// Provider is the abstract Crypto interface fixed by the specification.
// Every method except CreateSignedTransaction (which draws fresh randomness
// for the transaction key) is a pure function of its inputs; the core never
// retains provider-internal state across calls.
type Provider interface {
	// KeyDerivation computes the shared secret enabling recognition and
	// spending of stealth outputs sent to txPublicKey, from the recipient's
	// private view key.
	KeyDerivation(txPublicKey, privateViewKey types.Key) (derivation types.Key, err error)

	// DerivePublicKey computes the expected output key for outputIndex
	// under derivation, for the owner of publicSpendKey. Used by the
	// single-spend-key optimized scanning path.
	DerivePublicKey(derivation types.Key, outputIndex uint64, publicSpendKey types.Key) (types.Key, error)

	// UnderivePublicKey inverts DerivePublicKey: given an observed output
	// key, it recovers the candidate spend key that would have produced it
	// under derivation. Used by the general (multi-subwallet) scanning path.
	UnderivePublicKey(derivation types.Key, outputIndex uint64, outputKey types.Key) (types.Key, error)

	// GenerateKeyImage derives the key image and private ephemeral key for
	// an output owned by (publicSpendKey, privateSpendKey). Requires the
	// private spend key, so is unavailable to view-only wallets.
	GenerateKeyImage(txPublicKey, privateViewKey, publicSpendKey, privateSpendKey types.Key, outputIndex uint64) (keyImage types.Key, privateEphemeral types.Key, err error)

	// CreateSignedTransaction builds and ring-signs a transaction.
	CreateSignedTransaction(req SignRequest) (SignedTransaction, error)
}
