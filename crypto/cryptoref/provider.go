// Package cryptoref is a reference implementation of crypto.Provider used
// only by this module's own tests and by integrators wiring up an
// end-to-end example. It is deliberately not the production primitive set:
// real curve25519/ed25519 scalar and point arithmetic belongs to the
// external Crypto implementation named in the specification. cryptoref
// instead builds an internally-consistent stand-in out of SHA-256 and an
// XOR "group" (which, like curve point addition, is its own inverse),
// giving every property the core's tests need: deterministic derivation,
// derive/underive agreement, and unique key images.
//
// The keying pattern (entropy-seeded key generation, ed25519 for signing)
// mirrors the teacher's crypto package, which built key pairs the same way
// via golang.org/x/crypto/ed25519 and a pluggable entropy source.
package cryptoref

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/NebulousLabs/fastrand"
	"golang.org/x/crypto/ed25519"

	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// ErrNilKey is returned when an all-zero key is passed where a real key is
// required.
var ErrNilKey = errors.New("cryptoref: nil key")

// Provider is the reference crypto.Provider implementation.
type Provider struct{}

// New returns a ready-to-use reference provider. It is stateless.
func New() *Provider {
	return &Provider{}
}

func hashToKey(parts ...[]byte) types.Key {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Key
	copy(out[:], h.Sum(nil))
	return out
}

func xor(a, b types.Key) types.Key {
	var out types.Key
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// PublicKeyFromPrivate derives a deterministic public key from a private
// scalar. This stands in for scalar multiplication by the base point.
func PublicKeyFromPrivate(priv types.Key) types.Key {
	return hashToKey([]byte("pub"), priv[:])
}

// GenerateKeyPair returns a fresh random (private, public) pair.
func GenerateKeyPair() (priv types.Key, pub types.Key) {
	fastrand.Read(priv[:])
	pub = PublicKeyFromPrivate(priv)
	return
}

// KeyDerivation implements crypto.Provider.
func (p *Provider) KeyDerivation(txPublicKey, privateViewKey types.Key) (types.Key, error) {
	if txPublicKey.IsZero() {
		return types.Key{}, ErrNilKey
	}
	return hashToKey([]byte("derivation"), txPublicKey[:], privateViewKey[:]), nil
}

func (p *Provider) scalarForIndex(derivation types.Key, outputIndex uint64) types.Key {
	return hashToKey([]byte("scalar"), derivation[:], uint64Bytes(outputIndex))
}

// DerivePublicKey implements crypto.Provider.
func (p *Provider) DerivePublicKey(derivation types.Key, outputIndex uint64, publicSpendKey types.Key) (types.Key, error) {
	scalar := p.scalarForIndex(derivation, outputIndex)
	return xor(scalar, publicSpendKey), nil
}

// UnderivePublicKey implements crypto.Provider. Because xor is its own
// inverse, this recovers exactly the spend key DerivePublicKey was given.
func (p *Provider) UnderivePublicKey(derivation types.Key, outputIndex uint64, outputKey types.Key) (types.Key, error) {
	scalar := p.scalarForIndex(derivation, outputIndex)
	return xor(scalar, outputKey), nil
}

// GenerateKeyImage implements crypto.Provider.
func (p *Provider) GenerateKeyImage(txPublicKey, privateViewKey, publicSpendKey, privateSpendKey types.Key, outputIndex uint64) (types.Key, types.Key, error) {
	if privateSpendKey.IsZero() {
		return types.Key{}, types.Key{}, ErrNilKey
	}
	derivation, err := p.KeyDerivation(txPublicKey, privateViewKey)
	if err != nil {
		return types.Key{}, types.Key{}, err
	}
	scalar := p.scalarForIndex(derivation, outputIndex)
	privateEphemeral := xor(scalar, privateSpendKey)
	keyImage := hashToKey([]byte("keyimage"), privateEphemeral[:])
	return keyImage, privateEphemeral, nil
}

// signedTxWire is the (intentionally simple) serialization cryptoref uses
// to stand in for a real ring-signature transaction blob.
type signedTxWire struct {
	Destinations []types.TxDestination
	Inputs       []crypto.OwnedOutput
	Fee          types.Amount
	PaymentID    string
	Nonce        []byte
}

// CreateSignedTransaction implements crypto.Provider. It does not produce a
// real ring signature; it produces a blob made unique by a random nonce and
// a fresh transaction key, signed with an ephemeral ed25519 key, sufficient for exercising the
// TransactionBuilder's control flow and size/fee validations in tests.
func (p *Provider) CreateSignedTransaction(req crypto.SignRequest) (crypto.SignedTransaction, error) {
	if len(req.OwnedOutputs) == 0 {
		return crypto.SignedTransaction{}, errors.New("cryptoref: no owned outputs to spend")
	}
	_, txPublicKey := GenerateKeyPair()
	nonce := make([]byte, 8)
	fastrand.Read(nonce)
	wire := signedTxWire{
		Destinations: req.Destinations,
		Inputs:       req.OwnedOutputs,
		Fee:          req.Fee,
		PaymentID:    req.PaymentID,
		Nonce:        nonce,
	}
	var buf bytes.Buffer
	for _, d := range wire.Destinations {
		buf.WriteString(d.Address)
		buf.Write(uint64Bytes(uint64(d.Amount)))
	}
	for _, in := range wire.Inputs {
		buf.Write(in.Key[:])
		buf.Write(uint64Bytes(uint64(in.Amount)))
	}
	buf.Write(uint64Bytes(uint64(wire.Fee)))
	buf.WriteString(wire.PaymentID)
	buf.Write(nonce)

	_, signingKey, err := ed25519.GenerateKey(bytes.NewReader(hashToKeyReader(buf.Bytes())))
	if err != nil {
		return crypto.SignedTransaction{}, err
	}
	sig := ed25519.Sign(signingKey, buf.Bytes())

	raw := append(append([]byte{}, buf.Bytes()...), sig...)
	hash := hashToKey(raw)
	return crypto.SignedTransaction{
		RawHex:      hex.EncodeToString(raw),
		Hash:        hash,
		Size:        len(raw),
		TxPublicKey: txPublicKey,
	}, nil
}

func hashToKeyReader(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

var _ crypto.Provider = (*Provider)(nil)
