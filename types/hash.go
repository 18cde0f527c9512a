// Package types defines the wire-level data model shared by every component
// of the wallet core: hashes and keys, raw block/transaction shapes as
// reported by a node, and the wallet-side views (inputs, transactions)
// derived from them by the scanner and registry.
package types

import (
	"encoding/hex"
	"errors"
)

// HashSize is the length in bytes of every Hash/Key value in the core.
const HashSize = 32

// ErrInvalidHashLength is returned when decoding a hex string that does not
// encode exactly HashSize bytes.
var ErrInvalidHashLength = errors.New("hash must be exactly 32 bytes")

// Hash is a 32-byte value carried as a hex string at the edges of the core
// (JSON, msgpack, logs) and compared by byte-equality internally. Block
// hashes, transaction hashes, public/private keys and key images are all
// represented as Hash — CryptoNote does not distinguish their wire shape,
// only their use.
type Hash [HashSize]byte

// Key is an alias for Hash used where the field holds a scalar or curve
// point (a public key, a private key, a key image or a derivation) rather
// than a hash of data. The two are bit-for-bit identical; the distinct name
// documents intent at call sites.
type Key = Hash

// ZeroHash is the all-zero hash, used as a sentinel (e.g. an unset
// tx_public_key) and never a valid key or key image.
var ZeroHash Hash

// IsZero reports whether h is the all-zero sentinel value.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders h as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex decodes a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, ErrInvalidHashLength
	}
	copy(h[:], b)
	return h, nil
}

// MarshalText implements encoding.TextMarshaler so Hash round-trips through
// JSON, msgpack (text mode) and viper/storm tags as a hex string.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}
