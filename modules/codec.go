package modules

import "github.com/kryptokrona/kryptokrona-walletcore-go/types"

// AddressCodec decodes and validates the coin's address format. Its
// implementation (bech32/base58 alphabet, checksum, varint-prefixed
// payment ids, ...) is out of the core's scope; the core only needs the
// decoded shape and a validity check.
type AddressCodec interface {
	Decode(address string) (types.DecodedAddress, error)

	// EncodeIntegrated produces an integrated address embedding the given
	// 32-byte payment id into a standard address.
	EncodeIntegrated(standardAddress string, paymentID types.Hash) (string, error)

	// Validate reports whether address is well-formed for the configured
	// network prefix, without fully decoding it.
	Validate(address string) error
}
