package types

// DecodedAddress is the result of decoding a standard or integrated address.
// Decoding itself is out of core scope (see AddressCodec); this is the
// shape the core consumes.
type DecodedAddress struct {
	PublicViewKey  Key
	PublicSpendKey Key
	PaymentID      string // empty unless the address is integrated
	Prefix         uint64
}

// TxDestination is one (address, amount) leg of an outgoing transaction
// after address decoding and denomination splitting.
type TxDestination struct {
	Address   string
	Amount    Amount
	PaymentID string // resolved payment id for this destination, if integrated
}

// Decoy is a single ring-signature decoy candidate for an input amount.
type Decoy struct {
	GlobalIndex uint64
	Key         Key
}
