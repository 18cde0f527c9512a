package types

// TransactionInput is an output owned by exactly one subwallet, tracked from
// the moment the scanner recognizes it until it is eventually spent. At any
// time it is in exactly one state: unspent, reserved by an in-flight spend
// (ReservedForTxHash set), or spent (SpendHeight non-zero).
type TransactionInput struct {
	KeyImage             Key    `json:"keyImage" msgpack:"keyImage"`
	Amount               Amount `json:"amount" msgpack:"amount"`
	BlockHeight          uint64 `json:"blockHeight" msgpack:"blockHeight"`
	TxPublicKey          Key    `json:"txPublicKey" msgpack:"txPublicKey"`
	TransactionIndex     int    `json:"transactionIndex" msgpack:"transactionIndex"`
	GlobalOutputIndex    *uint64 `json:"globalOutputIndex,omitempty" msgpack:"globalOutputIndex,omitempty"`
	OutputKey            Key    `json:"outputKey" msgpack:"outputKey"`
	SpendHeight          uint64 `json:"spendHeight" msgpack:"spendHeight"`
	UnlockTime           uint64 `json:"unlockTime" msgpack:"unlockTime"`
	ParentTransactionHash Hash  `json:"parentTransactionHash" msgpack:"parentTransactionHash"`
	PrivateEphemeral     *Key   `json:"privateEphemeral,omitempty" msgpack:"privateEphemeral,omitempty"`

	// ReservedForTxHash is set while an in-flight, not-yet-confirmed spend
	// is holding this input out of selection, and cleared once that spend
	// either confirms (SpendHeight becomes non-zero) or is cancelled.
	ReservedForTxHash Hash `json:"reservedForTxHash,omitempty" msgpack:"reservedForTxHash,omitempty"`

	// ReservedAtHeight is the chain height observed at the moment the
	// reservation was made, used by locked_tx_check as a fallback expiry
	// when a node never answers whether ReservedForTxHash was cancelled.
	ReservedAtHeight uint64 `json:"reservedAtHeight,omitempty" msgpack:"reservedAtHeight,omitempty"`
}

// IsReserved reports whether an in-flight spend currently holds this input.
func (in TransactionInput) IsReserved() bool {
	return in.ReservedForTxHash != (Hash{})
}

// IsUnspent reports whether the input has not yet been confirmed spent.
// This mirrors invariant 3 in the specification: SpendHeight == 0 iff the
// input lives in the unspent or locked bucket.
func (in TransactionInput) IsUnspent() bool {
	return in.SpendHeight == 0
}

// Unlocked reports whether the input may be spent at the given height/time.
func (in TransactionInput) Unlocked(currentHeight, nowUnixSeconds uint64) bool {
	return IsInputUnlocked(in.UnlockTime, currentHeight, nowUnixSeconds)
}

// UnconfirmedInput is a tombstone created at send time for a change output
// destined back to the wallet, kept as incoming until the real
// TransactionInput is observed on-chain (matched by OutputKey). Cancelling
// the parent transaction does not remove it.
type UnconfirmedInput struct {
	Amount                Amount `json:"amount" msgpack:"amount"`
	OutputKey             Key    `json:"outputKey" msgpack:"outputKey"`
	ParentTransactionHash Hash   `json:"parentTransactionHash" msgpack:"parentTransactionHash"`
}

// Transaction is the wallet-level view of a transaction: net movement per
// subwallet, independent of which raw inputs/outputs produced it.
type Transaction struct {
	// Transfers maps a subwallet's public spend key to its signed net
	// movement in this transaction. Per the negative-sign-on-spends
	// convention, an owned key input contributes a negative amount.
	Transfers   map[Key]int64 `json:"transfers" msgpack:"transfers"`
	Hash        Hash          `json:"hash" msgpack:"hash"`
	Fee         Amount        `json:"fee" msgpack:"fee"`
	Timestamp   uint64        `json:"timestamp" msgpack:"timestamp"`
	BlockHeight uint64        `json:"blockHeight" msgpack:"blockHeight"`
	PaymentID   string        `json:"paymentId,omitempty" msgpack:"paymentId,omitempty"`
	UnlockTime  uint64        `json:"unlockTime" msgpack:"unlockTime"`
	IsCoinbase  bool          `json:"isCoinbase" msgpack:"isCoinbase"`
}

// IsUnconfirmed reports whether the transaction has not yet been observed
// in a block.
func (t Transaction) IsUnconfirmed() bool {
	return t.BlockHeight == 0
}

// TotalAmount sums all transfers, signed.
func (t Transaction) TotalAmount() int64 {
	var total int64
	for _, v := range t.Transfers {
		total += v
	}
	return total
}
