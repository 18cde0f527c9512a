package types

// KeyOutput is a single stealth output attached to a transaction.
type KeyOutput struct {
	Key         Key    `json:"key" msgpack:"key"`
	Amount      Amount `json:"amount" msgpack:"amount"`
	GlobalIndex *uint64 `json:"globalIndex,omitempty" msgpack:"globalIndex,omitempty"`
}

// KeyInput references a previously created output being spent.
type KeyInput struct {
	KeyImage      Key      `json:"keyImage" msgpack:"keyImage"`
	Amount        Amount   `json:"amount" msgpack:"amount"`
	OutputIndexes []uint64 `json:"outputIndexes" msgpack:"outputIndexes"`
}

// RawTransaction is a transaction exactly as a Node reports it, prior to any
// wallet-relevance filtering.
type RawTransaction struct {
	Hash         Hash        `json:"hash" msgpack:"hash"`
	TxPublicKey  Key         `json:"txPublicKey" msgpack:"txPublicKey"`
	UnlockTime   uint64      `json:"unlockTime" msgpack:"unlockTime"`
	PaymentID    string      `json:"paymentId,omitempty" msgpack:"paymentId,omitempty"`
	KeyOutputs   []KeyOutput `json:"keyOutputs" msgpack:"keyOutputs"`
	KeyInputs    []KeyInput  `json:"keyInputs" msgpack:"keyInputs"`
}

// RawBlock is a block exactly as a Node reports it.
type RawBlock struct {
	Height       uint64           `json:"height" msgpack:"height"`
	Hash         Hash             `json:"hash" msgpack:"hash"`
	Timestamp    uint64           `json:"timestamp" msgpack:"timestamp"`
	CoinbaseTx   *RawTransaction  `json:"coinbaseTx,omitempty" msgpack:"coinbaseTx,omitempty"`
	Transactions []RawTransaction `json:"transactions" msgpack:"transactions"`
}
