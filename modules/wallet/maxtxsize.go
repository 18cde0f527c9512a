package wallet

// maxTxSize returns the largest signed transaction size, in bytes, the
// builder will relay at the given chain height. The cap starts at a fixed
// floor and grows linearly until it reaches its ceiling, mirroring a block
// size that itself grows with height; 600 bytes are reserved off the top
// for the coinbase transaction that must share the block with whatever this
// wallet sends.
func maxTxSize(height uint64) int {
	const (
		floor           = 100_000
		ceiling         = 125_000
		rampNumerator   = 102_400
		rampDenominator = 1_051_200
		coinbaseReserve = 600
	)

	grown := floor + height*rampNumerator/rampDenominator
	capped := grown
	if capped > ceiling {
		capped = ceiling
	}
	if capped < floor {
		capped = floor
	}
	return int(capped) - coinbaseReserve
}
