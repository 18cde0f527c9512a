package types

// Protocol-wide constants named by the specification. The fusion limits and
// GlobalIndexesObscurity below share their values with config.Default; a
// running wallet reads those tunables from its config.Config, not from here.
const (
	// CheckpointInterval is the block-height spacing between entries in
	// SyncStatus.BlockHashCheckpoints, which are removed only when a fork
	// rolls history back past them.
	CheckpointInterval = 5000

	// HashesWindow is how many of the most recent block hashes SyncStatus
	// keeps for cheap short-fork detection.
	HashesWindow = 100

	// MaxBlockNumber separates "unlock_time is a block height" from
	// "unlock_time is a unix timestamp" in the shared unlock predicate.
	MaxBlockNumber = 500000000

	// MaxFusionInputs bounds how many inputs a single fusion transaction
	// may consume.
	MaxFusionInputs = 12

	// MinFusionInputs is the minimum remaining candidate count below which
	// a fusion attempt is declared FullyOptimized rather than retried with
	// fewer inputs.
	MinFusionInputs = 12

	// MinInOutRatio is the minimum inputs-consumed-per-output-produced a
	// fusion transaction must achieve to be considered worth relaying.
	MinInOutRatio = 4

	// GlobalIndexesObscurity is the +/- block range around a scanned
	// block used when backfilling global output indexes the node did not
	// embed directly into the block data.
	GlobalIndexesObscurity = 10
)

// IsInputUnlocked evaluates the three-branch unlock predicate shared by
// balance computation and input selection: unlockTime == 0 unlocks immediately;
// a value below MaxBlockNumber is a block height unlocked one block before
// it is reached; a value at or above MaxBlockNumber is a unix timestamp
// unlocked once reached.
func IsInputUnlocked(unlockTime uint64, currentHeight uint64, nowUnixSeconds uint64) bool {
	if unlockTime == 0 {
		return true
	}
	if unlockTime < MaxBlockNumber {
		return currentHeight+1 >= unlockTime
	}
	return nowUnixSeconds >= unlockTime
}
