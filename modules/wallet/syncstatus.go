package wallet

import (
	"fmt"

	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// SyncStatus tracks the fork-resistance checkpoints a Synchronizer presents
// to a Node when asking to resume sync: a short window of recent block
// hashes for cheap short-fork detection, plus a sparse, never-trimmed set
// of hashes at fixed height intervals so a long-offline wallet can still
// locate the point of divergence.
//
// Grounded on the teacher's persist.BoltDatabase.Metadata pattern of a
// small, explicitly-versioned record type owned by exactly one component.
type SyncStatus struct {
	blockHashCheckpoints  []types.Hash // newest first, one per CheckpointInterval, not windowed; TruncateTo drops those above a fork
	lastKnownBlockHashes  []types.Hash // newest first, most recent HashesWindow
	lastKnownBlockHeight  uint64
}

// NewSyncStatus returns an empty SyncStatus, as for a wallet that has never
// synced anything.
func NewSyncStatus() *SyncStatus {
	return &SyncStatus{}
}

// Height is the wallet's current processed height, per invariant 5: the
// wallet's height equals LastKnownBlockHeight.
func (s *SyncStatus) Height() uint64 {
	return s.lastKnownBlockHeight
}

// LastKnownBlockHashes returns the most recent hashes, newest first.
func (s *SyncStatus) LastKnownBlockHashes() []types.Hash {
	out := make([]types.Hash, len(s.lastKnownBlockHashes))
	copy(out, s.lastKnownBlockHashes)
	return out
}

// StoreBlockHash records that height/hash was just processed. height must
// be exactly one more than the current height, unless this is the very
// first recorded height (lastKnownBlockHeight == 0 and no hashes yet).
// Any other relationship means the node skipped a height, or the caller
// repeated one without first calling a fork-removal step (TruncateTo); both
// return ErrGapDetected for the caller to translate as it sees fit.
func (s *SyncStatus) StoreBlockHash(height uint64, hash types.Hash) error {
	if s.lastKnownBlockHeight != 0 || len(s.lastKnownBlockHashes) > 0 {
		if height != s.lastKnownBlockHeight+1 {
			return fmt.Errorf("%w: have height %d, got %d", ErrGapDetected, s.lastKnownBlockHeight, height)
		}
	}
	s.lastKnownBlockHeight = height

	s.lastKnownBlockHashes = append([]types.Hash{hash}, s.lastKnownBlockHashes...)
	if len(s.lastKnownBlockHashes) > types.HashesWindow {
		s.lastKnownBlockHashes = s.lastKnownBlockHashes[:types.HashesWindow]
	}

	if height%types.CheckpointInterval == 0 {
		s.blockHashCheckpoints = append([]types.Hash{hash}, s.blockHashCheckpoints...)
	}
	return nil
}

// TruncateTo discards every recorded hash and checkpoint above height and
// rewinds the recorded height to it, so that a subsequent StoreBlockHash
// call for height+1 commits as an ordinary contiguous block rather than
// tripping ErrGapDetected. Used by the Synchronizer when it detects a fork
// at or below the wallet's current height: the forked tail is rolled back
// before the node's replacement block is applied.
func (s *SyncStatus) TruncateTo(height uint64) {
	if height >= s.lastKnownBlockHeight {
		return
	}

	drop := s.lastKnownBlockHeight - height
	if drop > uint64(len(s.lastKnownBlockHashes)) {
		drop = uint64(len(s.lastKnownBlockHashes))
	}
	s.lastKnownBlockHashes = append([]types.Hash{}, s.lastKnownBlockHashes[drop:]...)

	dropCheckpoints := s.lastKnownBlockHeight/types.CheckpointInterval - height/types.CheckpointInterval
	if dropCheckpoints > uint64(len(s.blockHashCheckpoints)) {
		dropCheckpoints = uint64(len(s.blockHashCheckpoints))
	}
	s.blockHashCheckpoints = append([]types.Hash{}, s.blockHashCheckpoints[dropCheckpoints:]...)

	s.lastKnownBlockHeight = height
}

// ProcessedCheckpoints returns the hashes to present to a node when
// resuming sync: recent hashes first (cheap short-fork detection), then the
// sparse checkpoints (coarse divergence location after a long gap).
func (s *SyncStatus) ProcessedCheckpoints() []types.Hash {
	out := make([]types.Hash, 0, len(s.lastKnownBlockHashes)+len(s.blockHashCheckpoints))
	out = append(out, s.lastKnownBlockHashes...)
	out = append(out, s.blockHashCheckpoints...)
	return out
}

// SyncStatusRecord is the persistence-contract record shape for SyncStatus.
type SyncStatusRecord struct {
	BlockHashCheckpoints []types.Hash `json:"blockHashCheckpoints" msgpack:"blockHashCheckpoints"`
	LastKnownBlockHashes []types.Hash `json:"lastKnownBlockHashes" msgpack:"lastKnownBlockHashes"`
	LastKnownBlockHeight uint64       `json:"lastKnownBlockHeight" msgpack:"lastKnownBlockHeight"`
}

// ToRecord exports s as an opaque, ordering-preserving record.
func (s *SyncStatus) ToRecord() SyncStatusRecord {
	return SyncStatusRecord{
		BlockHashCheckpoints: append([]types.Hash{}, s.blockHashCheckpoints...),
		LastKnownBlockHashes: append([]types.Hash{}, s.lastKnownBlockHashes...),
		LastKnownBlockHeight: s.lastKnownBlockHeight,
	}
}

// SyncStatusFromRecord reconstructs a SyncStatus from a record produced by
// ToRecord, preserving ordering exactly.
func SyncStatusFromRecord(r SyncStatusRecord) *SyncStatus {
	return &SyncStatus{
		blockHashCheckpoints: append([]types.Hash{}, r.BlockHashCheckpoints...),
		lastKnownBlockHashes: append([]types.Hash{}, r.LastKnownBlockHashes...),
		lastKnownBlockHeight: r.LastKnownBlockHeight,
	}
}
