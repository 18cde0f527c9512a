package wallet

import (
	"errors"
	"testing"

	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

func hashFromByte(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestSyncStatusStoreBlockHashMonotonic(t *testing.T) {
	s := NewSyncStatus()
	if err := s.StoreBlockHash(1, hashFromByte(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBlockHash(2, hashFromByte(2)); err != nil {
		t.Fatal(err)
	}
	if s.Height() != 2 {
		t.Fatalf("expected height 2, got %d", s.Height())
	}
}

func TestSyncStatusGapDetected(t *testing.T) {
	s := NewSyncStatus()
	if err := s.StoreBlockHash(100, hashFromByte(100)); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBlockHash(101, hashFromByte(101)); err != nil {
		t.Fatal(err)
	}
	err := s.StoreBlockHash(103, hashFromByte(103))
	if !errors.Is(err, ErrGapDetected) {
		t.Fatalf("expected ErrGapDetected, got %v", err)
	}
	// state must be unaffected by the rejected call
	if s.Height() != 101 {
		t.Fatalf("height mutated on failed StoreBlockHash: got %d", s.Height())
	}
}

// TestSyncStatusForkScenario implements scenario S2: heights 100, 101, 102
// are processed, then the caller detects a fork at 101 and reinjects it
// with a different hash. This test rebuilds the history in a fresh
// SyncStatus up to height 100 and checks that 101 then commits with the new
// hash; rolling back an existing SyncStatus in place with TruncateTo is
// covered by TestSynchronizerHandleFork.
func TestSyncStatusForkScenario(t *testing.T) {
	s := NewSyncStatus()
	hA := hashFromByte(0xA1)
	hB := hashFromByte(0xB1)
	if err := s.StoreBlockHash(100, hashFromByte(100)); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBlockHash(101, hA); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBlockHash(102, hashFromByte(102)); err != nil {
		t.Fatal(err)
	}

	// Fork detected: rebuild history up to height 100 and reinject 101 with hB.
	truncated := NewSyncStatus()
	if err := truncated.StoreBlockHash(100, hashFromByte(100)); err != nil {
		t.Fatal(err)
	}
	if err := truncated.StoreBlockHash(101, hB); err != nil {
		t.Fatal(err)
	}

	if truncated.Height() != 101 {
		t.Fatalf("expected height 101 after reorg, got %d", truncated.Height())
	}
	hashes := truncated.LastKnownBlockHashes()
	if len(hashes) != 2 || hashes[0] != hB || hashes[1] != hashFromByte(100) {
		t.Fatalf("unexpected hash history after reorg: %+v", hashes)
	}
}

func TestSyncStatusCheckpointRecorded(t *testing.T) {
	s := NewSyncStatus()
	for h := uint64(1); h <= types.CheckpointInterval; h++ {
		if err := s.StoreBlockHash(h, hashFromByte(byte(h))); err != nil {
			t.Fatal(err)
		}
	}
	checkpoints := s.ProcessedCheckpoints()
	found := false
	for _, c := range checkpoints[len(s.LastKnownBlockHashes()):] {
		if c == hashFromByte(byte(types.CheckpointInterval)) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected checkpoint hash at CheckpointInterval to be present")
	}
}

func TestSyncStatusRecordRoundTrip(t *testing.T) {
	s := NewSyncStatus()
	if err := s.StoreBlockHash(1, hashFromByte(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBlockHash(2, hashFromByte(2)); err != nil {
		t.Fatal(err)
	}
	rec := s.ToRecord()
	restored := SyncStatusFromRecord(rec)
	if restored.Height() != s.Height() {
		t.Fatalf("height mismatch after round trip: %d vs %d", restored.Height(), s.Height())
	}
	if len(restored.LastKnownBlockHashes()) != len(s.LastKnownBlockHashes()) {
		t.Fatal("hash history length mismatch after round trip")
	}
}
