package wallet

import "github.com/kryptokrona/kryptokrona-walletcore-go/types"

// WalletFileFormatVersion is bumped whenever WalletRecord's shape changes in
// a way FromRecord cannot transparently upgrade.
const WalletFileFormatVersion = 0

// WalletRecord is the top-level persistence-contract record: everything
// needed to fully reconstruct a running Wallet's in-memory state, distinct
// from (and deliberately simpler than) the encrypted on-disk wallet file
// format, which additionally carries a KDF/cipher envelope around this
// record's bytes.
type WalletRecord struct {
	FileFormatVersion int                `msgpack:"fileFormatVersion"`
	StartHeight       uint64             `msgpack:"startHeight"`
	StartTimestamp    uint64             `msgpack:"startTimestamp"`
	PrivateViewKey    types.Key          `msgpack:"privateViewKey"`
	SyncStatus        SyncStatusRecord   `msgpack:"syncStatus"`
	SubWallets        []SubWalletRecord  `msgpack:"subWallets"`
}

// ToRecord captures w's entire persisted state.
func (w *Wallet) ToRecord() WalletRecord {
	snap := w.registry.Snapshot()
	return WalletRecord{
		FileFormatVersion: WalletFileFormatVersion,
		StartHeight:       w.startHeight,
		StartTimestamp:    w.startTimestamp,
		PrivateViewKey:    w.privateViewKey,
		SyncStatus:        w.sync.Status().ToRecord(),
		SubWallets:        snap.SubWallets,
	}
}

// RestoreFromRecord replaces w's registry and sync status with the state
// described by rec. The caller is responsible for checking
// rec.FileFormatVersion is one this build understands before calling it.
func (w *Wallet) RestoreFromRecord(rec WalletRecord) {
	w.startHeight = rec.StartHeight
	w.startTimestamp = rec.StartTimestamp
	w.privateViewKey = rec.PrivateViewKey
	w.sync.SetPrivateViewKey(rec.PrivateViewKey)
	w.builder.SetPrivateViewKey(rec.PrivateViewKey)
	w.registry.RestoreSnapshot(RegistrySnapshot{SubWallets: rec.SubWallets})
	*w.sync.Status() = *SyncStatusFromRecord(rec.SyncStatus)
}
