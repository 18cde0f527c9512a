package persist

import (
	"time"

	"github.com/asdine/storm/v3"
	bolt "go.etcd.io/bbolt"
)

// walletRecordRow is the shape actually stored in bolt via storm: an opaque
// msgpack blob keyed by a caller-chosen id, namespaced by kind (so
// SyncStatus and SubWalletRegistry records can share one file without
// colliding).
type walletRecordRow struct {
	ID   string `storm:"id"`
	Kind string `storm:"index"`
	Data []byte
}

// Store is a small opaque-record store wrapping asdine/storm over bbolt,
// fulfilling the specification's "must be able to dump and restore as an
// opaque record" persistence contract concretely. It stores exactly what
// Marshal/Unmarshal produce and consume; it has no knowledge of wallet
// semantics.
type Store struct {
	db *storm.DB
}

// OpenStore opens (creating if necessary) a record store at path.
func OpenStore(path string) (*Store, error) {
	db, err := storm.Open(path, storm.BoltOptions(0600, &bolt.Options{Timeout: 3 * time.Second}))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save marshals record and stores it under (kind, id), overwriting any
// previous value.
func (s *Store) Save(kind, id string, record interface{}) error {
	data, err := Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Save(&walletRecordRow{ID: storeKey(kind, id), Kind: kind, Data: data})
}

// Load retrieves the record previously saved under (kind, id) into out.
func (s *Store) Load(kind, id string, out interface{}) error {
	var row walletRecordRow
	if err := s.db.One("ID", storeKey(kind, id), &row); err != nil {
		return err
	}
	return Unmarshal(row.Data, out)
}

// Delete removes the record stored under (kind, id), if any.
func (s *Store) Delete(kind, id string) error {
	return s.db.DeleteStruct(&walletRecordRow{ID: storeKey(kind, id)})
}

func storeKey(kind, id string) string {
	return kind + ":" + id
}

// ErrNotFound is returned by Load when no record exists under the given key.
var ErrNotFound = storm.ErrNotFound
