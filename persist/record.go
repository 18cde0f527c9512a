// Package persist implements the specification's persistence contract: the
// core must be able to dump and restore an opaque record for SyncStatus,
// the SubWalletRegistry and the top-level wallet as msgpack bytes, and
// optionally keep those records in a local store across restarts. The
// on-disk *encrypted wallet file* format (PBKDF2 + AES-128-CBC, magic
// prefixes) is explicitly out of core scope; this package stops at producing
// and consuming plain opaque bytes.
package persist

import "github.com/vmihailenco/msgpack/v5"

// Marshal encodes any record value (typically the output of a component's
// ToRecord method) to the core's opaque byte representation.
func Marshal(record interface{}) ([]byte, error) {
	return msgpack.Marshal(record)
}

// Unmarshal decodes bytes previously produced by Marshal into out, which
// must be a pointer to the same record shape.
func Unmarshal(data []byte, out interface{}) error {
	return msgpack.Unmarshal(data, out)
}
