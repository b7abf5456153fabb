// Package storage defines the on-disk key->value contracts that
// blockDB and stateDB are built on, and the error taxonomy around them.
package storage

import "errors"

// ErrNotFound is returned by Get when the requested key has no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrStorage wraps any failure coming out of the underlying store so
// the caller can tell a storage error apart from a validation error.
// Per the error handling design, storage write failures are logged and
// the in-memory head is not advanced; the node stays consistent and
// will re-sync.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// KV is the ordered key->value contract both blockDB and stateDB are
// built on. Keys are always ASCII strings (decimal block numbers, or
// 64 hex account addresses). A byte-wise ordered store such as bbolt
// orders them as strings, which for decimal block numbers of differing
// width is not numeric order.
type KV interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	ForEach(bucket string, fn func(key string, value []byte) error) error
	Close() error
}

// Buckets are the two top level namespaces persisted by the node.
const (
	BucketBlocks   = "blockDB"
	BucketAccounts = "stateDB"
)
