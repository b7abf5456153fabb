package storage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltKV backs both blockDB and stateDB with a single embedded bbolt
// file, one bucket per store, replacing the teacher's flat-file
// Serializer with a real embedded KV store — grounded on the `mycoin`
// pack member's use of bbolt for exactly this shape of problem.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) the bbolt file at path and
// ensures the block and account buckets exist.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &ErrStorage{Op: "open", Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketBlocks)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketAccounts)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &ErrStorage{Op: "init buckets", Err: err}
	}

	return &BoltKV{db: db}, nil
}

// Get returns the value stored at bucket/key, or ErrNotFound.
func (b *BoltKV) Get(bucket, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return fmt.Errorf("bucket %q does not exist", bucket)
		}
		v := bkt.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, &ErrStorage{Op: "get", Err: err}
	}
	return out, nil
}

// Put writes value at bucket/key, creating the bucket if needed.
func (b *BoltKV) Put(bucket, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(key), value)
	})
	if err != nil {
		return &ErrStorage{Op: "put", Err: err}
	}
	return nil
}

// Delete removes bucket/key, a no-op if it does not exist.
func (b *BoltKV) Delete(bucket, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		return bkt.Delete([]byte(key))
	})
	if err != nil {
		return &ErrStorage{Op: "delete", Err: err}
	}
	return nil
}

// ForEach visits every key/value pair in bucket in byte-wise key
// order. canon.Uint keys are not zero-padded, so blockDB keys do not
// iterate in numeric order ("10" comes before "2"); callers that need
// numeric order parse the keys themselves.
func (b *BoltKV) ForEach(bucket string, fn func(key string, value []byte) error) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			return fn(string(k), append([]byte{}, v...))
		})
	})
	if err != nil {
		return &ErrStorage{Op: "foreach", Err: err}
	}
	return nil
}

// Close releases the underlying bbolt file handle.
func (b *BoltKV) Close() error {
	return b.db.Close()
}
