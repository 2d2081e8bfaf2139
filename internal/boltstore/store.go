// Package boltstore persists JSON-encoded records in a bbolt bucket.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	bolt "go.etcd.io/bbolt"
)

// Store provides type-safe key-value storage
type Store[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	Set(ctx context.Context, key string, value *T) error
	Delete(ctx context.Context, key string) error
	// Scan visits every key with the given prefix in ascending key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value *T) error) error
	Close() error
}

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errdefs.ErrNotFound

// openTimeout bounds the wait for another process holding the file lock.
const openTimeout = 5 * time.Second

// BoltStore is a bbolt-backed Store[T]. Stores opened on the same path share
// one *bolt.DB; the file is closed with the last of them.
type BoltStore[T any] struct {
	path   string
	db     *bolt.DB
	bucket []byte
}

var (
	openDBs = make(map[string]*refDB)
	openMu  sync.Mutex
)

type refDB struct {
	db   *bolt.DB
	refs int
}

// NewBoltStore opens (creating if needed) the database at dbPath and the
// named bucket inside it.
func NewBoltStore[T any](dbPath string, bucketName string) (Store[T], error) {
	openMu.Lock()
	defer openMu.Unlock()

	rdb, ok := openDBs[dbPath]
	if !ok {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		db, err := bolt.Open(dbPath, 0o600, &bolt.Options{
			Timeout:      openTimeout,
			FreelistType: bolt.FreelistMapType,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", dbPath, err)
		}
		rdb = &refDB{db: db}
		openDBs[dbPath] = rdb
	}

	err := rdb.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		if rdb.refs == 0 {
			rdb.db.Close()
			delete(openDBs, dbPath)
		}
		return nil, fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	rdb.refs++

	return &BoltStore[T]{path: dbPath, db: rdb.db, bucket: []byte(bucketName)}, nil
}

func (s *BoltStore[T]) bucketOf(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(s.bucket)
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", s.bucket)
	}
	return b, nil
}

// Get retrieves a value by key
func (s *BoltStore[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value T
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &value)
	})
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Set stores a value by key
func (s *BoltStore[T]) Set(ctx context.Context, key string, value *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a value by key. Deleting a missing key is not an error.
func (s *BoltStore[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// Scan iterates over all keys with the given prefix
func (s *BoltStore[T]) Scan(ctx context.Context, prefix string, fn func(key string, value *T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var value T
			if err := json.Unmarshal(v, &value); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			if err := fn(string(k), &value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases this store's reference to the database.
func (s *BoltStore[T]) Close() error {
	openMu.Lock()
	defer openMu.Unlock()

	rdb, ok := openDBs[s.path]
	if !ok || rdb.db != s.db {
		return nil
	}
	rdb.refs--
	if rdb.refs > 0 {
		return nil
	}
	delete(openDBs, s.path)
	return rdb.db.Close()
}
