// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package persistence

import (
	"context"
	"fmt"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	gerrors "github.com/cfengine/cfengine/errors"
)

const (
	boltFileMode       os.FileMode = 0o600
	defaultBoltBucket              = "cf_states"
	defaultBoltTimeout             = 5 * time.Second
)

// BoltStore implements StateStore on top of go.etcd.io/bbolt.
//
// bbolt provides single-writer/multi-reader semantics, so only the close state is guarded here.
// The database is opened with a short timeout to avoid blocking on a file locked by another process.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
	path   string
	closed *atomic.Bool
}

// enforce compilation error
var _ StateStore = (*BoltStore)(nil)

// BoltOption configures a BoltStore
type BoltOption func(*boltConfig)

type boltConfig struct {
	bucket  string
	timeout time.Duration
}

// WithBoltBucket sets the bucket holding the snapshots
func WithBoltBucket(bucket string) BoltOption {
	return func(c *boltConfig) { c.bucket = bucket }
}

// WithBoltTimeout sets how long opening the file waits for its lock
func WithBoltTimeout(timeout time.Duration) BoltOption {
	return func(c *boltConfig) { c.timeout = timeout }
}

// NewBoltStore opens (or creates) the BoltDB file at path.
func NewBoltStore(path string, opts ...BoltOption) (*BoltStore, error) {
	config := &boltConfig{bucket: defaultBoltBucket, timeout: defaultBoltTimeout}
	for _, opt := range opts {
		opt(config)
	}

	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: config.timeout, NoGrowSync: true})
	if err != nil {
		return nil, fmt.Errorf("persistence: opening boltdb: %w", err)
	}

	bucket := []byte(config.bucket)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: initializing boltdb bucket: %w", err)
	}

	return &BoltStore{db: db, bucket: bucket, path: path, closed: atomic.NewBool(false)}, nil
}

// Load implements StateStore
func (s *BoltStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := s.lookup(tx)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return gerrors.NewErrKeyNotFound(key)
		}
		// raw is only valid for the lifetime of the transaction
		value = cloneBytes(raw)
		return nil
	})
	return value, err
}

// Save implements StateStore
func (s *BoltStore) Save(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := s.lookup(tx)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

// Delete implements StateStore
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := s.lookup(tx)
		if err != nil {
			return err
		}
		return bucket.Delete([]byte(key))
	})
}

// Range implements StateStore. Entries are visited in key order.
func (s *BoltStore) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	type entry struct {
		key   string
		value []byte
	}

	// collect first so fn may write to the store without deadlocking on the read transaction
	var entries []entry
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := s.lookup(tx)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			entries = append(entries, entry{key: string(k), value: cloneBytes(v)})
			return nil
		})
	}); err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(e.key, e.value) {
			return nil
		}
	}
	return nil
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

// Close implements StateStore. The database file is kept.
func (s *BoltStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) lookup(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(s.bucket)
	if bucket == nil {
		return nil, fmt.Errorf("persistence: bucket %q missing", s.bucket)
	}
	return bucket, nil
}

func (s *BoltStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return ctx.Err()
}
