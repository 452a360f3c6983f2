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
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/cfengine/cfengine/errors"
)

// MemoryStore keeps the snapshots in memory.
// It is meant for tests and single node deployments that can afford to lose state.
type MemoryStore struct {
	mu     sync.RWMutex
	cache  map[string][]byte
	closed *atomic.Bool
}

// enforce compilation error
var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new instance of MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache:  make(map[string][]byte),
		closed: atomic.NewBool(false),
	}
}

// Load implements StateStore
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	value, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		return nil, gerrors.NewErrKeyNotFound(key)
	}
	return cloneBytes(value), nil
}

// Save implements StateStore
func (s *MemoryStore) Save(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[key] = cloneBytes(value)
	s.mu.Unlock()
	return nil
}

// Delete implements StateStore
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// Range implements StateStore. fn runs on a copy so it may call back into the store.
func (s *MemoryStore) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := make(map[string][]byte, len(s.cache))
	for key, value := range s.cache {
		snapshot[key] = cloneBytes(value)
	}
	s.mu.RUnlock()

	for key, value := range snapshot {
		if !fn(key, value) {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored snapshots
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Close implements StateStore
func (s *MemoryStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return ctx.Err()
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
