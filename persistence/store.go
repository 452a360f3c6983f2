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


// Package persistence holds the stores used to persist calculated field state snapshots.
package persistence

import (
	"context"
)

// StateStore persists processor state snapshots keyed by entity.
//
// Implementations must be safe for concurrent use: every entity actor saves its own
// snapshot from its own goroutine.
type StateStore interface {
	// Load returns the snapshot stored under key.
	// Returns errors.ErrKeyNotFound when no snapshot exists.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save inserts or replaces the snapshot stored under key.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes the snapshot stored under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	// Range calls fn for every stored snapshot until fn returns false.
	// The order is implementation defined.
	Range(ctx context.Context, fn func(key string, value []byte) bool) error
	// Close releases the store resources. A closed store returns errors.ErrStoreClosed.
	Close() error
}
