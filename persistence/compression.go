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

	"github.com/klauspost/compress/zstd"
	"go.uber.org/atomic"
)

// compressedStore compresses the snapshots of the underlying store with zstd
type compressedStore struct {
	underlying StateStore
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
	closed     *atomic.Bool
}

// enforce compilation error
var _ StateStore = (*compressedStore)(nil)

// WithCompression wraps the given store so that snapshots are zstd compressed at rest.
// The wrapped store must only ever contain compressed values.
func WithCompression(store StateStore) (StateStore, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("persistence: creating zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("persistence: creating zstd decoder: %w", err)
	}

	return &compressedStore{
		underlying: store,
		encoder:    encoder,
		decoder:    decoder,
		closed:     atomic.NewBool(false),
	}, nil
}

// Load implements StateStore
func (s *compressedStore) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.underlying.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.decode(key, raw)
}

// Save implements StateStore
func (s *compressedStore) Save(ctx context.Context, key string, value []byte) error {
	return s.underlying.Save(ctx, key, s.encoder.EncodeAll(value, nil))
}

// Delete implements StateStore
func (s *compressedStore) Delete(ctx context.Context, key string) error {
	return s.underlying.Delete(ctx, key)
}

// Range implements StateStore. A value that cannot be decompressed stops the iteration with an error.
func (s *compressedStore) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	var decodeErr error
	err := s.underlying.Range(ctx, func(key string, raw []byte) bool {
		value, err := s.decode(key, raw)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// Close implements StateStore
func (s *compressedStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.decoder.Close()
	_ = s.encoder.Close()
	return s.underlying.Close()
}

func (s *compressedStore) decode(key string, raw []byte) ([]byte, error) {
	value, err := s.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: decompressing %s: %w", key, err)
	}
	return value, nil
}
