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
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	gerrors "github.com/cfengine/cfengine/errors"
)

const (
	defaultRedisPrefix = "cf:state:"
	redisScanCount     = 256
)

// RedisStore implements StateStore on top of Redis. Every snapshot is a plain
// string value under prefix+key.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	closed *atomic.Bool
}

// enforce compilation error
var _ StateStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using the given client. The store owns the client
// and closes it on Close. An empty prefix falls back to "cf:state:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, closed: atomic.NewBool(false)}
}

// Ping checks the connection to the Redis server
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Load implements StateStore
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gerrors.NewErrKeyNotFound(key)
		}
		return nil, fmt.Errorf("persistence: redis get %s: %w", key, err)
	}
	return value, nil
}

// Save implements StateStore
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("persistence: redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements StateStore
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("persistence: redis del %s: %w", key, err)
	}
	return nil
}

// Range implements StateStore. Keys are discovered with SCAN so the server is never blocked;
// a key deleted between SCAN and GET is skipped.
func (s *RedisStore) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	iter := s.client.Scan(ctx, 0, s.prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		value, err := s.client.Get(ctx, fullKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("persistence: redis get %s: %w", fullKey, err)
		}
		if !fn(fullKey[len(s.prefix):], value) {
			return nil
		}
	}
	return iter.Err()
}

// Close implements StateStore
func (s *RedisStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return ctx.Err()
}
