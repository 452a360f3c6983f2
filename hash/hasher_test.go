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

package hash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func TestDefaultHasher(t *testing.T) {
	hasher := DefaultHasher()
	key := []byte("tenant/entity")
	assert.Equal(t, xxh3.Hash(key), hasher.HashCode(key))
	assert.Equal(t, hasher.HashCode(key), hasher.HashCode(key))
}

func TestPartitioner(t *testing.T) {
	t.Run("With stable assignment", func(t *testing.T) {
		partitioner := NewPartitioner(8, nil)
		require.Equal(t, 8, partitioner.Partitions())
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("t1/e%d", i)
			partition := partitioner.Partition(key)
			assert.GreaterOrEqual(t, partition, 0)
			assert.Less(t, partition, 8)
			assert.Equal(t, partition, partitioner.Partition(key))
		}
	})
	t.Run("With non positive partitions", func(t *testing.T) {
		partitioner := NewPartitioner(0, DefaultHasher())
		assert.Equal(t, 1, partitioner.Partitions())
		assert.Zero(t, partitioner.Partition("any"))
	})
}
