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

package consumer

import (
	"context"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/cfengine/cfengine/errors"
)

func TestMemoryConsumer(t *testing.T) {
	ctx := context.Background()
	partition := Partition{Topic: "telemetry", ID: 0}

	t.Run("With poll and commit", func(t *testing.T) {
		broker := NewMemoryBroker()
		consumer := broker.Consumer("group")
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))

		records, err := consumer.Poll(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, records)

		require.NoError(t, broker.Send(ctx, partition, "a", []byte("1")))
		require.NoError(t, broker.Send(ctx, partition, "b", []byte("2")))
		records, err = consumer.Poll(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.EqualValues(t, 0, records[0].Offset)
		assert.Equal(t, "b", records[1].Key)
		assert.Equal(t, 2, broker.Len(partition))

		// uncommitted records are read again after a new subscription
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))
		records, err = consumer.Poll(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, records, 2)

		require.NoError(t, consumer.Commit(ctx))
		assert.EqualValues(t, 2, broker.Committed("group", partition))
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))
		records, err = consumer.Poll(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
	t.Run("With rollback", func(t *testing.T) {
		broker := NewMemoryBroker()
		consumer := broker.Consumer("group")
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))

		require.NoError(t, broker.Send(ctx, partition, "a", []byte("1")))
		records, err := consumer.Poll(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NoError(t, consumer.Commit(ctx))

		require.NoError(t, broker.Send(ctx, partition, "b", []byte("2")))
		require.NoError(t, broker.Send(ctx, partition, "c", []byte("3")))
		records, err = consumer.Poll(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, records, 2)

		require.NoError(t, consumer.Rollback())
		records, err = consumer.Poll(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "b", records[0].Key)
		assert.EqualValues(t, 1, records[0].Offset)
		assert.EqualValues(t, 1, broker.Committed("group", partition))
	})
	t.Run("With poll woken up by a send", func(t *testing.T) {
		broker := NewMemoryBroker()
		consumer := broker.Consumer("group")
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = broker.Send(ctx, partition, "a", []byte("1"))
		}()
		records, err := consumer.Poll(ctx, 5*time.Second)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
	t.Run("With stop unblocking poll", func(t *testing.T) {
		broker := NewMemoryBroker()
		consumer := broker.Consumer("group")
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))

		done := make(chan struct{})
		go func() {
			defer close(done)
			records, err := consumer.Poll(ctx, time.Minute)
			assert.NoError(t, err)
			assert.Empty(t, records)
		}()

		time.Sleep(20 * time.Millisecond)
		consumer.Stop()
		consumer.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poll was not unblocked")
		}
		assert.True(t, consumer.IsStopped())

		_, err := consumer.Poll(ctx, time.Millisecond)
		require.ErrorIs(t, err, gerrors.ErrConsumerStopped)
		require.ErrorIs(t, consumer.Subscribe(mapset.NewSet(partition)), gerrors.ErrConsumerStopped)
	})
	t.Run("With unsubscribe", func(t *testing.T) {
		broker := NewMemoryBroker()
		consumer := broker.Consumer("group")
		require.NoError(t, consumer.Subscribe(mapset.NewSet(partition)))
		require.NoError(t, consumer.Unsubscribe())
		assert.Zero(t, consumer.Assigned().Cardinality())

		require.NoError(t, broker.Send(ctx, partition, "a", []byte("1")))
		records, err := consumer.Poll(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
