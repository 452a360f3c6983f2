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

package actor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/message"
)

func TestUnboundedMailbox(t *testing.T) {
	t.Run("With FIFO order", func(t *testing.T) {
		mailbox := NewUnboundedMailbox()
		assert.True(t, mailbox.IsEmpty())
		assert.Nil(t, mailbox.Dequeue())

		key := entity.NewRandomKey()
		for i := int64(0); i < 10; i++ {
			require.NoError(t, mailbox.Enqueue(newReceiveContext(context.Background(), telemetry(key, "t", i), false)))
		}
		assert.EqualValues(t, 10, mailbox.Len())

		for i := int64(0); i < 10; i++ {
			rctx := mailbox.Dequeue()
			require.NotNil(t, rctx)
			assert.Equal(t, i, rctx.Message().(*message.EntityTelemetryMsg).Entries[0].Ts)
		}
		assert.True(t, mailbox.IsEmpty())
	})
	t.Run("With concurrent producers", func(t *testing.T) {
		mailbox := NewUnboundedMailbox()
		key := entity.NewRandomKey()

		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = mailbox.Enqueue(newReceiveContext(context.Background(), telemetry(key, "t", int64(i)), false))
				}
			}()
		}
		wg.Wait()

		count := 0
		for rctx := mailbox.Dequeue(); rctx != nil; rctx = mailbox.Dequeue() {
			count++
		}
		assert.Equal(t, 800, count)
		assert.Zero(t, mailbox.Len())
	})
}

func TestBoundedMailbox(t *testing.T) {
	mailbox := NewBoundedMailbox(2)
	t.Cleanup(mailbox.Dispose)
	assert.EqualValues(t, 2, mailbox.Cap())
	assert.Nil(t, mailbox.Dequeue())

	key := entity.NewRandomKey()
	first := newReceiveContext(context.Background(), telemetry(key, "t", 1), false)
	require.NoError(t, mailbox.Enqueue(first))
	require.NoError(t, mailbox.Enqueue(newReceiveContext(context.Background(), telemetry(key, "t", 2), false)))
	require.ErrorIs(t, mailbox.Enqueue(newReceiveContext(context.Background(), telemetry(key, "t", 3), false)), gerrors.ErrMailboxFull)
	assert.EqualValues(t, 2, mailbox.Len())

	assert.Same(t, first, mailbox.Dequeue())
	require.NoError(t, mailbox.Enqueue(newReceiveContext(context.Background(), telemetry(key, "t", 4), false)))
	assert.False(t, mailbox.IsEmpty())
}
