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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
	"github.com/cfengine/cfengine/supervisor"
)

func newTestSystem(t *testing.T, factory Factory, opts ...Option) *System {
	t.Helper()
	opts = append([]Option{WithLogger(log.DiscardLogger)}, opts...)
	system, err := NewSystem("test", factory, opts...)
	require.NoError(t, err)
	require.NoError(t, system.Start(context.Background()))
	t.Cleanup(func() { _ = system.Stop(context.Background()) })
	return system
}

func TestNewSystem(t *testing.T) {
	t.Run("With invalid settings", func(t *testing.T) {
		_, err := NewSystem("", nil, WithMailboxSize(-1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the [name] is required")
		assert.Contains(t, err.Error(), "the [factory] is required")
		assert.Contains(t, err.Error(), "the [mailboxSize] must not be negative")
	})
	t.Run("With eviction but no interval", func(t *testing.T) {
		_, err := NewSystem("test", newMockFactory().Factory,
			WithIdleTimeout(time.Second), WithEvictionInterval(0))
		require.Error(t, err)
	})
	t.Run("With messages before start", func(t *testing.T) {
		system, err := NewSystem("test", newMockFactory().Factory, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		err = system.Tell(context.Background(), telemetry(entity.NewRandomKey(), "t", 1))
		require.ErrorIs(t, err, gerrors.ErrSystemNotStarted)
	})
}

func TestTell(t *testing.T) {
	t.Run("With per entity ordering", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory)

		keys := []entity.Key{entity.NewRandomKey(), entity.NewRandomKey()}
		for i := int64(0); i < 200; i++ {
			for _, key := range keys {
				require.NoError(t, system.Tell(ctx, telemetry(key, "t", i)))
			}
		}

		for _, key := range keys {
			result, err := system.Ask(ctx, telemetry(key, "t", 200))
			require.NoError(t, err)
			require.Equal(t, Handled, result)

			timestamps := factory.latest(key).timestamps()
			require.Len(t, timestamps, 201)
			for i, ts := range timestamps {
				require.EqualValues(t, i, ts)
			}
		}
		assert.Equal(t, 2, system.ActorsCount())
		assert.EqualValues(t, 2, factory.created.Load())
	})
	t.Run("With concurrent first messages spawning a single actor", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(ts int64) {
				defer wg.Done()
				assert.NoError(t, system.Tell(ctx, telemetry(key, "t", ts)))
			}(int64(i))
		}
		wg.Wait()

		_, err := system.Ask(ctx, telemetry(key, "t", 50))
		require.NoError(t, err)
		assert.EqualValues(t, 1, factory.created.Load())
		assert.Len(t, factory.latest(key).timestamps(), 51)
	})
	t.Run("With one message at a time under concurrent senders", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		factory.pause = time.Millisecond
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		const senders, perSender = 8, 25
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func(sender int64) {
				defer wg.Done()
				for j := int64(0); j < perSender; j++ {
					assert.NoError(t, system.Tell(ctx, telemetry(key, "t", sender*perSender+j)))
				}
			}(int64(i))
		}
		wg.Wait()

		_, err := system.Ask(ctx, telemetry(key, "t", senders*perSender))
		require.NoError(t, err)
		assert.Len(t, factory.latest(key).timestamps(), senders*perSender+1)
		assert.EqualValues(t, 1, factory.peak.Load())
		assert.Zero(t, factory.inflight.Load())
	})
	t.Run("With init failure", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		factory.preStart = errBoom
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		err := system.Tell(ctx, telemetry(key, "t", 1))
		require.ErrorIs(t, err, gerrors.ErrInitFailure)
		require.ErrorIs(t, err, errBoom)

		_, ok := system.Actor(key)
		assert.False(t, ok)
		assert.Zero(t, system.ActorsCount())
		assert.Empty(t, factory.latest(key).timestamps())
		assert.Zero(t, factory.stopped.Load())
	})
	t.Run("With invalid messages", func(t *testing.T) {
		system := newTestSystem(t, newMockFactory().Factory)
		require.ErrorIs(t, system.Tell(context.Background(), nil), gerrors.ErrInvalidMessage)
		require.ErrorIs(t, system.Tell(context.Background(), telemetry(entity.Key{}, "t", 1)), gerrors.ErrInvalidMessage)
	})
	t.Run("With a full mailbox", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		factory.blockOn = make(chan struct{})
		factory.started = make(chan struct{}, 3)
		system := newTestSystem(t, factory.Factory, WithMailboxSize(1))
		key := entity.NewRandomKey()

		require.NoError(t, system.Tell(ctx, telemetry(key, "t", 1)))
		<-factory.started
		require.NoError(t, system.Tell(ctx, telemetry(key, "t", 2)))
		require.ErrorIs(t, system.Tell(ctx, telemetry(key, "t", 3)), gerrors.ErrMailboxFull)

		pid, ok := system.Actor(key)
		require.True(t, ok)
		close(factory.blockOn)
		require.Eventually(t, func() bool {
			return pid.MailboxSize() == 0
		}, time.Second, 10*time.Millisecond)

		result, err := system.Ask(ctx, telemetry(key, "t", 4))
		require.NoError(t, err)
		require.Equal(t, Handled, result)
		assert.Equal(t, []int64{1, 2, 4}, factory.latest(key).timestamps())
	})
}

func TestAsk(t *testing.T) {
	t.Run("With declined message and no fallback", func(t *testing.T) {
		ctx := context.Background()
		system := newTestSystem(t, newMockFactory().Factory)
		key := entity.NewRandomKey()

		result, err := system.Ask(ctx, message.NewEntityLifecycleMsg(key, message.LifecycleUpdated))
		require.NoError(t, err)
		assert.Equal(t, Declined, result)
		assert.EqualValues(t, 1, system.DeadLetters())
	})
	t.Run("With fallback chain", func(t *testing.T) {
		ctx := context.Background()
		calls := make([]string, 0)
		decline := func(rctx *ReceiveContext) {
			calls = append(calls, "decline")
			rctx.Unhandled()
		}
		accept := func(rctx *ReceiveContext) {
			calls = append(calls, "accept")
		}
		never := func(rctx *ReceiveContext) {
			calls = append(calls, "never")
		}
		system := newTestSystem(t, newMockFactory().Factory, WithFallback(decline, accept, never))

		result, err := system.Ask(ctx, message.NewEntityLifecycleMsg(entity.NewRandomKey(), message.LifecycleDeleted))
		require.NoError(t, err)
		assert.Equal(t, Handled, result)
		assert.Equal(t, []string{"decline", "accept"}, calls)
		assert.Zero(t, system.DeadLetters())
	})
	t.Run("With fault resumed by default", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		require.NoError(t, system.Tell(ctx, telemetry(key, "t", 1)))
		result, err := system.Ask(ctx, telemetry(key, "fail", 2))
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, Faulted, result)

		result, err = system.Ask(ctx, telemetry(key, "t", 3))
		require.NoError(t, err)
		assert.Equal(t, Handled, result)
		assert.EqualValues(t, 1, factory.created.Load())
		assert.Equal(t, []int64{1, 3}, factory.latest(key).timestamps())
	})
	t.Run("With context done", func(t *testing.T) {
		factory := newMockFactory()
		factory.blockOn = make(chan struct{})
		system := newTestSystem(t, factory.Factory)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := system.Ask(ctx, telemetry(entity.NewRandomKey(), "t", 1))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		close(factory.blockOn)
	})
}

func TestSupervision(t *testing.T) {
	t.Run("With panic restarting the actor", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		require.NoError(t, system.Tell(ctx, telemetry(key, "t", 1)))
		result, err := system.Ask(ctx, telemetry(key, "panic", 2))
		assert.Equal(t, Faulted, result)
		var panicErr *gerrors.PanicError
		require.ErrorAs(t, err, &panicErr)

		result, err = system.Ask(ctx, telemetry(key, "t", 3))
		require.NoError(t, err)
		assert.Equal(t, Handled, result)
		assert.EqualValues(t, 2, factory.created.Load())
		assert.EqualValues(t, 1, factory.stopped.Load())
		assert.Equal(t, []int64{3}, factory.latest(key).timestamps())

		pid, ok := system.Actor(key)
		require.True(t, ok)
		assert.EqualValues(t, 0, pid.RestartCount())
	})
	t.Run("With bounded restarts", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory,
			WithSupervisor(supervisor.NewSupervisor(
				supervisor.WithAnyErrorDirective(supervisor.RestartDirective),
				supervisor.WithRetry(1, time.Minute))))
		key := entity.NewRandomKey()

		_, err := system.Ask(ctx, telemetry(key, "fail", 1))
		require.ErrorIs(t, err, errBoom)
		pid, ok := system.Actor(key)
		require.True(t, ok)
		assert.EqualValues(t, 1, pid.RestartCount())

		_, err = system.Ask(ctx, telemetry(key, "fail", 2))
		require.ErrorIs(t, err, errBoom)

		<-pid.Done()
		assert.Equal(t, Failed, pid.State())
		_, ok = system.Actor(key)
		assert.False(t, ok)
	})
	t.Run("With stop directive", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory,
			WithSupervisor(supervisor.NewSupervisor(supervisor.WithDirective(errBoom, supervisor.StopDirective))))
		key := entity.NewRandomKey()

		_, err := system.Ask(ctx, telemetry(key, "fail", 1))
		require.ErrorIs(t, err, errBoom)

		pid, ok := system.Actor(key)
		if ok {
			<-pid.Done()
			assert.Equal(t, Stopped, pid.State())
		}
		assert.EqualValues(t, 1, factory.stopped.Load())

		// the next message brings up a new actor
		result, err := system.Ask(ctx, telemetry(key, "t", 2))
		require.NoError(t, err)
		assert.Equal(t, Handled, result)
		assert.EqualValues(t, 2, factory.created.Load())
	})
}

func TestIdleEviction(t *testing.T) {
	ctx := context.Background()
	factory := newMockFactory()
	system := newTestSystem(t, factory.Factory,
		WithIdleTimeout(100*time.Millisecond),
		WithEvictionInterval(50*time.Millisecond))
	key := entity.NewRandomKey()

	require.NoError(t, system.Tell(ctx, telemetry(key, "t", 1)))
	require.Eventually(t, func() bool {
		return system.ActorsCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 1, system.EvictedCount())
	assert.EqualValues(t, 1, factory.stopped.Load())

	// a new message spawns the actor again
	_, err := system.Ask(ctx, telemetry(key, "t", 2))
	require.NoError(t, err)
	assert.EqualValues(t, 2, factory.created.Load())
}

func TestStop(t *testing.T) {
	t.Run("With mailboxes drained", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system, err := NewSystem("test", factory.Factory, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, system.Start(ctx))

		keys := []entity.Key{entity.NewRandomKey(), entity.NewRandomKey(), entity.NewRandomKey()}
		for i := int64(0); i < 100; i++ {
			for _, key := range keys {
				require.NoError(t, system.Tell(ctx, telemetry(key, "t", i)))
			}
		}

		require.NoError(t, system.Stop(ctx))
		for _, key := range keys {
			assert.Len(t, factory.latest(key).timestamps(), 100)
		}
		assert.EqualValues(t, 3, factory.stopped.Load())
		assert.Zero(t, system.ActorsCount())

		require.ErrorIs(t, system.Tell(ctx, telemetry(keys[0], "t", 1)), gerrors.ErrSystemShuttingDown)
		require.NoError(t, system.Stop(ctx))
	})
	t.Run("With a single actor", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory)
		key := entity.NewRandomKey()

		require.ErrorIs(t, system.StopActor(ctx, key), gerrors.ErrActorNotFound)
		require.NoError(t, system.Tell(ctx, telemetry(key, "t", 1)))
		require.NoError(t, system.StopActor(ctx, key))
		assert.Zero(t, system.ActorsCount())
		assert.Equal(t, []int64{1}, factory.actors[key][0].timestamps())
	})
	t.Run("With self stop from a fallback", func(t *testing.T) {
		ctx := context.Background()
		factory := newMockFactory()
		system := newTestSystem(t, factory.Factory, WithFallback(func(rctx *ReceiveContext) {
			rctx.Stop()
		}))
		key := entity.NewRandomKey()

		pidReady, err := system.Ask(ctx, telemetry(key, "t", 1))
		require.NoError(t, err)
		require.Equal(t, Handled, pidReady)
		pid, ok := system.Actor(key)
		require.True(t, ok)

		result, err := system.Ask(ctx, message.NewEntityLifecycleMsg(key, message.LifecycleDeleted))
		require.NoError(t, err)
		assert.Equal(t, Handled, result)
		<-pid.Done()
		assert.Equal(t, Stopped, pid.State())
	})
}

func TestSystemMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	system := newTestSystem(t, newMockFactory().Factory, WithMeterProvider(provider))
	key := entity.NewRandomKey()
	for i := int64(0); i < 3; i++ {
		_, err := system.Ask(ctx, telemetry(key, "t", i))
		require.NoError(t, err)
	}
	_, err := system.Ask(ctx, message.NewEntityLifecycleMsg(key, message.LifecycleUpdated))
	require.NoError(t, err)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &data))
	values := make(map[string]int64)
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					values[m.Name] += point.Value
				}
			}
		}
	}
	assert.EqualValues(t, 3, values["cf_actor_processed_count"])
	assert.EqualValues(t, 1, values["cf_actor_declined_count"])
	assert.EqualValues(t, 1, values["cf_actor_active_count"])
}
