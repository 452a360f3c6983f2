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

package calculatedfield

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/cfengine/cfengine/actor"
	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
	"github.com/cfengine/cfengine/persistence"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errProcessing = errors.New("processing failed")

type mockProcessor struct {
	mu      sync.Mutex
	initErr error
	failOn  message.MsgType
	calls   []message.MsgType
	closed  bool
}

var _ Processor = (*mockProcessor)(nil)

func (p *mockProcessor) Init(context.Context) error {
	return p.initErr
}

func (p *mockProcessor) RestoreState(_ context.Context, msg *message.StateRestoreMsg) error {
	return p.record(msg)
}

func (p *mockProcessor) ProcessTelemetry(_ context.Context, msg *message.EntityTelemetryMsg) error {
	return p.record(msg)
}

func (p *mockProcessor) ProcessLinkedTelemetry(_ context.Context, msg *message.LinkedTelemetryMsg) error {
	return p.record(msg)
}

func (p *mockProcessor) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *mockProcessor) record(msg message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, msg.MsgType())
	if msg.MsgType() == p.failOn {
		return errProcessing
	}
	return nil
}

func (p *mockProcessor) received() []message.MsgType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]message.MsgType, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *mockProcessor) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// gatedProcessor holds its first telemetry until released
type gatedProcessor struct {
	*mockProcessor
	once    sync.Once
	blocked chan struct{}
	release chan struct{}
}

func newGatedProcessor() *gatedProcessor {
	return &gatedProcessor{
		mockProcessor: &mockProcessor{},
		blocked:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (p *gatedProcessor) ProcessTelemetry(ctx context.Context, msg *message.EntityTelemetryMsg) error {
	p.once.Do(func() {
		close(p.blocked)
		<-p.release
	})
	return p.mockProcessor.ProcessTelemetry(ctx, msg)
}

// tracingProcessor records a trace of its calls and the highest number of
// calls it has seen running at the same time
type tracingProcessor struct {
	mu       sync.Mutex
	trace    []string
	inflight *atomic.Int32
	peak     *atomic.Int32
}

func newTracingProcessor() *tracingProcessor {
	return &tracingProcessor{inflight: atomic.NewInt32(0), peak: atomic.NewInt32(0)}
}

func (p *tracingProcessor) Init(context.Context) error { return nil }

func (p *tracingProcessor) RestoreState(_ context.Context, msg *message.StateRestoreMsg) error {
	p.enter(fmt.Sprintf("restore(%s)", msg.Snapshot))
	return nil
}

func (p *tracingProcessor) ProcessTelemetry(_ context.Context, msg *message.EntityTelemetryMsg) error {
	for _, entry := range msg.Entries {
		p.enter(fmt.Sprintf("process(%d,%g)", entry.Ts, entry.Value))
	}
	return nil
}

func (p *tracingProcessor) ProcessLinkedTelemetry(_ context.Context, msg *message.LinkedTelemetryMsg) error {
	for _, entry := range msg.Entries {
		p.enter(fmt.Sprintf("process(%d,%g,from=%s)", entry.Ts, entry.Value, msg.SourceID))
	}
	return nil
}

func (p *tracingProcessor) Close() error { return nil }

func (p *tracingProcessor) enter(call string) {
	current := p.inflight.Inc()
	defer p.inflight.Dec()
	for {
		peak := p.peak.Load()
		if current <= peak || p.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.trace = append(p.trace, call)
	p.mu.Unlock()
}

func (p *tracingProcessor) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.trace))
	copy(out, p.trace)
	return out
}

func newActorSystem(t *testing.T, processor Processor) *actor.System {
	t.Helper()
	return newActorSystemWith(t, &SystemContext{
		Logger:   log.DiscardLogger,
		Registry: NewMemoryRegistry(),
		Sink:     NewMemorySink(),
		ProcessorFactory: func(*SystemContext, entity.Key) (Processor, error) {
			return processor, nil
		},
	})
}

func newActorSystemWith(t *testing.T, sctx *SystemContext, opts ...actor.Option) *actor.System {
	t.Helper()
	require.NoError(t, sctx.Validate())

	opts = append([]actor.Option{actor.WithLogger(log.DiscardLogger)}, opts...)
	system, err := actor.NewSystem("calculated-fields", NewActorFactory(sctx), opts...)
	require.NoError(t, err)
	require.NoError(t, system.Start(context.Background()))
	t.Cleanup(func() { _ = system.Stop(context.Background()) })
	return system
}

func TestNewEntityActor(t *testing.T) {
	sctx := &SystemContext{Logger: log.DiscardLogger}
	t.Run("With nil system context", func(t *testing.T) {
		_, err := NewEntityActor(nil, uuid.New(), uuid.New())
		require.ErrorIs(t, err, gerrors.ErrInvalidEntity)
	})
	t.Run("With missing ids", func(t *testing.T) {
		_, err := NewEntityActor(sctx, uuid.Nil, uuid.New())
		require.ErrorIs(t, err, gerrors.ErrInvalidEntity)
		_, err = NewEntityActor(sctx, uuid.New(), uuid.Nil)
		require.ErrorIs(t, err, gerrors.ErrInvalidEntity)
	})
	t.Run("With valid ids", func(t *testing.T) {
		tenantID, entityID := uuid.New(), uuid.New()
		entityActor, err := NewEntityActor(sctx, tenantID, entityID)
		require.NoError(t, err)
		assert.Equal(t, entity.NewKey(tenantID, entityID), entityActor.Key())
		require.NoError(t, entityActor.PostStop(context.Background()))
	})
}

func TestEntityActor(t *testing.T) {
	t.Run("With messages delivered in order", func(t *testing.T) {
		ctx := context.Background()
		processor := &mockProcessor{}
		system := newActorSystem(t, processor)
		key := entity.NewRandomKey()

		sent := []message.Message{
			message.NewStateRestoreMsg(key, nil),
			message.NewEntityTelemetryMsg(key),
			message.NewLinkedTelemetryMsg(key, uuid.New()),
			message.NewEntityTelemetryMsg(key),
		}
		for _, msg := range sent {
			require.NoError(t, system.Tell(ctx, msg))
		}
		result, err := system.Ask(ctx, message.NewLinkedTelemetryMsg(key, uuid.New()))
		require.NoError(t, err)
		require.Equal(t, actor.Handled, result)

		assert.Equal(t, []message.MsgType{
			message.MsgTypeStateRestore,
			message.MsgTypeEntityTelemetry,
			message.MsgTypeLinkedTelemetry,
			message.MsgTypeEntityTelemetry,
			message.MsgTypeLinkedTelemetry,
		}, processor.received())
	})
	t.Run("With init failure", func(t *testing.T) {
		ctx := context.Background()
		processor := &mockProcessor{initErr: errProcessing}
		system := newActorSystem(t, processor)
		key := entity.NewRandomKey()

		err := system.Tell(ctx, message.NewEntityTelemetryMsg(key))
		require.ErrorIs(t, err, gerrors.ErrInitFailure)
		require.ErrorIs(t, err, errProcessing)

		_, err = system.Ask(ctx, message.NewLinkedTelemetryMsg(key, uuid.New()))
		require.ErrorIs(t, err, gerrors.ErrInitFailure)

		assert.Empty(t, processor.received())
		assert.True(t, processor.isClosed())
		assert.Zero(t, system.ActorsCount())
	})
	t.Run("With unrecognized message", func(t *testing.T) {
		ctx := context.Background()
		processor := &mockProcessor{}
		system := newActorSystem(t, processor)

		result, err := system.Ask(ctx, message.NewEntityLifecycleMsg(entity.NewRandomKey(), message.LifecycleUpdated))
		require.NoError(t, err)
		assert.Equal(t, actor.Declined, result)
		assert.Empty(t, processor.received())
	})
	t.Run("With processing failure", func(t *testing.T) {
		ctx := context.Background()
		processor := &mockProcessor{failOn: message.MsgTypeLinkedTelemetry}
		system := newActorSystem(t, processor)
		key := entity.NewRandomKey()

		result, err := system.Ask(ctx, message.NewLinkedTelemetryMsg(key, uuid.New()))
		require.ErrorIs(t, err, errProcessing)
		assert.Equal(t, actor.Faulted, result)

		// the actor is resumed
		result, err = system.Ask(ctx, message.NewEntityTelemetryMsg(key))
		require.NoError(t, err)
		assert.Equal(t, actor.Handled, result)
	})
	t.Run("With processor closed on stop", func(t *testing.T) {
		ctx := context.Background()
		processor := &mockProcessor{}
		system := newActorSystem(t, processor)
		key := entity.NewRandomKey()

		require.NoError(t, system.Tell(ctx, message.NewEntityTelemetryMsg(key)))
		require.NoError(t, system.StopActor(ctx, key))
		assert.True(t, processor.isClosed())
	})
	t.Run("With telemetry dropped after delete", func(t *testing.T) {
		ctx := context.Background()
		key := entity.NewRandomKey()
		store := persistence.NewMemoryStore()
		require.NoError(t, store.Save(ctx, key.String(), []byte("state")))

		processor := newGatedProcessor()
		system := newActorSystemWith(t, &SystemContext{
			Logger:   log.DiscardLogger,
			Store:    store,
			Registry: NewMemoryRegistry(),
			Sink:     NewMemorySink(),
			ProcessorFactory: func(*SystemContext, entity.Key) (Processor, error) {
				return processor, nil
			},
		}, actor.WithFallback(func(rctx *actor.ReceiveContext) {
			if _, ok := rctx.Message().(*message.EntityLifecycleMsg); !ok {
				rctx.Unhandled()
				return
			}
			rctx.Err(rctx.Self().Actor().(Deletable).Delete(rctx.Context()))
			rctx.Stop()
		}))

		require.NoError(t, system.Tell(ctx, message.NewEntityTelemetryMsg(key)))
		<-processor.blocked
		pid, ok := system.Actor(key)
		require.True(t, ok)

		// queued behind the delete
		require.NoError(t, system.Tell(ctx, message.NewEntityLifecycleMsg(key, message.LifecycleDeleted)))
		require.NoError(t, system.Tell(ctx, message.NewEntityTelemetryMsg(key)))
		require.NoError(t, system.Tell(ctx, message.NewLinkedTelemetryMsg(key, uuid.New())))
		require.NoError(t, system.Tell(ctx, message.NewStateRestoreMsg(key, []byte("state"))))
		close(processor.release)
		<-pid.Done()

		assert.Equal(t, []message.MsgType{message.MsgTypeEntityTelemetry}, processor.received())
		_, err := store.Load(ctx, key.String())
		require.ErrorIs(t, err, gerrors.ErrKeyNotFound)
		assert.True(t, processor.isClosed())
	})
	t.Run("With one call at a time per entity", func(t *testing.T) {
		ctx := context.Background()
		var mu sync.Mutex
		processors := make(map[entity.Key]*tracingProcessor)
		system := newActorSystemWith(t, &SystemContext{
			Logger:   log.DiscardLogger,
			Registry: NewMemoryRegistry(),
			Sink:     NewMemorySink(),
			ProcessorFactory: func(_ *SystemContext, key entity.Key) (Processor, error) {
				mu.Lock()
				defer mu.Unlock()
				processor := newTracingProcessor()
				processors[key] = processor
				return processor, nil
			},
		})

		e1 := entity.NewRandomKey()
		e2 := uuid.New()
		e3 := entity.NewKey(e1.TenantID, uuid.New())

		const streamed = 50
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < streamed; i++ {
				_ = system.Tell(ctx, message.NewEntityTelemetryMsg(e3, message.TelemetryEntry{Key: "k", Value: float64(i), Ts: int64(i)}))
			}
		}()

		require.NoError(t, system.Tell(ctx, message.NewStateRestoreMsg(e1, []byte("S"))))
		require.NoError(t, system.Tell(ctx, message.NewEntityTelemetryMsg(e1, message.TelemetryEntry{Key: "k", Value: 5, Ts: 100})))
		result, err := system.Ask(ctx, message.NewLinkedTelemetryMsg(e1, e2, message.TelemetryEntry{Key: "k", Value: 7, Ts: 101}))
		require.NoError(t, err)
		require.Equal(t, actor.Handled, result)
		wg.Wait()

		// flushes the stream of e3
		_, err = system.Ask(ctx, message.NewEntityTelemetryMsg(e3))
		require.NoError(t, err)

		mu.Lock()
		first, third := processors[e1], processors[e3]
		mu.Unlock()
		require.NotNil(t, first)
		require.NotNil(t, third)

		assert.Equal(t, []string{
			"restore(S)",
			"process(100,5)",
			fmt.Sprintf("process(101,7,from=%s)", e2),
		}, first.calls())
		assert.EqualValues(t, 1, first.peak.Load())

		calls := third.calls()
		require.Len(t, calls, streamed)
		for i, call := range calls {
			assert.True(t, strings.HasPrefix(call, fmt.Sprintf("process(%d,", i)), call)
		}
		assert.EqualValues(t, 1, third.peak.Load())
	})
}
