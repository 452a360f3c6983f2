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
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/internal/metric"
	"github.com/cfengine/cfengine/internal/validation"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
	"github.com/cfengine/cfengine/supervisor"
)

// DefaultEvictionInterval is how often idle actors are looked for
const DefaultEvictionInterval = 30 * time.Second

// System routes messages to entity actors. The actor of an entity is created
// on the first message addressed to it and lives until it is evicted, stopped
// by supervision or the system stops.
type System struct {
	name    string
	factory Factory
	logger  log.Logger

	supervisor       *supervisor.Supervisor
	fallbacks        []FallbackHandler
	mailboxSize      int
	idleTimeout      time.Duration
	evictionInterval time.Duration
	meterProvider    otelmetric.MeterProvider
	metrics          *metric.ActorSystemMetric

	pids        *pidMap
	spawning    singleflight.Group
	started     *atomic.Bool
	stopping    *atomic.Bool
	deadLetters *atomic.Int64
	evictor     *evictor
}

// NewSystem creates an actor system using factory to build the actor of each entity
func NewSystem(name string, factory Factory, opts ...Option) (*System, error) {
	system := &System{
		name:             name,
		factory:          factory,
		logger:           log.DefaultLogger,
		supervisor:       supervisor.NewSupervisor(),
		evictionInterval: DefaultEvictionInterval,
		pids:             newPIDMap(),
		started:          atomic.NewBool(false),
		stopping:         atomic.NewBool(false),
		deadLetters:      atomic.NewInt64(0),
	}

	for _, opt := range opts {
		opt.Apply(system)
	}

	if err := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("name", name)).
		AddAssertion(factory != nil, "the [factory] is required").
		AddAssertion(system.mailboxSize >= 0, "the [mailboxSize] must not be negative").
		AddAssertion(system.supervisor != nil, "the [supervisor] is required").
		AddAssertion(system.idleTimeout <= 0 || system.evictionInterval > 0,
			"the [evictionInterval] must be greater than zero when idle eviction is enabled").
		Validate(); err != nil {
		return nil, err
	}

	metrics, err := metric.NewActorSystemMetric(metric.NewProvider(system.meterProvider).Meter())
	if err != nil {
		return nil, err
	}
	system.metrics = metrics
	return system, nil
}

// Name returns the actor system name
func (x *System) Name() string {
	return x.name
}

// Logger returns the actor system logger
func (x *System) Logger() log.Logger {
	return x.logger
}

// Start starts the actor system and the idle eviction when enabled
func (x *System) Start(ctx context.Context) error {
	if !x.started.CompareAndSwap(false, true) {
		return nil
	}

	if x.idleTimeout > 0 {
		x.evictor = newEvictor(x, x.idleTimeout, x.evictionInterval)
		if err := x.evictor.Start(ctx); err != nil {
			x.started.Store(false)
			return fmt.Errorf("failed to start idle eviction: %w", err)
		}
	}

	x.logger.Infof("actor system %s started", x.name)
	return nil
}

// Stop rejects new messages, lets every actor handle the messages already in its
// mailbox and waits for all of them to stop or for ctx to be done.
func (x *System) Stop(ctx context.Context) error {
	if !x.started.Load() || !x.stopping.CompareAndSwap(false, true) {
		return nil
	}

	x.logger.Infof("stopping actor system %s...", x.name)
	if x.evictor != nil {
		x.evictor.Stop(ctx)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, pid := range x.pids.pids() {
		pid.stop()
		eg.Go(func() error {
			select {
			case <-pid.Done():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("%s did not stop in time: %w", pid.key.LogPrefix(), ctx.Err())
			}
		})
	}

	err := eg.Wait()
	x.started.Store(false)
	if err != nil {
		x.logger.Errorf("actor system %s stopped with error: %v", x.name, err)
		return err
	}

	x.logger.Infof("actor system %s stopped", x.name)
	return nil
}

// Tell enqueues the message for the actor of its entity, creating the actor when needed.
// Messages to the same entity are handled in the order they were told.
func (x *System) Tell(ctx context.Context, msg message.Message) error {
	_, err := x.send(ctx, msg, false)
	return err
}

// Ask enqueues the message and waits for its outcome. A Faulted result comes
// with the error raised by the actor.
func (x *System) Ask(ctx context.Context, msg message.Message) (Result, error) {
	rctx, err := x.send(ctx, msg, true)
	if err != nil {
		return Faulted, err
	}

	select {
	case out := <-rctx.reply:
		return out.result, out.err
	case <-ctx.Done():
		return Faulted, ctx.Err()
	}
}

// StopActor stops the actor of the given entity once the messages in its mailbox
// are handled, and waits for it.
func (x *System) StopActor(ctx context.Context, key entity.Key) error {
	pid, ok := x.pids.get(key)
	if !ok {
		return gerrors.NewErrActorNotFound(key.String())
	}

	pid.stop()
	select {
	case <-pid.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Actor returns the PID serving the given entity
func (x *System) Actor(key entity.Key) (*PID, bool) {
	return x.pids.get(key)
}

// Actors returns the live PIDs
func (x *System) Actors() []*PID {
	return x.pids.pids()
}

// ActorsCount returns the number of live PIDs
func (x *System) ActorsCount() int {
	return x.pids.len()
}

// EvictedCount returns the number of actors stopped for being idle
func (x *System) EvictedCount() int64 {
	if x.evictor == nil {
		return 0
	}
	return x.evictor.Evicted()
}

// DeadLetters returns the number of messages nobody handled
func (x *System) DeadLetters() int64 {
	return x.deadLetters.Load()
}

func (x *System) send(ctx context.Context, msg message.Message, synchronous bool) (*ReceiveContext, error) {
	if x.stopping.Load() {
		return nil, gerrors.ErrSystemShuttingDown
	}
	if !x.started.Load() {
		return nil, gerrors.ErrSystemNotStarted
	}
	if msg == nil {
		return nil, gerrors.NewErrInvalidMessage(errors.New("nil message"))
	}

	key := msg.EntityKey()
	if err := key.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidMessage(err)
	}

	rctx := newReceiveContext(ctx, msg, synchronous)
	for {
		pid, err := x.route(ctx, key)
		if err != nil {
			return nil, err
		}

		err = pid.enqueue(rctx)
		if !errors.Is(err, errNotRunning) {
			return rctx, err
		}

		// the actor is stopping: wait for it to be gone so that the next
		// actor of the entity only starts after the old one handled its mail
		select {
		case <-pid.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// route returns the PID of the entity, spawning it when missing.
// Concurrent first messages for an entity share a single spawn.
func (x *System) route(ctx context.Context, key entity.Key) (*PID, error) {
	if pid, ok := x.pids.get(key); ok {
		return pid, nil
	}

	pid, err, _ := x.spawning.Do(key.String(), func() (any, error) {
		if pid, ok := x.pids.get(key); ok {
			return pid, nil
		}
		if x.stopping.Load() {
			return nil, gerrors.ErrSystemShuttingDown
		}
		return x.spawn(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return pid.(*PID), nil
}

func (x *System) spawn(ctx context.Context, key entity.Key) (*PID, error) {
	actor, err := x.factory(key)
	if err != nil {
		x.logger.Warnf("%s failed to create actor: %v", key.LogPrefix(), err)
		return nil, err
	}

	pid := newPID(x, key, actor)
	if err := pid.init(ctx); err != nil {
		x.logger.Warnf("%s failed to start actor: %v", key.LogPrefix(), err)
		return nil, err
	}

	x.pids.set(pid)
	x.metrics.ActiveActors().Add(ctx, 1)

	// a spawn racing Stop must not outlive the system
	if x.stopping.Load() {
		pid.stop()
	}
	return pid, nil
}

func (x *System) newMailbox() Mailbox {
	if x.mailboxSize > 0 {
		return NewBoundedMailbox(x.mailboxSize)
	}
	return NewUnboundedMailbox()
}

func (x *System) unregister(pid *PID) {
	x.pids.deleteIf(pid)
	x.metrics.ActiveActors().Add(context.Background(), -1)
}

func (x *System) deadLetter(rctx *ReceiveContext, reason error) {
	x.deadLetters.Inc()
	x.logger.Warnf("%s dead letter %s: %v", rctx.message.EntityKey().LogPrefix(), rctx.message.MsgType(), reason)
}

func (x *System) restarted() {
	x.metrics.RestartCount().Add(context.Background(), 1)
}

func (x *System) record(rctx *ReceiveContext, duration time.Duration) {
	ctx := context.Background()
	attrs := otelmetric.WithAttributes(attribute.String("message.type", rctx.message.MsgType().String()))
	switch rctx.result {
	case Handled:
		x.metrics.ProcessedCount().Add(ctx, 1, attrs)
	case Declined:
		x.metrics.DeclinedCount().Add(ctx, 1, attrs)
	case Faulted:
		x.metrics.FaultedCount().Add(ctx, 1, attrs)
	}
	x.metrics.ProcessingDuration().Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}
