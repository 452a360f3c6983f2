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

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/redis/go-redis/v9"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/cfengine/cfengine/actor"
	"github.com/cfengine/cfengine/calculatedfield"
	"github.com/cfengine/cfengine/config"
	"github.com/cfengine/cfengine/consumer"
	"github.com/cfengine/cfengine/consumer/nats"
	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/hash"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
	"github.com/cfengine/cfengine/persistence"
	"github.com/cfengine/cfengine/supervisor"
)

// Engine runs the calculated fields: it consumes the telemetry queue, routes
// every record to the actor of its entity and publishes the computed values.
type Engine struct {
	config *config.Config
	logger log.Logger

	store            persistence.StateStore
	registry         calculatedfield.FieldRegistry
	sink             calculatedfield.ResultSink
	processorFactory calculatedfield.ProcessorFactory
	meterProvider    otelmetric.MeterProvider

	broker      *consumer.MemoryBroker
	producer    consumer.Producer
	factory     consumer.ConsumerFactory
	partitioner *hash.Partitioner

	system  *actor.System
	manager *consumer.Manager

	closers []func() error
	started *atomic.Bool
	stopped *atomic.Bool
}

// New creates an Engine from the given configuration
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("the [config] is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	engine := &Engine{
		config:      cfg,
		partitioner: hash.NewPartitioner(cfg.Queue.Partitions, hash.DefaultHasher()),
		started:     atomic.NewBool(false),
		stopped:     atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(engine)
	}

	if engine.logger == nil {
		engine.logger = log.NewZap(cfg.LogLevel(), os.Stdout)
	}
	engine.logger = engine.logger.With("engine", cfg.Name)

	if err := engine.setup(); err != nil {
		return nil, multierr.Append(err, engine.close())
	}
	return engine, nil
}

func (e *Engine) setup() error {
	if err := e.setupStore(); err != nil {
		return err
	}
	if err := e.setupRegistry(); err != nil {
		return err
	}
	if err := e.setupQueue(); err != nil {
		return err
	}

	if e.sink == nil {
		if e.config.Queue.ResultTopic != "" {
			e.sink = newResultPublisher(e.producer, e.config.Queue.ResultTopic, e.partitioner)
		} else {
			e.sink = calculatedfield.NewLogSink(e.logger.Named("results"))
		}
	}

	sctx := &calculatedfield.SystemContext{
		Logger:           e.logger,
		Store:            e.store,
		Registry:         e.registry,
		Sink:             e.sink,
		ProcessorFactory: e.processorFactory,
	}
	if err := sctx.Validate(); err != nil {
		return err
	}

	actorsConfig := e.config.Actors
	options := []actor.Option{
		actor.WithLogger(e.logger.Named("actors")),
		actor.WithMailboxSize(actorsConfig.MailboxSize),
		actor.WithSupervisor(supervisor.NewSupervisor(
			supervisor.WithRetry(actorsConfig.MaxRestarts, actorsConfig.RestartWindow))),
		actor.WithFallback(e.handleLifecycle),
		actor.WithMeterProvider(e.meterProvider),
	}
	if actorsConfig.IdleTimeout > 0 {
		options = append(options,
			actor.WithIdleTimeout(actorsConfig.IdleTimeout),
			actor.WithEvictionInterval(actorsConfig.EvictionInterval))
	}

	system, err := actor.NewSystem(e.config.Name, calculatedfield.NewActorFactory(sctx), options...)
	if err != nil {
		return err
	}
	e.system = system

	queueConfig := e.config.Queue
	manager, err := consumer.NewManager(e.config.Name, e.factory, e.handleRecords,
		consumer.WithLogger(e.logger.Named("consumers")),
		consumer.WithPollTimeout(queueConfig.PollTimeout),
		consumer.WithPollErrorDelay(queueConfig.PollErrorDelay),
		consumer.WithCommitRetries(queueConfig.CommitRetries),
		consumer.WithTaskOptions(consumer.WithAwaitTimeout(queueConfig.AwaitTimeout)),
		consumer.WithMeterProvider(e.meterProvider))
	if err != nil {
		return err
	}
	e.manager = manager
	return nil
}

func (e *Engine) setupStore() error {
	if e.store != nil {
		return nil
	}

	storeConfig := e.config.Store
	var store persistence.StateStore
	switch storeConfig.Type {
	case config.BoltStore:
		boltStore, err := persistence.NewBoltStore(storeConfig.Bolt.Path, persistence.WithBoltBucket(storeConfig.Bolt.Bucket))
		if err != nil {
			return err
		}
		store = boltStore
	case config.RedisStore:
		client := redis.NewClient(&redis.Options{
			Addr:     storeConfig.Redis.Addr,
			Password: storeConfig.Redis.Password,
			DB:       storeConfig.Redis.DB,
		})
		store = persistence.NewRedisStore(client, storeConfig.Redis.Prefix)
	default:
		store = persistence.NewMemoryStore()
	}

	if storeConfig.Compression {
		compressed, err := persistence.WithCompression(store)
		if err != nil {
			return multierr.Append(err, store.Close())
		}
		store = compressed
	}

	e.store = store
	e.closers = append(e.closers, store.Close)
	return nil
}

func (e *Engine) setupRegistry() error {
	if e.registry != nil {
		return nil
	}
	registry := calculatedfield.NewMemoryRegistry()
	if err := registry.Register(e.config.Fields...); err != nil {
		return err
	}
	e.registry = registry
	return nil
}

func (e *Engine) setupQueue() error {
	group := func(key string) string {
		return e.config.Name + "-" + key
	}

	switch e.config.Queue.Type {
	case config.NatsQueue:
		natsConfig := e.config.Queue.Nats
		client, err := nats.NewClient(nats.Config{
			NatsServer:    natsConfig.URL,
			SubjectPrefix: natsConfig.SubjectPrefix,
			ClientName:    e.config.Name,
			BufferSize:    natsConfig.BufferSize,
		}, nats.WithLogger(e.logger.Named("nats")))
		if err != nil {
			return err
		}
		e.producer = client
		e.factory = func(key string) (consumer.Consumer, error) {
			return client.Consumer(group(key)), nil
		}
		e.closers = append(e.closers, client.Close)
	default:
		if e.broker == nil {
			e.broker = consumer.NewMemoryBroker()
		}
		broker := e.broker
		e.producer = broker
		e.factory = func(key string) (consumer.Consumer, error) {
			return broker.Consumer(group(key)), nil
		}
	}
	return nil
}

// Start restores the persisted states, then starts consuming the telemetry queue
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	if err := e.system.Start(ctx); err != nil {
		return err
	}

	if err := e.restore(ctx); err != nil {
		return err
	}

	if err := e.manager.Update(ctx, e.assignment()); err != nil {
		return fmt.Errorf("failed to start consumers: %w", err)
	}

	e.logger.Infof("engine %s started: %d partition(s) in %d group(s)",
		e.config.Name, e.config.Queue.Partitions, e.config.Queue.Groups)
	return nil
}

// Stop stops the consumers first, then the actors and finally releases the store
// and the queue connection.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started.Load() || !e.stopped.CompareAndSwap(false, true) {
		return nil
	}

	e.logger.Infof("stopping engine %s...", e.config.Name)
	err := e.manager.Stop(ctx)
	err = multierr.Append(err, e.system.Stop(ctx))
	err = multierr.Append(err, e.close())
	if err != nil {
		e.logger.Errorf("engine %s stopped with error: %v", e.config.Name, err)
		return err
	}
	e.logger.Infof("engine %s stopped", e.config.Name)
	return nil
}

// Publish sends a message to the partition owning its entity
func (e *Engine) Publish(ctx context.Context, msg message.Message) error {
	if !e.started.Load() || e.stopped.Load() {
		return gerrors.ErrEngineNotStarted
	}
	bytea, err := message.Encode(msg)
	if err != nil {
		return err
	}
	key := msg.EntityKey().String()
	partition := consumer.Partition{
		Topic: e.config.Queue.Topic,
		ID:    int32(e.partitioner.Partition(key)),
	}
	return e.producer.Send(ctx, partition, key, bytea)
}

// System returns the actor system
func (e *Engine) System() *actor.System {
	return e.system
}

// Manager returns the consumer manager
func (e *Engine) Manager() *consumer.Manager {
	return e.manager
}

// Store returns the state store
func (e *Engine) Store() persistence.StateStore {
	return e.store
}

// Registry returns the field registry
func (e *Engine) Registry() calculatedfield.FieldRegistry {
	return e.registry
}

// restore tells every persisted snapshot to the actor of its entity
func (e *Engine) restore(ctx context.Context) error {
	snapshots := make(map[entity.Key][]byte)
	if err := e.store.Range(ctx, func(key string, value []byte) bool {
		entityKey, err := entity.ParseKey(key)
		if err != nil {
			e.logger.Warnf("skipping state %s: %v", key, err)
			return true
		}
		snapshots[entityKey] = value
		return true
	}); err != nil {
		return fmt.Errorf("failed to read the persisted states: %w", err)
	}

	restored := 0
	for key, snapshot := range snapshots {
		if err := e.system.Tell(ctx, message.NewStateRestoreMsg(key, snapshot)); err != nil {
			e.logger.Warnf("%s failed to restore state: %v", key.LogPrefix(), err)
			continue
		}
		restored++
	}
	e.logger.Infof("restored %d/%d persisted state(s)", restored, len(snapshots))
	return nil
}

// assignment spreads the partitions over the consumer groups: partition p goes to group p % groups
func (e *Engine) assignment() map[string]mapset.Set[consumer.Partition] {
	queueConfig := e.config.Queue
	assignment := make(map[string]mapset.Set[consumer.Partition], queueConfig.Groups)
	for p := 0; p < queueConfig.Partitions; p++ {
		key := fmt.Sprintf("group-%d", p%queueConfig.Groups)
		if _, ok := assignment[key]; !ok {
			assignment[key] = mapset.NewSet[consumer.Partition]()
		}
		assignment[key].Add(consumer.Partition{Topic: queueConfig.Topic, ID: int32(p)})
	}
	return assignment
}

// handleRecords decodes the records and tells them to the actors. Records that
// cannot be delivered for good are logged and skipped. The batch fails when the
// actors cannot keep up so that it is not committed.
func (e *Engine) handleRecords(ctx context.Context, key string, records []*consumer.Record) error {
	for _, record := range records {
		msg, err := message.Decode(record.Value)
		if err != nil {
			e.logger.Warnf("[%s] skipping record %s@%d: %v", key, record.Partition, record.Offset, err)
			continue
		}

		if err := e.dispatch(ctx, msg); err != nil {
			if errors.Is(err, gerrors.ErrMailboxFull) || errors.Is(err, gerrors.ErrSystemShuttingDown) {
				return err
			}
			e.logger.Warnf("%s failed to deliver %s: %v", msg.EntityKey().LogPrefix(), msg.MsgType(), err)
		}

		if telemetry, ok := msg.(*message.EntityTelemetryMsg); ok {
			if err := e.fanOut(ctx, telemetry); err != nil {
				return err
			}
		}
	}
	return nil
}

// fanOut forwards the telemetry of an entity to the entities having a field reading it
func (e *Engine) fanOut(ctx context.Context, msg *message.EntityTelemetryMsg) error {
	dependents, err := e.registry.Dependents(ctx, msg.Key)
	if err != nil {
		e.logger.Warnf("%s failed to load dependents: %v", msg.Key.LogPrefix(), err)
		return nil
	}

	for _, dependent := range dependents {
		linked := message.NewLinkedTelemetryMsg(dependent, msg.Key.EntityID, msg.Entries...)
		if err := e.dispatch(ctx, linked); err != nil {
			if errors.Is(err, gerrors.ErrMailboxFull) || errors.Is(err, gerrors.ErrSystemShuttingDown) {
				return err
			}
			e.logger.Warnf("%s failed to deliver linked telemetry: %v", dependent.LogPrefix(), err)
		}
	}
	return nil
}

// dispatch tells the message, waiting for room when the mailbox is full
func (e *Engine) dispatch(ctx context.Context, msg message.Message) error {
	var terminal error
	retrier := retry.NewRetrier(5, 10*time.Millisecond, 500*time.Millisecond)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		err := e.system.Tell(ctx, msg)
		if errors.Is(err, gerrors.ErrMailboxFull) {
			return err
		}
		terminal = err
		return nil
	}); err != nil {
		return err
	}
	return terminal
}

// deleteState drops the state of the entity. The entity actor also discards
// the telemetry still queued in its mailbox, so nothing writes it back.
func (e *Engine) deleteState(rctx *actor.ReceiveContext) error {
	if deletable, ok := rctx.Self().Actor().(calculatedfield.Deletable); ok {
		return deletable.Delete(rctx.Context())
	}
	err := e.store.Delete(rctx.Context(), rctx.Self().Key().String())
	if errors.Is(err, gerrors.ErrKeyNotFound) {
		return nil
	}
	return err
}

// handleLifecycle serves the lifecycle messages declined by the entity actors
func (e *Engine) handleLifecycle(rctx *actor.ReceiveContext) {
	msg, ok := rctx.Message().(*message.EntityLifecycleMsg)
	if !ok {
		rctx.Unhandled()
		return
	}

	switch msg.Event {
	case message.LifecycleDeleted:
		if err := e.deleteState(rctx); err != nil {
			rctx.Err(err)
			return
		}
		e.logger.Infof("%s entity deleted, state dropped", msg.Key.LogPrefix())
	default:
		e.logger.Infof("%s entity updated, reloading calculated fields", msg.Key.LogPrefix())
	}
	// the next message of the entity starts a fresh actor
	rctx.Stop()
}

func (e *Engine) close() error {
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	e.closers = nil
	return err
}
