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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/internal/metric"
	"github.com/cfengine/cfengine/internal/validation"
	"github.com/cfengine/cfengine/log"
)

const (
	// DefaultPollTimeout is the default wait of a single poll
	DefaultPollTimeout = time.Second
	// DefaultPollErrorDelay is the default pause after a failed poll
	DefaultPollErrorDelay = time.Second
	// DefaultCommitRetries is the default number of commit attempts
	DefaultCommitRetries = 3
)

// Manager runs one polling loop per queue key and keeps them in line with
// the partition assignment.
type Manager struct {
	name           string
	factory        ConsumerFactory
	handler        RecordHandler
	logger         log.Logger
	pollTimeout    time.Duration
	pollErrorDelay time.Duration
	commitRetries  int
	taskOptions    []TaskOption
	meterProvider  otelmetric.MeterProvider
	metrics        *metric.ConsumerMetric

	mu         sync.Mutex
	tasks      map[string]*Task
	partitions map[string]mapset.Set[Partition]
	stopped    *atomic.Bool
}

// NewManager creates a Manager
func NewManager(name string, factory ConsumerFactory, handler RecordHandler, opts ...Option) (*Manager, error) {
	manager := &Manager{
		name:           name,
		factory:        factory,
		handler:        handler,
		logger:         log.DefaultLogger,
		pollTimeout:    DefaultPollTimeout,
		pollErrorDelay: DefaultPollErrorDelay,
		commitRetries:  DefaultCommitRetries,
		tasks:          make(map[string]*Task),
		partitions:     make(map[string]mapset.Set[Partition]),
		stopped:        atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(manager)
	}

	if err := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("name", name)).
		AddAssertion(factory != nil, "the [factory] is required").
		AddAssertion(handler != nil, "the [handler] is required").
		AddValidator(validation.NewPositiveDurationValidator("pollTimeout", manager.pollTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("pollErrorDelay", manager.pollErrorDelay)).
		AddAssertion(manager.commitRetries > 0, "the [commitRetries] must be greater than zero").
		Validate(); err != nil {
		return nil, err
	}

	metrics, err := metric.NewConsumerMetric(metric.NewProvider(manager.meterProvider).Meter())
	if err != nil {
		return nil, err
	}
	manager.metrics = metrics
	manager.taskOptions = append([]TaskOption{WithTaskLogger(manager.logger)}, manager.taskOptions...)
	return manager, nil
}

// Update applies a new assignment of partitions to queue keys.
// Keys that are no longer assigned are stopped, keys whose partitions changed
// are subscribed again and new keys get a fresh consumer and loop.
func (m *Manager) Update(ctx context.Context, assignment map[string]mapset.Set[Partition]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped.Load() {
		return gerrors.ErrConsumerStopped
	}

	removed := make([]*Task, 0)
	for key, task := range m.tasks {
		if _, ok := assignment[key]; !ok {
			removed = append(removed, task)
			delete(m.tasks, key)
			delete(m.partitions, key)
		}
	}

	err := m.stopTasks(ctx, removed)

	for _, key := range sortedKeys(assignment) {
		partitions := assignment[key]
		task, ok := m.tasks[key]
		if !ok {
			err = multierr.Append(err, m.start(ctx, key, partitions))
			continue
		}

		if current := m.partitions[key]; current == nil || !current.Equal(partitions) {
			if subErr := task.Subscribe(partitions.Clone()); subErr != nil {
				err = multierr.Append(err, fmt.Errorf("[%s] failed to subscribe: %w", key, subErr))
				continue
			}
			m.partitions[key] = partitions.Clone()
			m.logger.Infof("[%s] consumer subscribed to %d partition(s)", key, partitions.Cardinality())
		}

		if !task.IsRunning() {
			m.launch(ctx, task)
		}
	}
	return err
}

// Stop stops every loop with the two-phase protocol: all loops are asked to
// stop first, then each of them is awaited.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Infof("stopping consumer manager %s...", m.name)
	tasks := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	m.tasks = make(map[string]*Task)
	m.partitions = make(map[string]mapset.Set[Partition])

	if err := m.stopTasks(ctx, tasks); err != nil {
		m.logger.Errorf("consumer manager %s stopped with error: %v", m.name, err)
		return err
	}
	m.logger.Infof("consumer manager %s stopped", m.name)
	return nil
}

// Tasks returns the running tasks
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, key := range sortedKeys(m.tasks) {
		tasks = append(tasks, m.tasks[key])
	}
	return tasks
}

// Task returns the task of a queue key
func (m *Manager) Task(key string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[key]
	return task, ok
}

func (m *Manager) start(ctx context.Context, key string, partitions mapset.Set[Partition]) error {
	consumer, err := m.factory(key)
	if err != nil {
		return fmt.Errorf("[%s] failed to create consumer: %w", key, err)
	}

	task := NewTask(key, consumer, m.taskOptions...)
	if err := task.Subscribe(partitions.Clone()); err != nil {
		consumer.Stop()
		return fmt.Errorf("[%s] failed to subscribe: %w", key, err)
	}

	m.tasks[key] = task
	m.partitions[key] = partitions.Clone()
	m.launch(ctx, task)
	m.logger.Infof("[%s] consumer started on %d partition(s)", key, partitions.Cardinality())
	return nil
}

// launch starts the loop of the task. The loop body waits until SetTask
// has recorded its handle and ends with Finished.
func (m *Manager) launch(ctx context.Context, task *Task) {
	handle := NewTaskHandle(context.WithoutCancel(ctx))
	gate := make(chan struct{})

	m.metrics.RunningTasks().Add(ctx, 1)
	go func() {
		defer func() {
			m.metrics.RunningTasks().Add(context.Background(), -1)
			task.Finished(handle)
		}()

		<-gate
		m.loop(handle.Context(), task)
	}()

	task.SetTask(handle)
	close(gate)
}

func (m *Manager) loop(ctx context.Context, task *Task) {
	consumer := task.Consumer()
	m.logger.Debugf("[%s] consumer loop started", task.Key())
	defer m.logger.Debugf("[%s] consumer loop stopped", task.Key())

	for !consumer.IsStopped() && ctx.Err() == nil {
		records, err := consumer.Poll(ctx, m.pollTimeout)
		if err != nil {
			if consumer.IsStopped() || ctx.Err() != nil {
				return
			}
			m.metrics.PollErrors().Add(ctx, 1)
			m.logger.Warnf("[%s] failed to poll records: %v", task.Key(), err)
			m.pause(ctx)
			continue
		}

		if len(records) == 0 {
			continue
		}

		m.metrics.PolledRecords().Add(ctx, int64(len(records)))
		if err := m.handler(ctx, task.Key(), records); err != nil {
			m.metrics.FailedBatches().Add(ctx, 1)
			m.logger.Errorf("[%s] failed to process %d record(s): %v", task.Key(), len(records), err)
			if rollbackErr := consumer.Rollback(); rollbackErr != nil {
				m.logger.Errorf("[%s] failed to rewind to the committed offsets: %v", task.Key(), rollbackErr)
			}
			m.pause(ctx)
			continue
		}

		retrier := retry.NewRetrier(m.commitRetries, 100*time.Millisecond, m.pollErrorDelay)
		if err := retrier.RunContext(ctx, consumer.Commit); err != nil && ctx.Err() == nil {
			m.logger.Errorf("[%s] failed to commit %d record(s): %v", task.Key(), len(records), err)
		}
	}
}

func (m *Manager) pause(ctx context.Context) {
	timer := time.NewTimer(m.pollErrorDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// stopTasks runs the two-phase stop on the given tasks. Tasks that do not
// finish in time are dropped and reported.
func (m *Manager) stopTasks(ctx context.Context, tasks []*Task) error {
	for _, task := range tasks {
		task.InitiateStop()
	}

	var err error
	for _, task := range tasks {
		if awaitErr := task.AwaitCompletion(ctx); awaitErr != nil {
			if errors.Is(awaitErr, gerrors.ErrAwaitTimeout) {
				m.metrics.AwaitTimeouts().Add(ctx, 1)
			}
			err = multierr.Append(err, awaitErr)
			continue
		}

		if unsubErr := task.Consumer().Unsubscribe(); unsubErr != nil {
			m.logger.Warnf("[%s] failed to unsubscribe: %v", task.Key(), unsubErr)
		}
	}
	return err
}

func sortedKeys[V any](items map[string]V) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
