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
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/log"
)

// DefaultAwaitTimeout is how long AwaitCompletion waits for the loop to finish
const DefaultAwaitTimeout = 30 * time.Second

// completion is a single-fire signal. Firing it again is a no-op.
type completion struct {
	once sync.Once
	done chan struct{}
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

func (c *completion) fire() {
	c.once.Do(func() { close(c.done) })
}

// TaskOption configures a Task
type TaskOption func(*Task)

// WithAwaitTimeout sets how long AwaitCompletion waits for the loop
func WithAwaitTimeout(timeout time.Duration) TaskOption {
	return func(task *Task) {
		task.awaitTimeout = timeout
	}
}

// WithTaskLogger sets the task logger
func WithTaskLogger(logger log.Logger) TaskOption {
	return func(task *Task) {
		task.logger = logger
	}
}

// Task wraps the consumer of a queue key and the background loop polling it.
//
// The launcher starts the loop, then calls SetTask with its handle. The loop
// calls Finished with that handle exactly once when it exits. Stopping is done in two phases:
// InitiateStop on every task first, then AwaitCompletion on each of them.
type Task struct {
	key          string
	consumer     Consumer
	logger       log.Logger
	awaitTimeout time.Duration

	// mu guards the handle and the completion signal of the current run
	mu     sync.Mutex
	handle TaskHandle
	signal *completion
}

// NewTask creates a Task
func NewTask(key string, consumer Consumer, opts ...TaskOption) *Task {
	task := &Task{
		key:          key,
		consumer:     consumer,
		logger:       log.DefaultLogger,
		awaitTimeout: DefaultAwaitTimeout,
	}
	for _, opt := range opts {
		opt(task)
	}
	return task
}

// Key returns the queue key of the task
func (x *Task) Key() string {
	return x.key
}

// Consumer returns the task consumer
func (x *Task) Consumer() Consumer {
	return x.consumer
}

// Subscribe subscribes the consumer to the given partitions
func (x *Task) Subscribe(partitions mapset.Set[Partition]) error {
	return x.consumer.Subscribe(partitions)
}

// SetTask records the handle of the loop that was just launched and arms
// a fresh completion signal for that run.
func (x *Task) SetTask(handle TaskHandle) {
	x.mu.Lock()
	x.handle = handle
	x.signal = newCompletion()
	x.mu.Unlock()
}

// InitiateStop stops the consumer, which unblocks a poll in progress, then
// cancels the loop. It does not wait for the loop to exit.
func (x *Task) InitiateStop() {
	x.consumer.Stop()

	x.mu.Lock()
	handle := x.handle
	x.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
}

// AwaitCompletion waits for the running loop to call Finished. It returns at
// once when no loop is running.
//
// When the loop does not finish within the await timeout the task forgets it
// and ErrAwaitTimeout is returned. The loop may still be running then.
// A cancelled ctx is logged and reported as success.
func (x *Task) AwaitCompletion(ctx context.Context) error {
	x.mu.Lock()
	handle, signal := x.handle, x.signal
	x.mu.Unlock()

	if handle == nil {
		return nil
	}

	timer := time.NewTimer(x.awaitTimeout)
	defer timer.Stop()

	select {
	case <-signal.done:
		return nil
	case <-timer.C:
		x.mu.Lock()
		if x.signal == signal {
			x.handle = nil
			x.signal = nil
		}
		x.mu.Unlock()
		x.logger.Warnf("[%s] consumer task did not finish within %s", x.key, x.awaitTimeout)
		return gerrors.NewErrAwaitTimeout(x.key, x.awaitTimeout)
	case <-ctx.Done():
		x.logger.Warnf("[%s] interrupted while awaiting consumer task completion: %v", x.key, ctx.Err())
		return nil
	}
}

// Finished is called with its own handle by the loop when it exits. It fires
// the completion signal of that run and clears the handle. Repeated calls, and
// calls from a loop whose run was dropped by an await timeout, are no-ops: they
// never complete the run of a later SetTask.
func (x *Task) Finished(handle TaskHandle) {
	x.mu.Lock()
	if handle == nil || x.handle != handle {
		x.mu.Unlock()
		return
	}
	signal := x.signal
	x.handle = nil
	x.signal = nil
	x.mu.Unlock()

	if signal != nil {
		signal.fire()
	}
}

// IsRunning reports whether a loop handle is present
func (x *Task) IsRunning() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.handle != nil
}
