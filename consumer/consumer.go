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
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Partition identifies a partition of a topic
type Partition struct {
	Topic string
	ID    int32
}

// String returns the partition name
func (p Partition) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.ID)
}

// Record is a message read from a partition
type Record struct {
	Partition Partition
	Offset    int64
	Key       string
	Value     []byte
}

// Consumer reads records from the partitions it is subscribed to.
// A Consumer is owned by a single Task.
type Consumer interface {
	// Subscribe replaces the set of partitions the consumer reads from.
	Subscribe(partitions mapset.Set[Partition]) error
	// Unsubscribe releases every partition.
	Unsubscribe() error
	// Poll returns the next batch of records, waiting at most timeout for one.
	// An empty batch is not an error. Poll returns as soon as the consumer is stopped.
	Poll(ctx context.Context, timeout time.Duration) ([]*Record, error)
	// Commit marks every record returned by Poll as processed.
	Commit(ctx context.Context) error
	// Rollback rewinds every partition to its last committed position so that
	// the records polled since are returned again by the next Poll.
	Rollback() error
	// Stop makes the consumer stop polling. It never blocks and can be called many times.
	Stop()
	// IsStopped reports whether Stop was called.
	IsStopped() bool
}

// Producer sends records to a partition
type Producer interface {
	Send(ctx context.Context, partition Partition, key string, value []byte) error
}

// ConsumerFactory creates the consumer of a queue key
type ConsumerFactory func(key string) (Consumer, error)

// RecordHandler processes a batch of records polled by the task of the given key.
// The batch is committed only when the handler succeeds.
type RecordHandler func(ctx context.Context, key string, records []*Record) error

// TaskHandle controls a running polling loop
type TaskHandle interface {
	// Context is done once the loop is cancelled
	Context() context.Context
	// Cancel asks the loop to stop. It does not wait for it.
	Cancel()
}

type taskHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTaskHandle creates a cancellable TaskHandle derived from the given context
func NewTaskHandle(ctx context.Context) TaskHandle {
	ctx, cancel := context.WithCancel(ctx)
	return &taskHandle{ctx: ctx, cancel: cancel}
}

func (h *taskHandle) Context() context.Context { return h.ctx }
func (h *taskHandle) Cancel()                  { h.cancel() }
