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

package nats

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/cfengine/cfengine/consumer"
	gerrors "github.com/cfengine/cfengine/errors"
)

// maxPollRecords is the largest batch returned by a poll
const maxPollRecords = 500

// Consumer reads the partition subjects through a NATS queue group
type Consumer struct {
	client *Client
	group  string
	inbox  chan *nats.Msg

	mu            sync.Mutex
	subscriptions []*nats.Subscription
	partitions    map[string]consumer.Partition
	offsets       map[consumer.Partition]int64

	stopped  *atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// enforce compilation error
var _ consumer.Consumer = (*Consumer)(nil)

func newConsumer(client *Client, group string) *Consumer {
	return &Consumer{
		client:     client,
		group:      group,
		inbox:      make(chan *nats.Msg, client.config.BufferSize),
		partitions: make(map[string]consumer.Partition),
		offsets:    make(map[consumer.Partition]int64),
		stopped:    atomic.NewBool(false),
		stopCh:     make(chan struct{}),
	}
}

// Subscribe implements consumer.Consumer
func (c *Consumer) Subscribe(partitions mapset.Set[consumer.Partition]) error {
	if c.stopped.Load() {
		return gerrors.ErrConsumerStopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.unsubscribe(); err != nil {
		return err
	}

	for partition := range partitions.Iter() {
		subject := c.client.Subject(partition)
		subscription, err := c.client.connection.ChanQueueSubscribe(subject, c.group, c.inbox)
		if err != nil {
			return multierr.Append(err, c.unsubscribe())
		}
		c.subscriptions = append(c.subscriptions, subscription)
		c.partitions[subject] = partition
	}

	// make sure the server registered the interest before records are sent
	return c.client.connection.Flush()
}

// Unsubscribe implements consumer.Consumer
func (c *Consumer) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribe()
}

func (c *Consumer) unsubscribe() error {
	var err error
	for _, subscription := range c.subscriptions {
		if subscription.IsValid() {
			err = multierr.Append(err, subscription.Unsubscribe())
		}
	}
	c.subscriptions = nil
	c.partitions = make(map[string]consumer.Partition)
	return err
}

// Poll implements consumer.Consumer
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) ([]*consumer.Record, error) {
	if c.stopped.Load() {
		return nil, gerrors.ErrConsumerStopped
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var first *nats.Msg
	select {
	case first = <-c.inbox:
	case <-timer.C:
		return nil, nil
	case <-c.stopCh:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	records := []*consumer.Record{c.toRecord(first)}
	for len(records) < maxPollRecords {
		select {
		case msg := <-c.inbox:
			records = append(records, c.toRecord(msg))
		default:
			return records, nil
		}
	}
	return records, nil
}

// Commit implements consumer.Consumer. NATS core subjects have no offsets to commit.
func (c *Consumer) Commit(context.Context) error {
	return nil
}

// Rollback implements consumer.Consumer. Core NATS does not redeliver, so the
// records of a failed batch are lost.
func (c *Consumer) Rollback() error {
	return nil
}

// Stop implements consumer.Consumer
func (c *Consumer) Stop() {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// IsStopped implements consumer.Consumer
func (c *Consumer) IsStopped() bool {
	return c.stopped.Load()
}

// toRecord converts a message. The offset is a local sequence per partition.
func (c *Consumer) toRecord(msg *nats.Msg) *consumer.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	partition := c.partitions[msg.Subject]
	offset := c.offsets[partition]
	c.offsets[partition] = offset + 1
	return &consumer.Record{
		Partition: partition,
		Offset:    offset,
		Key:       msg.Header.Get(keyHeader),
		Value:     msg.Data,
	}
}
