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
	"go.uber.org/atomic"

	gerrors "github.com/cfengine/cfengine/errors"
)

// DefaultMaxPollRecords is the largest batch returned by a MemoryConsumer poll
const DefaultMaxPollRecords = 500

// MemoryBroker is an in-process set of partitions with committed offsets per group.
// It is meant for tests and single node runs.
type MemoryBroker struct {
	mu        sync.Mutex
	logs      map[Partition][]*Record
	committed map[string]map[Partition]int64
	changed   chan struct{}
}

// enforce compilation error
var _ Producer = (*MemoryBroker)(nil)

// NewMemoryBroker creates a MemoryBroker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		logs:      make(map[Partition][]*Record),
		committed: make(map[string]map[Partition]int64),
		changed:   make(chan struct{}),
	}
}

// Send implements Producer
func (b *MemoryBroker) Send(ctx context.Context, partition Partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bytea := make([]byte, len(value))
	copy(bytea, value)
	b.logs[partition] = append(b.logs[partition], &Record{
		Partition: partition,
		Offset:    int64(len(b.logs[partition])),
		Key:       key,
		Value:     bytea,
	})

	// wake up the pending polls
	close(b.changed)
	b.changed = make(chan struct{})
	return nil
}

// Len returns the number of records of a partition
func (b *MemoryBroker) Len(partition Partition) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.logs[partition])
}

// Committed returns the next offset the group reads from the partition
func (b *MemoryBroker) Committed(group string, partition Partition) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[group][partition]
}

// Consumer creates a consumer reading on behalf of the given group
func (b *MemoryBroker) Consumer(group string) *MemoryConsumer {
	return &MemoryConsumer{
		broker:     b,
		group:      group,
		maxRecords: DefaultMaxPollRecords,
		assigned:   mapset.NewSet[Partition](),
		positions:  make(map[Partition]int64),
		stopped:    atomic.NewBool(false),
		stopCh:     make(chan struct{}),
	}
}

func (b *MemoryBroker) commit(group string, positions map[Partition]int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed[group] == nil {
		b.committed[group] = make(map[Partition]int64)
	}
	for partition, offset := range positions {
		b.committed[group][partition] = offset
	}
}

// fetch returns the records available after the given positions and a channel
// closed on the next Send
func (b *MemoryBroker) fetch(positions map[Partition]int64, limit int) ([]*Record, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	records := make([]*Record, 0)
	for partition, position := range positions {
		log := b.logs[partition]
		for offset := position; offset < int64(len(log)) && len(records) < limit; offset++ {
			records = append(records, log[offset])
		}
	}
	return records, b.changed
}

func (b *MemoryBroker) offset(group string, partition Partition) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[group][partition]
}

// MemoryConsumer reads from a MemoryBroker. Records polled but not committed
// are read again after a Rollback or the next Subscribe.
type MemoryConsumer struct {
	broker     *MemoryBroker
	group      string
	maxRecords int

	mu        sync.Mutex
	assigned  mapset.Set[Partition]
	positions map[Partition]int64

	stopped  *atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// enforce compilation error
var _ Consumer = (*MemoryConsumer)(nil)

// Subscribe implements Consumer
func (c *MemoryConsumer) Subscribe(partitions mapset.Set[Partition]) error {
	if c.stopped.Load() {
		return gerrors.ErrConsumerStopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = partitions.Clone()
	c.positions = make(map[Partition]int64, partitions.Cardinality())
	for partition := range partitions.Iter() {
		c.positions[partition] = c.broker.offset(c.group, partition)
	}
	return nil
}

// Unsubscribe implements Consumer
func (c *MemoryConsumer) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = mapset.NewSet[Partition]()
	c.positions = make(map[Partition]int64)
	return nil
}

// Assigned returns the subscribed partitions
func (c *MemoryConsumer) Assigned() mapset.Set[Partition] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assigned.Clone()
}

// Poll implements Consumer
func (c *MemoryConsumer) Poll(ctx context.Context, timeout time.Duration) ([]*Record, error) {
	if c.stopped.Load() {
		return nil, gerrors.ErrConsumerStopped
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		records, changed := c.broker.fetch(c.positions, c.maxRecords)
		for _, record := range records {
			if next := record.Offset + 1; next > c.positions[record.Partition] {
				c.positions[record.Partition] = next
			}
		}
		c.mu.Unlock()

		if len(records) > 0 {
			return records, nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return nil, nil
		case <-c.stopCh:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Commit implements Consumer
func (c *MemoryConsumer) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	positions := make(map[Partition]int64, len(c.positions))
	for partition, position := range c.positions {
		positions[partition] = position
	}
	c.mu.Unlock()
	c.broker.commit(c.group, positions)
	return nil
}

// Rollback implements Consumer
func (c *MemoryConsumer) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for partition := range c.positions {
		c.positions[partition] = c.broker.offset(c.group, partition)
	}
	return nil
}

// Stop implements Consumer
func (c *MemoryConsumer) Stop() {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// IsStopped implements Consumer
func (c *MemoryConsumer) IsStopped() bool {
	return c.stopped.Load()
}
