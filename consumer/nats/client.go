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
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/cfengine/cfengine/consumer"
	"github.com/cfengine/cfengine/log"
)

// keyHeader carries the record key
const keyHeader = "Cf-Key"

// Client is a NATS connection shared by the producer and the consumers of an engine.
// Delivery is at most once: records are not persisted by the server and Commit is a no-op.
type Client struct {
	config     Config
	logger     log.Logger
	connection *nats.Conn
	closed     *atomic.Bool

	mu        sync.Mutex
	consumers []*Consumer
}

// enforce compilation error
var _ consumer.Producer = (*Client)(nil)

// NewClient connects to the NATS server
func NewClient(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	client := &Client{
		config: config,
		logger: log.DefaultLogger,
		closed: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(client)
	}

	// create the nats connection option
	options := nats.GetDefaultOptions()
	options.Url = config.NatsServer
	options.Name = config.ClientName
	options.ReconnectWait = config.ReconnectWait
	options.MaxReconnect = -1
	if config.TLS != nil {
		options.Secure = true
		options.TLSConfig = config.TLS
	}

	// let us connect using an exponential backoff mechanism
	var connection *nats.Conn
	retrier := retry.NewRetrier(config.MaxRetries, 100*time.Millisecond, config.ReconnectWait)
	if err := retrier.Run(func() error {
		var err error
		connection, err = options.Connect()
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.NatsServer, err)
	}

	client.connection = connection
	client.logger.Infof("connected to nats server %s", connection.ConnectedUrl())
	return client, nil
}

// Subject returns the subject of a partition
func (c *Client) Subject(partition consumer.Partition) string {
	return fmt.Sprintf("%s.%s.%d", c.config.SubjectPrefix, partition.Topic, partition.ID)
}

// Send implements consumer.Producer
func (c *Client) Send(ctx context.Context, partition consumer.Partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(c.Subject(partition))
	msg.Header.Set(keyHeader, key)
	msg.Data = value
	return c.connection.PublishMsg(msg)
}

// Flush waits for the server to process the published messages
func (c *Client) Flush(ctx context.Context) error {
	return c.connection.FlushWithContext(ctx)
}

// Consumer creates a consumer sharing the partitions of a group with the
// consumers of the same group on other nodes
func (c *Client) Consumer(group string) *Consumer {
	sub := newConsumer(c, group)
	c.mu.Lock()
	c.consumers = append(c.consumers, sub)
	c.mu.Unlock()
	return sub
}

// Close stops every consumer and drains the connection
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	consumers := c.consumers
	c.consumers = nil
	c.mu.Unlock()

	for _, sub := range consumers {
		sub.Stop()
		_ = sub.Unsubscribe()
	}

	c.connection.Close()
	c.logger.Info("nats connection closed")
	return nil
}
