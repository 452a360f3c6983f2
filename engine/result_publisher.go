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

	"github.com/cfengine/cfengine/calculatedfield"
	"github.com/cfengine/cfengine/consumer"
	"github.com/cfengine/cfengine/hash"
	"github.com/cfengine/cfengine/message"
)

// resultPublisher sends the calculated values to the result topic as entity
// telemetry, keyed by entity like the telemetry topic
type resultPublisher struct {
	producer    consumer.Producer
	topic       string
	partitioner *hash.Partitioner
}

var _ calculatedfield.ResultSink = (*resultPublisher)(nil)

func newResultPublisher(producer consumer.Producer, topic string, partitioner *hash.Partitioner) *resultPublisher {
	return &resultPublisher{
		producer:    producer,
		topic:       topic,
		partitioner: partitioner,
	}
}

// Emit implements calculatedfield.ResultSink
func (p *resultPublisher) Emit(ctx context.Context, result *calculatedfield.Result) error {
	msg := message.NewEntityTelemetryMsg(result.Key, message.TelemetryEntry{
		Key:   result.Output,
		Value: result.Value,
		Ts:    result.Ts,
	})
	bytea, err := message.Encode(msg)
	if err != nil {
		return err
	}

	key := result.Key.String()
	partition := consumer.Partition{Topic: p.topic, ID: int32(p.partitioner.Partition(key))}
	return p.producer.Send(ctx, partition, key, bytea)
}
