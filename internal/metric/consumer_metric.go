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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// ConsumerMetric defines the consumer manager instrumentation
type ConsumerMetric struct {
	polledRecords metric.Int64Counter
	pollErrors    metric.Int64Counter
	awaitTimeouts metric.Int64Counter
	failedBatches metric.Int64Counter
	runningTasks  metric.Int64UpDownCounter
}

// NewConsumerMetric creates an instance of ConsumerMetric
func NewConsumerMetric(meter metric.Meter) (*ConsumerMetric, error) {
	consumerMetric := new(ConsumerMetric)
	var err error

	if consumerMetric.polledRecords, err = meter.Int64Counter(
		"cf_consumer_polled_records",
		metric.WithDescription("Total number of records polled from the queue"),
	); err != nil {
		return nil, fmt.Errorf("failed to create polledRecords instrument, %w", err)
	}

	if consumerMetric.pollErrors, err = meter.Int64Counter(
		"cf_consumer_poll_errors",
		metric.WithDescription("Total number of failed polls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pollErrors instrument, %w", err)
	}

	if consumerMetric.awaitTimeouts, err = meter.Int64Counter(
		"cf_consumer_await_timeouts",
		metric.WithDescription("Total number of consumer tasks that did not finish in time"),
	); err != nil {
		return nil, fmt.Errorf("failed to create awaitTimeouts instrument, %w", err)
	}

	if consumerMetric.failedBatches, err = meter.Int64Counter(
		"cf_consumer_failed_batches",
		metric.WithDescription("Total number of batches rolled back after a handler failure"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failedBatches instrument, %w", err)
	}

	if consumerMetric.runningTasks, err = meter.Int64UpDownCounter(
		"cf_consumer_running_tasks",
		metric.WithDescription("Number of running consumer task loops"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runningTasks instrument, %w", err)
	}

	return consumerMetric, nil
}

// PolledRecords returns the polled records counter
func (x *ConsumerMetric) PolledRecords() metric.Int64Counter {
	return x.polledRecords
}

// PollErrors returns the poll errors counter
func (x *ConsumerMetric) PollErrors() metric.Int64Counter {
	return x.pollErrors
}

// AwaitTimeouts returns the await timeouts counter
func (x *ConsumerMetric) AwaitTimeouts() metric.Int64Counter {
	return x.awaitTimeouts
}

// FailedBatches returns the rolled back batches counter
func (x *ConsumerMetric) FailedBatches() metric.Int64Counter {
	return x.failedBatches
}

// RunningTasks returns the running loops gauge
func (x *ConsumerMetric) RunningTasks() metric.Int64UpDownCounter {
	return x.runningTasks
}
