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

// ActorSystemMetric defines the actor system instrumentation
type ActorSystemMetric struct {
	// Specifies the number of messages handled
	processedCount metric.Int64Counter
	// Specifies the number of messages declined by every handler
	declinedCount metric.Int64Counter
	// Specifies the number of messages that faulted
	faultedCount metric.Int64Counter
	// Specifies the number of live actors
	activeActors metric.Int64UpDownCounter
	// Specifies the number of actors restarted by supervision
	restartCount metric.Int64Counter
	// Specifies the processing latency in milliseconds
	processingDuration metric.Float64Histogram
}

// NewActorSystemMetric creates an instance of ActorSystemMetric
func NewActorSystemMetric(meter metric.Meter) (*ActorSystemMetric, error) {
	systemMetric := new(ActorSystemMetric)
	var err error

	if systemMetric.processedCount, err = meter.Int64Counter(
		"cf_actor_processed_count",
		metric.WithDescription("Total number of messages handled by entity actors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create processedCount instrument, %w", err)
	}

	if systemMetric.declinedCount, err = meter.Int64Counter(
		"cf_actor_declined_count",
		metric.WithDescription("Total number of messages declined by every handler"),
	); err != nil {
		return nil, fmt.Errorf("failed to create declinedCount instrument, %w", err)
	}

	if systemMetric.faultedCount, err = meter.Int64Counter(
		"cf_actor_faulted_count",
		metric.WithDescription("Total number of messages whose processing failed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create faultedCount instrument, %w", err)
	}

	if systemMetric.activeActors, err = meter.Int64UpDownCounter(
		"cf_actor_active_count",
		metric.WithDescription("Number of running entity actors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activeActors instrument, %w", err)
	}

	if systemMetric.restartCount, err = meter.Int64Counter(
		"cf_actor_restart_count",
		metric.WithDescription("Total number of entity actor restarts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create restartCount instrument, %w", err)
	}

	if systemMetric.processingDuration, err = meter.Float64Histogram(
		"cf_actor_processing_duration",
		metric.WithDescription("The latency of a message processing in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create processingDuration instrument, %w", err)
	}

	return systemMetric, nil
}

// ProcessedCount returns the handled messages counter
func (x *ActorSystemMetric) ProcessedCount() metric.Int64Counter {
	return x.processedCount
}

// DeclinedCount returns the declined messages counter
func (x *ActorSystemMetric) DeclinedCount() metric.Int64Counter {
	return x.declinedCount
}

// FaultedCount returns the faulted messages counter
func (x *ActorSystemMetric) FaultedCount() metric.Int64Counter {
	return x.faultedCount
}

// ActiveActors returns the live actors gauge
func (x *ActorSystemMetric) ActiveActors() metric.Int64UpDownCounter {
	return x.activeActors
}

// RestartCount returns the restart counter
func (x *ActorSystemMetric) RestartCount() metric.Int64Counter {
	return x.restartCount
}

// ProcessingDuration returns the processing latency histogram
func (x *ActorSystemMetric) ProcessingDuration() metric.Float64Histogram {
	return x.processingDuration
}
