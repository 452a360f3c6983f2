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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewActorSystemMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	systemMetric, err := NewActorSystemMetric(meter)
	require.NoError(t, err)
	assert.NotNil(t, systemMetric.ProcessedCount())
	assert.NotNil(t, systemMetric.DeclinedCount())
	assert.NotNil(t, systemMetric.FaultedCount())
	assert.NotNil(t, systemMetric.ActiveActors())
	assert.NotNil(t, systemMetric.RestartCount())
	assert.NotNil(t, systemMetric.ProcessingDuration())
}

func TestConsumerMetricRecording(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	consumerMetric, err := NewConsumerMetric(NewProvider(provider).Meter())
	require.NoError(t, err)

	consumerMetric.PolledRecords().Add(ctx, 3)
	consumerMetric.PolledRecords().Add(ctx, 2)
	consumerMetric.RunningTasks().Add(ctx, 1)
	consumerMetric.FailedBatches().Add(ctx, 1)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &data))
	require.Len(t, data.ScopeMetrics, 1)
	assert.Equal(t, instrumentationName, data.ScopeMetrics[0].Scope.Name)

	values := make(map[string]int64)
	for _, m := range data.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, point := range sum.DataPoints {
				values[m.Name] += point.Value
			}
		}
	}
	assert.EqualValues(t, 5, values["cf_consumer_polled_records"])
	assert.EqualValues(t, 1, values["cf_consumer_running_tasks"])
	assert.EqualValues(t, 1, values["cf_consumer_failed_batches"])
}

func TestNewProviderDefaultsToGlobal(t *testing.T) {
	require.NotNil(t, NewProvider(nil).Meter())
}
