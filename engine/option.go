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
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cfengine/cfengine/calculatedfield"
	"github.com/cfengine/cfengine/consumer"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/persistence"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(engine *Engine)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(engine *Engine)

// Apply applies the Engine's option
func (f OptionFunc) Apply(engine *Engine) {
	f(engine)
}

// WithLogger sets the engine logger. The default logger is built from the configured level.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(engine *Engine) {
		engine.logger = logger
	})
}

// WithStateStore sets the state store instead of the configured one
func WithStateStore(store persistence.StateStore) Option {
	return OptionFunc(func(engine *Engine) {
		engine.store = store
	})
}

// WithRegistry sets the field registry instead of the configured fields
func WithRegistry(registry calculatedfield.FieldRegistry) Option {
	return OptionFunc(func(engine *Engine) {
		engine.registry = registry
	})
}

// WithResultSink sets where the calculated values go
func WithResultSink(sink calculatedfield.ResultSink) Option {
	return OptionFunc(func(engine *Engine) {
		engine.sink = sink
	})
}

// WithProcessorFactory replaces the expression processor
func WithProcessorFactory(factory calculatedfield.ProcessorFactory) Option {
	return OptionFunc(func(engine *Engine) {
		engine.processorFactory = factory
	})
}

// WithMemoryBroker sets the broker used by the memory queue
func WithMemoryBroker(broker *consumer.MemoryBroker) Option {
	return OptionFunc(func(engine *Engine) {
		engine.broker = broker
	})
}

// WithMeterProvider sets the meter provider of the engine metrics
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(engine *Engine) {
		engine.meterProvider = provider
	})
}
