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
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cfengine/cfengine/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(manager *Manager)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Manager)

// Apply applies the Manager's option
func (f OptionFunc) Apply(m *Manager) {
	f(m)
}

// WithLogger sets the manager logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(m *Manager) {
		m.logger = logger
	})
}

// WithPollTimeout sets how long a single poll may wait for records
func WithPollTimeout(timeout time.Duration) Option {
	return OptionFunc(func(m *Manager) {
		m.pollTimeout = timeout
	})
}

// WithPollErrorDelay sets the pause after a failed poll
func WithPollErrorDelay(delay time.Duration) Option {
	return OptionFunc(func(m *Manager) {
		m.pollErrorDelay = delay
	})
}

// WithCommitRetries sets how many times a failed commit is attempted
func WithCommitRetries(retries int) Option {
	return OptionFunc(func(m *Manager) {
		m.commitRetries = retries
	})
}

// WithTaskOptions sets the options of every task created by the manager
func WithTaskOptions(opts ...TaskOption) Option {
	return OptionFunc(func(m *Manager) {
		m.taskOptions = append(m.taskOptions, opts...)
	})
}

// WithMeterProvider sets the meter provider of the manager metrics
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(m *Manager) {
		m.meterProvider = provider
	})
}
