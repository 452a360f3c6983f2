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

package actor

import (
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/supervisor"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(sys *System)
}

// enforce compilation error
var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*System)

// Apply applies the option
func (f OptionFunc) Apply(c *System) {
	f(c)
}

// WithLogger sets the actor system custom log
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(a *System) {
		a.logger = logger
	})
}

// WithMailboxSize bounds every actor mailbox to the given capacity.
// Zero, the default, means unbounded.
func WithMailboxSize(size int) Option {
	return OptionFunc(func(a *System) {
		a.mailboxSize = size
	})
}

// WithSupervisor sets the supervisor deciding what happens to a faulted actor
func WithSupervisor(supervisor *supervisor.Supervisor) Option {
	return OptionFunc(func(a *System) {
		a.supervisor = supervisor
	})
}

// WithIdleTimeout evicts actors that did not receive any message for the given duration.
// Eviction is disabled by default.
func WithIdleTimeout(timeout time.Duration) Option {
	return OptionFunc(func(a *System) {
		a.idleTimeout = timeout
	})
}

// WithEvictionInterval sets how often idle actors are looked for
func WithEvictionInterval(interval time.Duration) Option {
	return OptionFunc(func(a *System) {
		a.evictionInterval = interval
	})
}

// WithFallback appends handlers offered the messages declined by the entity actors.
// Handlers are tried in order until one of them does not decline.
func WithFallback(handlers ...FallbackHandler) Option {
	return OptionFunc(func(a *System) {
		a.fallbacks = append(a.fallbacks, handlers...)
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// The global provider is used by default.
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(a *System) {
		a.meterProvider = provider
	})
}
