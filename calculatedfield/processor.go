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

package calculatedfield

import (
	"context"
	"sync"

	"github.com/cfengine/cfengine/entity"
	"github.com/cfengine/cfengine/internal/validation"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
	"github.com/cfengine/cfengine/persistence"
)

// Processor holds the calculated field state of one entity.
// Every call is made from the goroutine of the owning EntityActor, one at a time.
type Processor interface {
	// Init prepares the processor. A failure is fatal for the owning actor.
	Init(ctx context.Context) error
	// RestoreState replaces the processor state with a persisted snapshot
	RestoreState(ctx context.Context, msg *message.StateRestoreMsg) error
	// ProcessTelemetry handles telemetry reported by the entity itself
	ProcessTelemetry(ctx context.Context, msg *message.EntityTelemetryMsg) error
	// ProcessLinkedTelemetry handles telemetry of a linked source entity
	ProcessLinkedTelemetry(ctx context.Context, msg *message.LinkedTelemetryMsg) error
	// Close releases the processor. Its in-memory state is gone afterwards.
	Close() error
}

// ProcessorFactory creates the processor of an entity
type ProcessorFactory func(sctx *SystemContext, key entity.Key) (Processor, error)

// Result is a calculated field value
type Result struct {
	Key     entity.Key
	FieldID string
	Output  string
	Value   float64
	// Ts is the latest timestamp among the arguments, in unix milliseconds
	Ts int64
}

// ResultSink receives the computed values
type ResultSink interface {
	Emit(ctx context.Context, result *Result) error
}

// SystemContext is shared by every entity actor of an engine
type SystemContext struct {
	Logger           log.Logger
	Store            persistence.StateStore
	Registry         FieldRegistry
	Sink             ResultSink
	ProcessorFactory ProcessorFactory
}

// Validate checks that the mandatory collaborators are set
func (s *SystemContext) Validate() error {
	return validation.New(validation.AllErrors()).
		AddAssertion(s.Logger != nil, "the [logger] is required").
		AddAssertion(s.Registry != nil, "the [registry] is required").
		AddAssertion(s.Sink != nil, "the [sink] is required").
		Validate()
}

func (s *SystemContext) newProcessor(key entity.Key) (Processor, error) {
	if s.ProcessorFactory != nil {
		return s.ProcessorFactory(s, key)
	}
	return NewExpressionProcessor(s, key), nil
}

// MemorySink keeps every emitted result in memory
type MemorySink struct {
	mu      sync.Mutex
	results []*Result
}

var _ ResultSink = (*MemorySink)(nil)

// NewMemorySink creates a MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit implements ResultSink
func (s *MemorySink) Emit(_ context.Context, result *Result) error {
	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()
	return nil
}

// Results returns a copy of the emitted results
func (s *MemorySink) Results() []*Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Result, len(s.results))
	copy(out, s.results)
	return out
}

// LogSink logs every emitted result
type LogSink struct {
	logger log.Logger
}

var _ ResultSink = (*LogSink)(nil)

// NewLogSink creates a LogSink
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements ResultSink
func (s *LogSink) Emit(_ context.Context, result *Result) error {
	s.logger.Infof("%s %s=%v (field=%s ts=%d)", result.Key.LogPrefix(), result.Output, result.Value, result.FieldID, result.Ts)
	return nil
}
