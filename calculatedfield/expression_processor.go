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
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"
	goValuate "gopkg.in/Knetic/govaluate.v3"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
)

type argumentState struct {
	Value float64 `msgpack:"v"`
	Ts    int64   `msgpack:"ts"`
}

// processorSnapshot is the persisted state: field id -> argument name -> latest value
type processorSnapshot struct {
	Arguments map[string]map[string]argumentState `msgpack:"a"`
}

type compiledArgument struct {
	Argument
	source uuid.UUID
}

type compiledField struct {
	field      *CalculatedField
	expression *goValuate.EvaluableExpression
	arguments  []compiledArgument
}

// ExpressionProcessor evaluates the SIMPLE calculated fields of an entity.
// It keeps the latest value of every argument, recomputes the fields whose
// arguments changed and persists its state after every update.
type ExpressionProcessor struct {
	sctx   *SystemContext
	key    entity.Key
	logger log.Logger
	fields []*compiledField
	state  map[string]map[string]argumentState
}

// enforce compilation error
var _ Processor = (*ExpressionProcessor)(nil)

// NewExpressionProcessor creates an ExpressionProcessor
func NewExpressionProcessor(sctx *SystemContext, key entity.Key) *ExpressionProcessor {
	return &ExpressionProcessor{
		sctx:   sctx,
		key:    key,
		logger: sctx.Logger,
		state:  make(map[string]map[string]argumentState),
	}
}

// Init loads and compiles the fields of the entity and reloads the last persisted snapshot
func (x *ExpressionProcessor) Init(ctx context.Context) error {
	fields, err := x.sctx.Registry.Fields(ctx, x.key)
	if err != nil {
		return fmt.Errorf("failed to load calculated fields: %w", err)
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	x.fields = make([]*compiledField, 0, len(fields))
	for _, field := range fields {
		compiled, err := compile(x.key, field)
		if err != nil {
			return err
		}
		x.fields = append(x.fields, compiled)
	}

	if x.sctx.Store == nil {
		return nil
	}

	bytea, err := x.sctx.Store.Load(ctx, x.key.String())
	switch {
	case errors.Is(err, gerrors.ErrKeyNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load state: %w", err)
	}

	if err := x.restore(bytea); err != nil {
		// a corrupted snapshot must not keep the entity down
		x.logger.Warnf("%s discarding persisted state: %v", x.key.LogPrefix(), err)
	}
	return nil
}

// RestoreState implements Processor
func (x *ExpressionProcessor) RestoreState(_ context.Context, msg *message.StateRestoreMsg) error {
	return x.restore(msg.Snapshot)
}

// ProcessTelemetry implements Processor
func (x *ExpressionProcessor) ProcessTelemetry(ctx context.Context, msg *message.EntityTelemetryMsg) error {
	return x.apply(ctx, x.key.EntityID, msg.Entries)
}

// ProcessLinkedTelemetry implements Processor
func (x *ExpressionProcessor) ProcessLinkedTelemetry(ctx context.Context, msg *message.LinkedTelemetryMsg) error {
	return x.apply(ctx, msg.SourceID, msg.Entries)
}

// Close implements Processor
func (x *ExpressionProcessor) Close() error {
	x.fields = nil
	x.state = make(map[string]map[string]argumentState)
	return nil
}

// Snapshot returns the encoded state of the processor
func (x *ExpressionProcessor) Snapshot() ([]byte, error) {
	return msgpack.Marshal(&processorSnapshot{Arguments: x.state})
}

func (x *ExpressionProcessor) apply(ctx context.Context, source uuid.UUID, entries []message.TelemetryEntry) error {
	dirty := make([]bool, len(x.fields))
	changed := false
	for i, compiled := range x.fields {
		for _, arg := range compiled.arguments {
			if arg.source != source {
				continue
			}
			for _, entry := range entries {
				if entry.Key != arg.Key {
					continue
				}
				values := x.values(compiled.field.ID)
				if current, ok := values[arg.Name]; ok && entry.Ts < current.Ts {
					continue
				}
				values[arg.Name] = argumentState{Value: entry.Value, Ts: entry.Ts}
				dirty[i] = true
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}

	var err error
	for i, compiled := range x.fields {
		if !dirty[i] {
			continue
		}
		result, ok, evalErr := x.evaluate(compiled)
		if evalErr != nil {
			err = multierr.Append(err, evalErr)
			continue
		}
		if ok {
			err = multierr.Append(err, x.sctx.Sink.Emit(ctx, result))
		}
	}
	return multierr.Append(err, x.persist(ctx))
}

func (x *ExpressionProcessor) evaluate(compiled *compiledField) (*Result, bool, error) {
	values := x.state[compiled.field.ID]
	params := make(map[string]any, len(compiled.arguments))
	var ts int64
	for _, arg := range compiled.arguments {
		if current, ok := values[arg.Name]; ok {
			params[arg.Name] = current.Value
			ts = max(ts, current.Ts)
			continue
		}
		if arg.Default == nil {
			return nil, false, nil
		}
		params[arg.Name] = *arg.Default
	}

	out, err := compiled.expression.Evaluate(params)
	if err != nil {
		return nil, false, fmt.Errorf("failed to evaluate %s: %w", compiled.field, err)
	}

	var value float64
	switch v := out.(type) {
	case float64:
		value = v
	case bool:
		if v {
			value = 1
		}
	default:
		return nil, false, fmt.Errorf("field %s evaluated to a non numeric value %v", compiled.field.ID, out)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, false, fmt.Errorf("field %s evaluated to %v", compiled.field.ID, value)
	}

	return &Result{
		Key:     x.key,
		FieldID: compiled.field.ID,
		Output:  compiled.field.Output,
		Value:   value,
		Ts:      ts,
	}, true, nil
}

func (x *ExpressionProcessor) values(fieldID string) map[string]argumentState {
	values, ok := x.state[fieldID]
	if !ok {
		values = make(map[string]argumentState)
		x.state[fieldID] = values
	}
	return values
}

func (x *ExpressionProcessor) persist(ctx context.Context) error {
	if x.sctx.Store == nil {
		return nil
	}
	bytea, err := x.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := x.sctx.Store.Save(ctx, x.key.String(), bytea); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// restore replaces the state with the snapshot, keeping the arguments of the known fields only
func (x *ExpressionProcessor) restore(bytea []byte) error {
	snapshot := new(processorSnapshot)
	if err := msgpack.Unmarshal(bytea, snapshot); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	state := make(map[string]map[string]argumentState, len(x.fields))
	for _, compiled := range x.fields {
		stored, ok := snapshot.Arguments[compiled.field.ID]
		if !ok {
			continue
		}
		values := make(map[string]argumentState, len(compiled.arguments))
		for _, arg := range compiled.arguments {
			if value, ok := stored[arg.Name]; ok {
				values[arg.Name] = value
			}
		}
		state[compiled.field.ID] = values
	}
	x.state = state
	x.logger.Debugf("%s state restored for %d field(s)", x.key.LogPrefix(), len(state))
	return nil
}

func compile(owner entity.Key, field *CalculatedField) (*compiledField, error) {
	if err := field.Validate(); err != nil {
		if field.Type != SimpleField {
			return nil, errors.Join(gerrors.ErrUnsupportedFieldType, err)
		}
		return nil, err
	}

	expression, err := goValuate.NewEvaluableExpression(field.Expression)
	if err != nil {
		return nil, fmt.Errorf("cannot compile expression of field %s: %w", field.ID, err)
	}

	arguments := make([]compiledArgument, 0, len(field.Arguments))
	names := make(map[string]struct{}, len(field.Arguments))
	for _, arg := range field.Arguments {
		source, _ := arg.SourceID(owner.EntityID)
		arguments = append(arguments, compiledArgument{Argument: arg, source: source})
		names[arg.Name] = struct{}{}
	}

	for _, variable := range expression.Vars() {
		if _, ok := names[variable]; !ok {
			return nil, fmt.Errorf("field %s uses the undeclared argument %s", field.ID, variable)
		}
	}

	return &compiledField{
		field:      field,
		expression: expression,
		arguments:  arguments,
	}, nil
}
