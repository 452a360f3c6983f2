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
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/internal/validation"
)

// FieldType defines how a calculated field is computed
type FieldType string

const (
	// SimpleField is an arithmetic expression over the field arguments
	SimpleField FieldType = "SIMPLE"
	// ScriptField is a sandboxed script. It is recognized but not supported.
	ScriptField FieldType = "SCRIPT"
)

// Argument binds an expression variable to a telemetry key of an entity
type Argument struct {
	// Name is the variable name used in the expression
	Name string `yaml:"name"`
	// Source is the entity reporting the telemetry. Empty means the owning entity.
	Source string `yaml:"source,omitempty"`
	// Key is the telemetry key
	Key string `yaml:"key"`
	// Default is used until the telemetry key has been reported
	Default *float64 `yaml:"default,omitempty"`
}

// SourceID returns the entity the argument reads from given the owning entity
func (a Argument) SourceID(owner uuid.UUID) (uuid.UUID, error) {
	if a.Source == "" {
		return owner, nil
	}
	return uuid.Parse(a.Source)
}

// CalculatedField is a value derived from telemetry
type CalculatedField struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Type       FieldType  `yaml:"type"`
	Tenant     string     `yaml:"tenant"`
	Entity     string     `yaml:"entity"`
	Arguments  []Argument `yaml:"arguments"`
	Expression string     `yaml:"expression"`
	Output     string     `yaml:"output"`
}

// Key returns the entity owning the field
func (f *CalculatedField) Key() (entity.Key, error) {
	return entity.ParseKey(f.Tenant + "/" + f.Entity)
}

// Validate checks the field definition without compiling its expression
func (f *CalculatedField) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewNameValidator("id", f.ID)).
		AddValidator(validation.NewEmptyStringValidator("expression", f.Expression)).
		AddValidator(validation.NewEmptyStringValidator("output", f.Output)).
		AddAssertion(len(f.Arguments) > 0, fmt.Sprintf("the field [%s] must have at least one argument", f.ID))

	names := make(map[string]struct{}, len(f.Arguments))
	for _, arg := range f.Arguments {
		chain.AddValidator(validation.NewEmptyStringValidator("argument.name", arg.Name)).
			AddValidator(validation.NewEmptyStringValidator("argument.key", arg.Key))
		if _, ok := names[arg.Name]; ok {
			chain.AddAssertion(false, fmt.Sprintf("the argument [%s] is declared twice", arg.Name))
		}
		names[arg.Name] = struct{}{}
		if _, err := arg.SourceID(uuid.Nil); err != nil {
			chain.AddAssertion(false, fmt.Sprintf("the argument [%s] has an invalid source: %v", arg.Name, err))
		}
	}

	if _, err := f.Key(); err != nil {
		chain.AddAssertion(false, fmt.Sprintf("the field [%s] has an invalid owner: %v", f.ID, err))
	}

	switch f.Type {
	case SimpleField:
	case ScriptField:
		chain.AddAssertion(false, fmt.Sprintf("the field [%s]: %v: %s", f.ID, gerrors.ErrUnsupportedFieldType, f.Type))
	default:
		chain.AddAssertion(false, fmt.Sprintf("the field [%s]: %v: %q", f.ID, gerrors.ErrUnsupportedFieldType, f.Type))
	}
	return chain.Validate()
}

func (f *CalculatedField) String() string {
	return fmt.Sprintf("%s(%s)", f.ID, strings.TrimSpace(f.Expression))
}
