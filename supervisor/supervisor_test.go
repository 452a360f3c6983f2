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

package supervisor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/cfengine/cfengine/errors"
)

type valueError struct{}

func (valueError) Error() string { return "value error" }

var errTransient = errors.New("transient")

func TestNewSupervisorDefaults(t *testing.T) {
	supervisor := NewSupervisor()

	require.EqualValues(t, 0, supervisor.MaxRetries())
	require.Equal(t, time.Duration(-1), supervisor.Window())

	require.Equal(t, ResumeDirective, supervisor.Directive(errors.New("processor failed")))
	require.Equal(t, RestartDirective, supervisor.Directive(gerrors.NewPanicError(errors.New("boom"))))
	require.Equal(t, RestartDirective,
		supervisor.Directive(fmt.Errorf("wrapped: %w", gerrors.NewPanicError(errors.New("boom")))))
}

func TestSupervisorWithDirective(t *testing.T) {
	t.Run("With sentinel error", func(t *testing.T) {
		supervisor := NewSupervisor(WithDirective(errTransient, StopDirective))
		require.Equal(t, StopDirective, supervisor.Directive(fmt.Errorf("save: %w", errTransient)))
		require.Equal(t, ResumeDirective, supervisor.Directive(errors.New("transient")))
	})
	t.Run("With typed error", func(t *testing.T) {
		supervisor := NewSupervisor(WithDirective(&gerrors.InternalError{}, StopDirective))
		require.Equal(t, StopDirective, supervisor.Directive(gerrors.NewInternalError(errors.New("bad"))))
		require.Equal(t, StopDirective, supervisor.Directive(errors.Join(errTransient, valueError{}, gerrors.NewInternalError(errTransient))))
	})
	t.Run("With value error type", func(t *testing.T) {
		supervisor := NewSupervisor(WithDirective(valueError{}, RestartDirective))
		require.Equal(t, RestartDirective, supervisor.Directive(fmt.Errorf("eval: %w", valueError{})))
	})
	t.Run("With user rule overriding panic default", func(t *testing.T) {
		supervisor := NewSupervisor(WithDirective(&gerrors.PanicError{}, StopDirective))
		require.Equal(t, StopDirective, supervisor.Directive(gerrors.NewPanicError(errTransient)))
	})
}

func TestSupervisorWithAnyError(t *testing.T) {
	supervisor := NewSupervisor(
		WithDirective(errTransient, ResumeDirective),
		WithAnyErrorDirective(StopDirective))
	require.Equal(t, StopDirective, supervisor.Directive(errTransient))
	require.Equal(t, StopDirective, supervisor.Directive(gerrors.NewPanicError(errTransient)))
}

func TestSupervisorOptions(t *testing.T) {
	supervisor := NewSupervisor(WithRetry(3, time.Minute), WithDefaultDirective(StopDirective))
	assert.EqualValues(t, 3, supervisor.MaxRetries())
	assert.Equal(t, time.Minute, supervisor.Window())
	assert.Equal(t, StopDirective, supervisor.Directive(errors.New("any")))
}

func TestDirectiveString(t *testing.T) {
	require.Equal(t, "Stop", StopDirective.String())
	require.Equal(t, "Resume", ResumeDirective.String())
	require.Equal(t, "Restart", RestartDirective.String())
	require.Equal(t, "", Directive(42).String())
}
