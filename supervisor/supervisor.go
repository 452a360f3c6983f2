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
	"reflect"
	"sync"
	"time"

	gerrors "github.com/cfengine/cfengine/errors"
)

// Directive defines the supervisor directive
//
// It represents the action the actor system takes on an entity actor whose
// message handling failed.
type Directive int

const (
	// ResumeDirective keeps the actor and its processor state; the failed message is dropped.
	ResumeDirective Directive = iota
	// StopDirective stops the actor. Messages left in its mailbox are dead-lettered.
	StopDirective
	// RestartDirective rebuilds the actor and its processor. A restart that fails stops the actor.
	RestartDirective
)

// String returns the string representation of the directive
func (d Directive) String() string {
	switch d {
	case StopDirective:
		return "Stop"
	case ResumeDirective:
		return "Resume"
	case RestartDirective:
		return "Restart"
	default:
		return ""
	}
}

// SupervisorOption defines the supervisor option
type SupervisorOption func(*Supervisor)

// WithDirective maps an error to a directive.
//
// A sentinel error matches any failure for which errors.Is holds.
// Any other error matches by its dynamic type anywhere in the failure chain.
func WithDirective(err error, directive Directive) SupervisorOption {
	return func(s *Supervisor) {
		s.rules = append(s.rules, rule{target: err, typeName: errorType(err), directive: directive})
	}
}

// WithAnyErrorDirective applies the given directive to any failure.
// It takes precedence over every other rule.
func WithAnyErrorDirective(directive Directive) SupervisorOption {
	return func(s *Supervisor) {
		s.anyError = &directive
	}
}

// WithDefaultDirective sets the directive used when no rule matches.
func WithDefaultDirective(directive Directive) SupervisorOption {
	return func(s *Supervisor) {
		s.defaultDirective = directive
	}
}

// WithRetry bounds the restart directive: an actor is restarted at most maxRetries
// times within the given window before being stopped. A zero maxRetries means unbounded.
func WithRetry(maxRetries uint32, window time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.maxRetries = maxRetries
		s.window = window
	}
}

type rule struct {
	target    error
	typeName  string
	directive Directive
}

// Supervisor maps entity actor failures to directives
type Supervisor struct {
	mu               sync.RWMutex
	rules            []rule
	anyError         *Directive
	defaultDirective Directive
	maxRetries       uint32
	window           time.Duration
}

// NewSupervisor creates an instance of supervisor.
//
// By default failures resume the actor, except recovered panics which restart it
// since the processor state can no longer be trusted.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		defaultDirective: ResumeDirective,
		window:           -1,
	}

	// user rules are evaluated first
	for _, opt := range opts {
		opt(s)
	}

	s.rules = append(s.rules, rule{
		target:    &gerrors.PanicError{},
		typeName:  errorType(&gerrors.PanicError{}),
		directive: RestartDirective,
	})
	return s
}

// Directive returns the directive for the given failure
func (s *Supervisor) Directive(err error) Directive {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.anyError != nil {
		return *s.anyError
	}

	for _, r := range s.rules {
		if r.matches(err) {
			return r.directive
		}
	}
	return s.defaultDirective
}

// MaxRetries returns the maximum number of restarts within the retry window
func (s *Supervisor) MaxRetries() uint32 {
	return s.maxRetries
}

// Window returns the retry window. A negative value means the window never resets.
func (s *Supervisor) Window() time.Duration {
	return s.window
}

func (r rule) matches(err error) bool {
	if err == nil {
		return false
	}
	if isSentinel(r.target) {
		return errors.Is(err, r.target)
	}
	for current := []error{err}; len(current) > 0; {
		next := make([]error, 0)
		for _, e := range current {
			if errorType(e) == r.typeName {
				return true
			}
			switch unwrapped := e.(type) {
			case interface{ Unwrap() []error }:
				next = append(next, unwrapped.Unwrap()...)
			case interface{ Unwrap() error }:
				if inner := unwrapped.Unwrap(); inner != nil {
					next = append(next, inner)
				}
			}
		}
		current = next
	}
	return false
}

// isSentinel reports whether err is a comparable value created with errors.New
// or a similar constructor, as opposed to a typed error used as a type marker.
func isSentinel(err error) bool {
	return errorType(err) == "errors.errorString"
}

func errorType(err error) string {
	if err == nil {
		return "nil"
	}

	rtype := reflect.TypeOf(err)
	if rtype.Kind() == reflect.Pointer {
		rtype = rtype.Elem()
	}

	return rtype.String()
}
