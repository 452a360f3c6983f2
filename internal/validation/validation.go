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

package validation

import (
	"fmt"

	"go.uber.org/multierr"
)

// Validator checks a single value
type Validator interface {
	Validate() error
}

// ValidatorFunc adapts a function to a Validator
type ValidatorFunc func() error

// Validate implements Validator
func (f ValidatorFunc) Validate() error {
	return f()
}

// Chain runs validators in the order they were added
type Chain struct {
	failFast bool
	checks   []Validator
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// FailFast stops the chain at the first violation
func FailFast() ChainOption {
	return func(c *Chain) { c.failFast = true }
}

// AllErrors runs every validator and combines the violations. This is the default.
func AllErrors() ChainOption {
	return func(c *Chain) { c.failFast = false }
}

// New creates an empty Chain
func New(opts ...ChainOption) *Chain {
	chain := new(Chain)
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddValidator appends a validator
func (c *Chain) AddValidator(v Validator) *Chain {
	c.checks = append(c.checks, v)
	return c
}

// AddAssertion appends a violation reported with message unless isTrue holds
func (c *Chain) AddAssertion(isTrue bool, message string) *Chain {
	return c.AddValidator(NewBooleanValidator(isTrue, message))
}

// AddAssertionf is AddAssertion with a formatted message
func (c *Chain) AddAssertionf(isTrue bool, format string, args ...any) *Chain {
	if isTrue {
		return c.AddValidator(NewBooleanValidator(true, ""))
	}
	return c.AddValidator(NewBooleanValidator(false, fmt.Sprintf(format, args...)))
}

// Validate runs the chain. With AllErrors the violations are combined with
// multierr and can be listed with multierr.Errors.
func (c *Chain) Validate() error {
	var violations []error
	for _, check := range c.checks {
		err := check.Validate()
		if err == nil {
			continue
		}
		if c.failFast {
			return err
		}
		violations = append(violations, err)
	}
	return multierr.Combine(violations...)
}
