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

package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInitFailure is returned when the actor's preStart hook fails during initialization.
	ErrInitFailure = errors.New("preStart failed")

	// ErrDead indicates that the actor is no longer alive or has been terminated.
	ErrDead = errors.New("actor is not alive")

	// ErrUnhandled is returned when no handler in the chain accepts a message.
	ErrUnhandled = errors.New("unhandled message")

	// ErrActorNotFound indicates that the specified actor could not be found in the system.
	ErrActorNotFound = errors.New("actor not found")

	// ErrMailboxFull is returned when a bounded mailbox cannot accept more messages.
	ErrMailboxFull = errors.New("mailbox is full")

	// ErrSystemShuttingDown is returned when a message is sent to a system that is stopping.
	ErrSystemShuttingDown = errors.New("actor system is shutting down")

	// ErrSystemNotStarted indicates that an actor system has not been started before use.
	ErrSystemNotStarted = errors.New("actor system is not running")

	// ErrInvalidEntity is returned when an entity actor is built without a context or an identity.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidMessage indicates that a message is structurally or semantically invalid.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrAwaitTimeout is returned when a consumer task loop does not signal completion in time.
	ErrAwaitTimeout = errors.New("consumer task did not finish in time")

	// ErrConsumerStopped is returned when a stopped consumer is used.
	ErrConsumerStopped = errors.New("consumer is stopped")

	// ErrKeyNotFound is returned by state stores when no snapshot exists for a key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreClosed is returned when a closed state store is used.
	ErrStoreClosed = errors.New("store is closed")

	// ErrEngineNotStarted is returned when the engine is used before Start or after Stop.
	ErrEngineNotStarted = errors.New("engine is not started")

	// ErrUnsupportedFieldType is returned for calculated field types the engine cannot evaluate.
	ErrUnsupportedFieldType = errors.New("unsupported calculated field type")
)

// NewErrInitFailure wraps a base error with ErrInitFailure to indicate a startup failure.
func NewErrInitFailure(err error) error {
	return errors.Join(ErrInitFailure, err)
}

// NewErrUnhandledMessage wraps a base error with ErrUnhandled.
func NewErrUnhandledMessage(err error) error {
	return errors.Join(ErrUnhandled, err)
}

// NewErrActorNotFound returns ErrActorNotFound for the given entity key.
func NewErrActorNotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrActorNotFound, key)
}

// NewErrInvalidMessage wraps a base error with ErrInvalidMessage.
func NewErrInvalidMessage(err error) error {
	return errors.Join(ErrInvalidMessage, err)
}

// NewErrAwaitTimeout returns ErrAwaitTimeout annotated with the task key and the timeout.
func NewErrAwaitTimeout(key string, timeout time.Duration) error {
	return fmt.Errorf("[%s] %w after %s", key, ErrAwaitTimeout, timeout)
}

// NewErrKeyNotFound returns ErrKeyNotFound for the given store key.
func NewErrKeyNotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

// InternalError defines an error that is explicit to the application
type InternalError struct {
	err error
}

// enforce compilation error
var _ error = (*InternalError)(nil)

// NewInternalError returns an intance of InternalError
func NewInternalError(err error) *InternalError {
	return &InternalError{
		err: fmt.Errorf("internal error: %w", err),
	}
}

// Error implements the standard error interface
func (i *InternalError) Error() string {
	return i.err.Error()
}

func (i *InternalError) Unwrap() error {
	return i.err
}

// AnyError is used in supervisor directive mappings to match every error.
type AnyError struct{}

// enforce compilation error
var _ error = (*AnyError)(nil)

// Error implements the standard error interface
func (a *AnyError) Error() string {
	return "*"
}
