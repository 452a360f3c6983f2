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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := errors.New("something went wrong")
	internalErr := NewInternalError(err)
	require.Error(t, internalErr)
	require.EqualError(t, internalErr, "internal error: something went wrong")
	assert.ErrorIs(t, internalErr.Unwrap(), err)

	panicErr := NewPanicError(err)
	require.EqualError(t, panicErr, "panic: something went wrong")
	assert.ErrorIs(t, panicErr, err)

	anyError := &AnyError{}
	require.Equal(t, anyError.Error(), "*")
}

func TestWrappers(t *testing.T) {
	cause := errors.New("cannot load fields")

	initErr := NewErrInitFailure(cause)
	assert.ErrorIs(t, initErr, ErrInitFailure)
	assert.ErrorIs(t, initErr, cause)

	unhandled := NewErrUnhandledMessage(cause)
	assert.ErrorIs(t, unhandled, ErrUnhandled)

	invalid := NewErrInvalidMessage(cause)
	assert.ErrorIs(t, invalid, ErrInvalidMessage)
	assert.ErrorIs(t, invalid, cause)

	timeout := NewErrAwaitTimeout("group-1", 30*time.Second)
	assert.ErrorIs(t, timeout, ErrAwaitTimeout)
	assert.EqualError(t, timeout, "[group-1] consumer task did not finish in time after 30s")

	notFound := NewErrKeyNotFound("t1/e1")
	assert.ErrorIs(t, notFound, ErrKeyNotFound)
	assert.ErrorIs(t, NewErrActorNotFound("t1/e1"), ErrActorNotFound)
}
