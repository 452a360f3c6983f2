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
	"context"

	"github.com/cfengine/cfengine/entity"
)

// Actor is the behavior hosted by a PID. One instance serves exactly one entity
// and all of its methods are invoked from a single goroutine at a time.
type Actor interface {
	// PreStart is called once before the actor receives any message.
	// A failure marks the PID Failed: it is never registered nor routed to.
	PreStart(ctx context.Context) error
	// Receive handles a single message. The outcome is reported through the
	// ReceiveContext: Unhandled declines the message and Err faults it.
	Receive(ctx *ReceiveContext)
	// PostStop is called once when the actor is stopped, evicted or restarted.
	PostStop(ctx context.Context) error
}

// Factory creates the actor serving the given entity
type Factory func(key entity.Key) (Actor, error)

// FallbackHandler handles messages declined by the entity actor.
// A handler declines in turn with ReceiveContext.Unhandled.
type FallbackHandler func(ctx *ReceiveContext)

// Result is the outcome of a single message handling
type Result int

const (
	// Handled means a handler accepted and processed the message
	Handled Result = iota
	// Declined means no handler accepted the message. It is not an error.
	Declined
	// Faulted means a handler accepted the message and failed to process it
	Faulted
)

// String returns the result name
func (r Result) String() string {
	switch r {
	case Handled:
		return "Handled"
	case Declined:
		return "Declined"
	case Faulted:
		return "Faulted"
	default:
		return ""
	}
}

// State is the lifecycle state of a PID
type State int32

const (
	// Uninitialized is the state of a PID that has not started yet
	Uninitialized State = iota
	// Initializing means PreStart is running
	Initializing
	// Running means the actor accepts messages
	Running
	// Failed means PreStart or a restart failed
	Failed
	// Stopping means the actor no longer accepts messages and drains its mailbox
	Stopping
	// Stopped means PostStop ran and the PID is gone
	Stopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Failed:
		return "Failed"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return ""
	}
}
