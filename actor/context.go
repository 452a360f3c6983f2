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

	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/message"
)

// outcome is what an Ask caller receives
type outcome struct {
	result Result
	err    error
}

// ReceiveContext is the message being handled together with the means to report its outcome.
// It is only valid during the Receive or FallbackHandler call it is passed to.
type ReceiveContext struct {
	ctx     context.Context
	message message.Message
	self    *PID
	result  Result
	err     error
	reply   chan outcome
}

func newReceiveContext(ctx context.Context, msg message.Message, synchronous bool) *ReceiveContext {
	rctx := &ReceiveContext{
		ctx:     context.WithoutCancel(ctx),
		message: msg,
		result:  Handled,
	}
	if synchronous {
		rctx.reply = make(chan outcome, 1)
	}
	return rctx
}

// Context returns the context the message was sent with. It is never cancelled
// by the sender since the message outlives the Tell call.
func (rctx *ReceiveContext) Context() context.Context {
	return rctx.ctx
}

// Message returns the message being handled
func (rctx *ReceiveContext) Message() message.Message {
	return rctx.message
}

// Self returns the PID handling the message
func (rctx *ReceiveContext) Self() *PID {
	return rctx.self
}

// Logger returns the logger of the actor system
func (rctx *ReceiveContext) Logger() log.Logger {
	return rctx.self.logger
}

// Unhandled declines the message. Declining is not an error: the message is offered to the
// fallback handlers and dead-lettered when nobody accepts it.
func (rctx *ReceiveContext) Unhandled() {
	rctx.result = Declined
}

// Err faults the message with the given error. The error is handed to the supervisor.
func (rctx *ReceiveContext) Err(err error) {
	if err == nil {
		return
	}
	rctx.result = Faulted
	rctx.err = err
}

// Stop asks the PID to stop once the messages already in its mailbox are handled
func (rctx *ReceiveContext) Stop() {
	rctx.self.stop()
}

// Result returns the current outcome
func (rctx *ReceiveContext) Result() Result {
	return rctx.result
}

func (rctx *ReceiveContext) respond(result Result, err error) {
	if rctx.reply != nil {
		rctx.reply <- outcome{result: result, err: err}
	}
}
