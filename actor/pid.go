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
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/log"
	"github.com/cfengine/cfengine/supervisor"
)

const (
	idle int32 = iota
	busy
)

// errNotRunning is returned by enqueue when the PID stopped accepting messages.
// The system reacts by routing the message to a fresh PID.
var errNotRunning = errors.New("pid is not running")

// PID hosts a single entity actor. Messages are handled one at a time, in the
// order they were enqueued, by a goroutine started on demand.
type PID struct {
	key     entity.Key
	system  *System
	logger  log.Logger
	mailbox Mailbox

	// actor is only touched by the goroutine draining the mailbox
	actor Actor

	// mu orders state transitions against enqueues so that no message
	// lands in the mailbox once the PID stops accepting them
	mu    sync.RWMutex
	state *atomic.Int32

	processing        *atomic.Int32
	latestReceiveTime *atomic.Time
	restarts          *atomic.Uint32
	windowStart       time.Time

	done chan struct{}
}

func newPID(system *System, key entity.Key, actor Actor) *PID {
	pid := &PID{
		key:               key,
		system:            system,
		logger:            system.logger,
		mailbox:           system.newMailbox(),
		actor:             actor,
		state:             atomic.NewInt32(int32(Uninitialized)),
		processing:        atomic.NewInt32(idle),
		latestReceiveTime: atomic.NewTime(time.Time{}),
		restarts:          atomic.NewUint32(0),
		windowStart:       time.Now(),
		done:              make(chan struct{}),
	}
	return pid
}

// Key returns the entity served by the PID
func (pid *PID) Key() entity.Key {
	return pid.key
}

// State returns the PID lifecycle state
func (pid *PID) State() State {
	return State(pid.state.Load())
}

// IsRunning returns true when the PID accepts messages
func (pid *PID) IsRunning() bool {
	return pid != nil && pid.State() == Running
}

// LatestReceiveTime returns the time the last message started being handled
func (pid *PID) LatestReceiveTime() time.Time {
	return pid.latestReceiveTime.Load()
}

// MailboxSize returns the number of messages waiting in the mailbox
func (pid *PID) MailboxSize() int64 {
	return pid.mailbox.Len()
}

// RestartCount returns the number of restarts in the current retry window
func (pid *PID) RestartCount() uint32 {
	return pid.restarts.Load()
}

// Done is closed once the PID is gone
func (pid *PID) Done() <-chan struct{} {
	return pid.done
}

// Actor returns the running actor, nil while it restarts. Only the actor's own
// goroutine may use it, from Receive or a fallback.
func (pid *PID) Actor() Actor {
	return pid.actor
}

// init runs PreStart. On failure the PID ends up Failed and must be discarded.
func (pid *PID) init(ctx context.Context) error {
	pid.state.Store(int32(Initializing))
	pid.logger.Debugf("%s starting actor", pid.key.LogPrefix())

	if err := safely(func() error { return pid.actor.PreStart(ctx) }); err != nil {
		pid.state.Store(int32(Failed))
		close(pid.done)
		if !errors.Is(err, gerrors.ErrInitFailure) {
			err = gerrors.NewErrInitFailure(err)
		}
		return err
	}

	pid.latestReceiveTime.Store(time.Now())
	pid.state.Store(int32(Running))
	pid.logger.Debugf("%s actor started", pid.key.LogPrefix())
	return nil
}

// enqueue pushes the message into the mailbox and makes sure a goroutine drains it
func (pid *PID) enqueue(rctx *ReceiveContext) error {
	pid.mu.RLock()
	defer pid.mu.RUnlock()

	if pid.State() != Running {
		return errNotRunning
	}

	rctx.self = pid
	if err := pid.mailbox.Enqueue(rctx); err != nil {
		return err
	}

	pid.process()
	return nil
}

// stop makes the PID reject new messages. The messages already enqueued are
// handled before PostStop runs. It returns false when the PID was not running.
func (pid *PID) stop() bool {
	pid.mu.Lock()
	if pid.State() != Running {
		pid.mu.Unlock()
		return false
	}
	pid.state.Store(int32(Stopping))
	pid.mu.Unlock()

	pid.logger.Debugf("%s stopping actor", pid.key.LogPrefix())
	pid.process()
	return true
}

// closing reports whether the PID stopped accepting messages
func (pid *PID) closing() bool {
	state := pid.State()
	return state == Stopping || state == Failed
}

// isIdle reports whether the PID has been inactive for longer than timeout
func (pid *PID) isIdle(timeout time.Duration) bool {
	return pid.IsRunning() &&
		pid.processing.Load() == idle &&
		pid.mailbox.IsEmpty() &&
		time.Since(pid.latestReceiveTime.Load()) > timeout
}

// process starts a drain goroutine when transitioning from idle to busy.
// If another goroutine is already draining, it returns early.
func (pid *PID) process() {
	if !pid.processing.CompareAndSwap(idle, busy) {
		return
	}
	go pid.drain()
}

func (pid *PID) drain() {
	for {
		for rctx := pid.mailbox.Dequeue(); rctx != nil; rctx = pid.mailbox.Dequeue() {
			pid.handle(rctx)
		}

		if pid.closing() {
			// enqueues that raced the state change are complete by now
			for rctx := pid.mailbox.Dequeue(); rctx != nil; rctx = pid.mailbox.Dequeue() {
				pid.handle(rctx)
			}
			pid.finalize()
			return
		}

		// if no more messages, change busy state to idle
		pid.processing.Store(idle)

		// check if new messages or a stop request came in the meantime
		if (!pid.mailbox.IsEmpty() || pid.closing()) && pid.processing.CompareAndSwap(idle, busy) {
			continue
		}
		return
	}
}

func (pid *PID) handle(rctx *ReceiveContext) {
	if pid.actor == nil {
		pid.system.deadLetter(rctx, gerrors.ErrDead)
		rctx.respond(Faulted, gerrors.ErrDead)
		return
	}

	start := time.Now()
	pid.latestReceiveTime.Store(start)

	pid.invoke(rctx, pid.actor.Receive)
	if rctx.result == Declined {
		for _, handler := range pid.system.fallbacks {
			rctx.result = Handled
			pid.invoke(rctx, handler)
			if rctx.result != Declined {
				break
			}
		}
	}

	pid.system.record(rctx, time.Since(start))

	switch rctx.result {
	case Declined:
		pid.system.deadLetter(rctx, gerrors.ErrUnhandled)
		rctx.respond(Declined, nil)
	case Faulted:
		rctx.respond(Faulted, rctx.err)
		pid.supervise(rctx)
	default:
		rctx.respond(Handled, nil)
	}
}

func (pid *PID) invoke(rctx *ReceiveContext, handler func(*ReceiveContext)) {
	defer pid.recovery(rctx)
	handler(rctx)
}

// recovery turns a panic raised while handling a message into a PanicError fault
func (pid *PID) recovery(received *ReceiveContext) {
	if r := recover(); r != nil {
		received.Err(toPanicError(r))
	}
}

func (pid *PID) supervise(rctx *ReceiveContext) {
	cause := rctx.err
	directive := pid.system.supervisor.Directive(cause)
	pid.logger.Warnf("%s failed to handle %s: %v, applying %s directive",
		pid.key.LogPrefix(), rctx.message.MsgType(), cause, directive)

	switch directive {
	case supervisor.StopDirective:
		pid.halt(Stopping)
	case supervisor.RestartDirective:
		if err := pid.restart(); err != nil {
			pid.logger.Errorf("%s failed to restart actor: %v", pid.key.LogPrefix(), err)
			pid.halt(Failed)
		}
	default:
		// resume: the processor keeps its state, the failed message is dropped
	}
}

// halt stops accepting messages and dead-letters the mail left in the mailbox
func (pid *PID) halt(state State) {
	pid.mu.Lock()
	if current := pid.State(); current == Running || current == Stopping {
		pid.state.Store(int32(state))
	}
	pid.mu.Unlock()

	for rctx := pid.mailbox.Dequeue(); rctx != nil; rctx = pid.mailbox.Dequeue() {
		pid.system.deadLetter(rctx, gerrors.ErrDead)
		rctx.respond(Faulted, gerrors.ErrDead)
	}
}

// restart rebuilds the actor through the factory
func (pid *PID) restart() error {
	supervisorStrategy := pid.system.supervisor
	if maxRetries := supervisorStrategy.MaxRetries(); maxRetries > 0 {
		now := time.Now()
		if window := supervisorStrategy.Window(); window > 0 && now.Sub(pid.windowStart) > window {
			pid.restarts.Store(0)
			pid.windowStart = now
		}
		if pid.restarts.Inc() > maxRetries {
			return fmt.Errorf("restart limit of %d reached", maxRetries)
		}
	}

	ctx := context.Background()
	pid.logger.Infof("%s restarting actor", pid.key.LogPrefix())
	if err := safely(func() error { return pid.actor.PostStop(ctx) }); err != nil {
		pid.logger.Warnf("%s failed to stop actor before restart: %v", pid.key.LogPrefix(), err)
	}
	pid.actor = nil

	actor, err := pid.system.factory(pid.key)
	if err != nil {
		return err
	}

	if err := safely(func() error { return actor.PreStart(ctx) }); err != nil {
		if !errors.Is(err, gerrors.ErrInitFailure) {
			err = gerrors.NewErrInitFailure(err)
		}
		return err
	}

	pid.actor = actor
	pid.system.restarted()
	return nil
}

// finalize runs PostStop and unregisters the PID. It runs on the drain goroutine
// which keeps the busy flag so that no other goroutine drains the mailbox again.
func (pid *PID) finalize() {
	if pid.actor != nil {
		if err := safely(func() error { return pid.actor.PostStop(context.Background()) }); err != nil {
			pid.logger.Errorf("%s failed to stop actor: %v", pid.key.LogPrefix(), err)
		}
		pid.actor = nil
	}

	pid.mu.Lock()
	if pid.State() == Stopping {
		pid.state.Store(int32(Stopped))
	}
	pid.mu.Unlock()

	pid.mailbox.Dispose()
	pid.system.unregister(pid)
	close(pid.done)
	pid.logger.Debugf("%s actor stopped", pid.key.LogPrefix())
}

// safely runs fn and turns a panic into a PanicError
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toPanicError(r)
		}
	}()
	return fn()
}

func toPanicError(r any) error {
	if err, ok := r.(error); ok {
		var pe *gerrors.PanicError
		if errors.As(err, &pe) {
			return pe
		}
		// this is a normal error just wrap it with some stack trace
		// for rich logging purpose
		pc, fn, line, _ := runtime.Caller(3)
		return gerrors.NewPanicError(
			fmt.Errorf("%w at %s[%s:%d]", err, runtime.FuncForPC(pc).Name(), fn, line))
	}

	// we have no idea what panic it is. Enrich it with some stack trace for rich
	// logging purpose
	pc, fn, line, _ := runtime.Caller(3)
	return gerrors.NewPanicError(
		fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line))
}
