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
	"sync/atomic"
)

// Mailbox is the queue of messages waiting for a PID
type Mailbox interface {
	// Enqueue pushes a message into the mailbox.
	// Bounded mailboxes return errors.ErrMailboxFull instead of blocking.
	// Safe for concurrent producers.
	Enqueue(msg *ReceiveContext) error
	// Dequeue fetches the next message or returns nil when the mailbox is empty.
	// Intended to be called by a single consumer goroutine.
	Dequeue() (msg *ReceiveContext)
	// IsEmpty reports whether the mailbox currently has no messages.
	// This is a best-effort snapshot under concurrency.
	IsEmpty() bool
	// Len returns a snapshot of the number of messages in the mailbox.
	Len() int64
	// Dispose releases any resources. The mailbox must not be used afterwards.
	Dispose()
}

type mailboxNode struct {
	value atomic.Pointer[ReceiveContext]
	next  atomic.Pointer[mailboxNode]
}

// UnboundedMailbox is a lock-free multi-producer single-consumer FIFO queue.
type UnboundedMailbox struct {
	head atomic.Pointer[mailboxNode]
	tail atomic.Pointer[mailboxNode]
	len  atomic.Int64
}

// enforce compilation error
var _ Mailbox = (*UnboundedMailbox)(nil)

// NewUnboundedMailbox creates an UnboundedMailbox
func NewUnboundedMailbox() *UnboundedMailbox {
	item := new(mailboxNode)
	mailbox := &UnboundedMailbox{}
	mailbox.head.Store(item)
	mailbox.tail.Store(item)
	return mailbox
}

// Enqueue implements Mailbox. It never fails.
func (m *UnboundedMailbox) Enqueue(msg *ReceiveContext) error {
	n := new(mailboxNode)
	n.value.Store(msg)

	prev := m.tail.Swap(n)
	prev.next.Store(n)
	m.len.Add(1)
	return nil
}

// Dequeue implements Mailbox
func (m *UnboundedMailbox) Dequeue() *ReceiveContext {
	head := m.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil
	}

	m.head.Store(next)
	value := next.value.Load()
	next.value.Store(nil)
	m.len.Add(-1)
	return value
}

// IsEmpty implements Mailbox
func (m *UnboundedMailbox) IsEmpty() bool {
	return m.head.Load().next.Load() == nil
}

// Len implements Mailbox
func (m *UnboundedMailbox) Len() int64 {
	return m.len.Load()
}

// Dispose implements Mailbox
func (m *UnboundedMailbox) Dispose() {}
