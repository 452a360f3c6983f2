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


// Package message defines the messages delivered to entity actors and their wire format.
package message

import (
	"encoding"

	"github.com/cfengine/cfengine/entity"
)

// MsgType identifies the kind of a message
type MsgType int

const (
	// MsgTypeUnknown is the zero value and never routed
	MsgTypeUnknown MsgType = iota
	// MsgTypeStateRestore carries a persisted processor snapshot
	MsgTypeStateRestore
	// MsgTypeEntityTelemetry carries telemetry reported by the entity itself
	MsgTypeEntityTelemetry
	// MsgTypeLinkedTelemetry carries telemetry reported by a linked entity
	MsgTypeLinkedTelemetry
	// MsgTypeEntityLifecycle carries entity lifecycle events
	MsgTypeEntityLifecycle
)

var msgTypeNames = map[MsgType]string{
	MsgTypeUnknown:         "UNKNOWN",
	MsgTypeStateRestore:    "CF_STATE_RESTORE_MSG",
	MsgTypeEntityTelemetry: "CF_ENTITY_TELEMETRY_MSG",
	MsgTypeLinkedTelemetry: "CF_LINKED_TELEMETRY_MSG",
	MsgTypeEntityLifecycle: "CF_ENTITY_LIFECYCLE_MSG",
}

// String returns the message type name
func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Message is the unit of work routed to an entity actor.
// The payload must survive a binary round trip so it can cross a queue.
type Message interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	// MsgType returns the message kind used for routing inside the actor
	MsgType() MsgType
	// EntityKey returns the key of the entity the message is addressed to
	EntityKey() entity.Key
}

// TelemetryEntry is a single timestamped value
type TelemetryEntry struct {
	Key   string  `msgpack:"k"`
	Value float64 `msgpack:"v"`
	// Ts is the sample time in unix milliseconds
	Ts int64 `msgpack:"ts"`
}
