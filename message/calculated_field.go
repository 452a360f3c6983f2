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

package message

import (
	"errors"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cfengine/cfengine/entity"
)

// StateRestoreMsg hands a persisted processor snapshot back to a fresh entity actor.
type StateRestoreMsg struct {
	Key      entity.Key `msgpack:"-"`
	Snapshot []byte     `msgpack:"s"`
}

var _ Message = (*StateRestoreMsg)(nil)

// NewStateRestoreMsg creates a StateRestoreMsg
func NewStateRestoreMsg(key entity.Key, snapshot []byte) *StateRestoreMsg {
	return &StateRestoreMsg{Key: key, Snapshot: snapshot}
}

// MsgType implements Message
func (m *StateRestoreMsg) MsgType() MsgType { return MsgTypeStateRestore }

// EntityKey implements Message
func (m *StateRestoreMsg) EntityKey() entity.Key { return m.Key }

// MarshalBinary implements encoding.BinaryMarshaler
func (m *StateRestoreMsg) MarshalBinary() ([]byte, error) {
	type plain StateRestoreMsg
	return marshal((*plain)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (m *StateRestoreMsg) UnmarshalBinary(data []byte) error {
	type plain StateRestoreMsg
	return unmarshal(data, (*plain)(m))
}

// EntityTelemetryMsg carries telemetry reported by the entity itself.
type EntityTelemetryMsg struct {
	Key     entity.Key       `msgpack:"-"`
	Entries []TelemetryEntry `msgpack:"e"`
}

var _ Message = (*EntityTelemetryMsg)(nil)

// NewEntityTelemetryMsg creates an EntityTelemetryMsg
func NewEntityTelemetryMsg(key entity.Key, entries ...TelemetryEntry) *EntityTelemetryMsg {
	return &EntityTelemetryMsg{Key: key, Entries: entries}
}

// MsgType implements Message
func (m *EntityTelemetryMsg) MsgType() MsgType { return MsgTypeEntityTelemetry }

// EntityKey implements Message
func (m *EntityTelemetryMsg) EntityKey() entity.Key { return m.Key }

// MarshalBinary implements encoding.BinaryMarshaler
func (m *EntityTelemetryMsg) MarshalBinary() ([]byte, error) {
	type plain EntityTelemetryMsg
	return marshal((*plain)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (m *EntityTelemetryMsg) UnmarshalBinary(data []byte) error {
	type plain EntityTelemetryMsg
	return unmarshal(data, (*plain)(m))
}

// LinkedTelemetryMsg carries telemetry of a source entity to an entity whose
// calculated fields take the source as an argument.
type LinkedTelemetryMsg struct {
	Key      entity.Key       `msgpack:"-"`
	SourceID uuid.UUID        `msgpack:"src"`
	Entries  []TelemetryEntry `msgpack:"e"`
}

var _ Message = (*LinkedTelemetryMsg)(nil)

// NewLinkedTelemetryMsg creates a LinkedTelemetryMsg
func NewLinkedTelemetryMsg(key entity.Key, sourceID uuid.UUID, entries ...TelemetryEntry) *LinkedTelemetryMsg {
	return &LinkedTelemetryMsg{Key: key, SourceID: sourceID, Entries: entries}
}

// MsgType implements Message
func (m *LinkedTelemetryMsg) MsgType() MsgType { return MsgTypeLinkedTelemetry }

// EntityKey implements Message
func (m *LinkedTelemetryMsg) EntityKey() entity.Key { return m.Key }

// MarshalBinary implements encoding.BinaryMarshaler
func (m *LinkedTelemetryMsg) MarshalBinary() ([]byte, error) {
	type plain LinkedTelemetryMsg
	return marshal((*plain)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (m *LinkedTelemetryMsg) UnmarshalBinary(data []byte) error {
	type plain LinkedTelemetryMsg
	return unmarshal(data, (*plain)(m))
}

// LifecycleEvent is an entity lifecycle transition
type LifecycleEvent int

const (
	// LifecycleUpdated means the entity or its calculated fields changed
	LifecycleUpdated LifecycleEvent = iota + 1
	// LifecycleDeleted means the entity was removed
	LifecycleDeleted
)

// EntityLifecycleMsg notifies that an entity changed. Entity actors do not
// handle it themselves, it is served by the fallback handlers of the actor system.
type EntityLifecycleMsg struct {
	Key   entity.Key     `msgpack:"-"`
	Event LifecycleEvent `msgpack:"ev"`
}

var _ Message = (*EntityLifecycleMsg)(nil)

// NewEntityLifecycleMsg creates an EntityLifecycleMsg
func NewEntityLifecycleMsg(key entity.Key, event LifecycleEvent) *EntityLifecycleMsg {
	return &EntityLifecycleMsg{Key: key, Event: event}
}

// MsgType implements Message
func (m *EntityLifecycleMsg) MsgType() MsgType { return MsgTypeEntityLifecycle }

// EntityKey implements Message
func (m *EntityLifecycleMsg) EntityKey() entity.Key { return m.Key }

// MarshalBinary implements encoding.BinaryMarshaler
func (m *EntityLifecycleMsg) MarshalBinary() ([]byte, error) {
	type plain EntityLifecycleMsg
	return marshal((*plain)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (m *EntityLifecycleMsg) UnmarshalBinary(data []byte) error {
	type plain EntityLifecycleMsg
	return unmarshal(data, (*plain)(m))
}

func marshal(v any) ([]byte, error) {
	bytea, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshalBinaryFailed, err)
	}
	return bytea, nil
}

func unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrInvalidMessageLength
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Join(ErrUnmarshalBinaryFailed, err)
	}
	return nil
}
