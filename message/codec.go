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
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cfengine/cfengine/entity"
)

// envelope is the record value written to the queue
type envelope struct {
	Type    MsgType `msgpack:"t"`
	Tenant  string  `msgpack:"tn"`
	Entity  string  `msgpack:"en"`
	Payload []byte  `msgpack:"p"`
}

var factories = map[MsgType]func(entity.Key) Message{
	MsgTypeStateRestore:    func(key entity.Key) Message { return &StateRestoreMsg{Key: key} },
	MsgTypeEntityTelemetry: func(key entity.Key) Message { return &EntityTelemetryMsg{Key: key} },
	MsgTypeLinkedTelemetry: func(key entity.Key) Message { return &LinkedTelemetryMsg{Key: key} },
	MsgTypeEntityLifecycle: func(key entity.Key) Message { return &EntityLifecycleMsg{Key: key} },
}

// Encode wraps the message into an envelope carrying its type and entity key
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownMessageType
	}

	payload, err := msg.MarshalBinary()
	if err != nil {
		return nil, err
	}

	key := msg.EntityKey()
	bytea, err := msgpack.Marshal(&envelope{
		Type:    msg.MsgType(),
		Tenant:  key.TenantID.String(),
		Entity:  key.EntityID.String(),
		Payload: payload,
	})
	if err != nil {
		return nil, errors.Join(ErrMarshalBinaryFailed, err)
	}
	return bytea, nil
}

// Decode reads an envelope produced by Encode and returns the message it carries
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrInvalidMessageLength
	}

	env := new(envelope)
	if err := msgpack.Unmarshal(data, env); err != nil {
		return nil, errors.Join(ErrUnmarshalBinaryFailed, err)
	}

	factory, ok := factories[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, env.Type)
	}

	key, err := entity.ParseKey(env.Tenant + "/" + env.Entity)
	if err != nil {
		return nil, errors.Join(ErrUnmarshalBinaryFailed, err)
	}

	msg := factory(key)
	if err := msg.UnmarshalBinary(env.Payload); err != nil {
		return nil, err
	}
	return msg, nil
}
