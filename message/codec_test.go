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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cfengine/cfengine/entity"
)

func TestCodec(t *testing.T) {
	key := entity.NewRandomKey()

	t.Run("With linked telemetry", func(t *testing.T) {
		source := uuid.New()
		msg := NewLinkedTelemetryMsg(key, source,
			TelemetryEntry{Key: "temperature", Value: 21.5, Ts: 1000},
			TelemetryEntry{Key: "humidity", Value: 40, Ts: 1000})

		bytea, err := Encode(msg)
		require.NoError(t, err)

		decoded, err := Decode(bytea)
		require.NoError(t, err)
		require.Equal(t, MsgTypeLinkedTelemetry, decoded.MsgType())
		linked, ok := decoded.(*LinkedTelemetryMsg)
		require.True(t, ok)
		assert.Equal(t, key, linked.EntityKey())
		assert.Equal(t, source, linked.SourceID)
		assert.Equal(t, msg.Entries, linked.Entries)
	})
	t.Run("With state restore snapshot bytes kept as is", func(t *testing.T) {
		snapshot := []byte{0x00, 0xff, 0x10}
		bytea, err := Encode(NewStateRestoreMsg(key, snapshot))
		require.NoError(t, err)

		decoded, err := Decode(bytea)
		require.NoError(t, err)
		assert.Equal(t, snapshot, decoded.(*StateRestoreMsg).Snapshot)
	})
	t.Run("With lifecycle event", func(t *testing.T) {
		bytea, err := Encode(NewEntityLifecycleMsg(key, LifecycleDeleted))
		require.NoError(t, err)

		decoded, err := Decode(bytea)
		require.NoError(t, err)
		assert.Equal(t, LifecycleDeleted, decoded.(*EntityLifecycleMsg).Event)
		assert.Equal(t, "CF_ENTITY_LIFECYCLE_MSG", decoded.MsgType().String())
	})
	t.Run("With nil message", func(t *testing.T) {
		_, err := Encode(nil)
		assert.ErrorIs(t, err, ErrUnknownMessageType)
	})
	t.Run("With empty data", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(t, err, ErrInvalidMessageLength)
	})
	t.Run("With garbage data", func(t *testing.T) {
		_, err := Decode([]byte("not msgpack at all"))
		assert.ErrorIs(t, err, ErrUnmarshalBinaryFailed)
	})
	t.Run("With unknown message type", func(t *testing.T) {
		bytea, err := msgpack.Marshal(&envelope{
			Type:    MsgType(99),
			Tenant:  key.TenantID.String(),
			Entity:  key.EntityID.String(),
			Payload: []byte{0x80},
		})
		require.NoError(t, err)
		_, err = Decode(bytea)
		assert.ErrorIs(t, err, ErrUnknownMessageType)
		assert.Equal(t, "UNKNOWN", MsgType(99).String())
	})
	t.Run("With invalid entity key", func(t *testing.T) {
		bytea, err := msgpack.Marshal(&envelope{
			Type:    MsgTypeEntityTelemetry,
			Tenant:  "tenant",
			Entity:  key.EntityID.String(),
			Payload: []byte{0x80},
		})
		require.NoError(t, err)
		_, err = Decode(bytea)
		assert.ErrorIs(t, err, ErrUnmarshalBinaryFailed)
	})
}
