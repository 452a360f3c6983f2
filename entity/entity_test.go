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

package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/cfengine/cfengine/errors"
)

func TestKey(t *testing.T) {
	t.Run("With string round trip", func(t *testing.T) {
		key := NewRandomKey()
		parsed, err := ParseKey(key.String())
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
		assert.NoError(t, key.Validate())
		assert.Equal(t, "["+key.TenantID.String()+"]["+key.EntityID.String()+"]", key.LogPrefix())
	})
	t.Run("With malformed keys", func(t *testing.T) {
		for _, raw := range []string{"", "no-separator", "bad/" + uuid.NewString(), uuid.NewString() + "/bad"} {
			_, err := ParseKey(raw)
			assert.ErrorIs(t, err, gerrors.ErrInvalidEntity, raw)
		}
	})
	t.Run("With missing identifiers", func(t *testing.T) {
		key := NewKey(uuid.New(), uuid.Nil)
		assert.True(t, key.IsZero())
		assert.ErrorIs(t, key.Validate(), gerrors.ErrInvalidEntity)
		assert.True(t, Key{}.IsZero())
	})
}
