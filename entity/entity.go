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


// Package entity defines the identity of the entities calculated fields are computed for.
package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	gerrors "github.com/cfengine/cfengine/errors"
)

// Key identifies an entity within a tenant. It is the routing key of the actor
// system and the key of the persisted processor snapshots.
type Key struct {
	TenantID uuid.UUID
	EntityID uuid.UUID
}

// NewKey creates a Key
func NewKey(tenantID, entityID uuid.UUID) Key {
	return Key{TenantID: tenantID, EntityID: entityID}
}

// NewRandomKey creates a Key with random identifiers
func NewRandomKey() Key {
	return Key{TenantID: uuid.New(), EntityID: uuid.New()}
}

// ParseKey parses a key produced by Key.String
func ParseKey(s string) (Key, error) {
	tenant, ent, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, fmt.Errorf("%w: malformed key %q", gerrors.ErrInvalidEntity, s)
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		return Key{}, fmt.Errorf("%w: tenant: %w", gerrors.ErrInvalidEntity, err)
	}
	entityID, err := uuid.Parse(ent)
	if err != nil {
		return Key{}, fmt.Errorf("%w: entity: %w", gerrors.ErrInvalidEntity, err)
	}
	return NewKey(tenantID, entityID), nil
}

// String returns the key as tenant/entity
func (k Key) String() string {
	return k.TenantID.String() + "/" + k.EntityID.String()
}

// IsZero reports whether either identifier is missing
func (k Key) IsZero() bool {
	return k.TenantID == uuid.Nil || k.EntityID == uuid.Nil
}

// Validate returns ErrInvalidEntity when the key is incomplete
func (k Key) Validate() error {
	if k.IsZero() {
		return fmt.Errorf("%w: tenant and entity ids are required", gerrors.ErrInvalidEntity)
	}
	return nil
}

// LogPrefix returns the [tenant][entity] prefix used in log lines
func (k Key) LogPrefix() string {
	return "[" + k.TenantID.String() + "][" + k.EntityID.String() + "]"
}
