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

package calculatedfield

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cfengine/cfengine/entity"
)

// FieldRegistry provides the calculated fields of the entities
type FieldRegistry interface {
	// Fields returns the calculated fields owned by the given entity
	Fields(ctx context.Context, key entity.Key) ([]*CalculatedField, error)
	// Dependents returns the entities having a field that reads telemetry of the given entity
	Dependents(ctx context.Context, source entity.Key) ([]entity.Key, error)
}

// MemoryRegistry is an in-memory FieldRegistry
type MemoryRegistry struct {
	mu         sync.RWMutex
	fields     map[entity.Key]map[string]*CalculatedField
	dependents map[entity.Key]mapset.Set[entity.Key]
}

// enforce compilation error
var _ FieldRegistry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an instance of MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		fields:     make(map[entity.Key]map[string]*CalculatedField),
		dependents: make(map[entity.Key]mapset.Set[entity.Key]),
	}
}

// Register validates and adds the given fields. A field with an already registered
// id replaces the previous definition.
func (r *MemoryRegistry) Register(fields ...*CalculatedField) error {
	for _, field := range fields {
		if err := field.Validate(); err != nil {
			return fmt.Errorf("invalid calculated field %s: %w", field.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, field := range fields {
		owner, _ := field.Key()
		r.remove(owner, field.ID)
		if r.fields[owner] == nil {
			r.fields[owner] = make(map[string]*CalculatedField)
		}
		r.fields[owner][field.ID] = field
		r.index(owner)
	}
	return nil
}

// Unregister removes the given field of an entity
func (r *MemoryRegistry) Unregister(owner entity.Key, fieldID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(owner, fieldID)
	r.index(owner)
}

// Fields implements FieldRegistry
func (r *MemoryRegistry) Fields(_ context.Context, key entity.Key) ([]*CalculatedField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fields := make([]*CalculatedField, 0, len(r.fields[key]))
	for _, field := range r.fields[key] {
		fields = append(fields, field)
	}
	return fields, nil
}

// Dependents implements FieldRegistry
func (r *MemoryRegistry) Dependents(_ context.Context, source entity.Key) ([]entity.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owners, ok := r.dependents[source]
	if !ok {
		return nil, nil
	}
	return owners.ToSlice(), nil
}

func (r *MemoryRegistry) remove(owner entity.Key, fieldID string) {
	if fields, ok := r.fields[owner]; ok {
		delete(fields, fieldID)
		if len(fields) == 0 {
			delete(r.fields, owner)
		}
	}
}

// index rebuilds the linked sources of the given owner
func (r *MemoryRegistry) index(owner entity.Key) {
	for source, owners := range r.dependents {
		owners.Remove(owner)
		if owners.Cardinality() == 0 {
			delete(r.dependents, source)
		}
	}

	for _, field := range r.fields[owner] {
		for _, arg := range field.Arguments {
			sourceID, err := arg.SourceID(owner.EntityID)
			if err != nil || sourceID == owner.EntityID {
				continue
			}
			source := entity.NewKey(owner.TenantID, sourceID)
			if _, ok := r.dependents[source]; !ok {
				r.dependents[source] = mapset.NewSet[entity.Key]()
			}
			r.dependents[source].Add(owner)
		}
	}
}
