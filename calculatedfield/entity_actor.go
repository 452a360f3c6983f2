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
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cfengine/cfengine/actor"
	"github.com/cfengine/cfengine/entity"
	gerrors "github.com/cfengine/cfengine/errors"
	"github.com/cfengine/cfengine/message"
)

// EntityActor owns the calculated field processor of one entity and
// feeds it the messages of that entity, one at a time.
type EntityActor struct {
	sctx      *SystemContext
	key       entity.Key
	processor Processor
	deleted   bool
}

// Deletable is implemented by the actors whose entity can be deleted
type Deletable interface {
	// Delete drops the persisted state. Every message received afterwards
	// is discarded until the actor stops.
	Delete(ctx context.Context) error
}

// enforce compilation error
var (
	_ actor.Actor = (*EntityActor)(nil)
	_ Deletable   = (*EntityActor)(nil)
)

// NewEntityActor creates an EntityActor
func NewEntityActor(sctx *SystemContext, tenantID, entityID uuid.UUID) (*EntityActor, error) {
	if sctx == nil {
		return nil, fmt.Errorf("%w: system context is required", gerrors.ErrInvalidEntity)
	}
	key := entity.NewKey(tenantID, entityID)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &EntityActor{sctx: sctx, key: key}, nil
}

// NewActorFactory returns the actor.Factory creating an EntityActor per entity
func NewActorFactory(sctx *SystemContext) actor.Factory {
	return func(key entity.Key) (actor.Actor, error) {
		return NewEntityActor(sctx, key.TenantID, key.EntityID)
	}
}

// Key returns the entity key
func (x *EntityActor) Key() entity.Key {
	return x.key
}

// PreStart creates and initializes the processor
func (x *EntityActor) PreStart(ctx context.Context) error {
	logger := x.sctx.Logger
	logger.Debugf("%s initializing calculated field actor", x.key.LogPrefix())

	processor, err := x.sctx.newProcessor(x.key)
	if err != nil {
		logger.Warnf("%s failed to create processor: %v", x.key.LogPrefix(), err)
		return gerrors.NewErrInitFailure(err)
	}

	if err := processor.Init(ctx); err != nil {
		logger.Warnf("%s failed to initialize processor: %v", x.key.LogPrefix(), err)
		return gerrors.NewErrInitFailure(errors.Join(err, processor.Close()))
	}

	x.processor = processor
	logger.Debugf("%s calculated field actor initialized", x.key.LogPrefix())
	return nil
}

// Receive routes the message to the processor
func (x *EntityActor) Receive(ctx *actor.ReceiveContext) {
	if x.deleted {
		switch ctx.Message().(type) {
		case *message.StateRestoreMsg, *message.EntityTelemetryMsg, *message.LinkedTelemetryMsg:
			x.sctx.Logger.Debugf("%s entity deleted, dropping %s", x.key.LogPrefix(), ctx.Message().MsgType())
		default:
			ctx.Unhandled()
		}
		return
	}

	var err error
	switch msg := ctx.Message().(type) {
	case *message.StateRestoreMsg:
		err = x.processor.RestoreState(ctx.Context(), msg)
	case *message.EntityTelemetryMsg:
		err = x.processor.ProcessTelemetry(ctx.Context(), msg)
	case *message.LinkedTelemetryMsg:
		err = x.processor.ProcessLinkedTelemetry(ctx.Context(), msg)
	default:
		ctx.Unhandled()
		return
	}

	if err != nil {
		ctx.Err(err)
	}
}

// Delete implements Deletable
func (x *EntityActor) Delete(ctx context.Context) error {
	x.deleted = true
	if x.sctx.Store == nil {
		return nil
	}
	if err := x.sctx.Store.Delete(ctx, x.key.String()); err != nil && !errors.Is(err, gerrors.ErrKeyNotFound) {
		return err
	}
	return nil
}

// PostStop closes the processor
func (x *EntityActor) PostStop(context.Context) error {
	if x.processor == nil {
		return nil
	}
	err := x.processor.Close()
	x.processor = nil
	x.sctx.Logger.Debugf("%s calculated field actor stopped", x.key.LogPrefix())
	return err
}
