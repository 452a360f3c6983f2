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
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"
)

// evictor periodically stops the actors that stayed idle for too long
type evictor struct {
	mu              sync.Mutex
	system          *System
	idleTimeout     time.Duration
	interval        time.Duration
	quartzScheduler quartz.Scheduler
	started         *atomic.Bool
	evicted         *atomic.Int64
}

func newEvictor(system *System, idleTimeout, interval time.Duration) *evictor {
	return &evictor{
		system:      system,
		idleTimeout: idleTimeout,
		interval:    interval,
		started:     atomic.NewBool(false),
		evicted:     atomic.NewInt64(0),
	}
}

// Start schedules the eviction sweep
func (x *evictor) Start(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	// create an instance of quartz scheduler with logger off
	quartzScheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		return err
	}

	// the sweep must not stop with the caller's context
	quartzScheduler.Start(context.WithoutCancel(ctx))

	sweep := job.NewFunctionJob[int](func(context.Context) (int, error) {
		return x.sweep(), nil
	})

	detail := quartz.NewJobDetail(sweep, quartz.NewJobKey(x.system.name+"-idle-eviction"))
	if err := quartzScheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(x.interval)); err != nil {
		quartzScheduler.Stop()
		return err
	}

	x.quartzScheduler = quartzScheduler
	x.started.Store(true)
	x.system.logger.Debugf("idle eviction started: timeout=%s interval=%s", x.idleTimeout, x.interval)
	return nil
}

// Stop stops the eviction sweep
func (x *evictor) Stop(ctx context.Context) {
	if !x.started.CompareAndSwap(true, false) {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	_ = x.quartzScheduler.Clear()
	x.quartzScheduler.Stop()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	x.quartzScheduler.Wait(ctx)
}

// sweep stops every idle actor and returns how many were asked to stop
func (x *evictor) sweep() int {
	count := 0
	for _, pid := range x.system.pids.pids() {
		if pid.isIdle(x.idleTimeout) && pid.stop() {
			x.system.logger.Debugf("%s evicting idle actor", pid.key.LogPrefix())
			count++
		}
	}
	x.evicted.Add(int64(count))
	return count
}

// Evicted returns the number of evicted actors
func (x *evictor) Evicted() int64 {
	return x.evicted.Load()
}
