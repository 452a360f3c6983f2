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
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/cfengine/cfengine/entity"
)

const pidMapShards = 32

type pidShard struct {
	mu   sync.RWMutex
	pids map[entity.Key]*PID
}

// pidMap holds the live PIDs keyed by entity. Keys are spread over shards
// hashed with xxh3 so that routing does not contend on a single lock.
type pidMap struct {
	shards [pidMapShards]*pidShard
}

func newPIDMap() *pidMap {
	m := &pidMap{}
	for i := range m.shards {
		m.shards[i] = &pidShard{pids: make(map[entity.Key]*PID)}
	}
	return m
}

func (m *pidMap) shard(key entity.Key) *pidShard {
	return m.shards[xxh3.HashString(key.String())%pidMapShards]
}

// get retrieves the PID of the given entity
func (m *pidMap) get(key entity.Key) (*PID, bool) {
	shard := m.shard(key)
	shard.mu.RLock()
	pid, ok := shard.pids[key]
	shard.mu.RUnlock()
	return pid, ok
}

// set registers the PID
func (m *pidMap) set(pid *PID) {
	shard := m.shard(pid.key)
	shard.mu.Lock()
	shard.pids[pid.key] = pid
	shard.mu.Unlock()
}

// deleteIf removes the entry of the given PID only when it is still the registered one
func (m *pidMap) deleteIf(pid *PID) {
	shard := m.shard(pid.key)
	shard.mu.Lock()
	if current, ok := shard.pids[pid.key]; ok && current == pid {
		delete(shard.pids, pid.key)
	}
	shard.mu.Unlock()
}

// len returns the number of PIDs
func (m *pidMap) len() int {
	total := 0
	for _, shard := range m.shards {
		shard.mu.RLock()
		total += len(shard.pids)
		shard.mu.RUnlock()
	}
	return total
}

// pids returns all PIDs as a slice
func (m *pidMap) pids() []*PID {
	out := make([]*PID, 0)
	for _, shard := range m.shards {
		shard.mu.RLock()
		for _, pid := range shard.pids {
			out = append(out, pid)
		}
		shard.mu.RUnlock()
	}
	return out
}
