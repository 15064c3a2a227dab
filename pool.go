// Copyright 2026 The Hooh Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hooh

import (
	"sort"
	"time"
)

type WorkerState int

const (
	Starting WorkerState = iota
	Ready
	Disconnected
	Exited
)

func (s WorkerState) String() string {
	switch s {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// PoolEntry is the master's record of one worker.
type PoolEntry struct {
	Pid     int
	Child   Child
	State   WorkerState
	Started time.Time
}

// valid reports whether e can be sent to.
func (e *PoolEntry) valid() bool {
	return e != nil && e.Child != nil && e.Child.Connected()
}

// pool is the worker table.  Only the master event loop touches it.
type pool map[int]*PoolEntry

func (p pool) add(c Child) *PoolEntry {
	e := &PoolEntry{Pid: c.Pid(), Child: c, State: Starting, Started: time.Now()}
	p[e.Pid] = e
	return e
}

// snapshot returns the entries ordered by pid.
func (p pool) snapshot() []*PoolEntry {
	rv := make([]*PoolEntry, 0, len(p))
	for _, e := range p {
		rv = append(rv, e)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Pid < rv[j].Pid })
	return rv
}
