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
	"github.com/rs/zerolog"
)

// readyMarker is the msg of the ready and close envelopes sent by the
// master.
const readyMarker = "success"

// MasterMessenger is the master's messenger.  It is ready from the start.
// Its own sends go through the master's router, so they follow the same
// delivery rules as sends from workers.
type MasterMessenger struct {
	Messenger
}

func NewMasterMessenger(pid int, router Transport, logger zerolog.Logger) *MasterMessenger {
	m := &MasterMessenger{}
	m.init(pid, router, logger)
	m.ready = true
	return m
}

func (m *MasterMessenger) sendTo(child *PoolEntry, env *Envelope) {
	f, e := NewEnvelopeFrame(env)
	if e != nil {
		m.logger.Warn().Err(e).Int("worker", child.Pid).Msg("undeliverable message dropped")
		return
	}
	if e := child.Child.Send(f); e != nil {
		m.logger.Warn().Err(e).Int("worker", child.Pid).Msg("send to worker failed")
	}
}

// SendToChild sends msg to a single pool entry.
func (m *MasterMessenger) SendToChild(child *PoolEntry, msg interface{}, sender int, ev Event) {
	if !child.valid() {
		if child != nil {
			m.logger.Warn().Int("worker", child.Pid).Msg("worker not connected, message dropped")
		} else {
			m.logger.Warn().Msg("no worker handle, message dropped")
		}
		return
	}
	m.sendTo(child, m.packageMessage(WorkerByID(child.Pid), msg, ev, sender))
}

// BroadcastChilds sends msg to each entry in turn.  It is not atomic: if
// the master dies part way, only some workers will have it.
func (m *MasterMessenger) BroadcastChilds(children []*PoolEntry, msg interface{}, sender int, ev Event) {
	for _, child := range children {
		m.SendToChild(child, msg, sender, ev)
	}
}

func (m *MasterMessenger) SendReady(child *PoolEntry) {
	m.SendToChild(child, readyMarker, m.pid, EventReady)
}

func (m *MasterMessenger) BroadcastReady(children []*PoolEntry) {
	m.BroadcastChilds(children, readyMarker, m.pid, EventReady)
}

func (m *MasterMessenger) BroadcastClose(children []*PoolEntry) {
	m.BroadcastChilds(children, readyMarker, m.pid, EventClose)
}
