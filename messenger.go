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
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// HookName names a point in the worker lifecycle.
type HookName string

const (
	BeforeLoad  HookName = "beforeLoad"
	BeforeClose HookName = "beforeClose"
)

// Hook is run at a lifecycle point.  A hook that returns an error stops
// the remaining hooks for that point.
type Hook func(ctx context.Context) error

// Listener receives the msg of an Envelope.  Ready and close events carry
// the master's status marker.
type Listener func(msg interface{})

type listener struct {
	fn   Listener
	once bool
}

// Messenger is the application's handle on inter-process messaging.
// Every process has exactly one; the master and workers use the
// MasterMessenger and WorkerMessenger specializations.
//
// Sends are fire-and-forget.  If the messenger is not ready, or its
// channel is gone, the message is dropped with a warning; nothing is
// queued.
type Messenger struct {
	pid       int
	ready     bool
	listeners map[Event][]*listener
	hooks     map[HookName][]Hook
	transport Transport
	logger    zerolog.Logger
	lock      sync.Mutex
}

func (m *Messenger) init(pid int, t Transport, logger zerolog.Logger) {
	m.pid = pid
	m.transport = t
	m.logger = logger
	m.listeners = make(map[Event][]*listener)
	m.hooks = make(map[HookName][]Hook)
	m.Once(EventReady, func(interface{}) { m.setReady(true) })
	m.Once(EventClose, func(interface{}) { m.setReady(false) })
}

// Pid is the process id this messenger sends as.
func (m *Messenger) Pid() int {
	return m.pid
}

func (m *Messenger) Ready() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.ready
}

func (m *Messenger) setReady(ready bool) {
	m.lock.Lock()
	m.ready = ready
	m.lock.Unlock()
}

// AddHook appends fn to the hooks for name.
func (m *Messenger) AddHook(name HookName, fn Hook) {
	m.lock.Lock()
	m.hooks[name] = append(m.hooks[name], fn)
	m.lock.Unlock()
}

func (m *Messenger) addListener(ev Event, fn Listener, once bool) *Messenger {
	m.lock.Lock()
	m.listeners[ev] = append(m.listeners[ev], &listener{fn: fn, once: once})
	m.lock.Unlock()
	return m
}

func (m *Messenger) On(ev Event, fn Listener) *Messenger {
	return m.addListener(ev, fn, false)
}

func (m *Messenger) Once(ev Event, fn Listener) *Messenger {
	return m.addListener(ev, fn, true)
}

// Emit calls the listeners for ev in registration order.  It reports
// false, and does nothing, when there are none.
func (m *Messenger) Emit(ev Event, msg interface{}) bool {
	m.lock.Lock()
	ls := m.listeners[ev]
	if len(ls) == 0 {
		m.lock.Unlock()
		return false
	}
	keep := make([]*listener, 0, len(ls))
	for _, l := range ls {
		if !l.once {
			keep = append(keep, l)
		}
	}
	m.listeners[ev] = keep
	m.lock.Unlock()

	for _, l := range ls {
		l.fn(msg)
	}
	return true
}

func (m *Messenger) packageMessage(receiver Receiver, msg interface{}, ev Event, sender int) *Envelope {
	return &Envelope{
		Event:    ev,
		Msg:      msg,
		Sender:   sender,
		Receiver: receiver,
	}
}

func (m *Messenger) send(env *Envelope) error {
	if !m.Ready() || m.transport == nil || !m.transport.Connected() {
		m.logger.Warn().Int("sender", env.Sender).
			Stringer("receiver", env.Receiver).
			Msg("messenger not ready, message dropped")
		return ErrChannelNotReady
	}
	f, e := NewEnvelopeFrame(env)
	if e != nil {
		m.logger.Warn().Err(e).Stringer("receiver", env.Receiver).
			Msg("undeliverable message dropped")
		return e
	}
	if e := m.transport.Send(f); e != nil {
		m.logger.Warn().Err(e).Stringer("receiver", env.Receiver).
			Msg("message dropped")
		return e
	}
	return nil
}

// Broadcast sends msg to every worker.
func (m *Messenger) Broadcast(msg interface{}) error {
	return m.send(m.packageMessage(AllWorkers, msg, EventMessage, m.pid))
}

// SendToWorker sends msg to every worker, like Broadcast.
func (m *Messenger) SendToWorker(msg interface{}) error {
	return m.send(m.packageMessage(AllWorkers, msg, EventMessage, m.pid))
}

// SendToRandom sends msg to one worker chosen at random.
func (m *Messenger) SendToRandom(msg interface{}) error {
	return m.send(m.packageMessage(RandomWorker, msg, EventMessage, m.pid))
}

// SendTo sends msg to the worker with the given pid.
func (m *Messenger) SendTo(pid int, msg interface{}) error {
	return m.send(m.packageMessage(WorkerByID(pid), msg, EventMessage, m.pid))
}
