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
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// MasterConfig configures a Master.
type MasterConfig struct {
	Title string
	Mode  string

	// Workers is the size of the pool, and the number of ready workers
	// needed before the master itself is ready.
	Workers int

	// Daemon is set when the master runs detached.  A foreground master
	// shuts down when it loses its launcher.
	Daemon bool

	// StartCheckTimeout is how long to wait for readiness before logging
	// an error.  The master keeps running either way.
	StartCheckTimeout time.Duration

	Logger zerolog.Logger

	// Log, if set, is the ring the logger also writes to.
	Log *Log

	// Rand picks a number in [0, n).  Defaults to math/rand.
	Rand func(n int) int
}

// WorkerStatus describes one pool entry.
type WorkerStatus struct {
	Pid     int       `json:"pid"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
}

// Status is a snapshot of the master, refreshed whenever the pool
// changes.
type Status struct {
	Pid      int            `json:"pid"`
	Title    string         `json:"title"`
	Mode     string         `json:"mode"`
	Workers  int            `json:"workers"`
	Ready    bool           `json:"ready"`
	Started  time.Time      `json:"started"`
	Restarts int            `json:"restarts"`
	Pool     []WorkerStatus `json:"pool"`
}

// loopback carries the master messenger's own sends into the event
// loop.  It never blocks, so the loop may send to itself.
type loopback struct {
	queue []*Frame
	wake  chan struct{}
	lock  sync.Mutex
}

func (l *loopback) Send(f *Frame) error {
	l.lock.Lock()
	l.queue = append(l.queue, f)
	l.lock.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

func (l *loopback) Connected() bool {
	return true
}

func (l *loopback) drain() []*Frame {
	l.lock.Lock()
	q := l.queue
	l.queue = nil
	l.lock.Unlock()
	return q
}

// Master supervises the worker pool.  All of its state is owned by the
// goroutine running Run; other goroutines only see Status snapshots.
type Master struct {
	cfg       MasterConfig
	pid       int
	forker    Forker
	parent    *Conn
	pool      pool
	messenger *MasterMessenger
	local     *loopback
	events    chan ChildEvent
	ready     bool
	readySet  map[int]bool
	closing   bool
	restarts  int
	watchdog  *time.Timer
	started   time.Time
	logger    zerolog.Logger

	status     Status
	statusLock sync.Mutex
}

// NewMaster creates a master.  parent is the channel to the launcher, and
// may be nil.  The startup watchdog starts counting here.
func NewMaster(cfg MasterConfig, forker Forker, parent *Conn) *Master {
	if cfg.StartCheckTimeout <= 0 {
		cfg.StartCheckTimeout = DefaultStartCheckTimeout
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	m := &Master{
		cfg:      cfg,
		pid:      os.Getpid(),
		forker:   forker,
		parent:   parent,
		pool:     make(pool),
		local:    &loopback{wake: make(chan struct{}, 1)},
		events:   make(chan ChildEvent, 64),
		readySet: make(map[int]bool),
		started:  time.Now(),
		logger:   cfg.Logger.With().Str("title", cfg.Title).Logger(),
	}
	m.messenger = NewMasterMessenger(m.pid, m.local, m.logger)
	m.watchdog = time.NewTimer(cfg.StartCheckTimeout)
	m.publish()
	return m
}

func (m *Master) Messenger() *MasterMessenger {
	return m.messenger
}

// Log returns the ring of recent log lines, or nil.
func (m *Master) Log() *Log {
	return m.cfg.Log
}

func (m *Master) Status() Status {
	m.statusLock.Lock()
	defer m.statusLock.Unlock()
	s := m.status
	s.Pool = append([]WorkerStatus{}, m.status.Pool...)
	return s
}

func (m *Master) publish() {
	s := Status{
		Pid:      m.pid,
		Title:    m.cfg.Title,
		Mode:     m.cfg.Mode,
		Workers:  m.cfg.Workers,
		Ready:    m.ready,
		Started:  m.started,
		Restarts: m.restarts,
	}
	for _, e := range m.pool.snapshot() {
		s.Pool = append(s.Pool, WorkerStatus{
			Pid:     e.Pid,
			State:   e.State.String(),
			Started: e.Started,
		})
	}
	m.statusLock.Lock()
	m.status = s
	m.statusLock.Unlock()
}

// Run forks the pool and supervises it until the pool is empty, which is
// the normal way for a master to end.  Termination signals are passed on
// to the workers.
func (m *Master) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)
	return m.run(ctx, sigs)
}

func (m *Master) run(ctx context.Context, sigs <-chan os.Signal) error {
	defer m.stopWatchdog()
	if e := m.start(); e != nil {
		return e
	}
	parentGone := m.watchParent()

	for {
		var watchdog <-chan time.Time
		if m.watchdog != nil {
			watchdog = m.watchdog.C
		}
		select {
		case ev := <-m.events:
			if m.handleEvent(ev) {
				return nil
			}
		case <-m.local.wake:
			for _, f := range m.local.drain() {
				m.handleFrame(f)
			}
		case sig := <-sigs:
			if m.shutdown(sig) {
				return nil
			}
		case <-watchdog:
			m.watchdog = nil
			m.logger.Error().Dur("timeout", m.cfg.StartCheckTimeout).
				Int("ready", len(m.readySet)).
				Int("workers", m.cfg.Workers).
				Msg("workers not ready before start check timeout")
		case <-parentGone:
			parentGone = nil
			if !m.cfg.Daemon {
				m.logger.Warn().Msg("launcher disconnected, stopping application")
				if m.shutdown(syscall.SIGTERM) {
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// start forks the initial pool.
func (m *Master) start() error {
	if m.cfg.Workers <= 0 {
		return ErrNoWorkers
	}
	m.logger.Info().Int("workers", m.cfg.Workers).Msg("starting workers")
	var last error
	for i := 0; i < m.cfg.Workers; i++ {
		if e := m.fork(); e != nil {
			last = e
		}
	}
	if len(m.pool) == 0 {
		return fmt.Errorf("no worker could be started: %w", last)
	}
	return nil
}

// watchParent reports, by closing the returned channel, when the
// launcher's channel goes away.  Nothing is expected from the launcher.
func (m *Master) watchParent() <-chan struct{} {
	if m.parent == nil {
		return nil
	}
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, e := m.parent.Recv(); e != nil && !errors.Is(e, ErrBadFrame) {
				return
			}
		}
	}()
	return gone
}

func (m *Master) stopWatchdog() {
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

func (m *Master) fork() error {
	c, e := m.forker.Fork(m.events)
	if e != nil {
		m.logger.Error().Err(e).Msg("cannot fork worker")
		return e
	}
	m.pool.add(c)
	m.logger.Info().Int("worker", c.Pid()).Msg("forked worker")
	m.publish()
	return nil
}

func (m *Master) remove(pid int, state WorkerState) bool {
	e, ok := m.pool[pid]
	if !ok {
		return false
	}
	e.State = state
	delete(m.pool, pid)
	delete(m.readySet, pid)
	return true
}

// handleEvent applies a child event.  It reports true when the
// pool has emptied and the master must end.
func (m *Master) handleEvent(ev ChildEvent) bool {
	switch ev.Kind {
	case ChildFrame:
		m.handleFrame(ev.Frame)
		return false
	case ChildDisconnect:
		return m.handleDisconnect(ev.Pid)
	case ChildExit:
		return m.handleExit(ev.Pid, ev.Code, ev.Signal)
	}
	return false
}

func (m *Master) handleFrame(f *Frame) {
	switch f.Kind {
	case KindReady:
		pid, e := f.ReadyPid()
		if e != nil {
			m.logger.Warn().Err(e).Msg("bad ready frame")
			return
		}
		m.handleReady(pid)
	case KindIPC:
		env, e := f.Envelope()
		if e != nil {
			m.logger.Warn().Err(e).Msg("bad ipc frame")
			return
		}
		m.route(env)
	default:
		m.logger.Warn().Str("kind", f.Kind).Msg("unknown frame kind")
	}
}

// route delivers an envelope according to its receiver.
func (m *Master) route(env *Envelope) error {
	r := env.Receiver
	switch {
	case r.IsAll():
		m.messenger.BroadcastChilds(m.pool.snapshot(), env.Msg, env.Sender, env.Event)
	case r.IsRandom():
		children := m.pool.snapshot()
		if len(children) == 0 {
			m.logger.Warn().Int("sender", env.Sender).Msg("no worker for random message")
			return ErrPoolEmpty
		}
		child := children[m.cfg.Rand(len(children))]
		m.messenger.SendToChild(child, env.Msg, env.Sender, env.Event)
	default:
		pid, _ := r.Pid()
		child, ok := m.pool[pid]
		if !ok {
			m.logger.Warn().Int("sender", env.Sender).Int("receiver", pid).
				Msg("no such worker, message dropped")
			return ErrInvalidReceiver
		}
		m.messenger.SendToChild(child, env.Msg, env.Sender, env.Event)
	}
	return nil
}

func (m *Master) handleReady(pid int) {
	child, ok := m.pool[pid]
	if !ok {
		m.logger.Warn().Int("worker", pid).Msg("ready from unknown worker")
		return
	}
	child.State = Ready
	m.logger.Info().Int("worker", pid).Msg("worker ready")

	if m.ready {
		m.messenger.SendReady(child)
	} else {
		m.readySet[pid] = true
		if len(m.readySet) >= m.cfg.Workers {
			m.becomeReady()
		}
	}
	m.publish()
}

func (m *Master) becomeReady() {
	m.stopWatchdog()
	m.ready = true
	m.readySet = nil
	m.messenger.BroadcastReady(m.pool.snapshot())
	m.messenger.Emit(EventReady, readyMarker)
	m.logger.Info().Int("workers", len(m.pool)).Msg("all workers ready")

	if m.parent != nil && m.parent.Connected() {
		if e := m.parent.Send(NewLifecycleFrame(ActionReady)); e != nil {
			m.logger.Warn().Err(e).Msg("cannot notify launcher")
		}
	}
}

func (m *Master) handleDisconnect(pid int) bool {
	if m.remove(pid, Disconnected) {
		m.logger.Warn().Int("worker", pid).Msg("worker disconnected")
		m.publish()
	}
	return m.checkEmpty()
}

func (m *Master) handleExit(pid int, code int, sig os.Signal) bool {
	m.remove(pid, Exited)
	switch {
	case sig != nil:
		m.logger.Warn().Int("worker", pid).Stringer("signal", sig).
			Msg("worker was killed by signal")
	case code == 0:
		m.logger.Info().Int("worker", pid).Msg("worker exit success")
	case m.closing:
		m.logger.Warn().Int("worker", pid).Int("code", code).
			Msg("worker exited with error code while stopping")
	default:
		m.logger.Warn().Int("worker", pid).Int("code", code).
			Msg("worker exited with error code, forking new worker")
		if m.fork() == nil {
			m.restarts++
		}
	}
	m.publish()
	return m.checkEmpty()
}

func (m *Master) checkEmpty() bool {
	if len(m.pool) != 0 {
		return false
	}
	m.logger.Warn().Msg("all workers exited, master exiting")
	return true
}

// shutdown tells every worker to close and passes sig on to them.  It
// reports true if there is nobody left to wait for.
func (m *Master) shutdown(sig os.Signal) bool {
	m.closing = true
	children := m.pool.snapshot()
	m.logger.Info().Stringer("signal", sig).Int("workers", len(children)).
		Msg("stopping workers")
	m.messenger.BroadcastClose(children)
	for _, c := range children {
		if !c.valid() {
			continue
		}
		if e := c.Child.Signal(sig); e != nil {
			m.logger.Warn().Err(e).Int("worker", c.Pid).Msg("cannot signal worker")
		}
	}
	return m.checkEmpty()
}
