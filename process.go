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
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Child is the master's handle on one worker.
type Child interface {
	// Pid returns the operating system process id.
	Pid() int

	// Send writes a frame to the worker's channel.
	Send(*Frame) error

	// Connected is true until the worker's channel has gone away.
	Connected() bool

	// Signal delivers an operating system signal to the worker.
	Signal(os.Signal) error
}

type ChildEventKind int

const (
	ChildFrame ChildEventKind = iota
	ChildDisconnect
	ChildExit
)

// ChildEvent is how a Child reports back to the master.  Exit carries
// either an exit code, or the signal that killed the process (with Code
// set to -1).
type ChildEvent struct {
	Kind   ChildEventKind
	Pid    int
	Frame  *Frame
	Code   int
	Signal os.Signal
}

// Forker starts workers.  The child must report its frames, and finally
// its disconnect or exit, on events.
type Forker interface {
	Fork(events chan<- ChildEvent) (Child, error)
}

// disconnectGrace is how long a closed channel waits for the process
// exit that usually explains it, before being reported on its own.
const disconnectGrace = 250 * time.Millisecond

// ProcessForker forks workers by running Path with Args, connected to the
// master with a socket pair on fd 3.
type ProcessForker struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	Logger zerolog.Logger
}

type process struct {
	cmd      *exec.Cmd
	conn     *Conn
	exited   chan struct{}
	readDone chan struct{}
	logger   zerolog.Logger
}

func (f *ProcessForker) Fork(events chan<- ChildEvent) (Child, error) {
	conn, remote, e := NewChannel("hooh-ipc")
	if e != nil {
		return nil, e
	}
	cmd := exec.Command(f.Path, f.Args...)
	cmd.Dir = f.Dir
	cmd.Env = append(append([]string{}, f.Env...), ChildEnv(EnvIPCFd))
	cmd.ExtraFiles = []*os.File{remote}
	cmd.Stdout = f.Stdout
	cmd.Stderr = f.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	e = cmd.Start()
	remote.Close()
	if e != nil {
		conn.Close()
		return nil, e
	}

	p := &process{
		cmd:      cmd,
		conn:     conn,
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
		logger:   f.Logger.With().Int("worker", cmd.Process.Pid).Logger(),
	}
	go p.doRead(events)
	go p.doWait(events)
	return p, nil
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Send(f *Frame) error {
	return p.conn.Send(f)
}

func (p *process) Connected() bool {
	return p.conn.Connected()
}

func (p *process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *process) doRead(events chan<- ChildEvent) {
	pid := p.Pid()
	for {
		f, e := p.conn.Recv()
		if errors.Is(e, ErrBadFrame) {
			p.logger.Warn().Err(e).Msg("dropping bad frame from worker")
			continue
		}
		if e != nil {
			if e != ErrChannelClosed {
				// The stream cannot be resynchronized.
				p.logger.Error().Err(e).Msg("bad data from worker, closing channel")
			}
			p.conn.Close()
			close(p.readDone)
			break
		}
		events <- ChildEvent{Kind: ChildFrame, Pid: pid, Frame: f}
	}

	select {
	case <-p.exited:
	case <-time.After(disconnectGrace):
		events <- ChildEvent{Kind: ChildDisconnect, Pid: pid}
	}
}

func (p *process) doWait(events chan<- ChildEvent) {
	pid := p.Pid()
	e := p.cmd.Wait()
	code, sig := exitStatus(p.cmd.ProcessState)
	if e != nil && p.cmd.ProcessState == nil {
		p.logger.Error().Err(e).Msg("wait failed")
	}
	close(p.exited)
	p.conn.Close()
	// Frames written just before the exit are delivered first.
	<-p.readDone
	events <- ChildEvent{Kind: ChildExit, Pid: pid, Code: code, Signal: sig}
}

func exitStatus(ps *os.ProcessState) (int, os.Signal) {
	if ps == nil {
		return -1, nil
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal()
	}
	return ps.ExitCode(), nil
}
