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
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: &testLog{t: t}, NoColor: true}).
		With().Timestamp().Logger()
}

type fakeChild struct {
	pid     int
	frames  []*Frame
	signals []os.Signal
	gone    bool
	sync.Mutex
}

func (c *fakeChild) Pid() int {
	return c.pid
}

func (c *fakeChild) Send(f *Frame) error {
	c.Lock()
	defer c.Unlock()
	if c.gone {
		return ErrChannelClosed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeChild) Connected() bool {
	c.Lock()
	defer c.Unlock()
	return !c.gone
}

func (c *fakeChild) Signal(sig os.Signal) error {
	c.Lock()
	c.signals = append(c.signals, sig)
	c.Unlock()
	return nil
}

// envelopes decodes everything sent to the child so far.
func (c *fakeChild) envelopes() []*Envelope {
	c.Lock()
	defer c.Unlock()
	var rv []*Envelope
	for _, f := range c.frames {
		if env, e := f.Envelope(); e == nil {
			rv = append(rv, env)
		}
	}
	return rv
}

func (c *fakeChild) count(ev Event) int {
	n := 0
	for _, env := range c.envelopes() {
		if env.Event == ev {
			n++
		}
	}
	return n
}

type fakeForker struct {
	next     int
	children []*fakeChild
	fail     bool
}

func (f *fakeForker) Fork(events chan<- ChildEvent) (Child, error) {
	if f.fail {
		return nil, errors.New("Injected failure")
	}
	f.next++
	c := &fakeChild{pid: 100 + f.next}
	f.children = append(f.children, c)
	return c, nil
}

func newTestMaster(t *testing.T, workers int) (*Master, *fakeForker) {
	f := &fakeForker{}
	m := NewMaster(MasterConfig{
		Title:             "test",
		Workers:           workers,
		StartCheckTimeout: time.Hour,
		Logger:            testLogger(t),
	}, f, nil)
	return m, f
}

func readyEvent(pid int) ChildEvent {
	return ChildEvent{Kind: ChildFrame, Pid: pid, Frame: NewReadyFrame(pid)}
}

func ipcEvent(from int, r Receiver, msg interface{}) ChildEvent {
	f, _ := NewEnvelopeFrame(&Envelope{
		Event:    EventMessage,
		Msg:      msg,
		Sender:   from,
		Receiver: r,
	})
	return ChildEvent{Kind: ChildFrame, Pid: from, Frame: f}
}
