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
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func eventually(cond func() bool) bool {
	for end := time.Now().Add(2 * time.Second); time.Now().Before(end); {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestMasterReadiness(t *testing.T) {
	Convey("Given a master with three workers", t, func() {
		m, f := newTestMaster(t, 3)
		So(m.start(), ShouldBeNil)
		So(len(f.children), ShouldEqual, 3)
		So(m.Status().Ready, ShouldBeFalse)

		Convey("Repeated readiness from one worker is counted once", func() {
			m.handleEvent(readyEvent(101))
			m.handleEvent(readyEvent(101))
			m.handleEvent(readyEvent(102))
			So(m.Status().Ready, ShouldBeFalse)
			for _, c := range f.children {
				So(c.count(EventReady), ShouldEqual, 0)
			}
		})

		Convey("Ready flips once all have reported", func() {
			for _, c := range f.children {
				m.handleEvent(readyEvent(c.pid))
			}
			So(m.Status().Ready, ShouldBeTrue)
			So(m.Messenger().Ready(), ShouldBeTrue)
			for _, c := range f.children {
				So(c.count(EventReady), ShouldEqual, 1)
				env := c.envelopes()[0]
				So(env.Msg, ShouldEqual, readyMarker)
				So(env.Sender, ShouldEqual, m.pid)
			}

			Convey("A replacement gets its own ready reply", func() {
				m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101, Code: 1})
				So(len(f.children), ShouldEqual, 4)
				m.handleEvent(readyEvent(104))
				So(f.children[3].count(EventReady), ShouldEqual, 1)
				So(f.children[1].count(EventReady), ShouldEqual, 1)
				So(f.children[2].count(EventReady), ShouldEqual, 1)
			})
		})

		Convey("Readiness from a dead worker does not count", func() {
			m.handleEvent(readyEvent(101))
			m.handleEvent(ChildEvent{Kind: ChildDisconnect, Pid: 101})
			m.handleEvent(readyEvent(102))
			m.handleEvent(readyEvent(103))
			So(m.Status().Ready, ShouldBeFalse)
		})

		Convey("Unknown pids are ignored", func() {
			m.handleEvent(readyEvent(999))
			So(len(m.readySet), ShouldEqual, 0)
		})
	})
}

func TestMasterNotifiesLauncher(t *testing.T) {
	Convey("The launcher hears about readiness exactly once", t, func() {
		a, b := net.Pipe()
		parent, peer := NewConn(a), NewConn(b)
		defer parent.Close()
		defer peer.Close()

		frames := make(chan *Frame, 4)
		go func() {
			for {
				f, e := peer.Recv()
				if e != nil {
					return
				}
				frames <- f
			}
		}()

		f := &fakeForker{}
		m := NewMaster(MasterConfig{
			Workers:           2,
			StartCheckTimeout: time.Hour,
			Logger:            testLogger(t),
		}, f, parent)
		So(m.start(), ShouldBeNil)
		m.handleEvent(readyEvent(101))
		m.handleEvent(readyEvent(102))

		select {
		case fr := <-frames:
			So(fr.Action, ShouldEqual, ActionReady)
			So(fr.Kind, ShouldBeBlank)
		case <-time.After(time.Second):
			So("no lifecycle frame", ShouldBeBlank)
		}

		m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101, Code: 1})
		m.handleEvent(readyEvent(103))
		select {
		case fr := <-frames:
			So(fr, ShouldBeNil)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestMasterRouting(t *testing.T) {
	Convey("Given a master with three workers", t, func() {
		m, f := newTestMaster(t, 3)
		So(m.start(), ShouldBeNil)

		Convey("Broadcast reaches every pool member once", func() {
			m.handleEvent(ipcEvent(102, AllWorkers, "hi"))
			for _, c := range f.children {
				envs := c.envelopes()
				So(len(envs), ShouldEqual, 1)
				So(envs[0].Msg, ShouldEqual, "hi")
				So(envs[0].Sender, ShouldEqual, 102)
				pid, ok := envs[0].Receiver.Pid()
				So(ok, ShouldBeTrue)
				So(pid, ShouldEqual, c.pid)
			}
		})

		Convey("Broadcast skips workers that have gone", func() {
			m.handleEvent(ChildEvent{Kind: ChildDisconnect, Pid: 103})
			m.handleEvent(ipcEvent(101, AllWorkers, "hi"))
			So(len(f.children[0].envelopes()), ShouldEqual, 1)
			So(len(f.children[1].envelopes()), ShouldEqual, 1)
			So(len(f.children[2].envelopes()), ShouldEqual, 0)
		})

		Convey("Random picks a pool member", func() {
			m.cfg.Rand = func(n int) int { return n - 1 }
			m.handleEvent(ipcEvent(101, RandomWorker, "pick"))
			So(len(f.children[0].envelopes()), ShouldEqual, 0)
			So(len(f.children[1].envelopes()), ShouldEqual, 0)
			So(len(f.children[2].envelopes()), ShouldEqual, 1)
		})

		Convey("A pid receiver gets the message alone", func() {
			So(m.route(&Envelope{Event: EventMessage, Msg: 7, Sender: 101, Receiver: WorkerByID(102)}), ShouldBeNil)
			So(len(f.children[0].envelopes()), ShouldEqual, 0)
			So(len(f.children[1].envelopes()), ShouldEqual, 1)
			So(len(f.children[2].envelopes()), ShouldEqual, 0)
		})

		Convey("An absent pid is dropped", func() {
			e := m.route(&Envelope{Event: EventMessage, Msg: 7, Sender: 101, Receiver: WorkerByID(999)})
			So(e, ShouldEqual, ErrInvalidReceiver)
			So(len(m.pool), ShouldEqual, 3)
			for _, c := range f.children {
				So(len(c.envelopes()), ShouldEqual, 0)
			}
		})
	})

	Convey("Random with a single worker always picks it", t, func() {
		m, f := newTestMaster(t, 1)
		So(m.start(), ShouldBeNil)
		for i := 0; i < 10; i++ {
			So(m.route(&Envelope{Event: EventMessage, Msg: i, Receiver: RandomWorker}), ShouldBeNil)
		}
		So(len(f.children[0].envelopes()), ShouldEqual, 10)
	})

	Convey("Random with an empty pool does nothing", t, func() {
		m, _ := newTestMaster(t, 1)
		So(m.route(&Envelope{Event: EventMessage, Receiver: RandomWorker}), ShouldEqual, ErrPoolEmpty)
	})
}

func TestMasterRestartPolicy(t *testing.T) {
	Convey("Given a master with three workers", t, func() {
		m, f := newTestMaster(t, 3)
		So(m.start(), ShouldBeNil)

		Convey("A worker killed by a signal is not replaced", func() {
			done := m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101, Code: -1, Signal: syscall.SIGKILL})
			So(done, ShouldBeFalse)
			So(len(m.pool), ShouldEqual, 2)
			So(len(f.children), ShouldEqual, 3)
		})

		Convey("A clean exit is not replaced", func() {
			m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101})
			So(len(m.pool), ShouldEqual, 2)
			So(len(f.children), ShouldEqual, 3)
		})

		Convey("A crash is replaced by exactly one fork", func() {
			m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 102, Code: 2})
			So(len(m.pool), ShouldEqual, 3)
			So(len(f.children), ShouldEqual, 4)
			So(m.pool[104], ShouldNotBeNil)
			So(m.pool[102], ShouldBeNil)
			So(m.Status().Restarts, ShouldEqual, 1)
		})

		Convey("An exit after a disconnect still restarts", func() {
			m.handleEvent(ChildEvent{Kind: ChildDisconnect, Pid: 102})
			So(len(m.pool), ShouldEqual, 2)
			m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 102, Code: 1})
			So(len(m.pool), ShouldEqual, 3)
		})

		Convey("Shutdown closes and signals every worker", func() {
			So(m.shutdown(syscall.SIGTERM), ShouldBeFalse)
			for _, c := range f.children {
				So(c.count(EventClose), ShouldEqual, 1)
				So(c.signals, ShouldResemble, []os.Signal{syscall.SIGTERM})
			}

			Convey("Crashes while stopping are not replaced", func() {
				m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101, Code: 1})
				So(len(f.children), ShouldEqual, 3)
				m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 102, Code: -1, Signal: syscall.SIGTERM})
				So(m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 103}), ShouldBeTrue)
			})
		})
	})

	Convey("The last exit ends the master", t, func() {
		m, _ := newTestMaster(t, 1)
		So(m.start(), ShouldBeNil)
		So(m.handleEvent(ChildEvent{Kind: ChildExit, Pid: 101}), ShouldBeTrue)
		So(len(m.Status().Pool), ShouldEqual, 0)
	})

	Convey("A master that cannot fork fails to start", t, func() {
		f := &fakeForker{fail: true}
		m := NewMaster(MasterConfig{Workers: 2, Logger: testLogger(t)}, f, nil)
		So(m.start(), ShouldNotBeNil)
	})

	Convey("A master needs workers", t, func() {
		m, _ := newTestMaster(t, 0)
		So(m.start(), ShouldEqual, ErrNoWorkers)
	})
}

func TestMasterRun(t *testing.T) {
	Convey("Given a running master", t, func() {
		m, f := newTestMaster(t, 2)
		sigs := make(chan os.Signal, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var wg sync.WaitGroup
		var err error
		wg.Add(1)
		go func() {
			defer wg.Done()
			err = m.run(ctx, sigs)
		}()
		So(eventually(func() bool { return len(m.Status().Pool) == 2 }), ShouldBeTrue)

		Convey("Its own messenger sends through the router", func() {
			So(m.Messenger().Broadcast("from master"), ShouldBeNil)
			So(eventually(func() bool {
				return f.children[0].count(EventMessage) == 1 &&
					f.children[1].count(EventMessage) == 1
			}), ShouldBeTrue)
			So(f.children[0].envelopes()[0].Sender, ShouldEqual, m.pid)
			cancel()
			wg.Wait()
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("A signal stops the pool and the master", func() {
			sigs <- syscall.SIGINT
			So(eventually(func() bool {
				f.children[1].Lock()
				defer f.children[1].Unlock()
				return len(f.children[1].signals) == 1
			}), ShouldBeTrue)
			m.events <- ChildEvent{Kind: ChildExit, Pid: 101, Code: -1, Signal: syscall.SIGINT}
			m.events <- ChildEvent{Kind: ChildExit, Pid: 102, Code: 130}
			wg.Wait()
			So(err, ShouldBeNil)
			So(len(f.children), ShouldEqual, 2)
		})
	})

	Convey("The startup watchdog only complains", t, func() {
		f := &fakeForker{}
		m := NewMaster(MasterConfig{
			Workers:           1,
			StartCheckTimeout: 10 * time.Millisecond,
			Logger:            testLogger(t),
		}, f, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		So(errors.Is(m.run(ctx, nil), context.DeadlineExceeded), ShouldBeTrue)
		So(len(m.Status().Pool), ShouldEqual, 1)
		So(m.Status().Ready, ShouldBeFalse)
	})
}
