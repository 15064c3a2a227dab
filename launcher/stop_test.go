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

package launcher

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/sys/unix"
)

func proc(pid int, cmdline string) Proc {
	return Proc{Pid: pid, Args: strings.Fields(cmdline)}
}

func TestMatch(t *testing.T) {
	procs := []Proc{
		proc(10, "/usr/bin/shop hooh-master --title=shop --workers=4"),
		proc(11, "/usr/bin/blog hooh-master --title=blog --workers=1"),
		proc(12, "/usr/bin/shop hooh-worker --title=shop"),
		proc(13, "vi hooh-master.go"),
		proc(os.Getpid(), "/usr/bin/shop hooh-master --title=shop"),
	}

	Convey("Only masters are matched", t, func() {
		m := Match(procs, "", os.Getpid())
		So(len(m), ShouldEqual, 2)
		So(m[0].Pid, ShouldEqual, 10)
		So(m[1].Pid, ShouldEqual, 11)
	})

	Convey("A title narrows the match", t, func() {
		m := Match(procs, "shop", os.Getpid())
		So(len(m), ShouldEqual, 1)
		So(m[0].Pid, ShouldEqual, 10)
		So(len(Match(procs, "sho", os.Getpid())), ShouldEqual, 0)
	})

	Convey("ps output is parsed", t, func() {
		out := "  PID COMMAND\n    1 /sbin/init\n  42 /usr/bin/shop hooh-master --title=shop\n\n"
		ps := parsePs(out)
		So(len(ps), ShouldEqual, 2)
		So(ps[1].Pid, ShouldEqual, 42)
		So(ps[1].Args, ShouldResemble, []string{"/usr/bin/shop", "hooh-master", "--title=shop"})
	})
}

func TestStopper(t *testing.T) {
	Convey("Given running masters", t, func() {
		alive := map[int]bool{10: true, 11: true}
		var sent []int
		s := &Stopper{
			Grace:  time.Second,
			Logger: zerolog.Nop(),
			List: func() ([]Proc, error) {
				return []Proc{
					proc(10, "shop hooh-master --title=shop"),
					proc(11, "blog hooh-master --title=blog"),
				}, nil
			},
			Signal: func(pid int, sig unix.Signal) error {
				if !alive[pid] {
					return unix.ESRCH
				}
				if sig == unix.SIGTERM {
					sent = append(sent, pid)
					delete(alive, pid)
				}
				return nil
			},
		}

		Convey("Stop signals the titled master", func() {
			s.Title = "blog"
			pids, e := s.Stop()
			So(e, ShouldBeNil)
			So(pids, ShouldResemble, []int{11})
			So(alive[10], ShouldBeTrue)
		})

		Convey("Stop without a title signals all", func() {
			pids, e := s.Stop()
			So(e, ShouldBeNil)
			So(pids, ShouldResemble, []int{10, 11})
			So(sent, ShouldResemble, []int{10, 11})
		})

		Convey("Masters that already went are skipped", func() {
			delete(alive, 10)
			pids, e := s.Stop()
			So(e, ShouldBeNil)
			So(pids, ShouldResemble, []int{11})
		})

		Convey("Nothing to stop is not an error", func() {
			s.Title = "none"
			pids, e := s.Stop()
			So(e, ShouldBeNil)
			So(pids, ShouldBeNil)
		})
	})
}
