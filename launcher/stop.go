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
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// MasterMarker is the argument that identifies a master process.
const MasterMarker = "hooh-master"

// Proc is one line of the process listing.
type Proc struct {
	Pid  int
	Args []string
}

// Stopper stops running masters.
type Stopper struct {
	// Title limits Stop to masters started with that title.
	Title string

	// Grace is how long to wait for the masters to go.  Defaults to 5s.
	Grace time.Duration

	Logger zerolog.Logger

	// List and Signal default to ps(1) and kill(2).
	List   func() ([]Proc, error)
	Signal func(pid int, sig unix.Signal) error
}

// Stop sends SIGTERM to every matching master and waits for them to
// exit.  It returns the pids that were signalled.
func (s *Stopper) Stop() ([]int, error) {
	list := s.List
	if list == nil {
		list = ListProcs
	}
	kill := s.Signal
	if kill == nil {
		kill = unix.Kill
	}
	grace := s.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	procs, e := list()
	if e != nil {
		return nil, e
	}
	var pids []int
	for _, p := range Match(procs, s.Title, os.Getpid()) {
		if e := kill(p.Pid, unix.SIGTERM); e != nil {
			if errors.Is(e, unix.ESRCH) {
				continue
			}
			return pids, e
		}
		s.Logger.Info().Int("master", p.Pid).Msg("sent SIGTERM")
		pids = append(pids, p.Pid)
	}
	if len(pids) == 0 {
		s.Logger.Info().Str("title", s.Title).Msg("no running master found")
		return nil, nil
	}

	left := pids
	for end := time.Now().Add(grace); len(left) != 0 && time.Now().Before(end); {
		time.Sleep(100 * time.Millisecond)
		var alive []int
		for _, pid := range left {
			if kill(pid, 0) == nil {
				alive = append(alive, pid)
			}
		}
		left = alive
	}
	for _, pid := range left {
		s.Logger.Warn().Int("master", pid).Msg("master still running")
	}
	if len(left) == 0 {
		s.Logger.Info().Int("count", len(pids)).Msg("stopped")
	}
	return pids, nil
}

// Match picks the masters out of procs, skipping self.  An empty title
// matches every master.
func Match(procs []Proc, title string, self int) []Proc {
	var rv []Proc
	for _, p := range procs {
		if p.Pid == self || !hasArg(p.Args, MasterMarker) {
			continue
		}
		if title != "" && !hasArg(p.Args, "--title="+title) {
			continue
		}
		rv = append(rv, p)
	}
	return rv
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// ListProcs lists processes with ps -eo pid,args.
func ListProcs() ([]Proc, error) {
	out, e := exec.Command("ps", "-eo", "pid,args").Output()
	if e != nil {
		return nil, e
	}
	return parsePs(string(out)), nil
}

func parsePs(out string) []Proc {
	var rv []Proc
	for i, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if i == 0 || len(f) < 2 {
			continue
		}
		pid, e := strconv.Atoi(f[0])
		if e != nil {
			continue
		}
		rv = append(rv, Proc{Pid: pid, Args: f[1:]})
	}
	return rv
}
