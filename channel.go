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
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Environment variables naming the inherited channel descriptor.  Children
// always receive their channel as the first ExtraFiles entry, i.e. fd 3.
const (
	EnvIPCFd    = "HOOH_IPC_FD"
	EnvDaemonFd = "HOOH_DAEMON_FD"

	childFd = 3
)

// NewChannel creates a connected socket pair.  The Conn is kept by the
// caller; the *os.File is meant for exec.Cmd.ExtraFiles and must be
// closed by the caller once the child has started.
func NewChannel(name string) (*Conn, *os.File, error) {
	fds, e := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if e != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", e)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	local := os.NewFile(uintptr(fds[0]), name+"-parent")
	remote := os.NewFile(uintptr(fds[1]), name+"-child")

	// FileConn dups the descriptor, so the original is ours to close.
	c, e := net.FileConn(local)
	local.Close()
	if e != nil {
		remote.Close()
		return nil, nil, e
	}
	return NewConn(c), remote, nil
}

// ChildEnv is the environment entry telling a child where its channel is.
func ChildEnv(key string) string {
	return key + "=" + strconv.Itoa(childFd)
}

// InheritChannel opens the channel whose descriptor is named by the
// environment variable key.
func InheritChannel(key string) (*Conn, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, ErrNoChannel
	}
	fd, e := strconv.Atoi(v)
	if e != nil || fd < 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoChannel, key, v)
	}
	f := os.NewFile(uintptr(fd), key)
	if f == nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoChannel, key, v)
	}
	unix.CloseOnExec(fd)
	c, e := net.FileConn(f)
	f.Close()
	if e != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoChannel, e)
	}
	// Grandchildren must not inherit the pointer to our descriptor.
	os.Unsetenv(key)
	return NewConn(c), nil
}
