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

// Package launcher starts a master process, either attached to the
// terminal or as a daemon, and waits for it to report ready.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdamore/hooh"
)

var (
	ErrStartupTimeout     = errors.New("Master did not become ready in time")
	ErrStartupErrorOutput = errors.New("Master wrote error output during startup")
	ErrMasterExited       = errors.New("Master exited")
)

const (
	StdoutLog = "hooh-stdout.log"
	StderrLog = "hooh-stderr.log"

	// TailLines is how much of the error log is shown on failure.
	TailLines = 100
)

// Interval is how often a daemon start checks on the master.
var Interval = time.Second

// Config describes how to run the master.
type Config struct {
	// Path and Args are the master command line.
	Path string
	Args []string
	Env  []string
	Dir  string

	Daemon       bool
	LogDir       string
	IgnoreStdErr bool
	Timeout      time.Duration

	// Console receives the error log tail on a failed daemon start.
	Console io.Writer
	Logger  zerolog.Logger

	// Now stamps rotated log files.  Defaults to time.Now.
	Now func() time.Time
}

// Start runs the master.  In the foreground it returns when the master
// exits.  As a daemon it returns once the master is ready, or has failed
// to get there.
func Start(ctx context.Context, cfg Config) error {
	if cfg.Path == "" {
		p, e := os.Executable()
		if e != nil {
			return e
		}
		cfg.Path = p
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = hooh.DefaultScriptStartTimeout
	}
	if cfg.Console == nil {
		cfg.Console = os.Stderr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Daemon {
		return daemon(ctx, cfg)
	}
	return foreground(ctx, cfg)
}

func command(cfg Config) (*exec.Cmd, *hooh.Conn, error) {
	conn, remote, e := hooh.NewChannel("hooh-daemon")
	if e != nil {
		return nil, nil, e
	}
	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	env := cfg.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(append([]string{}, env...), hooh.ChildEnv(hooh.EnvDaemonFd))
	cmd.ExtraFiles = []*os.File{remote}
	return cmd, conn, nil
}

// awaitReady watches the channel.  ready is closed when the master says
// so; gone is closed if the channel is lost first.
func awaitReady(conn *hooh.Conn) (ready, gone <-chan struct{}) {
	rc := make(chan struct{})
	gc := make(chan struct{})
	go func() {
		for {
			f, e := conn.Recv()
			if errors.Is(e, hooh.ErrBadFrame) {
				continue
			}
			if e != nil {
				close(gc)
				return
			}
			if f.Action == hooh.ActionReady {
				close(rc)
				return
			}
		}
	}()
	return rc, gc
}

func foreground(ctx context.Context, cfg Config) error {
	cmd, conn, e := command(cfg)
	if e != nil {
		return e
	}
	defer conn.Close()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	e = cmd.Start()
	cmd.ExtraFiles[0].Close()
	if e != nil {
		return e
	}
	ready, _ := awaitReady(conn)
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	stop := ctx.Done()
	for {
		select {
		case <-ready:
			ready = nil
			cfg.Logger.Info().Int("master", cmd.Process.Pid).Msg("application ready")
		case sig := <-sigs:
			cmd.Process.Signal(sig)
		case <-stop:
			stop = nil
			cmd.Process.Signal(syscall.SIGTERM)
		case e := <-done:
			if e != nil {
				return fmt.Errorf("%w: %v", ErrMasterExited, e)
			}
			return nil
		}
	}
}

func daemon(ctx context.Context, cfg Config) error {
	if fi, e := os.Stat(cfg.LogDir); e != nil {
		return fmt.Errorf("log directory: %w", e)
	} else if !fi.IsDir() {
		return fmt.Errorf("log directory: %s is not a directory", cfg.LogDir)
	}
	now := cfg.Now()
	errPath := filepath.Join(cfg.LogDir, StderrLog)
	stdout, e := OpenRotated(filepath.Join(cfg.LogDir, StdoutLog), now)
	if e != nil {
		return e
	}
	defer stdout.Close()
	stderr, e := OpenRotated(errPath, now)
	if e != nil {
		return e
	}
	defer stderr.Close()

	cmd, conn, e := command(cfg)
	if e != nil {
		return e
	}
	defer conn.Close()
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	e = cmd.Start()
	cmd.ExtraFiles[0].Close()
	if e != nil {
		return e
	}
	pid := cmd.Process.Pid
	log := cfg.Logger.With().Int("master", pid).Logger()
	log.Info().Str("logdir", cfg.LogDir).Msg("master started, waiting for ready")

	ready, gone := awaitReady(conn)
	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(Interval)
	defer tick.Stop()

	kill := func() {
		cmd.Process.Signal(syscall.SIGTERM)
		cmd.Process.Release()
	}

	for {
		select {
		case <-ready:
			log.Info().Msg("application started")
			return cmd.Process.Release()

		case <-gone:
			showTail(cfg.Console, errPath)
			cmd.Wait()
			return fmt.Errorf("%w during startup: %v", ErrMasterExited, cmd.ProcessState)

		case <-tick.C:
			fi, e := os.Stat(errPath)
			if e != nil || fi.Size() == 0 {
				continue
			}
			showTail(cfg.Console, errPath)
			if cfg.IgnoreStdErr {
				log.Warn().Msg("master wrote error output, ignored")
				return cmd.Process.Release()
			}
			log.Error().Str("log", errPath).Msg("master wrote error output, stopping it")
			cmd.Process.Signal(syscall.SIGTERM)
			time.Sleep(Interval)
			cmd.Process.Release()
			return ErrStartupErrorOutput

		case <-deadline.C:
			log.Error().Dur("timeout", cfg.Timeout).Msg("startup timed out, stopping master")
			kill()
			return ErrStartupTimeout

		case <-ctx.Done():
			kill()
			return ctx.Err()
		}
	}
}

func showTail(w io.Writer, path string) {
	lines, e := Tail(path, TailLines)
	if e != nil {
		fmt.Fprintf(w, "cannot read %s: %v\n", path, e)
		return
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
