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

// Package cli implements the hooh command line.  An application binary
// that registers entry points runs cli.Main from its own main function,
// so the same executable can act as launcher, master and worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/gdamore/hooh"
	"github.com/gdamore/hooh/launcher"
	"github.com/gdamore/hooh/rest"
)

// Hidden subcommands used when the binary re-executes itself.
const (
	CmdMaster = launcher.MasterMarker
	CmdWorker = "hooh-worker"
)

// DefaultStatusAddr is where status looks when no address is given.
const DefaultStatusAddr = "127.0.0.1:8321"

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Main runs the command named by args[1], and returns the exit code.
func Main(args []string) int {
	prog := "hooh"
	if len(args) > 0 {
		prog = filepath.Base(args[0])
	}
	if len(args) < 2 {
		usage(prog)
		return 1
	}
	cmd, cargs := args[1], args[2:]
	switch cmd {
	case "start":
		return doStart(prog, cargs)
	case "stop":
		return doStop(prog, cargs)
	case "status":
		return doStatus(prog, cargs)
	case CmdMaster:
		return doMaster(cargs)
	case CmdWorker:
		return doWorker(cargs)
	case "help", "-h", "--help":
		usage(prog)
		return 0
	}
	fmt.Fprintf(stderr, "%s: unknown command %q\n", prog, cmd)
	usage(prog)
	return 1
}

func usage(prog string) {
	fmt.Fprintf(stderr, "Usage: %s <command> [options]\n\n", prog)
	fmt.Fprintf(stderr, "Commands:\n")
	fmt.Fprintf(stderr, "  start    start the application\n")
	fmt.Fprintf(stderr, "  stop     stop running masters\n")
	fmt.Fprintf(stderr, "  status   show a running master\n")
}

func flagSet(prog, cmd string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(prog+" "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}

// parse reports the exit code to use, or -1 to carry on.
func parse(fs *pflag.FlagSet, args []string) int {
	if e := fs.Parse(args); e != nil {
		if errors.Is(e, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	return -1
}

func launcherLogger() zerolog.Logger {
	return hooh.NewLogger(stdout, stderr, "launcher")
}

type startFlags struct {
	fs      *pflag.FlagSet
	o       hooh.Options
	config  string
	timeout int
}

func newStartFlags(prog string) *startFlags {
	sf := &startFlags{fs: flagSet(prog, "start"), o: hooh.DefaultOptions()}
	fs, o := sf.fs, &sf.o
	fs.StringVarP(&sf.config, "config", "c", "", "TOML file with default options")
	fs.IntVarP(&sf.timeout, "timeout", "t", 0, "seconds to wait for the application to start")
	fs.IntVarP(&o.Workers, "workers", "w", o.Workers, "number of worker processes")
	fs.StringVarP(&o.Title, "title", "T", o.Title, "application title, used by stop")
	fs.StringVarP(&o.BaseDir, "baseDir", "b", o.BaseDir, "application base directory")
	fs.BoolVar(&o.IgnoreStdErr, "ignoreStdErr", o.IgnoreStdErr, "start even if the master writes to stderr")
	fs.StringVarP(&o.LogDir, "logdir", "l", o.LogDir, "log directory for daemon mode")
	fs.BoolVarP(&o.Daemon, "daemon", "d", o.Daemon, "run in the background")
	fs.StringVar(&o.Dispatch, "dispatch", o.Dispatch, "entry point name, or plugin path")
	fs.StringVarP(&o.StatusAddr, "status", "s", o.StatusAddr, "address to serve status on")
	return sf
}

// options resolves the parsed flags: defaults, then the config file,
// then explicit flags, then the environment.
func (sf *startFlags) options() (hooh.Options, error) {
	o := sf.o
	if sf.config != "" {
		file := hooh.DefaultOptions()
		if e := hooh.LoadOptions(sf.config, &file); e != nil {
			return o, e
		}
		overlay(sf.fs, &file, &o)
		o = file
	}
	if sf.fs.Changed("timeout") {
		o.Timeout = sf.timeout
	}
	o.ApplyEnv()
	if e := o.Validate(); e != nil {
		return o, e
	}
	if e := prepareLogDir(sf.fs, &o); e != nil {
		return o, fmt.Errorf("log directory: %w", e)
	}
	return o, nil
}

func doStart(prog string, args []string) int {
	sf := newStartFlags(prog)
	if rv := parse(sf.fs, args); rv >= 0 {
		return rv
	}
	logger := launcherLogger()
	o, e := sf.options()
	if e != nil {
		logger.Error().Err(e).Msg("invalid options")
		return 1
	}

	env := os.Environ()
	if os.Getenv(hooh.EnvMode) == "" {
		env = append(env, hooh.EnvMode+"="+hooh.DefaultMode)
	}
	cfg := launcher.Config{
		Args:         masterArgs(&o),
		Env:          env,
		Dir:          o.BaseDir,
		Daemon:       o.Daemon,
		LogDir:       o.LogDir,
		IgnoreStdErr: o.IgnoreStdErr,
		Timeout:      o.StartTimeout(),
		Console:      stderr,
		Logger:       logger,
	}
	if e := launcher.Start(context.Background(), cfg); e != nil {
		logger.Error().Err(e).Msg("start failed")
		return 1
	}
	return 0
}

// overlay copies the explicitly given flags from flags onto o.
func overlay(fs *pflag.FlagSet, o *hooh.Options, flags *hooh.Options) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "workers":
			o.Workers = flags.Workers
		case "title":
			o.Title = flags.Title
		case "baseDir":
			o.BaseDir = flags.BaseDir
		case "ignoreStdErr":
			o.IgnoreStdErr = flags.IgnoreStdErr
		case "logdir":
			o.LogDir = flags.LogDir
		case "daemon":
			o.Daemon = flags.Daemon
		case "dispatch":
			o.Dispatch = flags.Dispatch
		case "status":
			o.StatusAddr = flags.StatusAddr
		}
	})
}

// prepareLogDir creates the default log directory.  A directory that
// was asked for must exist already.
func prepareLogDir(fs *pflag.FlagSet, o *hooh.Options) error {
	if !o.Daemon {
		return nil
	}
	if o.LogDir == hooh.DefaultOptions().LogDir && !fs.Changed("logdir") {
		return os.MkdirAll(o.LogDir, 0755)
	}
	fi, e := os.Stat(o.LogDir)
	if e != nil {
		return e
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", o.LogDir)
	}
	return nil
}

func masterArgs(o *hooh.Options) []string {
	args := []string{
		CmdMaster,
		"--title=" + o.Title,
		"--workers=" + strconv.Itoa(o.Workers),
		"--baseDir=" + o.BaseDir,
		"--dispatch=" + o.Dispatch,
	}
	if o.Daemon {
		args = append(args, "--daemon")
	}
	if o.StatusAddr != "" {
		args = append(args, "--status="+o.StatusAddr)
	}
	return args
}

func doStop(prog string, args []string) int {
	s := &launcher.Stopper{}
	fs := flagSet(prog, "stop")
	fs.StringVarP(&s.Title, "title", "T", "", "only stop masters with this title")
	if rv := parse(fs, args); rv >= 0 {
		return rv
	}
	s.Logger = launcherLogger()
	if _, e := s.Stop(); e != nil {
		s.Logger.Error().Err(e).Msg("stop failed")
		return 1
	}
	return 0
}

func doStatus(prog string, args []string) int {
	addr := os.Getenv(hooh.EnvStatusAddr)
	if addr == "" {
		addr = DefaultStatusAddr
	}
	var cred string
	var showLog bool
	fs := flagSet(prog, "status")
	fs.StringVarP(&addr, "addr", "a", addr, "status address of the master")
	fs.StringVarP(&cred, "user", "u", "", "user:password for the status server")
	fs.BoolVar(&showLog, "log", false, "print the master's recent log")
	if rv := parse(fs, args); rv >= 0 {
		return rv
	}

	c := rest.NewClient(nil, addr)
	if cred != "" {
		user, pass, _ := strings.Cut(cred, ":")
		c.SetAuth(user, pass)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e := printStatus(ctx, stdout, c, showLog); e != nil {
		fmt.Fprintf(stderr, "%s status: %v\n", prog, e)
		return 1
	}
	return 0
}

func printStatus(ctx context.Context, w io.Writer, c *rest.Client, showLog bool) error {
	m, e := c.Master(ctx)
	if e != nil {
		return e
	}
	workers, e := c.Workers(ctx)
	if e != nil {
		return e
	}
	ready := "starting"
	if m.Ready {
		ready = "ready"
	}
	fmt.Fprintf(w, "%s: master %d (%s), %s, %d/%d workers, %d restarts, up %s\n",
		m.Title, m.Pid, m.Mode, ready, m.Alive, m.Workers, m.Restarts,
		time.Since(m.Started).Truncate(time.Second))

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tSTATE\tSTARTED")
	for _, wi := range workers {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", wi.Pid, wi.State, wi.Started.Format(time.DateTime))
	}
	tw.Flush()

	if !showLog {
		return nil
	}
	l, e := c.Log(ctx, 0, 0)
	if e != nil {
		return e
	}
	for _, r := range l.Records {
		fmt.Fprintln(w, r.Text)
	}
	return nil
}
