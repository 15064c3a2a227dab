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

package cli

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/gdamore/hooh"
	"github.com/gdamore/hooh/rest"
)

func doMaster(args []string) int {
	var title, baseDir, dispatch, status string
	var workers int
	var daemon bool
	fs := flagSet("hooh", CmdMaster)
	fs.StringVar(&title, "title", hooh.DefaultTitle, "")
	fs.IntVar(&workers, "workers", 1, "")
	fs.StringVar(&baseDir, "baseDir", ".", "")
	fs.StringVar(&dispatch, "dispatch", "", "")
	fs.StringVar(&status, "status", "", "")
	fs.BoolVar(&daemon, "daemon", false, "")
	if rv := parse(fs, args); rv >= 0 {
		return rv
	}
	o := hooh.Options{Workers: workers}
	o.ApplyEnv()
	workers = o.Workers

	ring := hooh.NewLog()
	logger := hooh.NewLogger(stdout, stderr, "master", ring)

	parent, e := hooh.InheritChannel(hooh.EnvDaemonFd)
	if e != nil {
		if !errors.Is(e, hooh.ErrNoChannel) || os.Getenv(hooh.EnvDaemonFd) != "" {
			logger.Warn().Err(e).Msg("launcher channel unusable")
		}
		parent = nil
	}

	exe, e := os.Executable()
	if e != nil {
		logger.Error().Err(e).Msg("cannot find executable")
		return 1
	}
	forker := &hooh.ProcessForker{
		Path: exe,
		Args: []string{
			CmdWorker,
			"--title=" + title,
			"--baseDir=" + baseDir,
			"--dispatch=" + dispatch,
		},
		Env:    os.Environ(),
		Dir:    baseDir,
		Logger: logger,
	}
	m := hooh.NewMaster(hooh.MasterConfig{
		Title:             title,
		Mode:              hooh.Mode(),
		Workers:           workers,
		Daemon:            daemon,
		StartCheckTimeout: hooh.StartCheckTimeout(),
		Logger:            logger,
		Log:               ring,
	}, forker, parent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if status != "" {
		if e := serveStatus(ctx, status, m, logger); e != nil {
			logger.Error().Err(e).Str("addr", status).Msg("cannot serve status")
			return 1
		}
	}

	if e := m.Run(ctx); e != nil {
		logger.Error().Err(e).Msg("master failed")
		return 1
	}
	return 0
}

func serveStatus(ctx context.Context, addr string, m *hooh.Master, logger zerolog.Logger) error {
	h := rest.NewHandler(m)
	if cred := os.Getenv(hooh.EnvStatusAuth); cred != "" {
		user, hash, e := rest.ParseAuth(cred)
		if e != nil {
			return e
		}
		h.SetAuth(user, hash)
	}
	l, e := rest.Listen(addr)
	if e != nil {
		return e
	}
	logger.Info().Str("addr", l.Addr().String()).Msg("serving status")
	go func() {
		if e := rest.Serve(ctx, l, h); e != nil {
			logger.Warn().Err(e).Msg("status server stopped")
		}
	}()
	return nil
}

func doWorker(args []string) int {
	cfg := hooh.WorkerConfig{}
	fs := flagSet("hooh", CmdWorker)
	fs.StringVar(&cfg.Title, "title", hooh.DefaultTitle, "")
	fs.StringVar(&cfg.BaseDir, "baseDir", ".", "")
	fs.StringVar(&cfg.Dispatch, "dispatch", "", "")
	if rv := parse(fs, args); rv >= 0 {
		return rv
	}
	cfg.Logger = hooh.NewLogger(stdout, stderr, "worker").With().
		Str("title", cfg.Title).Logger()

	conn, e := hooh.InheritChannel(hooh.EnvIPCFd)
	if e != nil {
		cfg.Logger.Error().Err(e).Msg("worker has no master")
		return 1
	}
	if e := hooh.NewWorker(cfg, conn).Run(context.Background()); e != nil {
		return 1
	}
	return 0
}
