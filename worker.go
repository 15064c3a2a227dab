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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Title    string
	Dispatch string
	BaseDir  string
	Logger   zerolog.Logger

	// Loader resolves Dispatch.  Defaults to a DefaultLoader on BaseDir.
	Loader Loader
}

// Worker runs application code in a worker process.
type Worker struct {
	cfg       WorkerConfig
	pid       int
	conn      *Conn
	messenger *WorkerMessenger
	logger    zerolog.Logger
}

// NewWorker creates a worker talking to its master over conn.  A nil conn
// gives a worker that runs the application but can send nothing.
func NewWorker(cfg WorkerConfig, conn *Conn) *Worker {
	if cfg.Loader == nil {
		cfg.Loader = DefaultLoader{BaseDir: cfg.BaseDir}
	}
	w := &Worker{
		cfg:    cfg,
		pid:    os.Getpid(),
		conn:   conn,
		logger: cfg.Logger,
	}
	var t Transport
	if conn != nil {
		t = conn
	}
	w.messenger = NewWorkerMessenger(w.pid, t, w.logger)
	applyHooks(w.messenger)
	return w
}

func (w *Worker) Messenger() *WorkerMessenger {
	return w.messenger
}

// Start runs the beforeLoad hooks, loads and runs the entry point, and
// then tells the master this worker is ready.
func (w *Worker) Start(ctx context.Context) error {
	if e := w.messenger.RunHooks(ctx, BeforeLoad); e != nil {
		return e
	}
	entry, e := w.cfg.Loader.Load(w.cfg.Dispatch)
	if e != nil {
		return e
	}
	if entry != nil {
		if e := entry(ctx, w.messenger); e != nil {
			return fmt.Errorf("entry point %s: %w", w.cfg.Dispatch, e)
		}
	}
	w.logger.Debug().Str("dispatch", w.cfg.Dispatch).Msg("application loaded")

	if w.conn == nil || !w.conn.Connected() {
		w.logger.Warn().Msg("no master channel, not reporting ready")
		return nil
	}
	return w.conn.Send(NewReadyFrame(w.pid))
}

// Run starts the worker and serves it until SIGINT or SIGTERM, ctx is
// done, or the master goes away.  The beforeClose hooks run last.  A
// worker stopped by a signal then dies of that same signal, so the master
// sees it as stopped by the operator.
func (w *Worker) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	sig, e := w.run(ctx, sigs)
	if sig != nil {
		reraise(sig)
	}
	return e
}

// run returns the signal that stopped the worker, if any.
func (w *Worker) run(ctx context.Context, sigs <-chan os.Signal) (os.Signal, error) {
	gone := w.receive()
	if e := w.Start(ctx); e != nil {
		w.logger.Error().Err(e).Msg("worker start failed")
		w.close()
		return nil, e
	}

	var sig os.Signal
	select {
	case sig = <-sigs:
		w.logger.Info().Stringer("signal", sig).Msg("worker stopping")
	case <-gone:
		w.logger.Info().Msg("master channel closed, worker stopping")
	case <-ctx.Done():
	}

	e := w.messenger.RunHooks(context.Background(), BeforeClose)
	if e != nil {
		w.logger.Error().Err(e).Msg("close hooks failed")
	}
	w.close()
	return sig, e
}

// reraise restores the default action for sig and sends it to ourselves.
// Delivery is asynchronous, hence the wait.
func reraise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	signal.Reset(s)
	if unix.Kill(os.Getpid(), s) == nil {
		time.Sleep(time.Second)
	}
}

// receive delivers frames from the master in order.  The returned channel
// is closed when the channel is lost.
func (w *Worker) receive() <-chan struct{} {
	if w.conn == nil {
		return nil
	}
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			f, e := w.conn.Recv()
			if errors.Is(e, ErrBadFrame) {
				w.logger.Warn().Err(e).Msg("dropping bad frame from master")
				continue
			}
			if e != nil {
				if e != ErrChannelClosed {
					w.logger.Error().Err(e).Msg("bad data from master")
				}
				return
			}
			w.messenger.deliver(f)
		}
	}()
	return gone
}

func (w *Worker) close() {
	if w.conn != nil {
		w.conn.Close()
	}
}
