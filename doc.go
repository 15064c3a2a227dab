// Copyright 2015 The Govisor Authors
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

// Package hooh supervises a pool of worker processes on behalf of a
// backend application.
//
// A launcher starts a master process, optionally detached from the
// terminal.  The master forks a fixed number of workers, each of which
// runs the application's entry point and reports ready; once every worker
// has done so the master announces readiness to the workers and to the
// launcher.  Workers that crash are replaced.  Termination signals sent
// to the master are passed on to the workers.
//
// Master and workers exchange envelopes over a socket pair.  An envelope
// is addressed to a single worker by pid, to every worker, or to one
// worker chosen at random, and the master routes it accordingly:
//
//	hooh.Register("echo", func(ctx context.Context, m *hooh.WorkerMessenger) error {
//		m.On(hooh.EventMessage, func(msg interface{}) {
//			log.Printf("worker %d got %v", m.Pid(), msg)
//		})
//		m.Once(hooh.EventReady, func(interface{}) {
//			m.SendToRandom("hello")
//		})
//		return nil
//	})
//
// Sends are fire and forget.  Nothing is queued or retried, and a send
// done before the pool is ready is dropped with a warning.
package hooh
