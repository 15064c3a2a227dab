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
	"fmt"

	"github.com/rs/zerolog"
)

// WorkerMessenger is a worker's messenger.  It becomes ready when the
// master announces that the whole pool is up.
type WorkerMessenger struct {
	Messenger
}

func NewWorkerMessenger(pid int, t Transport, logger zerolog.Logger) *WorkerMessenger {
	m := &WorkerMessenger{}
	m.init(pid, t, logger)
	return m
}

// Hooks returns a copy of the hooks registered for name.
func (m *WorkerMessenger) Hooks(name HookName) []Hook {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Hook{}, m.hooks[name]...)
}

// RunHooks runs the hooks for name one after another.  The first failure
// stops the sequence.
func (m *WorkerMessenger) RunHooks(ctx context.Context, name HookName) error {
	for i, fn := range m.Hooks(name) {
		if e := fn(ctx); e != nil {
			return fmt.Errorf("%s hook %d: %w", name, i, e)
		}
	}
	return nil
}

// deliver hands an inbound frame to the listeners.
func (m *WorkerMessenger) deliver(f *Frame) {
	env, e := f.Envelope()
	if e != nil {
		m.logger.Warn().Err(e).Msg("ignoring frame from master")
		return
	}
	m.Emit(env.Event, env.Msg)
}
