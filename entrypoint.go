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
	"path/filepath"
	"plugin"
	"sync"
)

// EntryPoint is the application code run by a worker.  It is called once,
// after the beforeLoad hooks, and should return once the application is
// set up; long running work belongs in goroutines it starts.  The worker
// reports ready when it returns nil.
type EntryPoint func(ctx context.Context, m *WorkerMessenger) error

var registry struct {
	entries map[string]EntryPoint
	hooks   map[HookName][]Hook
	lock    sync.Mutex
}

// Register makes an entry point available under name, for use with
// --dispatch.  It is meant to be called from init functions, and panics
// if fn is nil or the name is taken.
func Register(name string, fn EntryPoint) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	if fn == nil {
		panic("hooh: Register entry point is nil")
	}
	if registry.entries == nil {
		registry.entries = make(map[string]EntryPoint)
	}
	if _, dup := registry.entries[name]; dup {
		panic("hooh: Register called twice for " + name)
	}
	registry.entries[name] = fn
}

// RegisterHook adds a hook that every worker in this binary gets, ahead
// of any the entry point adds itself.  Only beforeLoad hooks registered
// this way can run before the entry point.
func RegisterHook(name HookName, fn Hook) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	if registry.hooks == nil {
		registry.hooks = make(map[HookName][]Hook)
	}
	registry.hooks[name] = append(registry.hooks[name], fn)
}

func lookupEntry(name string) (EntryPoint, bool) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	fn, ok := registry.entries[name]
	return fn, ok
}

func applyHooks(m *WorkerMessenger) {
	registry.lock.Lock()
	hooks := make(map[HookName][]Hook, len(registry.hooks))
	for name, list := range registry.hooks {
		hooks[name] = append([]Hook{}, list...)
	}
	registry.lock.Unlock()

	for _, name := range []HookName{BeforeLoad, BeforeClose} {
		for _, fn := range hooks[name] {
			m.AddHook(name, fn)
		}
	}
}

// Loader resolves a dispatch string to an entry point.  A nil EntryPoint
// with a nil error means the module did its work when it was loaded.
type Loader interface {
	Load(dispatch string) (EntryPoint, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(dispatch string) (EntryPoint, error)

func (f LoaderFunc) Load(dispatch string) (EntryPoint, error) {
	return f(dispatch)
}

// DefaultLoader looks dispatch up among the registered entry points first.
// Failing that, a dispatch ending in .so is opened as a Go plugin, relative
// to BaseDir, and its Main symbol is used.
type DefaultLoader struct {
	BaseDir string
}

func (l DefaultLoader) Load(dispatch string) (EntryPoint, error) {
	if dispatch == "" {
		return nil, ErrNoDispatch
	}
	if fn, ok := lookupEntry(dispatch); ok {
		return fn, nil
	}
	if filepath.Ext(dispatch) != ".so" {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, dispatch)
	}
	path := dispatch
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.BaseDir, path)
	}
	p, e := plugin.Open(path)
	if e != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoEntryPoint, path, e)
	}
	sym, e := p.Lookup("Main")
	if e != nil {
		return nil, nil
	}
	return asEntryPoint(sym)
}

func asEntryPoint(sym interface{}) (EntryPoint, error) {
	switch fn := sym.(type) {
	case EntryPoint:
		return fn, nil
	case *EntryPoint:
		return *fn, nil
	case func(context.Context, *WorkerMessenger) error:
		return fn, nil
	case func() error:
		return func(context.Context, *WorkerMessenger) error { return fn() }, nil
	case func():
		return func(context.Context, *WorkerMessenger) error {
			fn()
			return nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrBadEntryPoint, sym)
}
