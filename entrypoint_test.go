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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryPoints(t *testing.T) {
	Convey("Registered entry points are found by name", t, func() {
		called := false
		Register("test-entry", func(context.Context, *WorkerMessenger) error {
			called = true
			return nil
		})
		fn, e := DefaultLoader{}.Load("test-entry")
		So(e, ShouldBeNil)
		So(fn(context.Background(), nil), ShouldBeNil)
		So(called, ShouldBeTrue)

		So(func() { Register("test-entry", fn) }, ShouldPanic)
		So(func() { Register("test-nil", nil) }, ShouldPanic)
	})

	Convey("Unknown dispatch names fail", t, func() {
		_, e := DefaultLoader{}.Load("no-such-app")
		So(errors.Is(e, ErrNoEntryPoint), ShouldBeTrue)
		_, e = DefaultLoader{}.Load("")
		So(e, ShouldEqual, ErrNoDispatch)
	})

	Convey("Missing plugins fail", t, func() {
		_, e := DefaultLoader{BaseDir: t.TempDir()}.Load("app.so")
		So(errors.Is(e, ErrNoEntryPoint), ShouldBeTrue)
	})

	Convey("Plugin symbols become entry points", t, func() {
		n := 0
		for _, sym := range []interface{}{
			func() { n++ },
			func() error { n++; return nil },
			func(context.Context, *WorkerMessenger) error { n++; return nil },
			EntryPoint(func(context.Context, *WorkerMessenger) error { n++; return nil }),
		} {
			fn, e := asEntryPoint(sym)
			So(e, ShouldBeNil)
			So(fn(context.Background(), nil), ShouldBeNil)
		}
		So(n, ShouldEqual, 4)

		_, e := asEntryPoint(42)
		So(errors.Is(e, ErrBadEntryPoint), ShouldBeTrue)
	})

	Convey("Registered hooks are given to new workers", t, func() {
		ran := 0
		RegisterHook(BeforeClose, func(context.Context) error {
			ran++
			return nil
		})
		w := NewWorker(WorkerConfig{Logger: testLogger(t)}, nil)
		So(w.Messenger().RunHooks(context.Background(), BeforeClose), ShouldBeNil)
		So(ran, ShouldEqual, 1)
	})
}
