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
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOptions(t *testing.T) {
	Convey("Defaults are usable once a dispatch is set", t, func() {
		o := DefaultOptions()
		So(o.Title, ShouldEqual, DefaultTitle)
		So(o.Workers, ShouldEqual, 1)
		So(o.Validate(), ShouldEqual, ErrNoDispatch)
		o.Dispatch = "app"
		So(o.Validate(), ShouldBeNil)
		o.Workers = 0
		So(o.Validate(), ShouldEqual, ErrNoWorkers)
	})

	Convey("Options load from TOML", t, func() {
		path := filepath.Join(t.TempDir(), "hooh.toml")
		So(os.WriteFile(path, []byte(`
title = "shop"
dispatch = "shop.so"
workers = 4
daemon = true
timeout = 30
`), 0644), ShouldBeNil)
		o := DefaultOptions()
		So(LoadOptions(path, &o), ShouldBeNil)
		So(o.Title, ShouldEqual, "shop")
		So(o.Dispatch, ShouldEqual, "shop.so")
		So(o.Workers, ShouldEqual, 4)
		So(o.Daemon, ShouldBeTrue)
		So(o.StartTimeout(), ShouldEqual, 30*time.Second)
		So(o.LogDir, ShouldEqual, DefaultOptions().LogDir)
	})

	Convey("Unknown keys are rejected", t, func() {
		path := filepath.Join(t.TempDir(), "hooh.toml")
		So(os.WriteFile(path, []byte("wokers = 4\n"), 0644), ShouldBeNil)
		o := DefaultOptions()
		e := LoadOptions(path, &o)
		So(e, ShouldNotBeNil)
		So(e.Error(), ShouldContainSubstring, "wokers")
	})

	Convey("The environment overrides the worker count", t, func() {
		t.Setenv(EnvWorkerNum, "6")
		t.Setenv(EnvStatusAddr, "127.0.0.1:9999")
		o := DefaultOptions()
		o.Workers = 2
		o.StatusAddr = "127.0.0.1:1234"
		o.ApplyEnv()
		So(o.Workers, ShouldEqual, 6)
		So(o.StatusAddr, ShouldEqual, "127.0.0.1:1234")

		t.Setenv(EnvWorkerNum, "lots")
		o.Workers = 2
		o.ApplyEnv()
		So(o.Workers, ShouldEqual, 2)
	})

	Convey("Timeouts come from the environment in milliseconds", t, func() {
		o := DefaultOptions()
		t.Setenv(EnvScriptStartTimeout, "")
		So(o.StartTimeout(), ShouldEqual, DefaultScriptStartTimeout)
		t.Setenv(EnvScriptStartTimeout, "1500")
		So(o.StartTimeout(), ShouldEqual, 1500*time.Millisecond)
		t.Setenv(EnvStartCheckTimeout, "250")
		So(StartCheckTimeout(), ShouldEqual, 250*time.Millisecond)
		t.Setenv(EnvMode, "")
		So(Mode(), ShouldEqual, DefaultMode)
		t.Setenv(EnvMode, "development")
		So(Mode(), ShouldEqual, "development")
	})
}
