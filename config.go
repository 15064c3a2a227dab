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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultTitle = "hooh-server"

// Options describe one application deployment.  They are assembled from
// defaults, an optional TOML file, the environment and finally flags.
type Options struct {
	Title        string `toml:"title"`
	BaseDir      string `toml:"base_dir"`
	Dispatch     string `toml:"dispatch"`
	Workers      int    `toml:"workers"`
	Daemon       bool   `toml:"daemon"`
	IgnoreStdErr bool   `toml:"ignore_stderr"`
	LogDir       string `toml:"log_dir"`
	// Timeout is the launcher's startup wait in seconds.  Zero defers to
	// the environment.
	Timeout    int    `toml:"timeout"`
	StatusAddr string `toml:"status_addr"`
}

func DefaultOptions() Options {
	o := Options{
		Title:   DefaultTitle,
		Workers: 1,
	}
	if wd, e := os.Getwd(); e == nil {
		o.BaseDir = wd
	}
	if home, e := os.UserHomeDir(); e == nil {
		o.LogDir = filepath.Join(home, ".hooh", "logs")
	}
	return o
}

// LoadOptions overlays the TOML file at path onto o.  Keys that do not
// correspond to an option are an error.
func LoadOptions(path string, o *Options) error {
	meta, e := toml.DecodeFile(path, o)
	if e != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, e)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv applies environment overrides.
func (o *Options) ApplyEnv() {
	if n := envNumber(EnvWorkerNum); n > 0 {
		o.Workers = n
	}
	if a := envString(EnvStatusAddr); a != "" && o.StatusAddr == "" {
		o.StatusAddr = a
	}
}

func (o *Options) Validate() error {
	if o.Workers <= 0 {
		return ErrNoWorkers
	}
	if o.Dispatch == "" {
		return ErrNoDispatch
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	return nil
}

// StartTimeout resolves the launcher's startup wait.
func (o *Options) StartTimeout() time.Duration {
	if o.Timeout > 0 {
		return time.Duration(o.Timeout) * time.Second
	}
	return ScriptStartTimeout()
}
