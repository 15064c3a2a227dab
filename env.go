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
	"strconv"
	"time"
)

// Environment knobs.  Durations are given in milliseconds.
const (
	EnvStartCheckTimeout  = "HOOH_START_CHECK_TIMEOUT"
	EnvWorkerNum          = "HOOH_APP_WORKER_NUM"
	EnvScriptStartTimeout = "HOOH_SCRIPT_START_TIMEOUT"
	EnvMode               = "HOOH_ENV"
	EnvStatusAddr         = "HOOH_STATUS_ADDR"
	EnvStatusAuth         = "HOOH_STATUS_AUTH"
)

const (
	DefaultStartCheckTimeout  = 5 * time.Second
	DefaultScriptStartTimeout = 300 * time.Second
	DefaultMode               = "production"
)

// envNumber returns 0 when the variable is unset or not a number.
func envNumber(key string) int {
	n, e := strconv.Atoi(os.Getenv(key))
	if e != nil {
		return 0
	}
	return n
}

func envString(key string) string {
	return os.Getenv(key)
}

// envBool is false when unset or "false", and otherwise follows
// strconv.ParseBool, treating unparseable non-empty values as true.
func envBool(key string) bool {
	v := os.Getenv(key)
	if v == "" || v == "false" {
		return false
	}
	b, e := strconv.ParseBool(v)
	if e != nil {
		return true
	}
	return b
}

func envMillis(key string, def time.Duration) time.Duration {
	if n := envNumber(key); n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

// StartCheckTimeout is how long the master waits for all workers before
// complaining.
func StartCheckTimeout() time.Duration {
	return envMillis(EnvStartCheckTimeout, DefaultStartCheckTimeout)
}

// ScriptStartTimeout is how long the launcher waits for the master when
// no explicit timeout was given.
func ScriptStartTimeout() time.Duration {
	return envMillis(EnvScriptStartTimeout, DefaultScriptStartTimeout)
}

// Mode is the runtime mode handed down to every process.
func Mode() string {
	if m := envString(EnvMode); m != "" {
		return m
	}
	return DefaultMode
}
