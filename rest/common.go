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

package rest

import (
	"time"

	"github.com/gdamore/hooh"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// MaxWait caps the long poll on the log, in seconds.
	MaxWait = 300
)

// MasterInfo summarizes the master.
type MasterInfo struct {
	Pid      int       `json:"pid"`
	Title    string    `json:"title"`
	Mode     string    `json:"mode"`
	Workers  int       `json:"workers"`
	Alive    int       `json:"alive"`
	Ready    bool      `json:"ready"`
	Restarts int       `json:"restarts"`
	Started  time.Time `json:"started"`
}

type WorkerInfo struct {
	Pid     int       `json:"pid"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
}

// LogInfo is a batch of log records.  Last is the id to ask for next.
type LogInfo struct {
	Last    int64            `json:"last,string"`
	Records []hooh.LogRecord `json:"records"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
