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
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel        = "HOOH_LOG_LEVEL"
	EnvDisableDebugLog = "HOOH_DISABLE_DEBUG_LOG"

	logTimeFormat = "2006-01-02 15:04:05"
)

// splitWriter sends warnings and errors to one writer and everything
// else to another.  The launcher watches the master's stderr during
// startup, so where a line lands matters.
type splitWriter struct {
	out io.Writer
	err io.Writer
}

func (w *splitWriter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w *splitWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.WarnLevel && l != zerolog.NoLevel {
		return w.err.Write(p)
	}
	return w.out.Write(p)
}

func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: logTimeFormat,
		NoColor:    true,
	}
}

// NewLogger returns a logger writing human readable lines to stdout and
// stderr, plus any extra sinks (which receive every level).
func NewLogger(stdout, stderr io.Writer, role string, extra ...io.Writer) zerolog.Logger {
	var w io.Writer = &splitWriter{out: console(stdout), err: console(stderr)}
	if len(extra) != 0 {
		ws := []io.Writer{w}
		for _, x := range extra {
			ws = append(ws, console(x))
		}
		w = zerolog.MultiLevelWriter(ws...)
	}
	return zerolog.New(w).Level(LogLevel()).With().
		Timestamp().
		Str("role", role).
		Int("pid", os.Getpid()).
		Logger()
}

// LogLevel derives the level from the environment.  Disabling debug
// logging turns logging off altogether.
func LogLevel() zerolog.Level {
	if envBool(EnvDisableDebugLog) {
		return zerolog.Disabled
	}
	switch strings.ToLower(strings.TrimSpace(envString(EnvLogLevel))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "none", "disabled":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}
