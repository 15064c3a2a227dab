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
	"strings"
	"sync"
	"time"
)

// MaxLogRecords is how many lines a Log holds on to.
const MaxLogRecords = 1000

// LogRecord is one line of master output kept for the status surface.
// Ids count up from 1 and are never reused.
type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log keeps the latest MaxLogRecords lines written to it.  The master's
// logger feeds it, and the status surface reads it back, optionally
// blocking in Watch for fresh output.
type Log struct {
	ring    []LogRecord
	newest  int64
	changed chan struct{}
	mu      sync.Mutex
}

func NewLog() *Log {
	return &Log{
		ring:    make([]LogRecord, MaxLogRecords),
		changed: make(chan struct{}),
	}
}

// slot is where the record with the given id lives.
func (l *Log) slot(id int64) *LogRecord {
	return &l.ring[(id-1)%int64(len(l.ring))]
}

// Write stores each line of b as its own record.  Blank trailing lines
// are not recorded.
func (l *Log) Write(b []byte) (int, error) {
	now := time.Now()
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, text := range lines {
		l.newest++
		*l.slot(l.newest) = LogRecord{Id: l.newest, Time: now, Text: text}
	}
	close(l.changed)
	l.changed = make(chan struct{})
	return len(b), nil
}

// GetRecords returns the retained records newer than last, along with
// the id of the newest record.  A last of zero, or one the log does not
// recognize, gets everything retained.
func (l *Log) GetRecords(last int64) ([]LogRecord, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last == l.newest {
		return nil, last
	}
	from := l.newest - int64(len(l.ring)) + 1
	if from < 1 {
		from = 1
	}
	if last >= from && last < l.newest {
		from = last + 1
	}
	recs := make([]LogRecord, 0, l.newest-from+1)
	for id := from; id <= l.newest; id++ {
		recs = append(recs, *l.slot(id))
	}
	return recs, l.newest
}

// Watch blocks while the newest id is still last, for at most expire.
// It returns the newest id at the time it gives up or wakes.
func (l *Log) Watch(last int64, expire time.Duration) int64 {
	var timeout <-chan time.Time
	if expire > 0 {
		t := time.NewTimer(expire)
		defer t.Stop()
		timeout = t.C
	}
	for {
		l.mu.Lock()
		newest, changed := l.newest, l.changed
		l.mu.Unlock()
		if newest != last || timeout == nil {
			return newest
		}
		select {
		case <-changed:
		case <-timeout:
			timeout = nil
		}
	}
}
