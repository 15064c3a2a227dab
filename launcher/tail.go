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

package launcher

import (
	"bufio"
	"os"
)

// Tail returns the last n lines of the file at path.
func Tail(path string, n int) ([]string, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, e
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) < n {
			ring = append(ring, s.Text())
			continue
		}
		ring[start] = s.Text()
		start = (start + 1) % n
	}
	if e := s.Err(); e != nil {
		return nil, e
	}
	return append(ring[start:], ring[:start]...), nil
}
