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
	"fmt"
	"os"
	"time"
)

const rotateFormat = "20060102.150405"

// OpenRotated opens path for appending.  Any existing file is first
// moved aside to path.<YYYYMMDD.HHMMSS>, numbered if that is taken, so
// the caller always starts with an empty file.
func OpenRotated(path string, now time.Time) (*os.File, error) {
	if _, e := os.Stat(path); e == nil {
		base := path + "." + now.Format(rotateFormat)
		dst := base
		for i := 1; exists(dst); i++ {
			dst = fmt.Sprintf("%s.%d", base, i)
		}
		if e := os.Rename(path, dst); e != nil {
			return nil, e
		}
	} else if !os.IsNotExist(e) {
		return nil, e
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func exists(path string) bool {
	_, e := os.Lstat(path)
	return e == nil
}
