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

// Command hooh runs applications built as Go plugins.  Applications that
// link the library directly call cli.Main from their own main instead.
package main

import (
	"os"

	"github.com/gdamore/hooh/cli"
)

func main() {
	os.Exit(cli.Main(os.Args))
}
