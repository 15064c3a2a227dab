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
	"errors"
)

var (
	ErrNoChannel       = errors.New("No IPC channel inherited")
	ErrChannelNotReady = errors.New("Messenger not ready")
	ErrChannelClosed   = errors.New("IPC channel closed")
	ErrInvalidReceiver = errors.New("No such worker")
	ErrBadFrame        = errors.New("Malformed frame")
	ErrBadReceiver     = errors.New("Malformed receiver")
	ErrNoEntryPoint    = errors.New("No application entry point")
	ErrBadEntryPoint   = errors.New("Entry point has unsupported type")
	ErrNoWorkers       = errors.New("Worker count must be positive")
	ErrNoDispatch      = errors.New("No dispatch configured")
	ErrPoolEmpty       = errors.New("Worker pool is empty")
	ErrUndeliverable   = errors.New("Message cannot be delivered")
)
