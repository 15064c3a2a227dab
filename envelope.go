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
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Event is the kind of an Envelope.
type Event string

const (
	EventMessage Event = "message"
	EventReady   Event = "ready"
	EventClose   Event = "close"
)

// Frame kinds.  KindIPC frames carry an Envelope, KindReady frames carry
// the bare pid of a worker that has finished loading.
const (
	KindIPC   = "ipc"
	KindReady = "ready"
)

// ActionReady is the lifecycle action the master sends to the launcher
// once every worker is ready.
const ActionReady = "hooh-ready"

type receiverKind int

const (
	toPid receiverKind = iota
	toAll
	toRandom
)

// Receiver selects where an Envelope is delivered.  On the wire it is
// the string "worker", the string "random", or a pid.
type Receiver struct {
	kind receiverKind
	pid  int
}

var (
	AllWorkers   = Receiver{kind: toAll}
	RandomWorker = Receiver{kind: toRandom}
)

// WorkerByID selects the single worker with the given process id.
func WorkerByID(pid int) Receiver {
	return Receiver{kind: toPid, pid: pid}
}

func (r Receiver) IsAll() bool {
	return r.kind == toAll
}

func (r Receiver) IsRandom() bool {
	return r.kind == toRandom
}

// Pid returns the target pid, and false if r is not a pid selector.
func (r Receiver) Pid() (int, bool) {
	if r.kind != toPid {
		return 0, false
	}
	return r.pid, true
}

func (r Receiver) String() string {
	switch r.kind {
	case toAll:
		return "worker"
	case toRandom:
		return "random"
	}
	return strconv.Itoa(r.pid)
}

func (r Receiver) MarshalCBOR() ([]byte, error) {
	switch r.kind {
	case toAll, toRandom:
		return encMode.Marshal(r.String())
	}
	return encMode.Marshal(r.pid)
}

func (r *Receiver) UnmarshalCBOR(b []byte) error {
	var v interface{}
	if e := decMode.Unmarshal(b, &v); e != nil {
		return e
	}
	switch v := v.(type) {
	case string:
		switch v {
		case "worker":
			*r = AllWorkers
		case "random":
			*r = RandomWorker
		default:
			return fmt.Errorf("%w: %q", ErrBadReceiver, v)
		}
	case uint64:
		*r = WorkerByID(int(v))
	case int64:
		*r = WorkerByID(int(v))
	default:
		return fmt.Errorf("%w: %T", ErrBadReceiver, v)
	}
	return nil
}

// Envelope is the unit of application traffic between processes.
type Envelope struct {
	Event    Event       `cbor:"event"`
	Msg      interface{} `cbor:"msg"`
	Sender   int         `cbor:"sender"`
	Receiver Receiver    `cbor:"receiver"`
}

// Frame is what actually travels on a channel.  Protocol traffic uses
// Kind and Body; the launcher handshake uses Action alone.
type Frame struct {
	Kind   string          `cbor:"kind,omitempty"`
	Body   cbor.RawMessage `cbor:"body,omitempty"`
	Action string          `cbor:"action,omitempty"`
}

// NewEnvelopeFrame encodes env for the wire.  It fails with
// ErrUndeliverable if the receiver would be unable to decode the result.
func NewEnvelopeFrame(env *Envelope) (*Frame, error) {
	b, e := encMode.Marshal(env)
	if e != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndeliverable, e)
	}
	if e := decMode.Wellformed(b); e != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndeliverable, e)
	}
	return &Frame{Kind: KindIPC, Body: b}, nil
}

func NewReadyFrame(pid int) *Frame {
	b, _ := encMode.Marshal(pid)
	return &Frame{Kind: KindReady, Body: b}
}

func NewLifecycleFrame(action string) *Frame {
	return &Frame{Action: action}
}

// Envelope decodes the body of an ipc frame.
func (f *Frame) Envelope() (*Envelope, error) {
	if f.Kind != KindIPC {
		return nil, fmt.Errorf("%w: kind %q is not %q", ErrBadFrame, f.Kind, KindIPC)
	}
	env := &Envelope{}
	if e := decMode.Unmarshal(f.Body, env); e != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, e)
	}
	env.Msg = stringKeys(env.Msg)
	return env, nil
}

// stringKeys rewrites every map in v to use string keys, the way a JSON
// round trip would.  Integer keys become their decimal form.
func stringKeys(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, x := range v {
			if s, ok := k.(string); ok {
				m[s] = stringKeys(x)
			} else {
				m[fmt.Sprint(k)] = stringKeys(x)
			}
		}
		return m
	case map[string]interface{}:
		for k, x := range v {
			v[k] = stringKeys(x)
		}
	case []interface{}:
		for i, x := range v {
			v[i] = stringKeys(x)
		}
	}
	return v
}

// ReadyPid decodes the body of a raw ready frame.
func (f *Frame) ReadyPid() (int, error) {
	if f.Kind != KindReady {
		return 0, fmt.Errorf("%w: kind %q is not %q", ErrBadFrame, f.Kind, KindReady)
	}
	var pid int
	if e := decMode.Unmarshal(f.Body, &pid); e != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadFrame, e)
	}
	return pid, nil
}
