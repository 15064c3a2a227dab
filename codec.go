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
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fxamacker/cbor/v2"
)

// Frames are CBOR items written back to back.  CBOR items delimit
// themselves, so no length prefix is needed.  Encoding is deterministic,
// so the same frame always produces the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var e error
	if encMode, e = cbor.CoreDetEncOptions().EncMode(); e != nil {
		panic("hooh: CBOR encoder: " + e.Error())
	}
	// Any payload the encoder accepts must decode on the other side, so
	// the decoder limits sit at their ceilings.
	decMode, e = cbor.DecOptions{
		MaxNestedLevels:  65535,
		MaxArrayElements: 2147483647,
		MaxMapPairs:      2147483647,
	}.DecMode()
	if e != nil {
		panic("hooh: CBOR decoder: " + e.Error())
	}
}

// Transport is the sending half of a channel.
type Transport interface {
	Send(f *Frame) error
	Connected() bool
}

// Conn is a framed, bidirectional IPC channel.  Send may be called from
// any goroutine; Recv must only be called from one.
type Conn struct {
	c      net.Conn
	enc    *cbor.Encoder
	dec    *cbor.Decoder
	lock   sync.Mutex
	closed int32
}

func NewConn(c net.Conn) *Conn {
	return &Conn{
		c:   c,
		enc: encMode.NewEncoder(c),
		dec: decMode.NewDecoder(c),
	}
}

func (c *Conn) Send(f *Frame) error {
	if !c.Connected() {
		return ErrChannelClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if e := c.enc.Encode(f); e != nil {
		if isClosed(e) {
			c.markClosed()
			return ErrChannelClosed
		}
		return e
	}
	return nil
}

// Recv blocks until the next frame arrives.  It returns
// ErrChannelClosed once the peer has gone away.  A well formed item that
// is not a frame gives ErrBadFrame; the stream stays usable after that,
// but not after any other error.
func (c *Conn) Recv() (*Frame, error) {
	var raw cbor.RawMessage
	if e := c.dec.Decode(&raw); e != nil {
		if isClosed(e) || !c.Connected() {
			c.markClosed()
			return nil, ErrChannelClosed
		}
		return nil, e
	}
	f := &Frame{}
	if e := decMode.Unmarshal(raw, f); e != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, e)
	}
	return f, nil
}

func (c *Conn) Connected() bool {
	return atomic.LoadInt32(&c.closed) == 0
}

func (c *Conn) markClosed() {
	atomic.StoreInt32(&c.closed, 1)
}

func (c *Conn) Close() error {
	c.markClosed()
	return c.c.Close()
}

func isClosed(e error) bool {
	return errors.Is(e, io.EOF) ||
		errors.Is(e, io.ErrUnexpectedEOF) ||
		errors.Is(e, io.ErrClosedPipe) ||
		errors.Is(e, net.ErrClosed) ||
		errors.Is(e, syscall.EPIPE) ||
		errors.Is(e, syscall.ECONNRESET)
}
