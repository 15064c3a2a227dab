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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client reads the status surface of a running master.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v interface{}) error {
	u := c.base + path
	if len(q) != 0 {
		u += "?" + q.Encode()
	}
	req, e := http.NewRequestWithContext(ctx, "GET", u, nil)
	if e != nil {
		return e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return e
	}
	if res.StatusCode != http.StatusOK {
		re := &Error{}
		if json.Unmarshal(body, re) != nil || re.Message == "" {
			re = &Error{Code: res.StatusCode, Message: res.Status}
		}
		return re
	}
	return json.Unmarshal(body, v)
}

func (c *Client) Master(ctx context.Context) (*MasterInfo, error) {
	v := &MasterInfo{}
	if e := c.get(ctx, "/master", nil, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) Workers(ctx context.Context) ([]*WorkerInfo, error) {
	var v []*WorkerInfo
	if e := c.get(ctx, "/workers", nil, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) Worker(ctx context.Context, pid int) (*WorkerInfo, error) {
	v := &WorkerInfo{}
	if e := c.get(ctx, "/workers/"+strconv.Itoa(pid), nil, v); e != nil {
		return nil, e
	}
	return v, nil
}

// Log returns records newer than since.  With wait > 0 the server holds
// the request for up to wait seconds until something new is written.
func (c *Client) Log(ctx context.Context, since int64, wait int) (*LogInfo, error) {
	q := url.Values{}
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}
	if wait > 0 {
		q.Set("wait", strconv.Itoa(wait))
	}
	v := &LogInfo{}
	if e := c.get(ctx, "/log", q, v); e != nil {
		return nil, e
	}
	return v, nil
}

// NewClient returns a Client handle.  The transport may be nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use; a bare host:port
// is taken to be http.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	if !strings.Contains(baseURI, "://") {
		baseURI = "http://" + baseURI
	}
	return &Client{
		base:   strings.TrimRight(baseURI, "/"),
		client: &http.Client{Transport: t},
	}
}
