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
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/netutil"

	"github.com/gdamore/hooh"
)

// MaxConns limits concurrent connections to the status listener.
const MaxConns = 16

// Source is what the handler reports on.  *hooh.Master is one.
type Source interface {
	Status() hooh.Status
	Log() *hooh.Log
}

// Handler serves a read-only view of a master.
type Handler struct {
	src  Source
	r    *mux.Router
	user string
	hash []byte
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func workerInfo(ws hooh.WorkerStatus) *WorkerInfo {
	return &WorkerInfo{Pid: ws.Pid, State: ws.State, Started: ws.Started}
}

func (h *Handler) getMaster(w http.ResponseWriter, r *http.Request) {
	s := h.src.Status()
	h.writeJson(w, &MasterInfo{
		Pid:      s.Pid,
		Title:    s.Title,
		Mode:     s.Mode,
		Workers:  s.Workers,
		Alive:    len(s.Pool),
		Ready:    s.Ready,
		Restarts: s.Restarts,
		Started:  s.Started,
	})
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	s := h.src.Status()
	l := make([]*WorkerInfo, 0, len(s.Pool))
	for _, ws := range s.Pool {
		l = append(l, workerInfo(ws))
	}
	h.writeJson(w, l)
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	pid, e := strconv.Atoi(mux.Vars(r)["pid"])
	if e != nil {
		h.writeError(w, &Error{http.StatusBadRequest, "Bad worker pid"})
		return
	}
	for _, ws := range h.src.Status().Pool {
		if ws.Pid == pid {
			h.writeJson(w, workerInfo(ws))
			return
		}
	}
	h.writeError(w, &Error{http.StatusNotFound, "Worker not found"})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	log := h.src.Log()
	if log == nil {
		h.writeError(w, &Error{http.StatusNotFound, "No log kept"})
		return
	}
	var since int64
	var wait int
	var e error
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		if since, e = strconv.ParseInt(v, 10, 64); e != nil {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad since"})
			return
		}
	}
	if v := q.Get("wait"); v != "" {
		if wait, e = strconv.Atoi(v); e != nil || wait < 0 {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad wait"})
			return
		}
		if wait > MaxWait {
			wait = MaxWait
		}
	}
	if wait > 0 {
		log.Watch(since, time.Duration(wait)*time.Second)
	}
	recs, last := log.GetRecords(since)
	if recs == nil {
		recs = []hooh.LogRecord{}
	}
	h.writeJson(w, &LogInfo{Last: last, Records: recs})
}

// SetAuth requires HTTP basic authentication as user, checking the
// password against a bcrypt hash.
func (h *Handler) SetAuth(user string, hash []byte) {
	h.user = user
	h.hash = hash
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.hash == nil {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok || user != h.user {
		return false
	}
	return bcrypt.CompareHashAndPassword(h.hash, []byte(pass)) == nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		w.Header().Set("WWW-Authenticate", `Basic realm="hooh"`)
		h.writeError(w, &Error{http.StatusUnauthorized, "Unauthorized"})
		return
	}
	h.r.ServeHTTP(w, req)
}

func NewHandler(src Source) *Handler {
	r := mux.NewRouter()
	h := &Handler{src: src, r: r}
	r.HandleFunc("/master", h.getMaster).Methods("GET")
	r.HandleFunc("/workers", h.listWorkers).Methods("GET")
	r.HandleFunc("/workers/{pid:[0-9]+}", h.getWorker).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	return h
}

// ParseAuth splits a "user:hash" credential, as found in
// HOOH_STATUS_AUTH.
func ParseAuth(s string) (string, []byte, error) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", nil, errors.New("Credential must be user:hash")
	}
	hash := []byte(s[i+1:])
	if _, e := bcrypt.Cost(hash); e != nil {
		return "", nil, e
	}
	return s[:i], hash, nil
}

// Listen opens a TCP listener for the status surface, limited to
// MaxConns concurrent connections.
func Listen(addr string) (net.Listener, error) {
	l, e := net.Listen("tcp", addr)
	if e != nil {
		return nil, e
	}
	return netutil.LimitListener(l, MaxConns), nil
}

// Serve serves h on l until ctx is done.
func Serve(ctx context.Context, l net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if e := srv.Serve(l); !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return nil
}
