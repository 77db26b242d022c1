// Copyright 2026 The USM Authors
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
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/usm"
	"github.com/gorilla/mux"
)

// Supervisor is what the handler needs of a *usm.Supervisor.
type Supervisor interface {
	Snapshot(ctx context.Context) usm.Snapshot
	Check() error
	Log() *usm.Log
	Commands() []string
	Invoke(ctx context.Context, name string, args map[string]string) usm.CommandResult
	Shutdown(ctx context.Context) error
}

// Handler wraps a Supervisor, adding http.Handler functionality.
type Handler struct {
	s Supervisor
	r *mux.Router
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

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.s.Snapshot(r.Context()))
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.s.Check(); err != nil {
		h.writeError(w, &Error{http.StatusServiceUnavailable, err.Error()})
		return
	}
	h.writeJson(w, ok)
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.s.Commands())
}

func (h *Handler) invokeCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["command"]
	args := map[string]string{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && err != io.EOF {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad arguments: " + err.Error()})
			return
		}
	}
	known := false
	for _, c := range h.s.Commands() {
		known = known || c == name
	}
	if !known {
		h.writeError(w, &Error{http.StatusNotFound, "Command not found"})
		return
	}
	h.writeJson(w, h.s.Invoke(r.Context(), name, args))
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	if err := h.s.Shutdown(r.Context()); err != nil {
		h.writeError(w, &Error{http.StatusInternalServerError, err.Error()})
		return
	}
	h.writeJson(w, ok)
}

// getLog returns the recent log.  The Etag is the id of the newest line;
// a client that presents it in If-None-Match gets 304 until there is
// more, or with the poll headers (or ?wait=) blocks until there is.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	log := h.s.Log()

	var last int64
	var err error
	etag := strings.Trim(r.Header.Get("If-None-Match"), `"`)
	since := r.URL.Query().Get("since")
	switch {
	case since != "":
		last, err = strconv.ParseInt(since, 10, 64)
	case etag != "":
		last, err = strconv.ParseInt(etag, 10, 64)
	}
	if err != nil {
		h.writeError(w, &Error{http.StatusBadRequest, "Bad log id"})
		return
	}

	wait := r.URL.Query().Get("wait")
	if wait == "" && r.Header.Get(PollEtagHeader) != "" {
		wait = r.Header.Get(PollTimeHeader)
	}
	if wait != "" && last != 0 {
		secs, err := strconv.Atoi(wait)
		if err != nil || secs < 0 {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad wait time"})
			return
		}
		if secs > MaxPollTime {
			secs = MaxPollTime
		}
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(secs)*time.Second)
		log.Watch(ctx, last)
		cancel()
	}

	recs, id := log.Records(last)
	w.Header().Set("Etag", strconv.FormatInt(id, 10))
	if recs == nil && last != 0 {
		if since != "" {
			// An explicit since gets an empty list rather than 304.
			h.writeJson(w, []usm.LogRecord{})
			return
		}
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if recs == nil {
		recs = []usm.LogRecord{}
	}
	h.writeJson(w, recs)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

func NewHandler(s Supervisor) *Handler {
	r := mux.NewRouter()
	h := &Handler{s: s, r: r}
	r.HandleFunc("/status", h.getStatus).Methods("GET")
	r.HandleFunc("/health", h.getHealth).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/commands", h.listCommands).Methods("GET")
	r.HandleFunc("/commands/{command}", h.invokeCommand).Methods("POST")
	r.HandleFunc("/shutdown", h.shutdown).Methods("POST")
	return h
}
