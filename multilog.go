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

package usm

import (
	"io"
	"log"
	"sync"
)

// MultiLogger fans log output out to a changing set of writers: the
// process's stderr, a rotating file, the in-memory Log behind the REST
// interface.  Unlike io.MultiWriter, writers can be attached and
// detached while logging is in progress, and one failing writer does
// not stop delivery to the others.
type MultiLogger struct {
	log     *log.Logger
	writers []io.Writer
	lock    sync.Mutex
}

// Write delivers b to every attached writer.
func (l *MultiLogger) Write(b []byte) (int, error) {
	l.lock.Lock()
	ws := l.writers
	l.lock.Unlock()
	for _, w := range ws {
		w.Write(b)
	}
	return len(b), nil
}

// AddWriter attaches w.  Attaching the same writer twice has no effect.
func (l *MultiLogger) AddWriter(w io.Writer) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, x := range l.writers {
		if x == w {
			return
		}
	}
	// Copy on write, so Write can iterate without the lock.
	ws := make([]io.Writer, 0, len(l.writers)+1)
	l.writers = append(append(ws, l.writers...), w)
}

// DelWriter detaches w.
func (l *MultiLogger) DelWriter(w io.Writer) {
	l.lock.Lock()
	defer l.lock.Unlock()
	ws := make([]io.Writer, 0, len(l.writers))
	for _, x := range l.writers {
		if x != w {
			ws = append(ws, x)
		}
	}
	l.writers = ws
}

// Logger returns a logger writing to every attached writer.
func (l *MultiLogger) Logger() *log.Logger {
	return l.log
}

// NewMultiLogger returns a MultiLogger whose Logger uses flags.
func NewMultiLogger(flags int, ws ...io.Writer) *MultiLogger {
	m := &MultiLogger{}
	m.log = log.New(m, "", flags)
	for _, w := range ws {
		m.AddWriter(w)
	}
	return m
}
