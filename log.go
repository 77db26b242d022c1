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
	"context"
	"strings"
	"sync"
	"time"
)

const MaxLogRecords = 1000

type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log keeps the most recent lines written to it.  Every line gets an
// increasing id; the id of the newest line doubles as an Etag.
type Log struct {
	records []LogRecord
	next    int // lines ever stored
	id      int64
	changed chan struct{}
	mx      sync.Mutex
}

// NewLog returns a Log holding up to max lines, MaxLogRecords if max is
// not positive.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records: make([]LogRecord, max),
		// Seeding from the clock keeps ids from repeating across
		// restarts of the daemon, so cached Etags are invalidated.
		id:      time.Now().UnixNano(),
		changed: make(chan struct{}),
	}
}

// Write implements io.Writer; each newline separated line becomes a
// record.
func (l *Log) Write(b []byte) (int, error) {
	text := strings.TrimRight(string(b), "\n")
	now := time.Now()
	l.mx.Lock()
	for _, line := range strings.Split(text, "\n") {
		l.id++
		l.records[l.next%len(l.records)] = LogRecord{
			Id:   l.id,
			Time: now,
			Text: line,
		}
		l.next++
	}
	close(l.changed)
	l.changed = make(chan struct{})
	l.mx.Unlock()
	return len(b), nil
}

// Records returns the stored lines newer than last, oldest first, and
// the current id.  When nothing changed since last, it returns nil.
func (l *Log) Records(last int64) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()

	if l.id == last {
		return nil, last
	}
	n := l.next
	if n > len(l.records) {
		n = len(l.records)
	}
	recs := make([]LogRecord, 0, n)
	for i := l.next - n; i < l.next; i++ {
		r := l.records[i%len(l.records)]
		if r.Id > last || last > l.id {
			recs = append(recs, r)
		}
	}
	return recs, l.id
}

// Watch blocks until the log moves past last, or ctx is done.  It
// returns the current id.
func (l *Log) Watch(ctx context.Context, last int64) int64 {
	for {
		l.mx.Lock()
		id, ch := l.id, l.changed
		l.mx.Unlock()
		if id != last {
			return id
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return id
		}
	}
}
