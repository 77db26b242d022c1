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
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

const testContainer = 1000

type signal struct {
	pid   int
	force bool
}

// fakeTable is an in-memory process table.  Signalling a pid removes it,
// unless it is stubborn and the signal is not forced.
type fakeTable struct {
	mx       sync.Mutex
	parents  map[int]int
	names    map[int]string
	stubborn map[int]bool
	owners   map[int]*fakeProc
	signals  []signal
	fail     error
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		parents: map[int]int{
			testContainer: 1,
			1001:          testContainer,
			1002:          testContainer,
		},
		names:    map[int]string{},
		stubborn: map[int]bool{},
		owners:   map[int]*fakeProc{},
	}
}

func (t *fakeTable) Pids() ([]int, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.fail != nil {
		return nil, t.fail
	}
	pids := make([]int, 0, len(t.parents))
	for pid := range t.parents {
		pids = append(pids, pid)
	}
	return pids, nil
}

func (t *fakeTable) Parent(pid int) (int, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if ppid, ok := t.parents[pid]; ok {
		return ppid, nil
	}
	return 0, fmt.Errorf("no process %d", pid)
}

func (t *fakeTable) Name(pid int) (string, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if n, ok := t.names[pid]; ok {
		return n, nil
	}
	return "fake", nil
}

func (t *fakeTable) Running(pid int) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	_, ok := t.parents[pid]
	return ok
}

func (t *fakeTable) Signal(pid int, force bool) error {
	t.mx.Lock()
	t.signals = append(t.signals, signal{pid, force})
	if _, ok := t.parents[pid]; !ok {
		t.mx.Unlock()
		return errors.New("no such process")
	}
	if t.stubborn[pid] && !force {
		t.mx.Unlock()
		return nil
	}
	t.mx.Unlock()
	t.crash(pid)
	return nil
}

// crash removes pid; if it is the direct child of a launch, that launch's
// output streams close.
func (t *fakeTable) crash(pid int) {
	t.mx.Lock()
	delete(t.parents, pid)
	p := t.owners[pid]
	delete(t.owners, pid)
	t.mx.Unlock()
	if p != nil {
		p.die()
	}
}

func (t *fakeTable) add(pid, ppid int, name string) {
	t.mx.Lock()
	t.parents[pid] = ppid
	if name != "" {
		t.names[pid] = name
	}
	t.mx.Unlock()
}

func (t *fakeTable) signalled() []signal {
	t.mx.Lock()
	defer t.mx.Unlock()
	return append([]signal{}, t.signals...)
}

type fakeProc struct {
	pid    int
	outR   *io.PipeReader
	outW   *io.PipeWriter
	errR   *io.PipeReader
	errW   *io.PipeWriter
	exited atomic.Bool
	once   sync.Once
}

func newFakeProc(pid int) *fakeProc {
	p := &fakeProc{pid: pid}
	p.outR, p.outW = io.Pipe()
	p.errR, p.errW = io.Pipe()
	return p
}

func (p *fakeProc) die() {
	p.once.Do(func() {
		p.exited.Store(true)
		p.outW.Close()
		p.errW.Close()
	})
}

func (p *fakeProc) Pid() int          { return p.pid }
func (p *fakeProc) Stdout() io.Reader { return p.outR }
func (p *fakeProc) Stderr() io.Reader { return p.errR }
func (p *fakeProc) Exited() bool      { return p.exited.Load() }
func (p *fakeProc) Err() error        { return nil }

// fakeLauncher adds a child of the container, plus depth descendants in a
// chain below it, for every launch.
type fakeLauncher struct {
	table    *fakeTable
	mx       sync.Mutex
	next     int
	depth    int
	hidden   bool  // the child never shows up in the table
	exitNow  bool  // the child exits during the settle interval
	fail     error // Launch fails
	procs    []*fakeProc
	onLaunch func(p *fakeProc)
}

func newFakeLauncher(t *fakeTable) *fakeLauncher {
	return &fakeLauncher{table: t, next: 1003}
}

func (l *fakeLauncher) Launch(d *Descriptor) (Process, error) {
	l.mx.Lock()
	if l.fail != nil {
		l.mx.Unlock()
		return nil, l.fail
	}
	pid := l.next
	l.next += l.depth + 1
	p := newFakeProc(pid)
	l.procs = append(l.procs, p)
	hidden, exitNow, depth, hook := l.hidden, l.exitNow, l.depth, l.onLaunch
	l.mx.Unlock()

	if !hidden {
		l.table.add(pid, testContainer, "")
		l.table.mx.Lock()
		l.table.owners[pid] = p
		l.table.mx.Unlock()
		for i := 1; i <= depth; i++ {
			l.table.add(pid+i, pid+i-1, "")
		}
	}
	if exitNow {
		l.table.crash(pid)
		p.die()
	}
	if hook != nil {
		hook(p)
	}
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProc {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.procs[len(l.procs)-1]
}

func (l *fakeLauncher) setFail(err error) {
	l.mx.Lock()
	l.fail = err
	l.mx.Unlock()
}

// recorder is a listener for every event that remembers what it saw.
type recorder struct {
	mx   sync.Mutex
	seen []string
	fail map[Event]error
}

func (r *recorder) listener(rank int) Listener {
	return &Hook{Rank: rank, On: AllEvents, Fn: r.handle}
}

func (r *recorder) handle(ctx context.Context, ev Event, reason Reason) EventResult {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.seen = append(r.seen, ev.String()+"/"+reason.String())
	if err := r.fail[ev]; err != nil {
		return Failed(err)
	}
	return Succeeded(nil)
}

func (r *recorder) events() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]string{}, r.seen...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, s := range r.events() {
		if s == name {
			n++
		}
	}
	return n
}

var fastTimings = Timings{
	Settle:       time.Millisecond,
	RestartDelay: time.Millisecond * 10,
	StopTimeout:  time.Millisecond * 50,
	KillPoll:     time.Millisecond,
}

func testDescriptor() *Descriptor {
	return &Descriptor{
		Name:                     "svc",
		Command:                  []string{"/bin/true"},
		StartDetectionTimeoutMs:  2000,
		StartDetectionIntervalMs: 5,
		StopDetectionIntervalMs:  5,
	}
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second * 2)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond * 2)
	}
	return cond()
}
