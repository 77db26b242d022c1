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
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// PidFile tracks the pid a service writes to a file.  The directory of
// the file is watched, so Pid reflects rewrites and removals without
// rereading.  If the directory cannot be watched (it may not exist until
// the install step ran), the file is reread on every call instead.
type PidFile struct {
	path    string
	pid     atomic.Int64
	watcher *fsnotify.Watcher
	logger  *log.Logger
	done    chan struct{}
	closer  sync.Once
}

// OpenPidFile starts tracking path.  The file need not exist yet.
func OpenPidFile(path string, logger *log.Logger) *PidFile {
	pf := &PidFile{path: filepath.Clean(path), logger: logger}
	w, err := fsnotify.NewWatcher()
	if err == nil {
		// Watch the directory: daemons often replace the file by
		// rename, which a watch on the file itself would lose.
		if err = w.Add(filepath.Dir(pf.path)); err != nil {
			w.Close()
		}
	}
	pf.reload()
	if err != nil {
		if logger != nil {
			logger.Printf("Cannot watch %s, reading it on demand: %v",
				pf.path, err)
		}
		return pf
	}
	pf.watcher = w
	pf.done = make(chan struct{})
	go pf.watch()
	return pf
}

func (pf *PidFile) reload() {
	b, err := os.ReadFile(pf.path)
	if err != nil {
		pf.pid.Store(0)
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		// Probably caught mid-write; the next event fixes it.
		pf.pid.Store(0)
		return
	}
	pf.pid.Store(int64(pid))
}

func (pf *PidFile) watch() {
	defer close(pf.done)
	for {
		select {
		case ev, ok := <-pf.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == pf.path {
				pf.reload()
			}
		case err, ok := <-pf.watcher.Errors:
			if !ok {
				return
			}
			if pf.logger != nil {
				pf.logger.Printf("Watching %s: %v", pf.path, err)
			}
			pf.reload()
		}
	}
}

// Path returns the watched file.
func (pf *PidFile) Path() string {
	return pf.path
}

// Pid returns the pid in the file, or 0 if there is none.
func (pf *PidFile) Pid() int {
	if pf.watcher == nil {
		pf.reload()
	}
	return int(pf.pid.Load())
}

// Close stops watching.  It is safe to call more than once.
func (pf *PidFile) Close() error {
	var err error
	pf.closer.Do(func() {
		if pf.watcher != nil {
			err = pf.watcher.Close()
			<-pf.done
		}
	})
	return err
}

// PidFileProbe is alive once the pid file names a running process.
type PidFileProbe struct {
	File  *PidFile
	Table ProcessTable
}

func (p *PidFileProbe) IsAlive(ctx context.Context) (bool, error) {
	pid := p.File.Pid()
	return pid > 0 && p.Table.Running(pid), nil
}
