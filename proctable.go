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
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessTable is a read view of the operating system process list, plus
// the ability to signal a process.  Implementations must not cache
// across calls: pids are reused, and the tree changes shape between
// scans.
type ProcessTable interface {
	// Pids returns every process id currently known to the system.
	Pids() ([]int, error)

	// Parent returns the parent pid of pid.
	Parent(pid int) (int, error)

	// Name returns the executable name of pid, e.g. "bash".
	Name(pid int) (string, error)

	// Running reports whether pid exists and is not a zombie.
	Running(pid int) bool

	// Signal asks pid to terminate.  With force, the process is killed
	// outright.
	Signal(pid int, force bool) error
}

type hostTable struct{}

// NewProcessTable returns the ProcessTable for the host operating system.
func NewProcessTable() ProcessTable {
	return hostTable{}
}

func (hostTable) Pids() ([]int, error) {
	raw, err := process.Pids()
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(raw))
	for _, p := range raw {
		pids = append(pids, int(p))
	}
	return pids, nil
}

func (hostTable) Parent(pid int) (int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	ppid, err := p.Ppid()
	if err != nil {
		return 0, err
	}
	return int(ppid), nil
}

func (hostTable) Name(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}

func (hostTable) Running(pid int) bool {
	if pid <= 0 {
		return false
	}
	if ok, err := process.PidExists(int32(pid)); err != nil || !ok {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	st, err := p.Status()
	if err != nil {
		// Exists, but we cannot tell more.
		return true
	}
	for _, s := range st {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

func (hostTable) Signal(pid int, force bool) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	if force {
		return p.Kill()
	}
	return p.Terminate()
}
