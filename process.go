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
	"os"
	"os/exec"
)

// Process is a launched start command.
type Process interface {
	// Pid is the pid of the direct child.
	Pid() int

	// Stdout and Stderr are the output streams of the process.  They
	// reach end of file once every process holding them has exited.
	Stdout() io.Reader
	Stderr() io.Reader

	// Exited reports whether the direct child has terminated.
	Exited() bool

	// Err is the exit error once Exited is true.
	Err() error
}

// Launcher spawns the start command of a descriptor.
type Launcher interface {
	Launch(d *Descriptor) (Process, error)
}

// ExecLauncher starts processes with os/exec.
type ExecLauncher struct{}

type execProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	done   chan struct{}
	err    error
}

// Launch starts the command.  The output pipes are plain files handed to
// the child, so nothing in this process copies them; the child is reaped
// in the background as soon as it exits.
func (ExecLauncher) Launch(d *Descriptor) (Process, error) {
	cmd := exec.Command(d.Command[0], d.Command[1:]...)
	cmd.Dir = d.Directory
	if len(d.Env) != 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	err = cmd.Start()
	// Our copies of the write ends must go, or the readers never see EOF.
	outW.Close()
	errW.Close()
	if err != nil {
		outR.Close()
		errR.Close()
		return nil, err
	}

	p := &execProcess{
		cmd:    cmd,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go p.doWait()
	return p, nil
}

func (p *execProcess) doWait() {
	p.err = p.cmd.Wait()
	close(p.done)
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Stderr() io.Reader {
	return p.stderr
}

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
