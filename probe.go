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
	"net"
	"os"
	"strconv"
	"time"
)

// LivenessProbe confirms that the service has come up.  It is polled
// during start detection until it returns true or the timeout expires.
// Returning an error that wraps ErrProbeInterrupted asks for a retry; any
// other error fails start detection.
type LivenessProbe interface {
	IsAlive(ctx context.Context) (bool, error)
}

// StopProbe detects an application level stop while the OS process may
// still be running.
type StopProbe interface {
	IsStopped(ctx context.Context) (bool, error)
}

// LivenessFunc adapts a function to LivenessProbe.
type LivenessFunc func(ctx context.Context) (bool, error)

func (f LivenessFunc) IsAlive(ctx context.Context) (bool, error) {
	return f(ctx)
}

// StopFunc adapts a function to StopProbe.
type StopFunc func(ctx context.Context) (bool, error)

func (f StopFunc) IsStopped(ctx context.Context) (bool, error) {
	return f(ctx)
}

// PortProbe is alive once every listed TCP port on Host accepts
// connections.
type PortProbe struct {
	Host    string
	Ports   []int
	Timeout time.Duration
}

func (p *PortProbe) IsAlive(ctx context.Context) (bool, error) {
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	d := net.Dialer{Timeout: p.Timeout}
	if d.Timeout == 0 {
		d.Timeout = time.Second
	}
	for _, port := range p.Ports {
		c, err := d.DialContext(ctx, "tcp",
			net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("%w: %v", ErrProbeInterrupted, err)
			}
			return false, nil
		}
		c.Close()
	}
	return true, nil
}

// IsStopped reports a stop once any listed port refuses connections.
func (p *PortProbe) IsStopped(ctx context.Context) (bool, error) {
	up, err := p.IsAlive(ctx)
	if err != nil {
		return false, err
	}
	return !up, nil
}

// FileProbe is alive once Path exists.
type FileProbe struct {
	Path string
}

func (p *FileProbe) IsAlive(ctx context.Context) (bool, error) {
	_, err := os.Stat(p.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, err
}

// CommandProbe is alive when its command exits with status zero.
type CommandProbe struct {
	Command []string
	Timeout time.Duration
}

func (p *CommandProbe) IsAlive(ctx context.Context) (bool, error) {
	if len(p.Command) == 0 {
		return false, errors.New("Empty probe command")
	}
	_, err := runCommand(ctx, p.Command, nil, p.Timeout)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: %v", ErrProbeInterrupted, err)
	}
	return false, nil
}
