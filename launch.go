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
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Names of shells and console hosts.  A service process with one of
// these names is usually a wrapper script whose real service we failed
// to see.
var shellNames = map[string]bool{
	"sh":             true,
	"bash":           true,
	"dash":           true,
	"ash":            true,
	"zsh":            true,
	"ksh":            true,
	"csh":            true,
	"tcsh":           true,
	"cmd.exe":        true,
	"conhost.exe":    true,
	"powershell.exe": true,
	"pwsh":           true,
	"pwsh.exe":       true,
}

func isShell(name string) bool {
	return shellNames[strings.ToLower(filepath.Base(name))]
}

// Launch starts the service again, for example after Stop.  A launch in
// progress, from Init or from a restart, completes first.  A running
// service must be stopped before it can be launched again.
func (s *Supervisor) Launch(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	switch s.state {
	case StateShuttingDown:
		return ErrShuttingDown
	case StateRunning:
		return ErrAlreadyRunning
	}
	if r := s.run; r != nil && !r.stopped.Load() {
		// Left over from a failed launch.
		r.stopped.Store(true)
		s.killTreeLocked()
	}
	reason := ReasonDeploy
	if s.generation > 0 {
		reason = ReasonRestart
	}
	err := s.launchLocked(ctx, reason)
	if err != nil {
		s.logf("Launch failed: %v", err)
		if r := s.run; r != nil {
			r.stopped.Store(true)
		}
		s.killTreeLocked()
		s.setState(StateInitializing)
	}
	return err
}

// launchLocked is the body of every launch.  Call with the lock held.
func (s *Supervisor) launchLocked(ctx context.Context, reason Reason) error {
	s.setState(StateLaunching)
	if err := s.bus.Fire(ctx, EventPreStart, reason); err != nil {
		return err
	}

	before, err := s.childrenOfContainer()
	if err != nil {
		return err
	}

	proc, err := s.launcher.Launch(s.desc)
	if err != nil {
		return launchFailure("cannot start "+s.desc.Command[0], err)
	}
	s.generation++
	r := &run{gen: s.generation, proc: proc}
	r.running.Store(true)
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	s.run = r
	s.childPid, s.actualPid = 0, 0
	s.launchID = uuid.NewString()
	s.current.Store(r)
	s.publish()
	s.logf("Launched %s as pid %d (launch %d)",
		strings.Join(s.desc.Command, " "), proc.Pid(), r.gen)

	sink := func() { s.processDied(r) }
	for _, m := range []*StreamMonitor{
		{Name: "stdout", Reader: proc.Stdout()},
		{Name: "stderr", Reader: proc.Stderr()},
	} {
		m := m
		m.Logger = s.logger
		m.Verbose = s.desc.Verbose
		m.Filters = s.desc.OutputFilter
		m.Sink = sink
		s.pool.Go(func(context.Context) { m.Run() })
	}

	sleep(dctx, s.timings.Settle)
	if proc.Exited() {
		return launchFailure("process exited right after launch", proc.Err())
	}

	detectErr := s.detectStart(dctx, r)
	if detectErr == nil {
		detectErr = s.bus.Fire(ctx, EventPostStart, reason)
	}

	// Discovery runs even when detection failed, so that the kill chain
	// of the caller's cleanup finds the right processes.
	if err := s.findProcessIDs(before); err != nil {
		if detectErr != nil {
			s.logf("Process discovery also failed: %v", err)
			return detectErr
		}
		return err
	}
	if detectErr != nil {
		return detectErr
	}

	s.started = time.Now()
	s.setState(StateRunning)
	if len(s.stops) > 0 {
		s.pool.Go(func(ctx context.Context) { s.pollStops(ctx, r) })
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// detectStart runs the liveness probes in order; each must pass within
// the start detection timeout.  It gives up as soon as the process is
// known to be dead.
func (s *Supervisor) detectStart(ctx context.Context, r *run) error {
	if len(s.probes) == 0 {
		s.logf("WARNING: no start detection probes configured; " +
			"nothing verifies that the right process is monitored")
		return nil
	}
	timeout := s.desc.StartTimeout()
	interval := s.desc.StartInterval()

	for i, p := range s.probes {
		deadline := time.Now().Add(timeout)
		for {
			if !r.running.Load() {
				return launchFailure("process died during start detection", nil)
			}
			if err := ctx.Err(); err != nil {
				return launchFailure("start detection cancelled", err)
			}
			ok, err := p.IsAlive(ctx)
			switch {
			case err == nil && ok:
			case err == nil, errors.Is(err, ErrProbeInterrupted):
				if !r.running.Load() {
					return launchFailure("process died during start detection", nil)
				}
				if time.Now().After(deadline) {
					return &LaunchError{
						Reason: fmt.Sprintf("liveness probe %d did not pass within %v", i+1, timeout),
						Err:    ErrLivenessTimeout,
					}
				}
				sleep(ctx, interval)
				continue
			default:
				return launchFailure(fmt.Sprintf("liveness probe %d failed", i+1), err)
			}
			break
		}
		s.logf("Liveness probe %d of %d passed", i+1, len(s.probes))
	}
	return nil
}

func (s *Supervisor) childrenOfContainer() (map[int]bool, error) {
	tree, err := BuildTree(s.table, s.logger)
	if err != nil {
		s.logf("Cannot read the process table: %v", err)
		return nil, err
	}
	set := map[int]bool{}
	for _, c := range tree.Children(s.container) {
		set[c] = true
	}
	return set, nil
}

// findProcessIDs works out which process the launch created, and which of
// its descendants is the real service.  It takes a fresh snapshot: pids
// get reused and the tree changes shape, so nothing is cached.
func (s *Supervisor) findProcessIDs(before map[int]bool) error {
	tree, err := BuildTree(s.table, s.logger)
	if err != nil {
		s.logf("Cannot read the process table: %v", err)
		return err
	}
	if !tree.Has(s.container) {
		return fmt.Errorf("%w: own pid %d is not in the process table",
			ErrProcessQuery, s.container)
	}

	var fresh []int
	for _, c := range tree.Children(s.container) {
		if !before[c] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return launchFailure("new process could not be found", nil)
	}
	child := fresh[0]
	if len(fresh) > 1 {
		s.logf("WARNING: %d new child processes found; using %d, ignoring %v",
			len(fresh), child, fresh[1:])
	}

	leaf := child
	for {
		kids := tree.Children(leaf)
		if len(kids) == 0 {
			break
		}
		if len(kids) > 1 {
			s.logf("WARNING: process %d has %d children; following %d, ignoring %v",
				leaf, len(kids), kids[0], kids[1:])
		}
		leaf = kids[0]
	}

	if s.pidFile != nil {
		if hint := s.pidFile.Pid(); hint > 0 && hint != leaf {
			if hint == child || tree.IsDescendant(hint, child) {
				s.logf("Using pid %d from %s as the service process",
					hint, s.pidFile.Path())
				leaf = hint
			} else {
				s.logf("WARNING: pid %d from %s is not a descendant of %d; ignored",
					hint, s.pidFile.Path(), child)
			}
		}
	}

	s.childPid, s.actualPid = child, leaf
	s.publish()
	s.logf("Service process is %d (child %d)", leaf, child)

	if name, err := s.table.Name(leaf); err == nil && isShell(name) {
		s.logf("WARNING: the service process %d is %q, a shell. Statistics "+
			"will be collected for the wrong process; the service probably "+
			"needs a start detection probe", leaf, name)
	}
	return nil
}

// pollStops checks the stop probes of r until r ends or the pool is
// cancelled.  A probe that reports a stop counts as a process death.
func (s *Supervisor) pollStops(ctx context.Context, r *run) {
	t := time.NewTicker(s.desc.StopInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if !r.running.Load() || s.current.Load() != r {
			return
		}
		for i, p := range s.stops {
			stopped, err := p.IsStopped(ctx)
			if err != nil {
				s.logf("Stop probe %d failed: %v", i+1, err)
				continue
			}
			if stopped {
				s.logf("Stop probe %d reports the service stopped", i+1)
				s.processDied(r)
				return
			}
		}
	}
}
