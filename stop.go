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
	"os"
	"time"
)

// Stop stops the service on purpose.  The supervisor goes back to
// StateInitializing, from where Launch starts it again.  Listener
// failures are returned, but never keep the process tree alive.
func (s *Supervisor) Stop(ctx context.Context, reason Reason) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.state == StateShuttingDown {
		return ErrShuttingDown
	}
	if s.run == nil {
		return ErrNotRunning
	}
	err := s.stopLocked(ctx, reason)
	s.setState(StateInitializing)
	return err
}

// Shutdown stops the service for good and fires the Shutdown event.
// The supervisor cannot be restarted afterwards.  Calling it again
// repeats the kill chain and the event, which is harmless.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	// Cancelled before taking the lock, so that a restart holding it
	// gives up its start detection.
	s.pool.Cancel()

	s.mx.Lock()
	defer s.mx.Unlock()
	return s.shutdownLocked(ctx)
}

func (s *Supervisor) shutdownLocked(ctx context.Context) error {
	var errs []error

	s.setState(StateShuttingDown)
	s.pool.Cancel()

	if !s.cluster.OthersRunning(ctx) {
		if err := s.bus.Fire(ctx, EventPreServiceStop, ReasonUndeploy); err != nil {
			s.logf("Ignoring failure of pre service stop listeners: %v", err)
			errs = append(errs, err)
		}
	}
	if s.run != nil {
		if err := s.stopLocked(ctx, ReasonUndeploy); err != nil {
			errs = append(errs, err)
		}
	}
	if s.pidFile != nil {
		s.pidFile.Close()
	}
	if s.desc.CleanDirectory && s.desc.Directory != "" {
		s.logf("Removing %s", s.desc.Directory)
		if err := os.RemoveAll(s.desc.Directory); err != nil {
			s.logf("Cannot remove %s: %v", s.desc.Directory, err)
			errs = append(errs, err)
		}
	}
	if err := s.bus.Fire(ctx, EventShutdown, ReasonUndeploy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// stopLocked fires PreStop, tears the process tree down and fires
// PostStop.  Every step runs even when an earlier one failed.
func (s *Supervisor) stopLocked(ctx context.Context, reason Reason) error {
	var errs []error
	if r := s.run; r != nil {
		r.stopped.Store(true)
	}
	if err := s.bus.Fire(ctx, EventPreStop, reason); err != nil {
		s.logf("Ignoring failure of pre stop listeners: %v", err)
		errs = append(errs, err)
	}
	s.killTreeLocked()
	if err := s.bus.Fire(ctx, EventPostStop, reason); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// killTreeLocked kills the service process and its ancestors up to, but
// not including, the container; leaf first.
func (s *Supervisor) killTreeLocked() {
	child, actual := s.childPid, s.actualPid
	if child <= 0 && s.run != nil {
		child = s.run.proc.Pid()
	}
	if actual <= 0 {
		actual = child
	}
	if actual <= 0 {
		return
	}

	chain := []int{actual}
	if tree, err := BuildTree(s.table, s.logger); err != nil {
		s.logf("Cannot read the process table, killing %d only: %v", actual, err)
	} else if tree.IsDescendant(actual, s.container) {
		chain = tree.Ancestors(actual, s.container)
	} else if tree.Has(actual) {
		// Reparented; its ancestors are no longer ours to kill.
		s.logf("Process %d is no longer below %d", actual, s.container)
	}

	seen := map[int]bool{}
	for _, pid := range chain {
		seen[pid] = true
		s.kill(pid)
	}
	// The tree may have changed shape, leaving child outside the chain.
	if child != actual && !seen[child] && s.table.Running(child) {
		s.kill(child)
	}
}

// kill terminates pid gracefully, then forcibly once StopTimeout has
// passed.  Failures are only logged.
func (s *Supervisor) kill(pid int) {
	if pid <= 1 || pid == s.container || !s.table.Running(pid) {
		return
	}
	s.logf("Stopping process %d", pid)
	if err := s.table.Signal(pid, false); err != nil {
		s.logf("Cannot terminate %d: %v", pid, err)
	} else {
		deadline := time.Now().Add(s.timings.StopTimeout)
		for s.table.Running(pid) && time.Now().Before(deadline) {
			time.Sleep(s.timings.KillPoll)
		}
		if !s.table.Running(pid) {
			return
		}
		s.logf("Graceful shutdown of %d timed out, killing it", pid)
	}
	if err := s.table.Signal(pid, true); err != nil {
		s.logf("Cannot kill %d: %v", pid, err)
	}
}

// Wait blocks until the background work has finished, which is after
// Shutdown once the process output streams are closed.
func (s *Supervisor) Wait() {
	s.pool.Wait()
}
