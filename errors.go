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
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfiguration    = errors.New("Configuration error")
	ErrLaunchFailed     = errors.New("Launch failed")
	ErrLivenessTimeout  = errors.New("Start detection timed out")
	ErrProcessQuery     = errors.New("Process table query failed")
	ErrPermanentFailure = errors.New("Service permanently failed")
	ErrProbeInterrupted = errors.New("Probe wait interrupted")
	ErrNotRunning       = errors.New("Service is not running")
	ErrAlreadyRunning   = errors.New("Service is already running")
	ErrShuttingDown     = errors.New("Service is shutting down")
	ErrNoSuchCommand    = errors.New("No such custom command")
)

// LaunchError reports why a launch attempt failed.  It matches
// ErrLaunchFailed with errors.Is, as well as any wrapped cause.
type LaunchError struct {
	Reason string
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return "Launch failed: " + e.Reason
	}
	return fmt.Sprintf("Launch failed: %s: %v", e.Reason, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailed
}

func launchFailure(reason string, err error) error {
	return &LaunchError{Reason: reason, Err: err}
}

// EventError is returned when a listener reports failure while an event
// is being fired.  Listeners after the failing one have not run.
type EventError struct {
	Event Event
	Order int
	Cause error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s listener (order %d) failed: %v",
		e.Event, e.Order, e.Cause)
}

func (e *EventError) Unwrap() error {
	return e.Cause
}

// PermanentFailure records a restart attempt that itself failed.  Once
// set, it is reported by every health check until the instance is
// recycled externally.
type PermanentFailure struct {
	Err  error
	Time time.Time
}

func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("Service permanently failed at %s: %v",
		e.Time.Format(time.RFC3339), e.Err)
}

func (e *PermanentFailure) Unwrap() error {
	return e.Err
}

func (e *PermanentFailure) Is(target error) bool {
	return target == ErrPermanentFailure
}

func configError(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, v...))
}
