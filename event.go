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
)

// Event names a point in the service lifecycle at which listeners run.
type Event int

const (
	EventInit Event = iota
	EventPreInstall
	EventPostInstall
	EventPreStart
	EventPostStart
	EventPreStop
	EventPostStop
	EventShutdown
	EventPreServiceStart
	EventPreServiceStop
	numEvents
)

var eventNames = [...]string{
	EventInit:            "INIT",
	EventPreInstall:      "PRE_INSTALL",
	EventPostInstall:     "POST_INSTALL",
	EventPreStart:        "PRE_START",
	EventPostStart:       "POST_START",
	EventPreStop:         "PRE_STOP",
	EventPostStop:        "POST_STOP",
	EventShutdown:        "SHUTDOWN",
	EventPreServiceStart: "PRE_SERVICE_START",
	EventPreServiceStop:  "PRE_SERVICE_STOP",
}

// String returns the name used in lifecycle log lines.  Log scrapers
// match on these, so they must not change.
func (e Event) String() string {
	if e < 0 || e >= numEvents {
		return "UNKNOWN"
	}
	return eventNames[e]
}

// Reason qualifies start and stop events.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDeploy
	ReasonRestart
	ReasonUndeploy
	ReasonProcessFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonDeploy:
		return "DEPLOY"
	case ReasonRestart:
		return "RESTART"
	case ReasonUndeploy:
		return "UNDEPLOY"
	case ReasonProcessFailure:
		return "PROCESS_FAILURE"
	}
	return ""
}

// EventSet is a bitset of events a listener wants to receive.
type EventSet uint32

// Events builds an EventSet.
func Events(evs ...Event) EventSet {
	var s EventSet
	for _, e := range evs {
		s |= 1 << uint(e)
	}
	return s
}

// AllEvents contains every lifecycle event.
const AllEvents EventSet = 1<<uint(numEvents) - 1

func (s EventSet) Has(e Event) bool {
	return s&(1<<uint(e)) != 0
}

// EventResult is what every listener invocation produces.  Success false
// aborts the remaining listeners of the firing.
type EventResult struct {
	Success bool
	Err     error
	Value   interface{}
}

// Succeeded returns a successful result carrying v.
func Succeeded(v interface{}) EventResult {
	return EventResult{Success: true, Value: v}
}

// Failed returns a failed result.
func Failed(err error) EventResult {
	return EventResult{Success: false, Err: err}
}

// Listener is implemented by lifecycle extensions.  A listener is invoked
// only for the events in Events(); several listeners handling the same
// event run in ascending Order.
type Listener interface {
	Order() int
	Events() EventSet
	Handle(ctx context.Context, ev Event, reason Reason) EventResult
}

// Hook adapts a function to the Listener interface.
type Hook struct {
	Rank int
	On   EventSet
	Fn   func(ctx context.Context, ev Event, reason Reason) EventResult
}

func (h *Hook) Order() int {
	return h.Rank
}

func (h *Hook) Events() EventSet {
	return h.On
}

func (h *Hook) Handle(ctx context.Context, ev Event, reason Reason) EventResult {
	if h.Fn == nil {
		return Succeeded(nil)
	}
	return h.Fn(ctx, ev, reason)
}
