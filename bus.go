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
	"log"
	"sort"
)

var errNoCause = errors.New("listener reported failure without a cause")

// EventBus holds, per event, the listeners registered for it sorted by
// Order.  Firings are synchronous and fail fast.
//
// The "invoked", "completed successfully" and "failed" lines are read by
// external tooling that tails the log, so their text is fixed:
//
//	<prefix> <EVENT> invoked
//	<prefix> <EVENT> completed successfully
//	<prefix> <EVENT> failed. Reason: <message>
type EventBus struct {
	prefix    string
	logger    *log.Logger
	listeners [numEvents][]Listener
}

// NewEventBus sorts the listeners into per-event buckets.  Sorting is
// stable, so listeners with equal Order keep their registration order.
func NewEventBus(prefix string, logger *log.Logger, ls ...Listener) *EventBus {
	b := &EventBus{prefix: prefix, logger: logger}
	for _, l := range ls {
		if l == nil {
			continue
		}
		set := l.Events()
		for e := Event(0); e < numEvents; e++ {
			if set.Has(e) {
				b.listeners[e] = append(b.listeners[e], l)
			}
		}
	}
	for e := range b.listeners {
		bucket := b.listeners[e]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Order() < bucket[j].Order()
		})
	}
	return b
}

// Listeners returns the sorted listeners for an event.
func (b *EventBus) Listeners(ev Event) []Listener {
	return append([]Listener{}, b.listeners[ev]...)
}

// Fire runs every listener registered for ev.  The first failure stops
// the firing and is returned as an *EventError.
func (b *EventBus) Fire(ctx context.Context, ev Event, reason Reason) error {
	ls := b.listeners[ev]
	loud := len(ls) > 0 || ev == EventShutdown
	if loud {
		b.logger.Printf("%s %s invoked", b.prefix, ev)
	}
	for _, l := range ls {
		res := l.Handle(ctx, ev, reason)
		if res.Success {
			continue
		}
		cause := res.Err
		if cause == nil {
			cause = errNoCause
		}
		b.logger.Printf("%s %s failed. Reason: %s", b.prefix, ev, cause.Error())
		return &EventError{Event: ev, Order: l.Order(), Cause: cause}
	}
	if loud {
		b.logger.Printf("%s %s completed successfully", b.prefix, ev)
	}
	return nil
}
