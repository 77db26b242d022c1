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
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the size of the background pool.
const DefaultWorkers = 5

// pool runs the supervisor's background work: stream monitors, stop
// probe polling, delayed restarts and the self-shutdown timer.  At most
// a fixed number of tasks run at once; Go blocks while the pool is full.
type pool struct {
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &pool{}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.group.SetLimit(workers)
	return p
}

// Go runs fn on the pool.  fn should return promptly once its context
// is cancelled.
func (p *pool) Go(fn func(ctx context.Context)) {
	p.group.Go(func() error {
		fn(p.ctx)
		return nil
	})
}

// After runs fn on the pool after d, unless the pool is cancelled first.
func (p *pool) After(d time.Duration, fn func(ctx context.Context)) {
	p.Go(func(ctx context.Context) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			fn(ctx)
		case <-ctx.Done():
		}
	})
}

// Cancel signals every task to finish.  It does not wait.
func (p *pool) Cancel() {
	p.cancel()
}

// Cancelled reports whether Cancel has been called.
func (p *pool) Cancelled() bool {
	return p.ctx.Err() != nil
}

// Wait blocks until every task has returned.
func (p *pool) Wait() {
	p.group.Wait()
}
