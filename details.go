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

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is the monitoring view of a supervisor.
type Snapshot struct {
	Service   string                 `json:"service"`
	Instance  int                    `json:"instance"`
	State     string                 `json:"state"`
	ChildPid  int                    `json:"childPid"`
	ActualPid int                    `json:"actualPid"`
	Restarts  int                    `json:"restarts"`
	LaunchID  string                 `json:"launchId,omitempty"`
	Started   time.Time              `json:"started"`
	Failure   string                 `json:"failure,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// DetailsProvider contributes key/value details about the managed
// process to the monitoring snapshot.  It must not change anything.
type DetailsProvider interface {
	Details(ctx context.Context, pid int) (map[string]interface{}, error)
}

// DetailsFunc adapts a function to DetailsProvider.
type DetailsFunc func(ctx context.Context, pid int) (map[string]interface{}, error)

func (f DetailsFunc) Details(ctx context.Context, pid int) (map[string]interface{}, error) {
	return f(ctx, pid)
}

// ProcessDetails reports operating system statistics of the managed
// process.
type ProcessDetails struct{}

func (ProcessDetails) Details(ctx context.Context, pid int) (map[string]interface{}, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	d := map[string]interface{}{}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
		d["process.rss"] = mem.RSS
		d["process.vms"] = mem.VMS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		d["process.cpu_percent"] = cpu
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		d["process.threads"] = n
	}
	if ct, err := p.CreateTimeWithContext(ctx); err == nil {
		d["process.create_time"] = time.UnixMilli(ct).UTC().Format(time.RFC3339)
	}
	return d, nil
}

// Cluster supplies the identity of this instance within its service.
type Cluster interface {
	// InstanceID is the 1-based instance number.
	InstanceID() (int, error)

	// OthersRunning reports whether other instances of the service are
	// still running.  The last instance to shut down fires
	// PreServiceStop.
	OthersRunning(ctx context.Context) bool
}

// StaticCluster is a Cluster with a fixed instance number and no
// knowledge of its peers.
type StaticCluster struct {
	Instance int
}

func (c StaticCluster) InstanceID() (int, error) {
	if c.Instance <= 0 {
		return 0, configError("instance id is missing")
	}
	return c.Instance, nil
}

func (c StaticCluster) OthersRunning(context.Context) bool {
	return false
}
