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

// Package metrics exports supervisor snapshots as Prometheus metrics.
package metrics

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/gdamore/usm"
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshotter is satisfied by *usm.Supervisor.
type Snapshotter interface {
	Snapshot(ctx context.Context) usm.Snapshot
}

var states = []usm.State{
	usm.StateInitializing,
	usm.StateLaunching,
	usm.StateRunning,
	usm.StateShuttingDown,
}

// Collector takes a snapshot on every scrape; nothing is kept between
// scrapes.
type Collector struct {
	s       Snapshotter
	timeout time.Duration

	state    *prometheus.Desc
	pid      *prometheus.Desc
	restarts *prometheus.Desc
	failed   *prometheus.Desc
	started  *prometheus.Desc
	detail   *prometheus.Desc
}

// NewCollector returns a collector for s.  Metric names start with
// namespace, "usm" if empty.
func NewCollector(namespace string, s Snapshotter) *Collector {
	if namespace == "" {
		namespace = "usm"
	}
	labels := []string{"service", "instance"}
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "", n)
	}
	return &Collector{
		s:       s,
		timeout: time.Second * 5,
		state: prometheus.NewDesc(name("state"),
			"Supervisor state, 1 for the current one",
			append(labels, "state"), nil),
		pid: prometheus.NewDesc(name("process_pid"),
			"Pid of the direct child (role child) and of the service process (role actual)",
			append(labels, "role"), nil),
		restarts: prometheus.NewDesc(name("restarts_total"),
			"Restarts after an unexpected process death",
			labels, nil),
		failed: prometheus.NewDesc(name("permanent_failure"),
			"1 once a restart has failed",
			labels, nil),
		started: prometheus.NewDesc(name("start_time_seconds"),
			"Unix time the current process was detected as started",
			labels, nil),
		detail: prometheus.NewDesc(name("process_detail"),
			"Numeric monitoring details of the service process",
			append(labels, "detail"), nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.pid
	ch <- c.restarts
	ch <- c.failed
	ch <- c.started
	ch <- c.detail
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	snap := c.s.Snapshot(ctx)
	svc, inst := snap.Service, strconv.Itoa(snap.Instance)

	for _, st := range states {
		v := 0.0
		if st.String() == snap.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue,
			v, svc, inst, st.String())
	}
	ch <- prometheus.MustNewConstMetric(c.pid, prometheus.GaugeValue,
		float64(snap.ChildPid), svc, inst, "child")
	ch <- prometheus.MustNewConstMetric(c.pid, prometheus.GaugeValue,
		float64(snap.ActualPid), svc, inst, "actual")
	ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.CounterValue,
		float64(snap.Restarts), svc, inst)

	failed := 0.0
	if snap.Failure != "" {
		failed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue,
		failed, svc, inst)
	if !snap.Started.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.started, prometheus.GaugeValue,
			float64(snap.Started.UnixNano())/1e9, svc, inst)
	}

	keys := make([]string, 0, len(snap.Details))
	for k := range snap.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := number(snap.Details[k]); ok {
			ch <- prometheus.MustNewConstMetric(c.detail, prometheus.GaugeValue,
				v, svc, inst, k)
		}
	}
}

// number converts the numeric detail values; anything else is skipped.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
