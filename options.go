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
	"io"
	"time"
)

// Timings are the fixed waits of the supervisor.
type Timings struct {
	// Settle is how long launch waits before checking whether the
	// process exited immediately.
	Settle time.Duration

	// RestartDelay is the wait between an unexpected death and the
	// relaunch.
	RestartDelay time.Duration

	// StopTimeout is how long a terminated process may take to exit
	// before it is killed.
	StopTimeout time.Duration

	// KillPoll is the poll interval while waiting for a process to exit.
	KillPoll time.Duration
}

// DefaultTimings are used for any Timings field left zero.
var DefaultTimings = Timings{
	Settle:       time.Second * 2,
	RestartDelay: time.Second * 5,
	StopTimeout:  time.Second * 10,
	KillPoll:     time.Millisecond * 100,
}

func (t Timings) merge(o Timings) Timings {
	if o.Settle != 0 {
		t.Settle = o.Settle
	}
	if o.RestartDelay != 0 {
		t.RestartDelay = o.RestartDelay
	}
	if o.StopTimeout != 0 {
		t.StopTimeout = o.StopTimeout
	}
	if o.KillPoll != 0 {
		t.KillPoll = o.KillPoll
	}
	return t
}

// Installer performs the install step between PreInstall and
// PostInstall.
type Installer interface {
	Install(ctx context.Context) error
}

// InstallerFunc adapts a function to Installer.
type InstallerFunc func(ctx context.Context) error

func (f InstallerFunc) Install(ctx context.Context) error {
	return f(ctx)
}

type options struct {
	writers       []io.Writer
	flags         int
	table         ProcessTable
	launcher      Launcher
	cluster       Cluster
	listeners     []Listener
	probes        []LivenessProbe
	stops         []StopProbe
	installer     Installer
	details       []DetailsProvider
	commands      map[string]CommandFunc
	timings       Timings
	workers       int
	container     int
	shutdownAfter time.Duration
}

// Option configures a Supervisor.
type Option func(*options)

// WithLogWriter adds a destination for the supervisor log.  Without any,
// the log goes to stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.writers = append(o.writers, w) }
}

// WithLogFlags sets the log.Logger flags, log.LstdFlags by default.
func WithLogFlags(flags int) Option {
	return func(o *options) { o.flags = flags }
}

// WithProcessTable replaces the host process table.
func WithProcessTable(t ProcessTable) Option {
	return func(o *options) { o.table = t }
}

// WithLauncher replaces the os/exec launcher.
func WithLauncher(l Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithCluster supplies the instance identity.  It is required.
func WithCluster(c Cluster) Option {
	return func(o *options) { o.cluster = c }
}

// WithInstance is shorthand for WithCluster(StaticCluster{id}).
func WithInstance(id int) Option {
	return WithCluster(StaticCluster{Instance: id})
}

// WithListeners registers lifecycle listeners.
func WithListeners(ls ...Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, ls...) }
}

// WithLivenessProbes adds start detection probes, run in the given order.
func WithLivenessProbes(ps ...LivenessProbe) Option {
	return func(o *options) { o.probes = append(o.probes, ps...) }
}

// WithStopProbes adds stop detection probes.
func WithStopProbes(ps ...StopProbe) Option {
	return func(o *options) { o.stops = append(o.stops, ps...) }
}

// WithInstaller replaces the descriptor's install command.
func WithInstaller(i Installer) Option {
	return func(o *options) { o.installer = i }
}

// WithDetails adds monitoring detail providers.
func WithDetails(ds ...DetailsProvider) Option {
	return func(o *options) { o.details = append(o.details, ds...) }
}

// WithCommand registers a custom command implemented in Go.  It takes
// precedence over a descriptor command of the same name.
func WithCommand(name string, fn CommandFunc) Option {
	return func(o *options) {
		if o.commands == nil {
			o.commands = map[string]CommandFunc{}
		}
		o.commands[name] = fn
	}
}

// WithTimings overrides the non-zero fields of DefaultTimings.
func WithTimings(t Timings) Option {
	return func(o *options) { o.timings = o.timings.merge(t) }
}

// WithWorkers sets the size of the background pool.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithContainerPid sets the pid whose children are the launched
// processes.  It defaults to our own pid.
func WithContainerPid(pid int) Option {
	return func(o *options) { o.container = pid }
}

// WithShutdownAfter shuts the supervisor down d after Init.  This is
// meant for tests and debugging.
func WithShutdownAfter(d time.Duration) Option {
	return func(o *options) { o.shutdownAfter = d }
}
