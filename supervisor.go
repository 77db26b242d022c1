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
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Supervisor manages the lifecycle of one service instance: it runs the
// lifecycle listeners, launches the start command, finds the process
// that really is the service, restarts it when it dies unexpectedly and
// tears the process tree down on shutdown.
//
// Init, Launch, Stop and Shutdown are synchronous and serialized by one
// lock, which also orders them against death notifications.  Observers
// (State, Pids, Check, Snapshot) never wait for that lock.
type Supervisor struct {
	desc      *Descriptor
	instance  int
	prefix    string
	mlog      *MultiLogger
	logger    *log.Logger
	output    *Log
	table     ProcessTable
	launcher  Launcher
	cluster   Cluster
	bus       *EventBus
	probes    []LivenessProbe
	stops     []StopProbe
	installer Installer
	details   []DetailsProvider
	commands  map[string]CommandFunc
	pidFile   *PidFile
	pool      *pool
	timings   Timings
	container int
	selfStop  time.Duration

	mx         sync.Mutex
	state      State
	run        *run
	childPid   int
	actualPid  int
	generation int64
	restarts   int
	launchID   string
	started    time.Time

	current atomic.Pointer[run]
	view    atomic.Pointer[view]
	failure atomic.Pointer[PermanentFailure]
}

// run is one launch of the start command.
type run struct {
	gen     int64
	proc    Process
	running atomic.Bool // false once the process is known dead
	stopped atomic.Bool // set when we stop it on purpose
	dead    atomic.Bool // the death has been handled
	cancel  context.CancelFunc
}

// view is what observers see; it is replaced under the lock.
type view struct {
	state    State
	child    int
	actual   int
	restarts int
	launchID string
	started  time.Time
}

// New creates a supervisor for the descriptor.  It fails with an error
// matching ErrConfiguration when the descriptor is incomplete or the
// instance identity cannot be determined.
func New(desc *Descriptor, opts ...Option) (*Supervisor, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	o := &options{flags: log.LstdFlags, timings: DefaultTimings}
	for _, opt := range opts {
		opt(o)
	}
	if o.cluster == nil {
		return nil, configError("no instance identity for %s", desc.Name)
	}
	instance, err := o.cluster.InstanceID()
	if err != nil {
		if !errors.Is(err, ErrConfiguration) {
			err = fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, err
	}

	s := &Supervisor{
		desc:      desc,
		instance:  instance,
		prefix:    fmt.Sprintf("%s-%d", desc.Name, instance),
		output:    NewLog(0),
		table:     o.table,
		launcher:  o.launcher,
		cluster:   o.cluster,
		probes:    o.probes,
		stops:     o.stops,
		installer: o.installer,
		details:   o.details,
		commands:  map[string]CommandFunc{},
		pool:      newPool(o.workers),
		timings:   o.timings,
		container: o.container,
		selfStop:  o.shutdownAfter,
	}
	if len(o.writers) == 0 {
		o.writers = append(o.writers, os.Stderr)
	}
	s.mlog = NewMultiLogger(o.flags, append(o.writers, s.output)...)
	s.logger = s.mlog.Logger()
	s.bus = NewEventBus(s.prefix, s.logger, o.listeners...)

	if s.table == nil {
		s.table = NewProcessTable()
	}
	if s.launcher == nil {
		s.launcher = ExecLauncher{}
	}
	if s.container == 0 {
		s.container = os.Getpid()
	}
	if s.installer == nil && len(desc.InstallCommand) != 0 {
		s.installer = InstallerFunc(s.runInstallCommand)
	}
	if len(desc.LivenessPorts) != 0 {
		s.probes = append(s.probes, &PortProbe{Ports: desc.LivenessPorts})
	}
	if desc.PidFile != "" {
		path := desc.PidFile
		if !filepath.IsAbs(path) && desc.Directory != "" {
			path = filepath.Join(desc.Directory, path)
		}
		s.pidFile = OpenPidFile(path, s.logger)
		s.probes = append(s.probes, &PidFileProbe{File: s.pidFile, Table: s.table})
	}
	for name, c := range desc.CustomCommands {
		c := c
		s.commands[name] = func(ctx context.Context, args map[string]string) (interface{}, error) {
			_, pid := s.Pids()
			return execCommand(c, pid)(ctx, args)
		}
	}
	for name, fn := range o.commands {
		s.commands[name] = fn
	}
	s.publish()
	return s, nil
}

func (s *Supervisor) logf(format string, v ...interface{}) {
	s.logger.Printf(s.prefix+" "+format, v...)
}

// publish makes the current state visible to observers.  Call with the
// lock held.
func (s *Supervisor) publish() {
	s.view.Store(&view{
		state:    s.state,
		child:    s.childPid,
		actual:   s.actualPid,
		restarts: s.restarts,
		launchID: s.launchID,
		started:  s.started,
	})
}

func (s *Supervisor) setState(st State) {
	if s.state != st {
		s.logf("State %s -> %s", s.state, st)
	}
	s.state = st
	s.publish()
}

// Name returns the service name.
func (s *Supervisor) Name() string {
	return s.desc.Name
}

// Instance returns the instance number.
func (s *Supervisor) Instance() int {
	return s.instance
}

// Prefix returns "<service>-<instance>", the prefix of lifecycle log
// lines.
func (s *Supervisor) Prefix() string {
	return s.prefix
}

// Logger returns the supervisor's logger.
func (s *Supervisor) Logger() *log.Logger {
	return s.logger
}

// AddLogWriter attaches another destination for the supervisor log.
func (s *Supervisor) AddLogWriter(w io.Writer) {
	s.mlog.AddWriter(w)
}

// Log returns the recent supervisor log and process output.
func (s *Supervisor) Log() *Log {
	return s.output
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.view.Load().state
}

// Pids returns the direct child and the discovered service process.
// Both are zero before the first discovery.
func (s *Supervisor) Pids() (child, actual int) {
	v := s.view.Load()
	return v.child, v.actual
}

// Check is the health check.  Once a restart attempt has failed it
// returns that *PermanentFailure on every call.
func (s *Supervisor) Check() error {
	if pf := s.failure.Load(); pf != nil {
		return pf
	}
	if s.view.Load().state == StateShuttingDown {
		return ErrShuttingDown
	}
	return nil
}

// Init installs and launches the service.  It holds the lock throughout.
// If any step fails, the supervisor is shut down before the error is
// returned, so no half started process tree is left behind.
func (s *Supervisor) Init(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.state != StateInitializing || s.generation != 0 {
		return fmt.Errorf("Init called on a supervisor in state %s", s.state)
	}
	err := s.initLocked(ctx)
	if err != nil {
		s.logf("Initialization failed: %v", err)
		s.shutdownLocked(ctx)
		return err
	}
	if s.selfStop > 0 {
		s.pool.After(s.selfStop, func(context.Context) {
			s.logf("Shutdown timer of %v expired", s.selfStop)
			s.Shutdown(context.Background())
		})
	}
	return nil
}

func (s *Supervisor) initLocked(ctx context.Context) error {
	if s.instance == 1 {
		if err := s.bus.Fire(ctx, EventPreServiceStart, ReasonDeploy); err != nil {
			return err
		}
	}
	if err := s.bus.Fire(ctx, EventInit, ReasonDeploy); err != nil {
		return err
	}
	if err := s.install(ctx); err != nil {
		return err
	}
	return s.launchLocked(ctx, ReasonDeploy)
}

func (s *Supervisor) install(ctx context.Context) error {
	if err := s.bus.Fire(ctx, EventPreInstall, ReasonDeploy); err != nil {
		return err
	}
	if s.installer != nil {
		if err := s.installer.Install(ctx); err != nil {
			return fmt.Errorf("install step failed: %w", err)
		}
	}
	return s.bus.Fire(ctx, EventPostInstall, ReasonDeploy)
}

func (s *Supervisor) runInstallCommand(ctx context.Context) error {
	out, err := runCommand(ctx, s.desc.InstallCommand, s.desc.Env, 0)
	if out != "" {
		s.logf("install> %s", out)
	}
	return err
}

// OnProcessDeath reports that the current process has died.  It is
// normally called by the stream monitors; it must not be called while
// holding the supervisor lock.
func (s *Supervisor) OnProcessDeath() {
	if r := s.current.Load(); r != nil {
		s.processDied(r)
	}
}

// processDied handles the death of r at most once; later callers return
// at once rather than wait.  The running flag and the cancellation reach
// an in-flight start detection without the lock, which launch may be
// holding.
func (s *Supervisor) processDied(r *run) {
	r.running.Store(false)
	if r.cancel != nil {
		r.cancel()
	}
	if !r.dead.CompareAndSwap(false, true) {
		return
	}
	s.handleDeath(r)
}

func (s *Supervisor) handleDeath(r *run) {
	if s.current.Load() != r {
		s.logf("Ignoring exit of a previous launch (pid %d)", r.proc.Pid())
		return
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	switch {
	case s.state == StateShuttingDown:
		s.logf("Process %d exited during shutdown", r.proc.Pid())
		return
	case r.stopped.Load():
		s.logf("Process %d exited after stop", r.proc.Pid())
		return
	case s.run != r || s.state != StateRunning:
		// The launch that started r failed; its caller handles that.
		s.logf("Process %d exited while %s", r.proc.Pid(), s.state)
		return
	}

	s.logf("Process %d died unexpectedly", s.actualPid)
	// A stop probe may have fired while the process still runs.
	s.killTreeLocked()
	if err := s.bus.Fire(context.Background(), EventPostStop, ReasonProcessFailure); err != nil {
		s.logf("Ignoring failure of post stop listeners: %v", err)
	}
	s.restarts++
	s.publish()
	s.logf("Restarting in %v", s.timings.RestartDelay)
	s.pool.After(s.timings.RestartDelay, func(ctx context.Context) {
		s.relaunch(ctx, r)
	})
}

// relaunch runs on the pool after an unexpected death.  Its failure is
// permanent: the instance is expected to be recycled from outside.
func (s *Supervisor) relaunch(ctx context.Context, dead *run) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.state == StateShuttingDown || s.run != dead || dead.stopped.Load() {
		return
	}
	err := s.launchLocked(ctx, ReasonRestart)
	if err == nil {
		return
	}
	if s.pool.Cancelled() {
		s.logf("Restart abandoned by shutdown: %v", err)
		return
	}
	pf := &PermanentFailure{Err: err, Time: time.Now()}
	s.failure.Store(pf)
	s.logf("Restart failed, giving up: %v", err)
	if r := s.run; r != nil {
		r.stopped.Store(true)
	}
	s.killTreeLocked()
	s.setState(StateInitializing)
}

// Snapshot returns the monitoring view, including the details of every
// DetailsProvider for the service process.
func (s *Supervisor) Snapshot(ctx context.Context) Snapshot {
	v := s.view.Load()
	snap := Snapshot{
		Service:   s.desc.Name,
		Instance:  s.instance,
		State:     v.state.String(),
		ChildPid:  v.child,
		ActualPid: v.actual,
		Restarts:  v.restarts,
		LaunchID:  v.launchID,
		Started:   v.started,
	}
	if pf := s.failure.Load(); pf != nil {
		snap.Failure = pf.Error()
	}
	if v.actual <= 0 || v.state != StateRunning {
		return snap
	}
	for _, d := range s.details {
		m, err := d.Details(ctx, v.actual)
		if err != nil {
			s.logf("Details provider failed: %v", err)
			continue
		}
		for k, val := range m {
			if snap.Details == nil {
				snap.Details = map[string]interface{}{}
			}
			snap.Details[k] = val
		}
	}
	return snap
}

// Invoke runs a custom command.  Unknown commands fail with
// ErrNoSuchCommand.
func (s *Supervisor) Invoke(ctx context.Context, name string, args map[string]string) CommandResult {
	res := CommandResult{InstanceID: s.instance, Command: name}
	fn, ok := s.commands[name]
	if !ok {
		res.err = fmt.Errorf("%w: %s", ErrNoSuchCommand, name)
		res.Error = res.err.Error()
		return res
	}
	s.logf("Invoking custom command %s", name)
	v, err := fn(ctx, args)
	if err != nil {
		s.logf("Custom command %s failed: %v", name, err)
		res.err = err
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Result = v
	return res
}

// Commands returns the names of the custom commands.
func (s *Supervisor) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
