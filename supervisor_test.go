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
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	table    *fakeTable
	launcher *fakeLauncher
	rec      *recorder
}

func newFixture() *fixture {
	t := newFakeTable()
	return &fixture{table: t, launcher: newFakeLauncher(t), rec: &recorder{}}
}

func (f *fixture) supervisor(t *testing.T, d *Descriptor, opts ...Option) *Supervisor {
	opts = append([]Option{
		WithLogWriter(&testLog{t}),
		WithInstance(1),
		WithProcessTable(f.table),
		WithLauncher(f.launcher),
		WithContainerPid(testContainer),
		WithListeners(f.rec.listener(0)),
		WithTimings(fastTimings),
	}, opts...)
	s, err := New(d, opts...)
	So(err, ShouldBeNil)
	return s
}

func TestSupervisorNew(t *testing.T) {
	Convey("New rejects incomplete configuration", t, func() {
		_, err := New(&Descriptor{Command: []string{"x"}}, WithInstance(1))
		So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

		_, err = New(testDescriptor())
		So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

		_, err = New(testDescriptor(), WithInstance(0))
		So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
	})
	Convey("A new supervisor is initializing", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithInstance(3))
		So(s.State(), ShouldEqual, StateInitializing)
		So(s.Prefix(), ShouldEqual, "svc-3")
		So(s.Check(), ShouldBeNil)
		child, actual := s.Pids()
		So(child, ShouldEqual, 0)
		So(actual, ShouldEqual, 0)
	})
}

func TestSupervisorInit(t *testing.T) {
	Convey("Given a supervisor over a fake process table", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor())

		Convey("Init runs the events in order and discovers the new child", func() {
			So(s.Init(context.Background()), ShouldBeNil)
			So(s.State(), ShouldEqual, StateRunning)
			child, actual := s.Pids()
			So(child, ShouldEqual, 1003)
			So(actual, ShouldEqual, 1003)
			So(f.rec.events(), ShouldResemble, []string{
				"PRE_SERVICE_START/DEPLOY",
				"INIT/DEPLOY",
				"PRE_INSTALL/DEPLOY",
				"POST_INSTALL/DEPLOY",
				"PRE_START/DEPLOY",
				"POST_START/DEPLOY",
			})
			snap := s.Snapshot(context.Background())
			So(snap.State, ShouldEqual, "RUNNING")
			So(snap.LaunchID, ShouldNotBeEmpty)
			So(snap.Restarts, ShouldEqual, 0)

			So(s.Shutdown(context.Background()), ShouldBeNil)
		})

		Convey("Init cannot be repeated", func() {
			So(s.Init(context.Background()), ShouldBeNil)
			So(s.Init(context.Background()), ShouldNotBeNil)
			s.Shutdown(context.Background())
		})
	})

	Convey("Only the first instance fires PreServiceStart", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithInstance(2))
		So(s.Init(context.Background()), ShouldBeNil)
		So(f.rec.count("PRE_SERVICE_START/DEPLOY"), ShouldEqual, 0)
		s.Shutdown(context.Background())
	})
}

func TestDiscovery(t *testing.T) {
	Convey("The new child is the one missing before launch", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		child, _ := s.Pids()
		So(child, ShouldEqual, 1003)
		s.Shutdown(context.Background())
	})

	Convey("The service process is the leaf below the child", t, func() {
		f := newFixture()
		f.launcher.depth = 2
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		child, actual := s.Pids()
		So(child, ShouldEqual, 1003)
		So(actual, ShouldEqual, 1005)

		Convey("Shutdown kills the chain leaf first", func() {
			So(s.Shutdown(context.Background()), ShouldBeNil)
			sigs := f.table.signalled()
			So(len(sigs), ShouldBeGreaterThanOrEqualTo, 3)
			So(sigs[0], ShouldResemble, signal{1005, false})
			So(sigs[1], ShouldResemble, signal{1004, false})
			So(sigs[2], ShouldResemble, signal{1003, false})
			So(f.table.Running(1003), ShouldBeFalse)
		})
	})

	Convey("With several new children the lowest wins", t, func() {
		f := newFixture()
		f.launcher.onLaunch = func(p *fakeProc) {
			f.table.add(1900, testContainer, "")
		}
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		child, _ := s.Pids()
		So(child, ShouldEqual, 1003)
		s.Shutdown(context.Background())
	})

	Convey("Launch fails when no new child appears", t, func() {
		f := newFixture()
		f.launcher.hidden = true
		s := f.supervisor(t, testDescriptor())
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		So(s.State(), ShouldEqual, StateShuttingDown)
		So(f.rec.count("SHUTDOWN/UNDEPLOY"), ShouldEqual, 1)
		f.launcher.last().die()
	})

	Convey("A missing container is a process table error", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithContainerPid(4242))
		err := s.Init(context.Background())
		So(errors.Is(err, ErrProcessQuery), ShouldBeTrue)
	})

	Convey("A container missing from the scan is a process table error", t, func() {
		f := newFixture()
		f.table.mx.Lock()
		delete(f.table.parents, testContainer)
		f.table.mx.Unlock()
		s := f.supervisor(t, testDescriptor())
		err := s.Init(context.Background())
		So(errors.Is(err, ErrProcessQuery), ShouldBeTrue)
		So(f.table.Running(1003), ShouldBeFalse)
	})

	Convey("A failing process table fails the launch", t, func() {
		f := newFixture()
		f.table.fail = errors.New("no /proc")
		s := f.supervisor(t, testDescriptor())
		err := s.Init(context.Background())
		So(errors.Is(err, ErrProcessQuery), ShouldBeTrue)
		So(f.launcher.launches(), ShouldEqual, 0)
	})

	Convey("A pid file hint below the child overrides the leaf", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "svc.pid"), []byte("1004\n"), 0o644), ShouldBeNil)
		f := newFixture()
		f.launcher.depth = 2
		d := testDescriptor()
		d.Directory = dir
		d.PidFile = "svc.pid"
		s := f.supervisor(t, d)
		So(s.Init(context.Background()), ShouldBeNil)
		_, actual := s.Pids()
		So(actual, ShouldEqual, 1004)
		s.Shutdown(context.Background())
	})

	Convey("A pid file hint elsewhere is ignored", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "svc.pid"), []byte("1001"), 0o644), ShouldBeNil)
		f := newFixture()
		d := testDescriptor()
		d.PidFile = filepath.Join(dir, "svc.pid")
		s := f.supervisor(t, d)
		So(s.Init(context.Background()), ShouldBeNil)
		_, actual := s.Pids()
		So(actual, ShouldEqual, 1003)
		s.Shutdown(context.Background())
	})

	Convey("A shell leaf is only a warning", t, func() {
		f := newFixture()
		f.launcher.onLaunch = func(p *fakeProc) {
			f.table.add(p.pid, testContainer, "bash")
		}
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		So(s.State(), ShouldEqual, StateRunning)
		s.Shutdown(context.Background())
	})
}

func TestStartDetection(t *testing.T) {
	Convey("Probes must all pass, in order", t, func() {
		var first, second atomic.Int32
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				return first.Add(1) >= 3, nil
			}),
			LivenessFunc(func(context.Context) (bool, error) {
				So(first.Load(), ShouldEqual, 3)
				second.Add(1)
				return true, nil
			}),
		))
		So(s.Init(context.Background()), ShouldBeNil)
		So(first.Load(), ShouldEqual, 3)
		So(second.Load(), ShouldEqual, 1)
		s.Shutdown(context.Background())
	})

	Convey("Interrupted probes are retried", t, func() {
		var n atomic.Int32
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				if n.Add(1) == 1 {
					return false, ErrProbeInterrupted
				}
				return true, nil
			}),
		))
		So(s.Init(context.Background()), ShouldBeNil)
		s.Shutdown(context.Background())
	})

	Convey("Other probe errors are fatal", t, func() {
		f := newFixture()
		boom := errors.New("boom")
		s := f.supervisor(t, testDescriptor(), WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				return false, boom
			}),
		))
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		So(errors.Is(err, boom), ShouldBeTrue)
	})

	Convey("A probe that never passes times out", t, func() {
		f := newFixture()
		d := testDescriptor()
		d.StartDetectionTimeoutMs = 30
		s := f.supervisor(t, d, WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				return false, nil
			}),
		))
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLivenessTimeout), ShouldBeTrue)
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		// Discovery still ran, so the shutdown found the child.
		So(f.table.Running(1003), ShouldBeFalse)
	})

	Convey("Start detection gives up as soon as the process dies", t, func() {
		f := newFixture()
		f.launcher.onLaunch = func(p *fakeProc) {
			go func() {
				time.Sleep(time.Millisecond * 20)
				p.die()
			}()
		}
		d := testDescriptor()
		d.StartDetectionTimeoutMs = 10000
		s := f.supervisor(t, d, WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				return false, nil
			}),
		))
		start := time.Now()
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		So(errors.Is(err, ErrLivenessTimeout), ShouldBeFalse)
		So(time.Since(start), ShouldBeLessThan, time.Second*2)
	})

	Convey("A process that exits at once fails before detection", t, func() {
		var probed atomic.Bool
		f := newFixture()
		f.launcher.exitNow = true
		s := f.supervisor(t, testDescriptor(), WithLivenessProbes(
			LivenessFunc(func(context.Context) (bool, error) {
				probed.Store(true)
				return true, nil
			}),
		))
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		So(probed.Load(), ShouldBeFalse)
	})

	Convey("A launcher error is a launch failure", t, func() {
		f := newFixture()
		f.launcher.fail = errors.New("exec format error")
		s := f.supervisor(t, testDescriptor())
		err := s.Init(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
	})
}

func TestInitFailure(t *testing.T) {
	Convey("A failing listener aborts Init and shuts down", t, func() {
		f := newFixture()
		f.rec.fail = map[Event]error{EventPostInstall: errors.New("disk full")}
		s := f.supervisor(t, testDescriptor())
		err := s.Init(context.Background())
		var ee *EventError
		So(errors.As(err, &ee), ShouldBeTrue)
		So(ee.Event, ShouldEqual, EventPostInstall)
		So(s.State(), ShouldEqual, StateShuttingDown)
		So(f.launcher.launches(), ShouldEqual, 0)
		So(f.rec.count("SHUTDOWN/UNDEPLOY"), ShouldEqual, 1)
	})

	Convey("A failing installer aborts Init", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithInstaller(InstallerFunc(
			func(context.Context) error { return errors.New("no space") })))
		So(s.Init(context.Background()), ShouldNotBeNil)
		So(f.rec.count("POST_INSTALL/DEPLOY"), ShouldEqual, 0)
		So(f.launcher.launches(), ShouldEqual, 0)
	})
}

func TestRestart(t *testing.T) {
	Convey("Given a running service", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)

		Convey("An unexpected death restarts it", func() {
			f.table.crash(1003)
			So(eventually(func() bool {
				child, _ := s.Pids()
				return s.State() == StateRunning && child == 1004
			}), ShouldBeTrue)
			So(f.launcher.launches(), ShouldEqual, 2)
			So(f.rec.count("POST_STOP/PROCESS_FAILURE"), ShouldEqual, 1)
			So(f.rec.count("PRE_START/RESTART"), ShouldEqual, 1)
			So(s.Snapshot(context.Background()).Restarts, ShouldEqual, 1)
			So(s.Check(), ShouldBeNil)
			s.Shutdown(context.Background())
		})

		Convey("A failed restart is permanent", func() {
			f.launcher.setFail(errors.New("binary vanished"))
			f.table.crash(1003)
			So(eventually(func() bool { return s.Check() != nil }), ShouldBeTrue)
			err := s.Check()
			So(errors.Is(err, ErrPermanentFailure), ShouldBeTrue)
			So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
			time.Sleep(time.Millisecond * 30)
			So(s.Check(), ShouldEqual, err)
			So(s.Snapshot(context.Background()).Failure, ShouldNotBeEmpty)
			So(f.launcher.launches(), ShouldEqual, 1)
		})

		Convey("Shutdown suppresses the restart", func() {
			So(s.Shutdown(context.Background()), ShouldBeNil)
			s.OnProcessDeath()
			time.Sleep(time.Millisecond * 50)
			So(f.rec.count("POST_STOP/PROCESS_FAILURE"), ShouldEqual, 0)
			So(f.launcher.launches(), ShouldEqual, 1)
			So(s.State(), ShouldEqual, StateShuttingDown)
			So(s.Check(), ShouldEqual, ErrShuttingDown)
		})

		Convey("A repeated death notification is handled once", func() {
			s.OnProcessDeath()
			f.table.crash(1003)
			So(eventually(func() bool { return f.launcher.launches() == 2 }), ShouldBeTrue)
			time.Sleep(time.Millisecond * 50)
			So(f.launcher.launches(), ShouldEqual, 2)
			So(f.rec.count("POST_STOP/PROCESS_FAILURE"), ShouldEqual, 1)
			s.Shutdown(context.Background())
		})
	})

	Convey("A stop probe counts as a death", t, func() {
		var stopped atomic.Bool
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithStopProbes(
			StopFunc(func(context.Context) (bool, error) {
				return stopped.CompareAndSwap(true, false), nil
			}),
		))
		So(s.Init(context.Background()), ShouldBeNil)
		stopped.Store(true)
		So(eventually(func() bool { return f.rec.count("POST_STOP/PROCESS_FAILURE") == 1 }), ShouldBeTrue)
		// The still running process is killed before the restart.
		So(f.table.signalled(), ShouldContain, signal{1003, false})
		So(eventually(func() bool { return f.launcher.launches() == 2 && s.State() == StateRunning }), ShouldBeTrue)
		s.Shutdown(context.Background())
	})
}

func TestStopAndShutdown(t *testing.T) {
	Convey("Given a running service", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)

		Convey("Stop kills it without a restart", func() {
			So(s.Stop(context.Background(), ReasonUndeploy), ShouldBeNil)
			So(s.State(), ShouldEqual, StateInitializing)
			So(f.table.Running(1003), ShouldBeFalse)
			time.Sleep(time.Millisecond * 50)
			So(f.launcher.launches(), ShouldEqual, 1)
			So(f.rec.count("PRE_STOP/UNDEPLOY"), ShouldEqual, 1)
			So(f.rec.count("POST_STOP/UNDEPLOY"), ShouldEqual, 1)
			So(f.rec.count("POST_STOP/PROCESS_FAILURE"), ShouldEqual, 0)

			Convey("Launch starts it again", func() {
				So(s.Launch(context.Background()), ShouldBeNil)
				So(s.State(), ShouldEqual, StateRunning)
				So(f.rec.count("PRE_START/RESTART"), ShouldEqual, 1)
				child, _ := s.Pids()
				So(child, ShouldEqual, 1004)
				s.Shutdown(context.Background())
			})
		})

		Convey("Launch while running does not leak the old process", func() {
			So(s.Launch(context.Background()), ShouldEqual, ErrAlreadyRunning)
			So(f.launcher.launches(), ShouldEqual, 1)
			So(s.State(), ShouldEqual, StateRunning)
			So(s.Shutdown(context.Background()), ShouldBeNil)
			So(f.table.Running(1003), ShouldBeFalse)
		})

		Convey("Shutdown is idempotent", func() {
			So(s.Shutdown(context.Background()), ShouldBeNil)
			So(s.Shutdown(context.Background()), ShouldBeNil)
			So(f.rec.count("SHUTDOWN/UNDEPLOY"), ShouldEqual, 2)
			So(f.rec.count("PRE_STOP/UNDEPLOY"), ShouldEqual, 2)
			So(f.rec.count("PRE_SERVICE_STOP/UNDEPLOY"), ShouldEqual, 2)
			So(f.table.Running(1003), ShouldBeFalse)
			So(s.Launch(context.Background()), ShouldEqual, ErrShuttingDown)
			So(s.Stop(context.Background(), ReasonUndeploy), ShouldEqual, ErrShuttingDown)
		})

		Convey("Shutdown reports listener failures but still finishes", func() {
			f.rec.mx.Lock()
			f.rec.fail = map[Event]error{EventPreStop: errors.New("busy")}
			f.rec.mx.Unlock()
			err := s.Shutdown(context.Background())
			So(err, ShouldNotBeNil)
			So(f.table.Running(1003), ShouldBeFalse)
			So(f.rec.count("SHUTDOWN/UNDEPLOY"), ShouldEqual, 1)
		})
	})

	Convey("A failed Launch leaves no process behind", t, func() {
		f := newFixture()
		var broken atomic.Bool
		probe := LivenessFunc(func(context.Context) (bool, error) {
			if broken.Load() {
				return false, errors.New("bad config")
			}
			return true, nil
		})
		s := f.supervisor(t, testDescriptor(), WithLivenessProbes(probe))
		So(s.Init(context.Background()), ShouldBeNil)
		So(s.Stop(context.Background(), ReasonUndeploy), ShouldBeNil)

		broken.Store(true)
		err := s.Launch(context.Background())
		So(errors.Is(err, ErrLaunchFailed), ShouldBeTrue)
		So(s.State(), ShouldEqual, StateInitializing)
		So(f.table.Running(1004), ShouldBeFalse)

		broken.Store(false)
		So(s.Launch(context.Background()), ShouldBeNil)
		child, _ := s.Pids()
		So(child, ShouldEqual, 1005)
		So(s.Shutdown(context.Background()), ShouldBeNil)
		So(f.table.Running(1005), ShouldBeFalse)
	})

	Convey("A leaf that moved away is killed along with the child", t, func() {
		f := newFixture()
		f.launcher.depth = 2
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		child, actual := s.Pids()
		So(child, ShouldEqual, 1003)
		So(actual, ShouldEqual, 1005)

		// The middle process exits and init adopts the leaf.
		f.table.crash(1004)
		f.table.add(1005, 1, "")

		So(s.Shutdown(context.Background()), ShouldBeNil)
		sigs := f.table.signalled()
		So(sigs, ShouldResemble, []signal{{1005, false}, {1003, false}})
		So(f.table.Running(1005), ShouldBeFalse)
		So(f.table.Running(1003), ShouldBeFalse)
		So(f.table.Running(testContainer), ShouldBeTrue)
	})

	Convey("A process ignoring SIGTERM is killed", t, func() {
		f := newFixture()
		f.table.stubborn[1003] = true
		s := f.supervisor(t, testDescriptor())
		So(s.Init(context.Background()), ShouldBeNil)
		So(s.Shutdown(context.Background()), ShouldBeNil)
		So(f.table.signalled(), ShouldResemble, []signal{{1003, false}, {1003, true}})
	})

	Convey("Shutdown can clean the working directory", t, func() {
		dir := filepath.Join(t.TempDir(), "work")
		So(os.MkdirAll(dir, 0o755), ShouldBeNil)
		f := newFixture()
		d := testDescriptor()
		d.Directory = dir
		d.CleanDirectory = true
		s := f.supervisor(t, d)
		So(s.Init(context.Background()), ShouldBeNil)
		So(s.Shutdown(context.Background()), ShouldBeNil)
		_, err := os.Stat(dir)
		So(os.IsNotExist(err), ShouldBeTrue)
	})

	Convey("The shutdown timer stops the service", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(), WithShutdownAfter(time.Millisecond*20))
		So(s.Init(context.Background()), ShouldBeNil)
		So(eventually(func() bool { return s.State() == StateShuttingDown }), ShouldBeTrue)
		So(eventually(func() bool { return f.rec.count("SHUTDOWN/UNDEPLOY") == 1 }), ShouldBeTrue)
		s.Wait()
	})
}

func TestCommandsAndDetails(t *testing.T) {
	Convey("Given a supervisor with a command and a details provider", t, func() {
		f := newFixture()
		s := f.supervisor(t, testDescriptor(),
			WithCommand("echo", func(ctx context.Context, args map[string]string) (interface{}, error) {
				return args["text"], nil
			}),
			WithCommand("fail", func(context.Context, map[string]string) (interface{}, error) {
				return nil, errors.New("nope")
			}),
			WithDetails(DetailsFunc(func(ctx context.Context, pid int) (map[string]interface{}, error) {
				return map[string]interface{}{"pid": pid}, nil
			}), DetailsFunc(func(context.Context, int) (map[string]interface{}, error) {
				return nil, errors.New("unavailable")
			})),
		)
		So(s.Init(context.Background()), ShouldBeNil)
		defer s.Shutdown(context.Background())

		Convey("Commands run and report their result", func() {
			res := s.Invoke(context.Background(), "echo", map[string]string{"text": "hi"})
			So(res.Success, ShouldBeTrue)
			So(res.Result, ShouldEqual, "hi")
			So(res.InstanceID, ShouldEqual, 1)
			So(s.Commands(), ShouldResemble, []string{"echo", "fail"})
		})
		Convey("Failures are reported, not raised", func() {
			res := s.Invoke(context.Background(), "fail", nil)
			So(res.Success, ShouldBeFalse)
			So(res.Error, ShouldEqual, "nope")
		})
		Convey("Unknown commands fail", func() {
			res := s.Invoke(context.Background(), "missing", nil)
			So(res.Success, ShouldBeFalse)
			So(errors.Is(res.Err(), ErrNoSuchCommand), ShouldBeTrue)
		})
		Convey("Details of the service process appear in the snapshot", func() {
			snap := s.Snapshot(context.Background())
			So(snap.Details["pid"], ShouldEqual, 1003)
			So(snap.ActualPid, ShouldEqual, 1003)
		})
	})
}
