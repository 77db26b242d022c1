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

// Package usm supervises the lifecycle of one instance of an external
// service.
//
// A Supervisor is built from a Descriptor, which names the start command
// and how to recognize that the service is up, together with any number
// of lifecycle listeners.  Init installs the service, launches it, waits
// for the liveness probes and then works out which of the processes it
// spawned is really the service: start scripts commonly fork the
// service and linger, or exec a chain of wrappers.  That process is
// watched from then on.  If it dies when nobody asked it to, the
// PostStop listeners run and the service is launched again; if that
// relaunch fails the supervisor reports a permanent failure from Check
// rather than retry forever, leaving it to whoever deployed the instance
// to recycle it.
//
// Shutdown kills the discovered process and its ancestors, leaf first,
// and fires the Shutdown event.  Every lifecycle event is logged on the
// supervisor's logger as
//
//	<service>-<instance> <EVENT> invoked
//	<service>-<instance> <EVENT> completed successfully
//	<service>-<instance> <EVENT> failed. Reason: <message>
//
// Tools tail these lines, so the format is fixed.
//
// The rest package serves the status, health, log and custom commands of a
// supervisor over HTTP, and the usmd command wraps it all in a daemon.
package usm
