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

// State is the supervisor state.
//
//	                +--------------+
//	                | Initializing |
//	                +------+-------+
//	                       | Init: install ok
//	                +------v-------+   launch failed
//	      +--------->  Launching   +----------------> error to caller
//	      |         +------+-------+
//	      |                | start detected
//	      |         +------v-------+
//	      +---------+   Running    |  unexpected death, restart delay
//	                +------+-------+
//	                       | Shutdown
//	                +------v-------+
//	                | ShuttingDown |  (terminal)
//	                +--------------+
type State int

const (
	StateInitializing State = iota
	StateLaunching
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateLaunching:
		return "LAUNCHING"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	}
	return "UNKNOWN"
}
