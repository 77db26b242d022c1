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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const defaultCommandTimeout = time.Second * 10

// CommandFunc implements a custom command in Go.
type CommandFunc func(ctx context.Context, args map[string]string) (interface{}, error)

// CommandResult is the outcome of a custom command invocation.
type CommandResult struct {
	InstanceID int         `json:"instanceId"`
	Command    string      `json:"command"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	err        error
}

// Err returns the error behind a failed result.
func (r CommandResult) Err() error {
	return r.err
}

// runCommand runs an auxiliary command to completion, killing it if it
// outlives the timeout.  Standard output and error are returned together,
// trimmed.
func runCommand(ctx context.Context, argv []string, env []string, d time.Duration) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrConfiguration)
	}
	if d == 0 {
		d = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if env != nil {
		c.Env = append(os.Environ(), env...)
	}
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out
	err := c.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("Timeout after %v waiting for %s", d, argv[0])
	}
	return strings.TrimSpace(out.String()), err
}

// commandEnv converts named arguments into USM_ARG_<NAME> variables, in
// a stable order.  A positive pid is passed as $PID.
func commandEnv(args map[string]string, pid int) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		name := strings.ToUpper(strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			}
			return '_'
		}, k))
		env = append(env, "USM_ARG_"+name+"="+args[k])
	}
	if pid > 0 {
		env = append(env, fmt.Sprintf("PID=%d", pid))
	}
	return env
}

func execCommand(c CustomCommand, pid int) CommandFunc {
	return func(ctx context.Context, args map[string]string) (interface{}, error) {
		timeout := time.Duration(c.TimeoutMs) * time.Millisecond
		out, err := runCommand(ctx, c.Command, commandEnv(args, pid), timeout)
		if err != nil {
			if out != "" {
				return nil, fmt.Errorf("%v: %s", err, out)
			}
			return nil, err
		}
		return out, nil
	}
}
