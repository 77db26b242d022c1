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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	defaultStartTimeout  = time.Second * 90
	defaultStartInterval = time.Second
	defaultStopInterval  = time.Second * 5
)

// CustomCommand is an operator command the service exposes, such as
// "flush-cache".  Named arguments reach the command as USM_ARG_<NAME>.
type CustomCommand struct {
	Command   []string `json:"command" yaml:"command" toml:"command"`
	TimeoutMs int64    `json:"timeoutMs" yaml:"timeoutMs" toml:"timeoutMs"`
}

// Descriptor is the deployment descriptor of one service.  The
// supervisor never modifies it.
type Descriptor struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Command     []string `json:"command" yaml:"command" toml:"command"`
	Env         []string `json:"env" yaml:"env" toml:"env"`
	Directory   string   `json:"directory" yaml:"directory" toml:"directory"`

	// CleanDirectory removes Directory when the service is shut down.
	CleanDirectory bool `json:"cleanDirectory" yaml:"cleanDirectory" toml:"cleanDirectory"`

	// InstallCommand, if set, runs between the install events.
	InstallCommand []string `json:"installCommand" yaml:"installCommand" toml:"installCommand"`

	// PidFile is a legacy hint naming a file the service writes its
	// pid to.  When present it overrides the discovered leaf process.
	PidFile string `json:"pidFile" yaml:"pidFile" toml:"pidFile"`

	StartDetectionTimeoutMs  int64 `json:"startDetectionTimeoutMs" yaml:"startDetectionTimeoutMs" toml:"startDetectionTimeoutMs"`
	StartDetectionIntervalMs int64 `json:"startDetectionIntervalMs" yaml:"startDetectionIntervalMs" toml:"startDetectionIntervalMs"`
	StopDetectionIntervalMs  int64 `json:"stopDetectionIntervalMs" yaml:"stopDetectionIntervalMs" toml:"stopDetectionIntervalMs"`

	// LivenessPorts adds a PortProbe for these ports.
	LivenessPorts []int `json:"livenessPorts" yaml:"livenessPorts" toml:"livenessPorts"`

	// Verbose logs every output line; otherwise only lines containing
	// one of OutputFilter are logged.  An empty filter logs everything.
	Verbose      bool     `json:"verbose" yaml:"verbose" toml:"verbose"`
	OutputFilter []string `json:"outputFilter" yaml:"outputFilter" toml:"outputFilter"`

	CustomCommands map[string]CustomCommand `json:"customCommands" yaml:"customCommands" toml:"customCommands"`
}

func millis(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// StartTimeout is the start detection deadline.
func (d *Descriptor) StartTimeout() time.Duration {
	return millis(d.StartDetectionTimeoutMs, defaultStartTimeout)
}

// StartInterval is the start detection poll interval.
func (d *Descriptor) StartInterval() time.Duration {
	return millis(d.StartDetectionIntervalMs, defaultStartInterval)
}

// StopInterval is the stop probe poll interval.
func (d *Descriptor) StopInterval() time.Duration {
	return millis(d.StopDetectionIntervalMs, defaultStopInterval)
}

func (d *Descriptor) validate() error {
	if d == nil {
		return configError("no deployment descriptor")
	}
	if strings.TrimSpace(d.Name) == "" {
		return configError("service name is missing")
	}
	if len(d.Command) == 0 || d.Command[0] == "" {
		return configError("service %s has no start command", d.Name)
	}
	for name, c := range d.CustomCommands {
		if len(c.Command) == 0 {
			return configError("custom command %s is empty", name)
		}
	}
	return nil
}

// DecodeDescriptor reads a descriptor in the given format: "json",
// "yaml" or "toml".
func DecodeDescriptor(r io.Reader, format string) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	d := &Descriptor{}
	switch strings.ToLower(format) {
	case "json":
		err = json.Unmarshal(data, d)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, d)
	case "toml":
		err = toml.Unmarshal(data, d)
	default:
		return nil, configError("unsupported descriptor format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err = d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDescriptor reads a descriptor file, choosing the format from the
// file extension.
func LoadDescriptor(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer f.Close()
	return DecodeDescriptor(f, strings.TrimPrefix(filepath.Ext(path), "."))
}
