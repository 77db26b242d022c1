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
	"bufio"
	"io"
	"log"
	"strings"
)

// StreamMonitor drains one output stream of the managed process.  The
// end of the stream is taken to mean the process has died.
type StreamMonitor struct {
	Name    string      // "stdout" or "stderr"
	Reader  io.Reader   // the stream
	Logger  *log.Logger // where passing lines go, may be nil
	Output  io.Writer   // receives every line, may be nil
	Verbose bool
	Filters []string // substrings a line must contain unless Verbose
	Sink    func()   // called once at end of stream, may be nil
}

func (m *StreamMonitor) passes(line string) bool {
	if m.Verbose || len(m.Filters) == 0 {
		return true
	}
	lower := strings.ToLower(line)
	for _, f := range m.Filters {
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// Run reads until end of stream or an I/O error.  A Reader that is also
// an io.Closer is closed before Sink runs.
func (m *StreamMonitor) Run() {
	reader := bufio.NewReader(m.Reader)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); len(line) != 0 {
			if m.Output != nil {
				io.WriteString(m.Output, line+"\n")
			}
			if m.Logger != nil && m.passes(line) {
				m.Logger.Printf("%s> %s", m.Name, line)
			}
		}
		if err != nil {
			break
		}
	}
	if c, ok := m.Reader.(io.Closer); ok {
		c.Close()
	}
	if m.Sink != nil {
		m.Sink()
	}
}
