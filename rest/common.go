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

// Package rest is the administrative HTTP surface of a supervised
// service instance, and a client for it.
package rest

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollEtagHeader and PollTimeHeader turn a GET /log carrying
	// If-None-Match into a long poll of up to PollTimeHeader seconds.
	PollEtagHeader = "X-USM-Poll-Etag"
	PollTimeHeader = "X-USM-Poll-Time"

	// MaxPollTime bounds how long a long poll may wait.
	MaxPollTime = 300
)

var ok struct{}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
