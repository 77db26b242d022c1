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

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gdamore/usm"
)

// LogInfo is a page of the remote log.  Pass it back to WatchLog to get
// only newer lines.
type LogInfo struct {
	etag    string
	Records []usm.LogRecord
}

// Client talks to the Handler of one instance.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

// poll issues an HTTP GET against the URL, optionally presenting an Etag,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {

	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}

	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", readError(res)
	}
	if e := json.NewDecoder(res.Body).Decode(v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string, body interface{}, v interface{}) error {
	var rd io.Reader
	if body != nil {
		b, e := json.Marshal(body)
		if e != nil {
			return e
		}
		rd = bytes.NewReader(b)
	}
	req, e := http.NewRequestWithContext(ctx, "POST", url, rd)
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", mimeJson)
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return readError(res)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(v)
}

// readError decodes the server's Error body, falling back to the status.
func readError(res *http.Response) error {
	e := &Error{}
	if json.NewDecoder(res.Body).Decode(e) != nil || e.Message == "" {
		e.Message = res.Status
	}
	e.Code = res.StatusCode
	return e
}

// Status returns the monitoring snapshot.
func (c *Client) Status(ctx context.Context) (*usm.Snapshot, error) {
	snap := &usm.Snapshot{}
	if _, e := c.poll(ctx, c.base+"/status", "", 0, snap); e != nil {
		return nil, e
	}
	return snap, nil
}

// Health returns nil if the instance is healthy, otherwise an *Error
// carrying the reason.
func (c *Client) Health(ctx context.Context) error {
	_, e := c.poll(ctx, c.base+"/health", "", 0, &struct{}{})
	return e
}

// Invoke runs a custom command on the instance.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]string) (*usm.CommandResult, error) {
	res := &usm.CommandResult{}
	if args == nil {
		args = map[string]string{}
	}
	if e := c.post(ctx, c.base+"/commands/"+url.PathEscape(name), args, res); e != nil {
		return nil, e
	}
	return res, nil
}

// Shutdown asks the instance to shut its service down.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.post(ctx, c.base+"/shutdown", nil, nil)
}

func (c *Client) pollLog(ctx context.Context, secs int, last *LogInfo) (*LogInfo, error) {
	otag := ""
	if last != nil {
		otag = last.etag
	} else {
		secs = 0
	}
	v := &LogInfo{}
	etag, e := c.poll(ctx, c.base+"/log", otag, secs, &v.Records)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return &LogInfo{etag: otag}, nil
	}
	v.etag = etag
	return v, nil
}

// WatchLog waits up to five minutes for lines newer than last and
// returns them.  The result is empty if nothing was logged meanwhile.
func (c *Client) WatchLog(ctx context.Context, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, MaxPollTime, last)
}

// GetLog returns the whole retained log.
func (c *Client) GetLog() (*LogInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.pollLog(ctx, 0, nil)
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	return &Client{
		base:   baseURI,
		client: &http.Client{Transport: t},
	}
}
