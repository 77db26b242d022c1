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

// Command usmd supervises one instance of a service described by a
// deployment descriptor, and serves its administrative REST interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/usm"
	"github.com/gdamore/usm/metrics"
	"github.com/gdamore/usm/rest"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

type config struct {
	descriptor    string
	instance      int
	addr          string
	logFile       string
	shutdownAfter time.Duration
	details       bool
}

func main() {
	cfg := &config{
		instance: 1,
		addr:     "127.0.0.1:8321",
		details:  true,
	}
	cmd := &cobra.Command{
		Use:           "usmd",
		Short:         "Supervise one service instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.descriptor, "descriptor", "d", "", "deployment descriptor (json, yaml or toml)")
	f.IntVarP(&cfg.instance, "instance", "i", cfg.instance, "instance number, starting at 1")
	f.StringVarP(&cfg.addr, "addr", "a", cfg.addr, "listen address, empty to disable")
	f.StringVar(&cfg.logFile, "log-file", "", "also log to this file, rotated")
	f.DurationVar(&cfg.shutdownAfter, "shutdown-after", 0, "shut down after this long (debugging)")
	f.BoolVar(&cfg.details, "details", cfg.details, "report process statistics")
	cmd.MarkFlagRequired("descriptor")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("usmd: %v", err)
	}
}

func logWriters(cfg *config) ([]io.Writer, error) {
	ws := []io.Writer{os.Stderr}
	if cfg.logFile == "" {
		return ws, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.logFile), 0o755); err != nil {
		return nil, fmt.Errorf("Could not create log directory: %w", err)
	}
	return append(ws, &lumberjack.Logger{
		Filename:   cfg.logFile,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}), nil
}

func run(cfg *config) error {
	desc, err := usm.LoadDescriptor(cfg.descriptor)
	if err != nil {
		return err
	}
	ws, err := logWriters(cfg)
	if err != nil {
		return err
	}

	opts := []usm.Option{usm.WithInstance(cfg.instance)}
	for _, w := range ws {
		opts = append(opts, usm.WithLogWriter(w))
	}
	if cfg.details {
		opts = append(opts, usm.WithDetails(usm.ProcessDetails{}))
	}
	if cfg.shutdownAfter > 0 {
		opts = append(opts, usm.WithShutdownAfter(cfg.shutdownAfter))
	}
	s, err := usm.New(desc, opts...)
	if err != nil {
		return err
	}

	// Serve before Init, so that a slow start can be watched.
	var srv *http.Server
	if cfg.addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector("", s))

		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		r.PathPrefix("/").Handler(rest.NewHandler(s))
		srv = &http.Server{Addr: cfg.addr, Handler: r}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger().Printf("HTTP server failed: %v", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// A signal during Init aborts its start detection.
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Init(ctx); err != nil {
		closeServer(srv)
		return err
	}

	// Wait for a termination signal, or a shutdown through the REST
	// interface or the self-shutdown timer, and shutdown cleanly.
	for ctx.Err() == nil && s.State() != usm.StateShuttingDown {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
	err = s.Shutdown(context.Background())
	closeServer(srv)
	return err
}

func closeServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
