// Package server runs one HTTP service together with its background jobs.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	xhttp "RiskApprove/pkg/http"
	applogger "RiskApprove/pkg/logger"
)

// Job is a background component started with the app and stopped on shutdown.
type Job interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Hook runs once after the HTTP server is listening, off the request path.
type Hook func(ctx context.Context) error

type namedCloser struct {
	name string
	c    io.Closer
}

// Option configures App.
type Option func(*App)

// WithJob adds a background job.
func WithJob(j Job) Option {
	return func(a *App) {
		if j != nil {
			a.jobs = append(a.jobs, j)
		}
	}
}

// WithStartup adds a hook run in the background once the server is up.
func WithStartup(name string, h Hook) Option {
	return func(a *App) {
		a.hooks = append(a.hooks, namedHook{name: name, run: h})
	}
}

// WithCloser registers a resource closed on shutdown, in reverse order of registration.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

type namedHook struct {
	name string
	run  Hook
}

// App encapsulates the lifecycle of one service.
type App struct {
	name    string
	logger  *applogger.Logger
	server  *xhttp.Server
	jobs    []Job
	hooks   []namedHook
	closers []namedCloser

	started []Job
	hookWG  sync.WaitGroup
}

// New creates an App serving srv.
func New(name string, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	a := &App{
		name:   name,
		logger: l.With(applogger.String("service", name)),
		server: srv,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the service name.
func (a *App) Name() string { return a.name }

// Server returns the HTTP server.
func (a *App) Server() *xhttp.Server { return a.server }

// Run starts the service and blocks until SIGINT/SIGTERM, ctx cancellation
// or a listen failure, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(); err != nil {
		a.closeAll()
		return fmt.Errorf("start http server: %w", err)
	}

	for _, h := range a.hooks {
		a.hookWG.Add(1)
		go func(h namedHook) {
			defer a.hookWG.Done()
			start := time.Now()
			if err := h.run(ctx); err != nil {
				a.logger.Error("startup task failed", applogger.String("task", h.name), applogger.Error(err))
				return
			}
			a.logger.Info("startup task done", applogger.String("task", h.name), applogger.Duration("took", time.Since(start)))
		}(h)
	}

	for _, j := range a.jobs {
		if err := j.Start(ctx); err != nil {
			a.logger.Error("background job failed to start", applogger.Error(err))
			continue
		}
		a.started = append(a.started, j)
	}

	a.logger.Info("service started")

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-a.server.Errors():
		runErr = err
	}
	stop()

	if err := a.Shutdown(context.Background()); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// Shutdown stops the server, then the jobs, then closes resources.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.server.ShutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.started) - 1; i >= 0; i-- {
		if err := a.started[i].Stop(ctx); err != nil {
			a.logger.Warn("background job stop error", applogger.Error(err))
		}
	}
	a.started = nil

	waitCh := make(chan struct{})
	go func() {
		a.hookWG.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-ctx.Done():
		a.logger.Warn("startup tasks still running at shutdown")
	}

	a.closeAll()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.closers = nil
}
