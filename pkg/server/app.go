package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Agentomics/internal/usecase"
	"Agentomics/pkg/config"
	xhttp "Agentomics/pkg/http"
	applogger "Agentomics/pkg/logger"
)

// App encapsulates the lifecycle of one simulation run and the optional
// HTTP surface over it.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	orch        *usecase.RoundOrchestrator
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	httpOpts    []xhttp.ServerOption
}

// New creates a new App instance with all dependencies. Shared clients are
// owned by the injector and released through its cleanup.
func New(cfg *config.Config, log *applogger.Logger, orch *usecase.RoundOrchestrator) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:  cfg,
		log:  log,
		orch: orch,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler, opts ...xhttp.ServerOption) {
	a.httpHandler = h
	a.httpOpts = opts
}

// Orchestrator returns the run driven by the app.
func (a *App) Orchestrator() *usecase.RoundOrchestrator { return a.orch }

// Run simulates every remaining round. With the HTTP server enabled it keeps
// serving the final state until interrupted; otherwise it returns as soon as
// the run ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Server.Enabled && a.httpHandler != nil {
		opts := append([]xhttp.ServerOption{
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithLogger(a.log),
		}, a.httpOpts...)
		a.httpServer = xhttp.NewServer(a.httpHandler, opts...)
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	done := make(chan error, 1)
	go func() { done <- a.orch.Run(ctx) }()

	var runErr error
	var httpErrs <-chan error
	if a.httpServer != nil {
		httpErrs = a.httpServer.Errors()
	}

	select {
	case runErr = <-done:
	case err := <-httpErrs:
		stop()
		<-done
		runErr = fmt.Errorf("http server: %w", err)
	}

	switch {
	case runErr == nil:
		a.log.Info("run complete", applogger.String("run_id", a.orch.RunID()))
	case errors.Is(runErr, context.Canceled):
		a.log.Warn("run interrupted", applogger.String("run_id", a.orch.RunID()))
	default:
		a.log.Error("run failed", applogger.String("run_id", a.orch.RunID()), applogger.Error(runErr))
	}

	if runErr == nil && a.httpServer != nil && ctx.Err() == nil {
		a.log.Info("serving final state until interrupted")
		select {
		case <-ctx.Done():
		case err := <-httpErrs:
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.log.Info("shutting down")
	if err := a.shutdown(); err != nil {
		a.log.Warn("shutdown error", applogger.Error(err))
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// shutdown stops the HTTP server. Sinks, the log collector and the shared
// clients are released by the cleanup returned from di.InitializeApp.
func (a *App) shutdown() error {
	if a.httpServer == nil {
		a.log.Info("shutdown complete")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
