// Package svc runs consultd under the host's service manager. It wraps
// kardianos/service so the CLI stays free of platform specifics: install
// writes a unit that invokes "consultd service run" with the same config
// path, and run adapts the blocking daemon loop to the manager's
// non-blocking start/stop protocol.
package svc

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kardianos/service"
)

// ControlActions lists the service subcommands that map straight to the
// manager, in the order the help text shows them.
var ControlActions = []string{"install", "uninstall", "start", "stop", "restart"}

const defaultStopWait = 15 * time.Second

// Runner is the daemon loop. It blocks until ctx is cancelled and
// returns once shutdown is complete.
type Runner func(ctx context.Context) error

// Config describes the managed service.
type Config struct {
	// ConfigPath is baked into the installed unit's arguments.
	ConfigPath string

	Logger *slog.Logger
}

// Service is a handle on the registered service definition.
type Service struct {
	inner service.Service
	prg   *program
}

// New registers the service definition with the platform backend. It
// fails when no service manager is detected on the host.
func New(cfg Config, run Runner) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	prg := &program{
		run:      run,
		logger:   cfg.Logger,
		stopWait: defaultStopWait,
	}
	inner, err := service.New(prg, &service.Config{
		Name:        "consultd",
		DisplayName: "consultd",
		Description: "Multi-engine consultation daemon",
		Arguments:   []string{"service", "run", "--config", cfg.ConfigPath},
	})
	if err != nil {
		return nil, fmt.Errorf("svc: register service: %w", err)
	}
	return &Service{inner: inner, prg: prg}, nil
}

// Run hands control to the service manager and blocks until it orders a
// stop. Invoked by the installed unit, not by operators directly.
func (s *Service) Run() error {
	return s.inner.Run()
}

// Control performs one management action against the platform backend.
func (s *Service) Control(action string) error {
	if !slices.Contains(ControlActions, action) {
		return fmt.Errorf("svc: unknown action %q (valid: %v)", action, ControlActions)
	}
	if err := service.Control(s.inner, action); err != nil {
		return fmt.Errorf("svc: %s: %w", action, err)
	}
	return nil
}

// program adapts the blocking Runner to service.Interface, whose Start
// and Stop must both return promptly.
type program struct {
	run      Runner
	logger   *slog.Logger
	stopWait time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.run(ctx); err != nil {
			p.logger.Error("daemon exited", "error", err)
		}
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
	case <-time.After(p.stopWait):
		p.logger.Warn("daemon did not stop in time", "waited", p.stopWait)
	}
	return nil
}
