package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/internal/telemetry"
	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	kardianos "github.com/kardianos/service"
)

const shutdownTimeout = 5 * time.Second

// AgentDaemon adapts the Application to kardianos.Interface.
type AgentDaemon struct {
	app     *Application
	server  *telemetry.Server
	closers []func(context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAgentDaemon wraps app. server may be nil when the local telemetry
// endpoint is disabled.
func NewAgentDaemon(app *Application, server *telemetry.Server) *AgentDaemon {
	return &AgentDaemon{
		app:    app,
		server: server,
	}
}

// OnStop registers fn to run after the loop has stopped, in registration order.
func (d *AgentDaemon) OnStop(fn func(context.Context) error) {
	d.closers = append(d.closers, fn)
}

// kardianos.Interface implementation
func (d *AgentDaemon) Start(s kardianos.Service) error {
	logger.Log.Info("Starting service", "service", serviceString(s))
	if d.server != nil {
		if err := d.server.Start(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		d.app.Run(ctx)
	}()
	return nil
}

func (d *AgentDaemon) Stop(s kardianos.Service) error {
	logger.Log.Info("Stopping service", "service", serviceString(s))
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			logger.Log.Error("Error closing telemetry server", "err", err)
		}
	}
	for _, fn := range d.closers {
		if err := fn(ctx); err != nil {
			logger.Log.Error("Error during shutdown", "err", err)
		}
	}
	return nil
}

func serviceString(s kardianos.Service) string {
	if s == nil {
		return ""
	}
	return s.String()
}
