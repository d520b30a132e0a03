package osManager

import (
	"errors"
	"fmt"

	"github.com/The-Promised-Neverland/counterqueue/internal/config"
	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	kardianos "github.com/kardianos/service"
)

var ErrUnknownCommand = errors.New("unknown service command")

type newServiceFunc func(kardianos.Interface, *kardianos.Config) (kardianos.Service, error)

type AgentOSManager struct {
	daemon kardianos.Interface
	cfg    *config.Config
	args   []string

	// serviceFactory replaces kardianos.New in tests.
	serviceFactory newServiceFunc
}

// NewManager binds daemon to the service named in cfg. args are passed to the
// binary when the installed service is started.
func NewManager(daemon kardianos.Interface, cfg *config.Config, args []string) *AgentOSManager {
	return &AgentOSManager{
		daemon: daemon,
		cfg:    cfg,
		args:   args,
	}
}

func (m *AgentOSManager) serviceConfig() *kardianos.Config {
	return &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Arguments:   m.args,
		Dependencies: []string{
			"After=network-online.target",
			"Wants=network-online.target",
		},
		Option: kardianos.KeyValue{
			"Restart":   "always",
			"OnFailure": "restart",
		},
	}
}

func (m *AgentOSManager) newService() (kardianos.Service, error) {
	if m.serviceFactory != nil {
		return m.serviceFactory(m.daemon, m.serviceConfig())
	}
	return kardianos.New(m.daemon, m.serviceConfig())
}

// Control runs a service command given on the command line and returns the
// past-tense verb for the status line.
func (m *AgentOSManager) Control(command string) (string, error) {
	switch command {
	case "install":
		return "installed", m.Install()
	case "uninstall":
		return "uninstalled", m.Uninstall()
	case "start":
		return "started", m.Start()
	case "stop":
		return "stopped", m.Stop()
	case "restart":
		return "restarted", m.Restart()
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func (m *AgentOSManager) Install() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}
	if err := s.Start(); err != nil {
		logger.Log.Error("Failed to start service after install", "err", err)
		return fmt.Errorf("failed to start service after install: %w", err)
	}
	return nil
}

func (m *AgentOSManager) Uninstall() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	// the service may already be stopped
	_ = s.Stop()
	return s.Uninstall()
}

func (m *AgentOSManager) Start() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Start()
}

// Stop asks the system service manager to stop the installed service.
func (m *AgentOSManager) Stop() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Stop()
}

func (m *AgentOSManager) Restart() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Restart()
}

// Run blocks until the service manager (or, interactively, SIGINT/SIGTERM) stops it.
func (m *AgentOSManager) Run() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}
