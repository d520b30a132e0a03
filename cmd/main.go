package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/The-Promised-Neverland/counterqueue/internal/config"
	"github.com/The-Promised-Neverland/counterqueue/internal/daemon"
	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/The-Promised-Neverland/counterqueue/internal/osManager"
	"github.com/The-Promised-Neverland/counterqueue/internal/queue"
	"github.com/The-Promised-Neverland/counterqueue/internal/reporter"
	"github.com/The-Promised-Neverland/counterqueue/internal/telemetry"
	"github.com/The-Promised-Neverland/counterqueue/internal/tracing"
	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	"github.com/fatih/color"
)

func main() {
	logLevel := flag.String("log", "ERROR", "Define LogLevel (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [--log LEVEL] [install|uninstall|start|stop|restart]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level, ok := logger.ParseLevel(*logLevel)
	logFile, err := config.LogFileFromEnv()
	logger.Init(logger.Options{Level: level, LogFile: logFile})
	if err != nil {
		logger.Log.Error("Invalid LOG_FILE", "err", err)
		os.Exit(1)
	}
	if !ok {
		logger.Log.Warn("Unknown log level, using ERROR", "level", *logLevel)
	}

	cfg, err := config.New()
	if err != nil {
		logger.Log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	agentDaemon, err := buildDaemon(cfg)
	if err != nil {
		logger.Log.Error("Failed to initialise agent", "err", err)
		os.Exit(1)
	}
	manager := osManager.NewManager(agentDaemon, cfg, []string{"--log", *logLevel})

	verb := flag.Arg(0)
	if verb == "" {
		if err := manager.Run(); err != nil {
			logger.Log.Error("Service failed", "err", err)
			os.Exit(1)
		}
		return
	}

	done, err := manager.Control(verb)
	if errors.Is(err, osManager.ErrUnknownCommand) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Log.Error("Service command failed", "command", verb, "err", err)
		color.Red("❌ %s failed: %v", verb, err)
		os.Exit(1)
	}
	color.Green("✅ Service %s %s", cfg.ServiceName(), done)
}

func buildDaemon(cfg *config.Config) (*daemon.AgentDaemon, error) {
	shutdownTracing, err := tracing.NewTracerProvider(context.Background(), tracing.Config{
		Enabled:     cfg.TracingEnabled(),
		Endpoint:    cfg.TracingEndpoint(),
		Timeout:     cfg.TracingTimeout(),
		ServiceName: cfg.ServiceName(),
		Version:     models.AgentVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	collector, err := telemetry.NewCollector()
	if err != nil {
		return nil, err
	}
	var server *telemetry.Server
	if cfg.MetricsAddr() != "" {
		server = telemetry.NewServer(cfg.MetricsAddr(), collector)
	}

	q := queue.New(queue.Options{
		Addr:     cfg.RedisAddr(),
		Database: cfg.RedisDatabase(),
		Prefix:   cfg.QueuePrefix(),
	})
	rep := reporter.New(reporter.Options{
		Endpoint:   cfg.Endpoint(),
		LicenseKey: cfg.LicenseKey(),
		Timeout:    cfg.HTTPTimeout(),
	})

	app := daemon.NewApplication(daemon.Options{
		Queue:    q,
		Reporter: rep,
		Agent: models.AgentInfo{
			Host:    cfg.Hostname(),
			PID:     os.Getpid(),
			Version: models.AgentVersion,
		},
		Interval:  cfg.PollInterval(),
		Telemetry: collector,
	})

	d := daemon.NewAgentDaemon(app, server)
	d.OnStop(func(context.Context) error { return q.Close() })
	d.OnStop(shutdownTracing)
	return d, nil
}
