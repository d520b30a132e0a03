package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/host"
)

const (
	DefaultConfigFile   = "/etc/newrelic/nrsysmond.cfg"
	DefaultEndpoint     = "https://platform-api.newrelic.com/platform/v1/metrics"
	DefaultPollInterval = 60 * time.Second
)

// Keys read from the sysmond config file.
const (
	fileKeyLicense  = "license_key"
	fileKeyHostname = "hostname"
)

var ErrConfigUnreadable = errors.New("config file is unreadable")

// Config holds agent configuration. Fields are unexported to prevent modification.
type Config struct {
	redisHost     string
	redisPort     int
	redisDatabase int
	queuePrefix   string

	licenseKey   string
	hostname     string
	endpoint     string
	pollInterval time.Duration
	httpTimeout  time.Duration

	metricsAddr     string
	tracingEnabled  bool
	tracingEndpoint string
	tracingTimeout  time.Duration

	serviceName        string
	serviceDisplayName string
	serviceDescription string
}

// environment is the raw shape of the process environment.
type environment struct {
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     string `env:"REDIS_PORT" env-default:"6379"`
	RedisDatabase string `env:"REDIS_DATABASE" env-default:"1"`
	QueuePrefix   string `env:"REDIS_QUEUE_PREFIX" env-default:"counter"`

	LicenseKey   string        `env:"NEWRELIC_LICENCE_KEY"`
	Hostname     string        `env:"NEWRELIC_HOSTNAME"`
	ConfigFile   string        `env:"NEWRELIC_CONFIG_FILE" env-default:"/etc/newrelic/nrsysmond.cfg"`
	Endpoint     string        `env:"NEWRELIC_ENDPOINT" env-default:"https://platform-api.newrelic.com/platform/v1/metrics"`
	PollInterval time.Duration `env:"POLL_INTERVAL" env-default:"60s"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`

	MetricsAddr     string        `env:"METRICS_ADDR"`
	TracingEnabled  bool          `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string        `env:"TRACING_ENDPOINT"`
	TracingTimeout  time.Duration `env:"TRACING_TIMEOUT" env-default:"10s"`

	ServiceName        string `env:"SERVICE_NAME" env-default:"counterqueue-agent"`
	ServiceDisplayName string `env:"SERVICE_DISPLAY_NAME" env-default:"Counter Queue Agent"`
	ServiceDescription string `env:"SERVICE_DESCRIPTION" env-default:"Reports Redis work queue lengths to New Relic"`
}

// hostnameFunc resolves the machine hostname when neither the environment
// nor the config file name one.
var hostnameFunc = func() (string, error) {
	info, err := host.Info()
	if err != nil {
		return os.Hostname()
	}
	return info.Hostname, nil
}

// New loads .env (if any), the process environment and the sysmond config file.
// A missing config file is logged and otherwise ignored.
func New() (*Config, error) {
	_ = godotenv.Load() // ignore error if .env not found
	return Load()
}

// Load builds a Config from the current environment.
func Load() (*Config, error) {
	var env environment
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	port, err := strconv.Atoi(env.RedisPort)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid REDIS_PORT %q", env.RedisPort)
	}
	db, err := strconv.Atoi(env.RedisDatabase)
	if err != nil || db < 0 {
		return nil, fmt.Errorf("invalid REDIS_DATABASE %q", env.RedisDatabase)
	}

	fileValues, err := ParseFile(env.ConfigFile)
	if err != nil {
		logger.Log.Error("newrelic sysmond config file is unreachable", "path", env.ConfigFile, "err", err)
		fileValues = map[string]string{}
	}

	licenseKey := env.LicenseKey
	if licenseKey == "" {
		licenseKey = fileValues[fileKeyLicense]
	}
	if licenseKey == "" {
		logger.Log.Warn("No New Relic license key configured, reports will be rejected")
	}

	hostname := env.Hostname
	if hostname == "" {
		hostname = fileValues[fileKeyHostname]
	}
	if hostname == "" {
		hostname, err = hostnameFunc()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostname: %w", err)
		}
	}

	pollInterval := env.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	httpTimeout := env.HTTPTimeout
	if httpTimeout < 0 {
		httpTimeout = 0
	}

	return &Config{
		redisHost:          env.RedisHost,
		redisPort:          port,
		redisDatabase:      db,
		queuePrefix:        env.QueuePrefix,
		licenseKey:         licenseKey,
		hostname:           hostname,
		endpoint:           env.Endpoint,
		pollInterval:       pollInterval,
		httpTimeout:        httpTimeout,
		metricsAddr:        env.MetricsAddr,
		tracingEnabled:     env.TracingEnabled,
		tracingEndpoint:    env.TracingEndpoint,
		tracingTimeout:     env.TracingTimeout,
		serviceName:        env.ServiceName,
		serviceDisplayName: env.ServiceDisplayName,
		serviceDescription: env.ServiceDescription,
	}, nil
}

// ParseFile reads a key=value config file. Blank lines and lines starting
// with # are skipped. Each remaining line is split at its first '=' and both
// sides are trimmed; values are taken literally. Lines without '=' are skipped.
func ParseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			logger.Log.Warn("Skipping config line without '='", "path", path, "line", lineNo)
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}
	return values, nil
}

// LogFileFromEnv resolves LOG_FILE (after loading .env) so the logger can be
// set up before the rest of the configuration is read and logged about.
func LogFileFromEnv() (string, error) {
	_ = godotenv.Load() // ignore error if .env not found
	var env struct {
		LogFile string `env:"LOG_FILE"`
	}
	if err := cleanenv.ReadEnv(&env); err != nil {
		return "", fmt.Errorf("failed to read environment: %w", err)
	}
	return env.LogFile, nil
}

// Getter methods (immutable from outside)

func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.redisHost, strconv.Itoa(c.redisPort))
}

func (c *Config) RedisDatabase() int {
	return c.redisDatabase
}

func (c *Config) QueuePrefix() string {
	return c.queuePrefix
}

func (c *Config) LicenseKey() string {
	return c.licenseKey
}

func (c *Config) Hostname() string {
	return c.hostname
}

func (c *Config) Endpoint() string {
	return c.endpoint
}

func (c *Config) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *Config) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

func (c *Config) MetricsAddr() string {
	return c.metricsAddr
}

func (c *Config) TracingEnabled() bool {
	return c.tracingEnabled
}

func (c *Config) TracingEndpoint() string {
	return c.tracingEndpoint
}

func (c *Config) TracingTimeout() time.Duration {
	return c.tracingTimeout
}

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}
