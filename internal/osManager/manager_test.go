package osManager

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/The-Promised-Neverland/counterqueue/internal/config"
	kardianos "github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the lifecycle calls made against it. The embedded
// interface covers the methods the manager never calls.
type fakeService struct {
	kardianos.Service
	calls   []string
	failOn  string
	failErr error
}

func (f *fakeService) record(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return f.failErr
	}
	return nil
}

func (f *fakeService) Run() error       { return f.record("run") }
func (f *fakeService) Start() error     { return f.record("start") }
func (f *fakeService) Stop() error      { return f.record("stop") }
func (f *fakeService) Restart() error   { return f.record("restart") }
func (f *fakeService) Install() error   { return f.record("install") }
func (f *fakeService) Uninstall() error { return f.record("uninstall") }

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NEWRELIC_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.cfg"))
	t.Setenv("NEWRELIC_HOSTNAME", "queue-box-01")
	t.Setenv("SERVICE_NAME", "cq-test")
	t.Setenv("SERVICE_DISPLAY_NAME", "CQ Test")
	t.Setenv("SERVICE_DESCRIPTION", "test service")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestManager(t *testing.T, svc *fakeService) (*AgentOSManager, *kardianos.Config) {
	t.Helper()
	m := NewManager(nil, loadConfig(t), []string{"--log", "INFO"})
	var got kardianos.Config
	m.serviceFactory = func(_ kardianos.Interface, sc *kardianos.Config) (kardianos.Service, error) {
		got = *sc
		return svc, nil
	}
	return m, &got
}

func TestServiceConfig(t *testing.T) {
	m := NewManager(nil, loadConfig(t), []string{"--log", "INFO"})
	sc := m.serviceConfig()

	assert.Equal(t, "cq-test", sc.Name)
	assert.Equal(t, "CQ Test", sc.DisplayName)
	assert.Equal(t, "test service", sc.Description)
	assert.Equal(t, []string{"--log", "INFO"}, sc.Arguments)
	assert.Equal(t, "always", sc.Option["Restart"])
}

func TestControl(t *testing.T) {
	tests := []struct {
		command string
		done    string
		calls   []string
	}{
		{"install", "installed", []string{"install", "start"}},
		{"uninstall", "uninstalled", []string{"stop", "uninstall"}},
		{"start", "started", []string{"start"}},
		{"stop", "stopped", []string{"stop"}},
		{"restart", "restarted", []string{"restart"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			svc := &fakeService{}
			m, sc := newTestManager(t, svc)

			done, err := m.Control(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.done, done)
			assert.Equal(t, tt.calls, svc.calls)
			assert.Equal(t, "cq-test", sc.Name)
		})
	}
}

func TestControl_UnknownCommand(t *testing.T) {
	svc := &fakeService{}
	m, _ := newTestManager(t, svc)

	_, err := m.Control("reload")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, svc.calls)
}

func TestControl_PropagatesErrors(t *testing.T) {
	boom := errors.New("access denied")

	svc := &fakeService{failOn: "install", failErr: boom}
	m, _ := newTestManager(t, svc)
	_, err := m.Control("install")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"install"}, svc.calls, "start is not attempted after a failed install")

	svc = &fakeService{failOn: "stop", failErr: boom}
	m, _ = newTestManager(t, svc)
	_, err = m.Control("uninstall")
	assert.NoError(t, err, "uninstall proceeds when the service is already stopped")
	assert.Equal(t, []string{"stop", "uninstall"}, svc.calls)

	svc = &fakeService{failOn: "restart", failErr: boom}
	m, _ = newTestManager(t, svc)
	_, err = m.Control("restart")
	assert.ErrorIs(t, err, boom)
}

func TestRun(t *testing.T) {
	svc := &fakeService{}
	m, _ := newTestManager(t, svc)

	require.NoError(t, m.Run())
	assert.Equal(t, []string{"run"}, svc.calls)
}
