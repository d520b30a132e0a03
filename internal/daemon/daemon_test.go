package daemon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/The-Promised-Neverland/counterqueue/internal/reporter"
	"github.com/The-Promised-Neverland/counterqueue/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentDaemon_StartStop(t *testing.T) {
	q := &fakeQueue{counts: models.QueueCounts{Todo: 2}}
	s := &fakeSender{outcome: reporter.Outcome{Result: reporter.Accepted, StatusCode: 200}}
	app, tel := newTestApp(t, q, s, time.Hour)
	server := telemetry.NewServer("127.0.0.1:0", tel)

	d := NewAgentDaemon(app, server)
	var closed []string
	d.OnStop(func(context.Context) error { closed = append(closed, "queue"); return nil })
	d.OnStop(func(context.Context) error { closed = append(closed, "tracing"); return nil })

	require.NoError(t, d.Start(nil))
	require.Eventually(t, func() bool { return app.State() == Sleeping }, time.Second, time.Millisecond)

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, d.Stop(nil))
	assert.Equal(t, Stopped, app.State())
	assert.Equal(t, []string{"queue", "tracing"}, closed)
	assert.Equal(t, 1, q.Calls())

	// a second Stop is a no-op
	require.NoError(t, d.Stop(nil))
	assert.Len(t, closed, 2)
}

func TestAgentDaemon_WithoutServer(t *testing.T) {
	app, _ := newTestApp(t, &fakeQueue{}, &fakeSender{}, time.Hour)
	d := NewAgentDaemon(app, nil)

	require.NoError(t, d.Start(nil))
	require.Eventually(t, func() bool { return app.State() == Sleeping }, time.Second, time.Millisecond)
	require.NoError(t, d.Stop(nil))
	assert.Equal(t, Stopped, app.State())
}

func TestAgentDaemon_StopBeforeStart(t *testing.T) {
	app, _ := newTestApp(t, &fakeQueue{}, &fakeSender{}, time.Hour)
	assert.NoError(t, NewAgentDaemon(app, nil).Stop(nil))
}
