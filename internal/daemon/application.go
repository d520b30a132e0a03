package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/The-Promised-Neverland/counterqueue/internal/reporter"
	"github.com/The-Promised-Neverland/counterqueue/internal/telemetry"
	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// State is the position of the poll loop within a cycle.
type State int32

const (
	Idle State = iota
	Reading
	Reporting
	Sleeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Reporting:
		return "reporting"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type CountReader interface {
	Counts(ctx context.Context) (models.QueueCounts, error)
}

type Sender interface {
	Send(ctx context.Context, payload models.Payload) (reporter.Outcome, error)
}

type Options struct {
	Queue    CountReader
	Reporter Sender
	Agent    models.AgentInfo
	Interval time.Duration
	// Telemetry is optional.
	Telemetry *telemetry.Collector
	Logger    *slog.Logger
}

// Application runs the read, report, sleep loop.
type Application struct {
	queue     CountReader
	reporter  Sender
	agent     models.AgentInfo
	interval  time.Duration
	telemetry *telemetry.Collector
	log       *slog.Logger
	state     atomic.Int32
}

func NewApplication(opts Options) *Application {
	l := opts.Logger
	if l == nil {
		l = logger.Log
	}
	return &Application{
		queue:     opts.Queue,
		reporter:  opts.Reporter,
		agent:     opts.Agent,
		interval:  opts.Interval,
		telemetry: opts.Telemetry,
		log:       l,
	}
}

func (app *Application) State() State {
	return State(app.state.Load())
}

func (app *Application) setState(s State) {
	app.state.Store(int32(s))
}

// Run loops until ctx is cancelled. Cancellation is observed before each
// cycle and while sleeping; a cycle that is in flight finishes with a
// cancelled context.
func (app *Application) Run(ctx context.Context) {
	defer app.setState(Stopped)
	for {
		select {
		case <-ctx.Done():
			app.log.Info("Stopping poll loop for shutdown")
			return
		default:
		}
		app.runCycle(ctx)

		app.setState(Sleeping)
		select {
		case <-ctx.Done():
			app.log.Info("Stopping poll loop for shutdown")
			return
		case <-time.After(app.interval):
		}
		app.setState(Idle)
	}
}

// runCycle reads the counts and reports them. Failures are logged and never
// end the loop.
func (app *Application) runCycle(ctx context.Context) {
	start := time.Now()
	ctx, span := otel.Tracer("counterqueue/daemon").Start(ctx, "poll.cycle")
	defer func() {
		span.End()
		if app.telemetry != nil {
			app.telemetry.ObserveCycle(time.Since(start))
		}
	}()

	app.setState(Reading)
	counts, err := app.readCounts(ctx)
	if err != nil {
		app.log.Error("Failed to read queue lengths", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "queue read failed")
		if app.telemetry != nil {
			app.telemetry.ObserveStoreError()
		}
		return
	}
	app.log.Debug("Queue lengths", "todo", counts.Todo, "doing", counts.Doing, "failed", counts.Failed)
	if app.telemetry != nil {
		app.telemetry.ObserveCounts(counts)
	}

	app.setState(Reporting)
	payload := reporter.BuildPayload(counts, app.agent)
	outcome, err := app.reporter.Send(ctx, payload)
	if err != nil {
		app.log.Error("Failed to send metrics", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		app.observeReport("error")
		return
	}
	span.SetAttributes(attribute.String("report.outcome", outcome.Result.String()))
	app.observeReport(outcome.Result.String())
}

func (app *Application) readCounts(ctx context.Context) (models.QueueCounts, error) {
	ctx, span := otel.Tracer("counterqueue/daemon").Start(ctx, "queue.counts")
	defer span.End()
	return app.queue.Counts(ctx)
}

func (app *Application) observeReport(outcome string) {
	if app.telemetry != nil {
		app.telemetry.ObserveReport(outcome)
	}
}
