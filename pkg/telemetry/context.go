package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer, metrics and event publisher of one
// process. The runner stores it in the job context; the package level helpers
// below find it there and do nothing when it is absent.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryKey struct{}

// scope is what WithJobContext and WithTaskContext leave in the context for
// their End counterpart.
type scope struct {
	span  trace.Span
	start time.Time
}

type jobScopeKey struct{}

type taskScopeKey struct{}

func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Telemetry{Config: cfg}
	var err error
	if t.Logger, err = NewLogger(cfg.Logging); err != nil {
		return nil, err
	}
	if t.Tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment); err != nil {
		return nil, err
	}
	if t.Metrics, err = NewMetrics(cfg.Metrics); err != nil {
		return nil, err
	}
	if t.Events, err = NewEventPublisher(cfg.Events); err != nil {
		return nil, err
	}
	return t, nil
}

// NewNop returns a Telemetry that logs nothing and exports nothing. Events
// are still delivered, synchronously, so tests can subscribe to them.
func NewNop() *Telemetry {
	cfg := TestConfig()
	t, err := NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	t.Logger = NewNopLogger()
	return t
}

// WithContext stores t and its logger in ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(context.WithValue(ctx, telemetryKey{}, t))
}

func fromContext(ctx context.Context) *Telemetry {
	t, _ := ctx.Value(telemetryKey{}).(*Telemetry)
	return t
}

// Shutdown drains the event queue, then flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Events.Shutdown(ctx), t.Tracer.Shutdown(ctx))
}

// WithJobContext opens the span, log fields and timer of a job run and
// publishes job.started.
func WithJobContext(ctx context.Context, jobID, jobName, user string) context.Context {
	tel := fromContext(ctx)
	if tel == nil {
		return ctx
	}

	ctx, span := tel.Tracer.StartJobSpan(ctx, jobID, jobName)
	ctx = tel.Logger.WithJobID(jobID).
		WithFields(map[string]interface{}{"job": jobName, "user": user}).
		WithContext(ctx)

	tel.Metrics.RecordJobStarted(jobName)
	_ = tel.Events.PublishJobStarted(jobID, jobName, user)

	return context.WithValue(ctx, jobScopeKey{}, scope{span: span, start: time.Now()})
}

// EndJobContext closes what WithJobContext opened. A non-nil err marks the
// span failed and publishes job.failed instead of job.completed.
func EndJobContext(ctx context.Context, jobID, jobName, status string, err error) {
	tel := fromContext(ctx)
	if tel == nil {
		return
	}
	elapsed := endScope(ctx, jobScopeKey{}, err)

	tel.Metrics.RecordJobCompleted(jobName, status, elapsed)
	if err != nil {
		_ = tel.Events.PublishJobFailed(jobID, err.Error())
		return
	}
	_ = tel.Events.PublishJobCompleted(jobID, status, elapsed)
}

func WithTaskContext(ctx context.Context, jobID, taskID, step string) context.Context {
	tel := fromContext(ctx)
	if tel == nil {
		return ctx
	}

	ctx, span := tel.Tracer.StartTaskSpan(ctx, jobID, taskID, step)
	ctx = FromContext(ctx).WithJobID(jobID).WithTaskID(taskID).WithStep(step).WithContext(ctx)

	_ = tel.Events.PublishTaskStarted(jobID, taskID, step)

	return context.WithValue(ctx, taskScopeKey{}, scope{span: span, start: time.Now()})
}

func EndTaskContext(ctx context.Context, jobID, taskID, step, status string, err error) {
	tel := fromContext(ctx)
	if tel == nil {
		return
	}
	elapsed := endScope(ctx, taskScopeKey{}, err)

	tel.Metrics.RecordTaskExecution(step, status, elapsed)
	if err != nil {
		_ = tel.Events.PublishTaskFailed(jobID, taskID, step, err.Error())
		return
	}
	_ = tel.Events.PublishTaskCompleted(jobID, taskID, step, elapsed)
}

func endScope(ctx context.Context, key any, err error) time.Duration {
	s, ok := ctx.Value(key).(scope)
	if !ok {
		return 0
	}
	endSpan(s.span, err)
	return time.Since(s.start)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}

// RecordBackendOperation runs fn inside a backend span and records its
// latency and failure in the backend metrics.
func RecordBackendOperation(ctx context.Context, backend, operation string, fn func(ctx context.Context) error) error {
	tel := fromContext(ctx)
	if tel == nil {
		return fn(ctx)
	}

	ctx, span := tel.Tracer.StartBackendSpan(ctx, backend, operation)
	start := time.Now()
	err := fn(ctx)

	tel.Metrics.RecordBackendCall(backend, operation, time.Since(start))
	if err != nil {
		tel.Metrics.RecordBackendError(backend, operation)
	}
	endSpan(span, err)
	return err
}
