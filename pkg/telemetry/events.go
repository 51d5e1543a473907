package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notification about a job, a task or a resource.
type Event struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       string         `json:"type"`
	JobID      string         `json:"job_id,omitempty"`
	TaskID     string         `json:"task_id,omitempty"`
	ResourceID int64          `json:"resource_id,omitempty"`
	Message    string         `json:"message"`
	Level      string         `json:"level"`
	Data       map[string]any `json:"data,omitempty"`
}

const (
	EventTypeJobStarted           = "job.started"
	EventTypeJobCompleted         = "job.completed"
	EventTypeJobFailed            = "job.failed"
	EventTypeTaskStarted          = "task.started"
	EventTypeTaskCompleted        = "task.completed"
	EventTypeTaskFailed           = "task.failed"
	EventTypeTaskProgress         = "task.progress"
	EventTypeResourceStateChanged = "resource.state_changed"
)

const (
	EventLevelDebug = "debug"
	EventLevelInfo  = "info"
	EventLevelError = "error"
)

var errPublisherStopped = errors.New("event publisher stopped")

// EventSubscriber handles a delivered event.
type EventSubscriber func(event Event)

// EventFilter reports whether an event should reach a subscriber.
type EventFilter func(event Event) bool

type subscription struct {
	fn     EventSubscriber
	filter EventFilter
}

// EventPublisher fans events out to subscribers. In async mode events are
// queued and delivered by one goroutine, so per-job ordering is preserved.
// A nil or disabled publisher accepts and drops everything.
type EventPublisher struct {
	cfg    EventsConfig
	queue  chan Event
	done   chan struct{}
	stop   context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
	subs   []subscription
	closed sync.Once
}

func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{cfg: cfg}
	if !cfg.Enabled || !cfg.EnableAsync {
		return ep, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}

	ep.queue = make(chan Event, cfg.BufferSize)
	ep.done = make(chan struct{})
	ep.ctx, ep.stop = context.WithCancel(context.Background())
	go ep.loop()
	return ep, nil
}

// Subscribe registers fn for the events accepted by filter. A nil filter
// accepts everything.
func (ep *EventPublisher) Subscribe(fn EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	ep.subs = append(ep.subs, subscription{fn: fn, filter: filter})
	ep.mu.Unlock()
}

// Publish stamps and delivers an event. In async mode a full queue drops the
// event with an error.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.cfg.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.queue == nil {
		ep.deliver(event)
		return nil
	}

	select {
	case <-ep.ctx.Done():
		return errPublisherStopped
	default:
	}
	select {
	case ep.queue <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, %s dropped", event.Type)
	}
}

func (ep *EventPublisher) PublishJobStarted(jobID, jobName, user string) error {
	return ep.Publish(Event{
		Type:    EventTypeJobStarted,
		JobID:   jobID,
		Level:   EventLevelInfo,
		Message: fmt.Sprintf("Job %s (%s) started by %s", jobID, jobName, user),
		Data:    map[string]any{"job": jobName, "user": user},
	})
}

func (ep *EventPublisher) PublishJobCompleted(jobID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeJobCompleted,
		JobID:   jobID,
		Level:   EventLevelInfo,
		Message: fmt.Sprintf("Job %s completed with status: %s", jobID, status),
		Data:    map[string]any{"status": status, "duration": duration.Seconds()},
	})
}

func (ep *EventPublisher) PublishJobFailed(jobID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeJobFailed,
		JobID:   jobID,
		Level:   EventLevelError,
		Message: fmt.Sprintf("Job %s failed: %s", jobID, reason),
		Data:    map[string]any{"reason": reason},
	})
}

// PublishTaskStarted, PublishTaskCompleted and PublishTaskFailed report the
// lifecycle of one pipeline step.
func (ep *EventPublisher) PublishTaskStarted(jobID, taskID, step string) error {
	return ep.publishTask(EventTypeTaskStarted, EventLevelDebug, jobID, taskID, step,
		fmt.Sprintf("Task %s started", step), nil)
}

func (ep *EventPublisher) PublishTaskCompleted(jobID, taskID, step string, duration time.Duration) error {
	return ep.publishTask(EventTypeTaskCompleted, EventLevelDebug, jobID, taskID, step,
		fmt.Sprintf("Task %s completed", step), map[string]any{"duration": duration.Seconds()})
}

func (ep *EventPublisher) PublishTaskFailed(jobID, taskID, step, reason string) error {
	return ep.publishTask(EventTypeTaskFailed, EventLevelError, jobID, taskID, step,
		fmt.Sprintf("Task %s failed: %s", step, reason), map[string]any{"reason": reason})
}

// PublishTaskProgress forwards a message a task reported through Update.
func (ep *EventPublisher) PublishTaskProgress(jobID, taskID, status, message string) error {
	return ep.Publish(Event{
		Type:    EventTypeTaskProgress,
		JobID:   jobID,
		TaskID:  taskID,
		Level:   EventLevelInfo,
		Message: message,
		Data:    map[string]any{"status": status},
	})
}

func (ep *EventPublisher) PublishResourceStateChanged(jobID string, resourceID int64, oldState, newState string) error {
	return ep.Publish(Event{
		Type:       EventTypeResourceStateChanged,
		JobID:      jobID,
		ResourceID: resourceID,
		Level:      EventLevelInfo,
		Message:    fmt.Sprintf("Resource %d state changed from %s to %s", resourceID, oldState, newState),
		Data:       map[string]any{"old_state": oldState, "new_state": newState},
	})
}

func (ep *EventPublisher) publishTask(typ, level, jobID, taskID, step, msg string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	data["step"] = step
	return ep.Publish(Event{Type: typ, JobID: jobID, TaskID: taskID, Level: level, Message: msg, Data: data})
}

func (ep *EventPublisher) loop() {
	defer close(ep.done)
	for {
		select {
		case event := <-ep.queue:
			ep.deliver(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.queue:
					ep.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliver(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	for _, s := range ep.subs {
		if s.filter == nil || s.filter(event) {
			s.fn(event)
		}
	}
}

// Shutdown stops the async loop once the queued events are delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || ep.queue == nil {
		return nil
	}
	ep.closed.Do(ep.stop)

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

// FilterByJobID accepts the events of one job.
func FilterByJobID(jobID string) EventFilter {
	return func(event Event) bool { return event.JobID == jobID }
}

// FilterByType accepts the listed event types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(event Event) bool {
		_, ok := set[event.Type]
		return ok
	}
}
