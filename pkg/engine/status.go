package engine

import (
	"encoding/json"
	"fmt"
)

// JobStatus represents the overall status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued but not yet dispatched.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning indicates the job pipeline is executing.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSuccess indicates the final pipeline stage completed without error.
	JobStatusSuccess JobStatus = "SUCCESS"

	// JobStatusFailure indicates a pipeline stage failed.
	JobStatusFailure JobStatus = "FAILURE"
)

// IsTerminal returns true if the job status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// IsActive returns true if the job is pending or running.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Validate checks if the job status is valid.
func (s JobStatus) Validate() error {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusFailure:
		return nil
	default:
		return fmt.Errorf("invalid job status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = JobStatus(str)
	return s.Validate()
}

// TaskStatus represents the status of a single pipeline task.
type TaskStatus string

const (
	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusSuccess indicates the task returned without error.
	TaskStatusSuccess TaskStatus = "SUCCESS"

	// TaskStatusFailure indicates the task returned an error.
	TaskStatusFailure TaskStatus = "FAILURE"
)

// IsTerminal returns true if the task status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// Operation is the job operation qualifier.
type Operation string

const (
	// OperationInsert creates a resource.
	OperationInsert Operation = "insert"

	// OperationUpdate updates a resource.
	OperationUpdate Operation = "update"

	// OperationDelete deletes a resource.
	OperationDelete Operation = "delete"

	// OperationAction runs a resource action.
	OperationAction Operation = "action"
)

// Validate checks if the operation is valid.
func (o Operation) Validate() error {
	switch o {
	case OperationInsert, OperationUpdate, OperationDelete, OperationAction:
		return nil
	default:
		return fmt.Errorf("invalid operation: %s", o)
	}
}

// ResourceState represents the lifecycle state of a managed resource.
type ResourceState string

const (
	// ResourceStatePending is the state of a freshly created row.
	ResourceStatePending ResourceState = "PENDING"

	// ResourceStateBuilding indicates the remote entity is being created.
	ResourceStateBuilding ResourceState = "BUILDING"

	// ResourceStateUpdating indicates the remote entity is being updated.
	ResourceStateUpdating ResourceState = "UPDATING"

	// ResourceStateExpunging indicates the remote entity is being deleted.
	ResourceStateExpunging ResourceState = "EXPUNGING"

	// ResourceStateActive indicates the resource is ready.
	ResourceStateActive ResourceState = "ACTIVE"

	// ResourceStateError indicates the last operation on the resource failed.
	ResourceStateError ResourceState = "ERROR"

	// ResourceStateUnknown is used for values that cannot be parsed.
	ResourceStateUnknown ResourceState = "UNKNOWN"
)

// IsTransitional returns true if the state is held only while a job runs.
func (s ResourceState) IsTransitional() bool {
	return s == ResourceStateBuilding || s == ResourceStateUpdating ||
		s == ResourceStateExpunging
}

// IsTerminal returns true if the state is observable as a final outcome.
func (s ResourceState) IsTerminal() bool {
	return s == ResourceStateActive || s == ResourceStateError
}

// Validate checks if the resource state is valid.
func (s ResourceState) Validate() error {
	switch s {
	case ResourceStatePending, ResourceStateBuilding, ResourceStateUpdating,
		ResourceStateExpunging, ResourceStateActive, ResourceStateError,
		ResourceStateUnknown:
		return nil
	default:
		return fmt.Errorf("invalid resource state: %s", s)
	}
}

// resourceTransitions lists the allowed target states for each state.
var resourceTransitions = map[ResourceState][]ResourceState{
	ResourceStatePending:   {ResourceStateBuilding, ResourceStateExpunging, ResourceStateError},
	ResourceStateBuilding:  {ResourceStateActive, ResourceStateExpunging, ResourceStateError},
	ResourceStateUpdating:  {ResourceStateActive, ResourceStateExpunging, ResourceStateError},
	ResourceStateExpunging: {ResourceStateError},
	ResourceStateActive:    {ResourceStateUpdating, ResourceStateExpunging, ResourceStateError},
	ResourceStateError:     {ResourceStateBuilding, ResourceStateUpdating, ResourceStateExpunging},
	ResourceStateUnknown:   {ResourceStateError, ResourceStateExpunging},
}

// CanTransition reports whether a resource may move from s to next.
// Moving to the current state is always allowed.
func (s ResourceState) CanTransition(next ResourceState) bool {
	if s == next {
		return true
	}
	for _, allowed := range resourceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseResourceState converts a stored string into a ResourceState.
func ParseResourceState(value string) ResourceState {
	s := ResourceState(value)
	if s.Validate() != nil {
		return ResourceStateUnknown
	}
	return s
}

// EventLevel is the severity of a job event.
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)
