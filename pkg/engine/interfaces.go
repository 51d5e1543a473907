package engine

import (
	"context"
)

// SharedStore holds the shared data of every job, keyed by job id. It must be
// reachable from every worker process.
type SharedStore interface {
	// Get returns the current mapping. A job whose data was never set
	// yields a StateUnavailable error.
	Get(ctx context.Context, jobID string) (SharedData, error)

	// Set replaces the mapping wholesale.
	Set(ctx context.Context, jobID string, data SharedData) error

	// Delete drops the mapping, typically once the retention window expires.
	Delete(ctx context.Context, jobID string) error
}

// JobStore persists jobs, their task executions and the progress trail.
type JobStore interface {
	// CreateJob inserts a new job row.
	CreateJob(ctx context.Context, job *Job) error

	// UpdateJob overwrites the mutable fields of a job row.
	UpdateJob(ctx context.Context, job *Job) error

	// GetJob returns a job by id; a missing job yields NotFound.
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// SaveTask inserts or updates a task execution record.
	SaveTask(ctx context.Context, task *JobTask) error

	// ListTasks returns the task executions of a job in stage order.
	ListTasks(ctx context.Context, jobID string) ([]*JobTask, error)

	// AppendEvent adds an entry to the progress trail.
	AppendEvent(ctx context.Context, event *JobEvent) error

	// ListEvents returns the progress trail of a job in insertion order.
	ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error)
}

// ResourceStore persists managed resources, their tags and links.
type ResourceStore interface {
	// CreateResource inserts a resource and assigns its ID.
	CreateResource(ctx context.Context, res *Resource) error

	// GetResource returns a resource by internal id; a missing row yields NotFound.
	GetResource(ctx context.Context, id int64) (*Resource, error)

	// GetResourceByExtID returns the resource with the given remote id.
	GetResourceByExtID(ctx context.Context, extID string) (*Resource, error)

	// UpdateResource overwrites the mutable fields of a resource row.
	UpdateResource(ctx context.Context, res *Resource) error

	// DeleteResource hard-deletes a resource row with its tags and links.
	DeleteResource(ctx context.Context, id int64) error

	// ListResources returns resources matching the filter.
	ListResources(ctx context.Context, filter ResourceFilter) ([]*Resource, error)

	// AddTag attaches a tag to a resource; adding an existing tag is a no-op.
	AddTag(ctx context.Context, id int64, tag string) error

	// AddLink records a link between two resources.
	AddLink(ctx context.Context, link *ResourceLink) error

	// ListLinks returns the links starting at a resource.
	ListLinks(ctx context.Context, resourceID int64) ([]*ResourceLink, error)
}

// BackendHandle is a connected client for one backend container.
type BackendHandle interface {
	// Type returns the orchestrator type, e.g. "openstack".
	Type() string

	// ContainerID returns the container the handle is connected to.
	ContainerID() string

	// Create issues a create call for an entity of the given kind.
	Create(ctx context.Context, kind string, spec Entity) (Entity, error)

	// Update issues an update call for an existing entity.
	Update(ctx context.Context, kind, id string, spec Entity) (Entity, error)

	// Delete issues a delete call. Deleting a missing entity yields NotFound.
	Delete(ctx context.Context, kind, id string) error

	// Get reads the live state of an entity. A missing entity yields NotFound.
	Get(ctx context.Context, kind, id string) (Entity, error)

	// List returns the entities of a kind matching filter.
	List(ctx context.Context, kind string, filter Entity) ([]Entity, error)
}

// ContainerConnector opens backend sessions. Sessions are never shared
// across tasks; every task connects for itself.
type ContainerConnector interface {
	Connect(ctx context.Context, containerID, projectID string) (BackendHandle, error)
}
