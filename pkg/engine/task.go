package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// TaskContext is the execution context bound to one task invocation. It is
// passed explicitly to every task and is not safe for use by several
// goroutines at once.
type TaskContext struct {
	JobID       string
	TaskID      string
	JobName     string
	Step        string
	EntityClass string
	ObjID       string
	User        string
	ResourceID  int64
	StartTime   time.Time

	// PollInterval is the pause between two status reads in Poll.
	PollInterval time.Duration

	// PollTimeout bounds a single Poll or WaitForJobComplete call.
	PollTimeout time.Duration

	Logger *telemetry.Logger

	runner   *Runner
	holdSlot bool
	last     SharedData
}

// GetSharedData returns the current shared data of the job.
func (tc *TaskContext) GetSharedData(ctx context.Context) (SharedData, error) {
	data, err := tc.runner.shared.Get(ctx, tc.JobID)
	if err != nil {
		if KindOf(err) == "" {
			err = NewStateUnavailableError(fmt.Sprintf("shared data of job %s is unavailable", tc.JobID), err)
		}
		return nil, err
	}
	if data == nil {
		data = SharedData{}
	}
	tc.last = data
	return data, nil
}

// SetSharedData replaces the shared data of the job.
func (tc *TaskContext) SetSharedData(ctx context.Context, data SharedData) error {
	if err := tc.runner.shared.Set(ctx, tc.JobID, data); err != nil {
		if KindOf(err) == "" {
			err = NewStateUnavailableError(fmt.Sprintf("failed to store shared data of job %s", tc.JobID), err)
		}
		return err
	}
	tc.last = data
	return nil
}

// Progress appends a message to the job's progress trail.
func (tc *TaskContext) Progress(ctx context.Context, msg string) {
	tc.Update(ctx, "PROGRESS", msg)
}

// Update appends a message with a status label to the job's progress trail.
// Failures to persist the entry are logged and otherwise ignored.
func (tc *TaskContext) Update(ctx context.Context, status, msg string) {
	tc.runner.recordEvent(ctx, tc.JobID, tc.TaskID, status, EventLevelInfo, msg)
	tc.Logger.WithField("status", status).Info(msg)
}

// GetContainer connects to a backend container. Any connection failure is
// reported as BackendUnavailable.
func (tc *TaskContext) GetContainer(ctx context.Context, containerID, projectID string) (BackendHandle, error) {
	if tc.runner.connector == nil {
		return nil, NewBackendUnavailableError("no container connector configured", nil).
			WithResource(containerID)
	}
	handle, err := tc.runner.connector.Connect(ctx, containerID, projectID)
	if err != nil {
		if IsBackendUnavailable(err) {
			return nil, err
		}
		return nil, NewBackendUnavailableError(fmt.Sprintf("failed to connect to container %s", containerID), err).
			WithResource(containerID)
	}
	tc.Logger.WithContainer(handle.Type(), containerID).Debug("connected to container")
	return handle, nil
}

// GetResource loads a resource by internal id. With details set, the live
// remote entity is read through the resource's container.
func (tc *TaskContext) GetResource(ctx context.Context, id int64, details bool) (*ResourceHandle, error) {
	store, err := tc.resourceStore()
	if err != nil {
		return nil, err
	}
	res, err := store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	h := newResourceHandle(tc, res)
	if details {
		if err := h.loadDetails(ctx); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// GetResourceByExtID loads the resource carrying the given remote id.
func (tc *TaskContext) GetResourceByExtID(ctx context.Context, extID string) (*ResourceHandle, error) {
	store, err := tc.resourceStore()
	if err != nil {
		return nil, err
	}
	res, err := store.GetResourceByExtID(ctx, extID)
	if err != nil {
		return nil, err
	}
	return newResourceHandle(tc, res), nil
}

// CreateResource inserts a new resource row in PENDING state and returns a
// handle to it.
func (tc *TaskContext) CreateResource(ctx context.Context, res *Resource) (*ResourceHandle, error) {
	store, err := tc.resourceStore()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	res.State = ResourceStatePending
	res.CreatedAt = now
	res.UpdatedAt = now
	if res.ObjID == "" {
		res.ObjID = tc.ObjID
	}
	if err := store.CreateResource(ctx, res); err != nil {
		return nil, err
	}
	return newResourceHandle(tc, res), nil
}

// ListResources returns the resources matching filter.
func (tc *TaskContext) ListResources(ctx context.Context, filter ResourceFilter) ([]*ResourceHandle, error) {
	store, err := tc.resourceStore()
	if err != nil {
		return nil, err
	}
	rows, err := store.ListResources(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*ResourceHandle, len(rows))
	for i, res := range rows {
		out[i] = newResourceHandle(tc, res)
	}
	return out, nil
}

// Submit enqueues a nested job whose parent is the current job.
func (tc *TaskContext) Submit(ctx context.Context, jobName string, params SharedData) (string, error) {
	opts := Options{
		User:     tc.User,
		ObjID:    tc.ObjID,
		ParentID: tc.JobID,
	}
	if id, ok := params.Int64("id"); ok {
		opts.ResourceID = id
	}
	return tc.runner.Submit(ctx, jobName, opts, params)
}

// WaitForJobComplete blocks until the nested job terminates and returns it.
// The worker slot is released while waiting. A failed nested job is
// reported as a JobError carrying the nested failure reason.
func (tc *TaskContext) WaitForJobComplete(ctx context.Context, jobID string) (*Job, error) {
	var job *Job
	wake := tc.runner.completion(jobID)

	err := tc.poll(ctx, wake, func(ctx context.Context) (bool, error) {
		j, err := tc.runner.jobStore.GetJob(ctx, jobID)
		if err != nil {
			return false, err
		}
		job = j
		return j.Status.IsTerminal(), nil
	})
	if err != nil {
		if IsTimeout(err) {
			return nil, NewJobError(fmt.Sprintf("job %s did not complete", jobID), err)
		}
		return nil, err
	}

	if job.Status == JobStatusFailure {
		return job, NewJobError(fmt.Sprintf("job %s failed: %s", jobID, job.Error), nil).
			WithDetail("job_id", jobID)
	}
	return job, nil
}

// Sleep pauses the task without holding a worker slot.
func (tc *TaskContext) Sleep(ctx context.Context, d time.Duration) error {
	_, err := tc.sleep(ctx, d, nil)
	return err
}

// Poll calls check every PollInterval until it reports done or fails. The
// loop gives up with a Timeout error after PollTimeout.
func (tc *TaskContext) Poll(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	return tc.poll(ctx, nil, check)
}

func (tc *TaskContext) poll(ctx context.Context, wake <-chan struct{}, check func(ctx context.Context) (bool, error)) error {
	start := time.Now()
	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		elapsed := time.Since(start)
		if tc.PollTimeout > 0 && elapsed >= tc.PollTimeout {
			return NewTimeoutError(fmt.Sprintf("%s gave up after %s", tc.Step, tc.PollTimeout), nil).
				WithOperation(tc.Step)
		}

		wait := tc.PollInterval
		if tc.PollTimeout > 0 && tc.PollTimeout-elapsed < wait {
			wait = tc.PollTimeout - elapsed
		}
		woken, err := tc.sleep(ctx, wait, wake)
		if err != nil {
			return err
		}
		if woken {
			// a closed channel fires forever; later reads wait the interval
			wake = nil
		}
	}
}

// sleep reports whether it returned early because wake fired.
func (tc *TaskContext) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) (bool, error) {
	if tc.holdSlot {
		tc.runner.release()
		tc.holdSlot = false
		defer func() {
			if err := tc.runner.acquire(context.WithoutCancel(ctx)); err == nil {
				tc.holdSlot = true
			}
		}()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case <-wake:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (tc *TaskContext) resourceStore() (ResourceStore, error) {
	if tc.runner.resources == nil {
		return nil, NewJobError("no resource store configured", nil)
	}
	return tc.runner.resources, nil
}

// startTask opens every pipeline. It fails early when the shared data was
// never initialized.
func startTask(ctx context.Context, tc *TaskContext) (any, error) {
	if _, err := tc.GetSharedData(ctx); err != nil {
		return nil, err
	}
	tc.Update(ctx, "START", fmt.Sprintf("job %s started", tc.JobName))
	return nil, nil
}

// endTask closes every pipeline and returns the shared "id" as job result.
func endTask(ctx context.Context, tc *TaskContext) (any, error) {
	data, err := tc.GetSharedData(ctx)
	if err != nil {
		return nil, err
	}
	tc.Update(ctx, "END", fmt.Sprintf("job %s completed", tc.JobName))
	return data["id"], nil
}
