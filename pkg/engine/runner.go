package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// Default runner settings.
const (
	DefaultWorkers      = 10
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 30 * time.Minute
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Workers bounds the number of tasks executing at once.
	Workers int

	// PollInterval is the pause between status reads in poll loops.
	PollInterval time.Duration

	// PollTimeout bounds every poll loop and nested job wait.
	PollTimeout time.Duration
}

// Dependencies are the collaborators a Runner works with. Shared and
// JobStore are required.
type Dependencies struct {
	Tasks     *TaskRegistry
	Jobs      *JobRegistry
	Shared    SharedStore
	JobStore  JobStore
	Resources ResourceStore
	Connector ContainerConnector

	// Hook is called for every failed task. Defaults to ResourceErrorHook.
	Hook FailureHook

	Telemetry *telemetry.Telemetry
}

// Runner executes job pipelines. Every job runs on its own goroutine while
// task execution is bounded by a pool of worker slots. Tasks give their slot
// back while they sleep, poll or wait for nested jobs.
type Runner struct {
	tasks     *TaskRegistry
	jobs      *JobRegistry
	shared    SharedStore
	jobStore  JobStore
	resources ResourceStore
	connector ContainerConnector
	hook      FailureHook

	tel    *telemetry.Telemetry
	logger *telemetry.Logger

	slots chan struct{}
	busy  atomic.Int64

	// pollMu protects the poll settings, which may be reloaded at runtime.
	pollMu       sync.RWMutex
	pollInterval time.Duration
	pollTimeout  time.Duration

	mu      sync.Mutex
	done    map[string]chan struct{}
	closed  bool
	running sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig, deps Dependencies) (*Runner, error) {
	if deps.Shared == nil {
		return nil, fmt.Errorf("shared store is required")
	}
	if deps.JobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if deps.Tasks == nil {
		deps.Tasks = NewTaskRegistry()
	}
	if deps.Jobs == nil {
		deps.Jobs = NewJobRegistry()
	}
	if deps.Hook == nil {
		deps.Hook = ResourceErrorHook
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}

	logger := telemetry.NewNopLogger()
	if deps.Telemetry != nil {
		logger = deps.Telemetry.Logger.NewComponentLogger("runner")
	}

	return &Runner{
		tasks:        deps.Tasks,
		jobs:         deps.Jobs,
		shared:       deps.Shared,
		jobStore:     deps.JobStore,
		resources:    deps.Resources,
		connector:    deps.Connector,
		hook:         deps.Hook,
		tel:          deps.Telemetry,
		logger:       logger,
		slots:        make(chan struct{}, cfg.Workers),
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		done:         make(map[string]chan struct{}),
	}, nil
}

// Tasks returns the task registry.
func (r *Runner) Tasks() *TaskRegistry {
	return r.tasks
}

// Jobs returns the job registry.
func (r *Runner) Jobs() *JobRegistry {
	return r.jobs
}

// SetPollSettings changes the poll interval and timeout used by tasks
// started from now on. Non-positive values keep the current setting.
func (r *Runner) SetPollSettings(interval, timeout time.Duration) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	if interval > 0 {
		r.pollInterval = interval
	}
	if timeout > 0 {
		r.pollTimeout = timeout
	}
}

// PollSettings returns the current poll interval and timeout.
func (r *Runner) PollSettings() (time.Duration, time.Duration) {
	r.pollMu.RLock()
	defer r.pollMu.RUnlock()
	return r.pollInterval, r.pollTimeout
}

// Submit validates params against the named job definition, compiles its
// pipeline and enqueues it. It returns the new job id immediately.
func (r *Runner) Submit(ctx context.Context, name string, opts Options, params SharedData) (string, error) {
	def, err := r.jobs.Get(name)
	if err != nil {
		return "", err
	}
	if err := r.jobs.ValidateParams(def, params); err != nil {
		return "", err
	}

	pipeline, err := r.tasks.Compile(def.Steps...)
	if err != nil {
		return "", fmt.Errorf("failed to compile job %s: %w", name, err)
	}

	delta := def.Delta
	if delta <= 0 {
		delta = pipeline.Len()
	}

	job := &Job{
		Name:        def.Name,
		Operation:   def.Operation,
		EntityClass: def.EntityClass,
		Delta:       delta,
	}
	return r.enqueue(ctx, job, pipeline, opts, params)
}

// Delay enqueues an already compiled pipeline under an ad hoc job name.
func (r *Runner) Delay(ctx context.Context, name string, pipeline *Pipeline, opts Options, params SharedData) (string, error) {
	if pipeline == nil || pipeline.Len() == 0 {
		return "", NewJobError("pipeline is empty", nil)
	}
	job := &Job{
		Name:      name,
		Operation: OperationAction,
		Delta:     pipeline.Len(),
	}
	return r.enqueue(ctx, job, pipeline, opts, params)
}

func (r *Runner) enqueue(ctx context.Context, job *Job, pipeline *Pipeline, opts Options, params SharedData) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", NewJobError("runner is shut down", nil)
	}
	r.running.Add(1)
	r.mu.Unlock()

	job.ID = uuid.New().String()
	job.Status = JobStatusPending
	job.User = opts.User
	job.ObjID = opts.ObjID
	job.ResourceID = opts.ResourceID
	job.ParentID = opts.ParentID
	job.CreatedAt = time.Now()

	if params == nil {
		params = SharedData{}
	}
	if err := r.shared.Set(ctx, job.ID, params); err != nil {
		r.running.Done()
		return "", fmt.Errorf("failed to initialize shared data: %w", err)
	}
	if err := r.jobStore.CreateJob(ctx, job); err != nil {
		r.running.Done()
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	r.mu.Lock()
	r.done[job.ID] = make(chan struct{})
	r.mu.Unlock()

	r.logger.WithJobID(job.ID).WithField("job", job.Name).Debugf("job enqueued with %d stages", pipeline.Len())

	go func() {
		defer r.running.Done()
		r.execute(job, pipeline)
	}()

	return job.ID, nil
}

// execute runs the pipeline stage by stage and records the outcome.
func (r *Runner) execute(job *Job, pipeline *Pipeline) {
	ctx := context.Background()
	if r.tel != nil {
		ctx = r.tel.WithContext(ctx)
	}
	ctx = telemetry.WithJobContext(ctx, job.ID, job.Name, job.User)

	startedAt := time.Now()
	job.StartedAt = &startedAt
	job.Status = JobStatusRunning
	if err := r.jobStore.UpdateJob(ctx, job); err != nil {
		r.logger.WithJobID(job.ID).WithError(err).Error("failed to mark job running")
	}

	var result any
	var err error
	for i, stage := range pipeline.stages {
		result, err = r.runStage(ctx, job, i, stage)
		if err != nil {
			break
		}
		job.StagesDone = i + 1
		if i < pipeline.Len()-1 {
			if uerr := r.jobStore.UpdateJob(ctx, job); uerr != nil {
				r.logger.WithJobID(job.ID).WithError(uerr).Warn("failed to record job progress")
			}
		}
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	if err != nil {
		job.Status = JobStatusFailure
		job.Error = err.Error()
	} else {
		job.Status = JobStatusSuccess
		if raw, merr := json.Marshal(result); merr == nil {
			job.Result = raw
		} else {
			r.logger.WithJobID(job.ID).WithError(merr).Warn("job result is not JSON serializable")
		}
	}

	level := EventLevelInfo
	if err != nil {
		level = EventLevelError
	}
	r.recordEvent(ctx, job.ID, "", string(job.Status), level,
		fmt.Sprintf("job %s finished with status %s", job.Name, job.Status))

	if uerr := r.jobStore.UpdateJob(ctx, job); uerr != nil {
		r.logger.WithJobID(job.ID).WithError(uerr).Error("failed to save final job state")
	}

	telemetry.EndJobContext(ctx, job.ID, job.Name, string(job.Status), err)

	r.mu.Lock()
	if ch, ok := r.done[job.ID]; ok {
		close(ch)
		delete(r.done, job.ID)
	}
	r.mu.Unlock()
}

// runStage runs a single stage. Parallel stages run every member and wait
// for all of them; the first error fails the stage.
func (r *Runner) runStage(ctx context.Context, job *Job, index int, stage Stage) (any, error) {
	if len(stage.tasks) == 1 {
		return r.runTask(ctx, job, index, stage.Keys[0], stage.tasks[0])
	}

	results := make([]any, len(stage.tasks))
	var g errgroup.Group
	for i, task := range stage.tasks {
		i, task := i, task
		g.Go(func() error {
			res, err := r.runTask(ctx, job, index, stage.Keys[i], task)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runTask executes one task on a worker slot and routes failures through
// the failure hook.
func (r *Runner) runTask(ctx context.Context, job *Job, stage int, key string, task Task) (result any, err error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	interval, timeout := r.PollSettings()
	taskID := uuid.New().String()
	tc := &TaskContext{
		JobID:        job.ID,
		TaskID:       taskID,
		JobName:      job.Name,
		Step:         key,
		EntityClass:  job.EntityClass,
		ObjID:        job.ObjID,
		User:         job.User,
		ResourceID:   job.ResourceID,
		StartTime:    time.Now(),
		PollInterval: interval,
		PollTimeout:  timeout,
		Logger:       r.logger.WithJobID(job.ID).WithTaskID(taskID).WithStep(key),
		runner:       r,
		holdSlot:     true,
	}
	defer func() {
		if tc.holdSlot {
			r.release()
		}
	}()

	rec := &JobTask{
		ID:        taskID,
		JobID:     job.ID,
		Name:      key,
		Stage:     stage,
		Status:    TaskStatusRunning,
		StartedAt: tc.StartTime,
	}
	if serr := r.jobStore.SaveTask(ctx, rec); serr != nil {
		tc.Logger.WithError(serr).Warn("failed to record task start")
	}

	tctx := telemetry.WithTaskContext(ctx, job.ID, taskID, key)

	var traceback string
	result, traceback, err = r.invoke(tctx, task, tc)

	completedAt := time.Now()
	rec.CompletedAt = &completedAt
	rec.Status = TaskStatusSuccess
	if err != nil {
		rec.Status = TaskStatusFailure
		rec.Error = err.Error()
	}
	if serr := r.jobStore.SaveTask(ctx, rec); serr != nil {
		tc.Logger.WithError(serr).Warn("failed to record task completion")
	}

	telemetry.EndTaskContext(tctx, job.ID, taskID, key, string(rec.Status), err)

	if err != nil {
		if r.tel != nil {
			r.tel.Metrics.RecordError(string(KindOf(err)))
		}
		r.recordEvent(ctx, job.ID, taskID, "FAILURE", EventLevelError, fmt.Sprintf("%s failed: %s", key, err.Error()))
		tc.Logger.WithError(err).Error("task failed")

		failure := Failure{
			Err:       err,
			JobID:     job.ID,
			TaskID:    taskID,
			Step:      key,
			Args:      tc.last,
			Traceback: traceback,
		}
		if herr := r.hook(ctx, tc, failure); herr != nil {
			tc.Logger.WithError(herr).Error("failure hook failed")
		}
	}

	return result, err
}

// invoke runs the task, turning a panic into an error with its stack.
func (r *Runner) invoke(ctx context.Context, task Task, tc *TaskContext) (result any, traceback string, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = NewJobError(fmt.Sprintf("task %s panicked: %v", tc.Step, p), nil)
			traceback = string(debug.Stack())
		}
	}()

	result, err = task.Run(ctx, tc)
	if err != nil {
		traceback = formatChain(err)
	}
	return result, traceback, err
}

// Wait blocks until the job terminates and returns it.
func (r *Runner) Wait(ctx context.Context, jobID string) (*Job, error) {
	interval, _ := r.PollSettings()
	wake := r.completion(jobID)
	for {
		job, err := r.jobStore.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-wake:
			// a closed channel fires forever; later reads wait the interval
			wake = nil
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		timer.Stop()
	}
}

// Shutdown stops accepting jobs and waits for running jobs to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown: %w", ctx.Err())
	}
}

// completion returns a channel closed when a job running in this process
// finishes, or nil when the job is not running here.
func (r *Runner) completion(jobID string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[jobID]
}

func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		r.setBusy(r.busy.Add(1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) release() {
	<-r.slots
	r.setBusy(r.busy.Add(-1))
}

func (r *Runner) setBusy(n int64) {
	if r.tel != nil {
		r.tel.Metrics.SetBusyWorkers(float64(n))
	}
}

// recordEvent appends to the progress trail and publishes a telemetry event.
func (r *Runner) recordEvent(ctx context.Context, jobID, taskID, status string, level EventLevel, msg string) {
	event := &JobEvent{
		JobID:     jobID,
		TaskID:    taskID,
		Status:    status,
		Level:     level,
		Message:   msg,
		Timestamp: time.Now(),
	}
	if err := r.jobStore.AppendEvent(ctx, event); err != nil {
		r.logger.WithJobID(jobID).WithError(err).Warn("failed to append job event")
	}
	if r.tel != nil && taskID != "" {
		_ = r.tel.Events.PublishTaskProgress(jobID, taskID, status, msg)
	}
}

func (r *Runner) recordStateChange(jobID string, res *Resource, old ResourceState) {
	if old == res.State {
		return
	}
	r.logger.WithJobID(jobID).WithResourceID(res.ID).
		Debugf("resource state %s -> %s", old, res.State)
	if r.tel != nil {
		r.tel.Metrics.RecordStateTransition(res.Kind, string(res.State))
		_ = r.tel.Events.PublishResourceStateChanged(jobID, res.ID, string(old), string(res.State))
	}
}
