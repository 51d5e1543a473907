// Package engine provides the job/task orchestration engine of beehive-resource.
//
// # Overview
//
// A job is a named pipeline of tasks acting on one managed resource. Callers
// submit a job with a params mapping; the mapping becomes the job's shared
// data, the single channel through which tasks pass values to each other.
// Every pipeline runs the same shape:
//
//	start_task -> <resource pre step> -> <entity task(s)> -> <resource post step> -> end_task
//
// The pre and post steps drive the resource state machine while the entity
// tasks talk to the backend (OpenStack, vSphere).
//
// # Core Types
//
//   - Task: a unit of work, Run(ctx, *TaskContext) (any, error)
//   - TaskContext: the explicit execution context handed to every task
//   - TaskRegistry: resolves stable task keys to implementations
//   - Pipeline: compiled stages, some of them parallel groups
//   - JobDefinition / JobRegistry: named, submittable pipelines
//   - Runner: executes pipelines under a bounded pool of worker slots
//   - ResourceHandle: state transitions and bookkeeping on a Resource
//   - FailureHook: invoked for every failed task, marks the resource ERROR
//
// # Pipelines
//
// Pipelines are listed head to tail:
//
//	p, err := tasks.Compile(
//	    engine.Run("create_resource_pre"),
//	    engine.Run("network.create_entity"),
//	    engine.Run("create_resource_post"),
//	)
//
// The start and end sentinels are added when missing. CompileReversed accepts
// the tail-to-head literal form and produces the same pipeline.
//
// # Resource States
//
//	PENDING -> BUILDING -> ACTIVE -> UPDATING -> ACTIVE
//	any -> EXPUNGING -> (row removed)
//	BUILDING | UPDATING | EXPUNGING -> ERROR
//
// The failure hook guarantees no resource stays in a transitional state once
// its job terminated.
//
// # Concurrency
//
// Each job runs on its own goroutine. Tasks run on worker slots; a task hands
// its slot back while it sleeps, polls a backend or waits for a nested job, so
// provider level jobs fanning out into zone jobs never starve the pool. Poll
// loops are bounded by the runner's poll timeout and fail with a Timeout error.
//
// # Errors
//
// Failures are classified with EngineError kinds: backend_unavailable,
// not_found, remote_operation_failed, job_error, state_unavailable and
// timeout. Nothing is retried; a failed task fails its job.
package engine
