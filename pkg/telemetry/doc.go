// Package telemetry provides observability instrumentation for the job engine.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing behind a single
// Telemetry value that is attached to a context and picked up by the runner,
// the tasks and the backend helpers.
//
// # Usage
//
// Initialize telemetry at process startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("runner")
//	logger = logger.WithJobID(jobID).WithStep("create_resource_pre")
//	logger.Info("resource state set to BUILDING")
//
// # Tracing
//
// Jobs, tasks and backend calls each get their own span:
//
//	ctx = telemetry.WithJobContext(ctx, jobID, "network.insert", user)
//	defer telemetry.EndJobContext(ctx, jobID, "network.insert", "SUCCESS", err)
//
//	err := telemetry.RecordBackendOperation(ctx, "openstack", "network.create",
//	    func(ctx context.Context) error { ... })
//
// Exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// Collectors are registered on a private registry and served by
// Metrics.StartMetricsServer on the configured listen address:
//
//   - beehive_jobs_started_total{job}
//   - beehive_jobs_completed_total{job,status}
//   - beehive_job_duration_seconds{job,status}
//   - beehive_tasks_executed_total{task,status}
//   - beehive_task_duration_seconds{task}
//   - beehive_resource_state_transitions_total{kind,state}
//   - beehive_backend_calls_total{backend,operation}
//   - beehive_backend_call_duration_seconds{backend,operation}
//   - beehive_backend_errors_total{backend,operation}
//   - beehive_errors_by_kind_total{kind}
//   - beehive_active_jobs
//   - beehive_busy_workers
//
// # Events
//
// The EventPublisher fans job, task, progress and resource state events out
// to subscribers, optionally through a buffered asynchronous queue:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByJobID(jobID))
package telemetry
