package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.TestConfig()

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("%s: %s\n", event.Type, event.Message)
	}, telemetry.FilterByJobID("job-1"))

	_ = tel.Events.PublishTaskProgress("job-1", "task-1", "RUNNING", "create network net1")
	_ = tel.Events.PublishTaskProgress("job-2", "task-9", "RUNNING", "filtered out")
	_ = tel.Events.PublishJobCompleted("job-1", "SUCCESS", 2*time.Second)

	// Output:
	// task.progress: create network net1
	// job.completed: Job job-1 completed with status: SUCCESS
}

// Example_jobInstrumentation demonstrates instrumenting a job and its tasks.
func Example_jobInstrumentation() {
	tel, _ := telemetry.NewTelemetry(telemetry.TestConfig())
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	jobID := "job-123"
	ctx = telemetry.WithJobContext(ctx, jobID, "network.insert", "admin")

	taskCtx := telemetry.WithTaskContext(ctx, jobID, "task-1", "create_resource_pre")
	telemetry.EndTaskContext(taskCtx, jobID, "task-1", "create_resource_pre", "SUCCESS", nil)

	telemetry.EndJobContext(ctx, jobID, "network.insert", "SUCCESS", nil)

	fmt.Println("Job instrumentation complete")
	// Output: Job instrumentation complete
}

// Example_backendInstrumentation demonstrates recording a backend call.
func Example_backendInstrumentation() {
	tel, _ := telemetry.NewTelemetry(telemetry.TestConfig())
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	err := telemetry.RecordBackendOperation(ctx, "openstack", "network.create", func(ctx context.Context) error {
		return errors.New("quota exceeded")
	})

	fmt.Println(err)
	// Output: quota exceeded
}
