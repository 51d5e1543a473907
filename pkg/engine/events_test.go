package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

func TestRunnerPublishesTelemetryEvents(t *testing.T) {
	tel := telemetry.NewNop()
	shared, jobs, resources := newMockSharedStore(), newMockJobStore(), newMockResourceStore()
	r, err := NewRunner(RunnerConfig{Workers: 1, PollInterval: time.Millisecond, PollTimeout: time.Second}, Dependencies{
		Shared:    shared,
		JobStore:  jobs,
		Resources: resources,
		Telemetry: tel,
	})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []telemetry.Event
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}, telemetry.FilterByType(telemetry.EventTypeJobStarted, telemetry.EventTypeResourceStateChanged))

	ctx := context.Background()
	res := &Resource{Kind: "network", Name: "net1"}
	if err := resources.CreateResource(ctx, res); err != nil {
		t.Fatal(err)
	}
	r.Tasks().MustRegister("build", TaskFunc(func(ctx context.Context, tc *TaskContext) (any, error) {
		h, err := tc.GetResource(ctx, res.ID, false)
		if err != nil {
			return nil, err
		}
		return nil, h.UpdateState(ctx, ResourceStateBuilding, "")
	}))
	pipeline, _ := r.Tasks().Compile(Run("build"))

	id, err := r.Delay(ctx, "network.insert", pipeline, Options{User: "admin"}, SharedData{"id": res.ID})
	if err != nil {
		t.Fatal(err)
	}
	if job := waitJob(t, r, id); job.Status != JobStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", job.Status, job.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != telemetry.EventTypeJobStarted || got[0].JobID != id {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Type != telemetry.EventTypeResourceStateChanged || got[1].ResourceID != res.ID {
		t.Errorf("unexpected second event: %+v", got[1])
	}
	if got[1].Data["new_state"] != string(ResourceStateBuilding) {
		t.Errorf("unexpected new state: %v", got[1].Data["new_state"])
	}
}
