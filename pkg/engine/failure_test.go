package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newHookContext(tr *testRunner, jobID string, resourceID int64) *TaskContext {
	return &TaskContext{
		JobID:      jobID,
		Step:       "network.create_entity",
		ResourceID: resourceID,
		Logger:     tr.logger,
		runner:     tr.Runner,
	}
}

func TestResourceErrorHookMarksResource(t *testing.T) {
	tr := newTestRunner(1)
	ctx := context.Background()

	res := &Resource{Kind: "network", Name: "net1", State: ResourceStateBuilding}
	_ = tr.resources.CreateResource(ctx, res)
	_ = tr.shared.Set(ctx, "job-1", SharedData{"id": res.ID})

	tc := newHookContext(tr, "job-1", 0)
	err := ResourceErrorHook(ctx, tc, Failure{Err: NewRemoteOperationFailedError("Can not create network net1", nil)})
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}

	got, _ := tr.resources.get(res.ID)
	if got.State != ResourceStateError || got.Reason != "Can not create network net1" {
		t.Errorf("expected ERROR with reason, got %s %q", got.State, got.Reason)
	}

	// A second failure in the same job leaves the resource in ERROR.
	if err := ResourceErrorHook(ctx, tc, Failure{Err: errors.New("again")}); err != nil {
		t.Fatalf("second hook call failed: %v", err)
	}
	got, _ = tr.resources.get(res.ID)
	if got.State != ResourceStateError || got.Reason != "again" {
		t.Errorf("expected ERROR with new reason, got %s %q", got.State, got.Reason)
	}
}

func TestResourceErrorHookSwallowsNotFound(t *testing.T) {
	tr := newTestRunner(1)
	ctx := context.Background()
	_ = tr.shared.Set(ctx, "job-1", SharedData{"id": 999})

	err := ResourceErrorHook(ctx, newHookContext(tr, "job-1", 0), Failure{Err: errors.New("boom")})
	if err != nil {
		t.Errorf("expected NotFound to be swallowed, got %v", err)
	}
}

func TestResourceErrorHookReturnsOtherLookupErrors(t *testing.T) {
	tr := newTestRunner(1)
	ctx := context.Background()
	_ = tr.shared.Set(ctx, "job-1", SharedData{"id": 7})

	lookupErr := NewBackendUnavailableError("database is locked", nil)
	tr.resources.failGet = lookupErr

	err := ResourceErrorHook(ctx, newHookContext(tr, "job-1", 0), Failure{Err: errors.New("boom")})
	if !errors.Is(err, lookupErr) {
		t.Errorf("expected the lookup error, got %v", err)
	}
}

func TestResourceErrorHookWithoutSharedData(t *testing.T) {
	tr := newTestRunner(1)
	tr.shared.failGet = errors.New("redis: connection refused")

	err := ResourceErrorHook(context.Background(), newHookContext(tr, "job-1", 1), Failure{Err: errors.New("boom")})
	if err != nil {
		t.Errorf("expected shared data failures to be logged only, got %v", err)
	}
}

func TestResourceErrorHookFallsBackToJobResource(t *testing.T) {
	tr := newTestRunner(1)
	ctx := context.Background()

	res := &Resource{Kind: "router", State: ResourceStateUpdating}
	_ = tr.resources.CreateResource(ctx, res)
	_ = tr.shared.Set(ctx, "job-1", SharedData{})

	if err := ResourceErrorHook(ctx, newHookContext(tr, "job-1", res.ID), Failure{Err: errors.New("boom")}); err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	got, _ := tr.resources.get(res.ID)
	if got.State != ResourceStateError {
		t.Errorf("expected ERROR, got %s", got.State)
	}
}

func TestFormatChain(t *testing.T) {
	err := NewJobError("job j1 failed", NewRemoteOperationFailedError("status ERROR", nil))
	out := formatChain(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "[job_error]") || !strings.Contains(lines[1], "[remote_operation_failed]") {
		t.Errorf("unexpected chain: %q", out)
	}
}
