package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Failure describes a task that returned an error or panicked.
type Failure struct {
	Err    error
	JobID  string
	TaskID string
	Step   string

	// Args is the shared data the task last read or wrote.
	Args SharedData

	// Traceback is the goroutine stack for panics, or the wrapped error
	// chain for ordinary failures.
	Traceback string
}

// FailureHook is invoked by the runner for every failed task. An error it
// returns is logged by the runner; the job fails either way.
type FailureHook func(ctx context.Context, tc *TaskContext, f Failure) error

// ResourceErrorHook moves the resource named by the shared "id" key to ERROR,
// storing the failure message as its reason. A resource that no longer
// exists is ignored; any other lookup failure is returned.
func ResourceErrorHook(ctx context.Context, tc *TaskContext, f Failure) error {
	data, err := tc.GetSharedData(ctx)
	if err != nil {
		tc.Logger.WithError(err).Error("failure hook could not read shared data")
		return nil
	}

	id, ok := data.Int64("id")
	if !ok || id == 0 {
		id = tc.ResourceID
	}
	if id == 0 {
		tc.Logger.Debug("failure hook found no resource to mark")
		return nil
	}

	h, err := tc.GetResource(ctx, id, false)
	if err != nil {
		if IsNotFound(err) {
			tc.Logger.WithField("resource_id", id).Debug("resource already removed, nothing to mark")
			return nil
		}
		return err
	}

	reason := ""
	if f.Err != nil {
		reason = f.Err.Error()
	}
	if err := h.UpdateState(ctx, ResourceStateError, reason); err != nil {
		return err
	}

	tc.Logger.WithResourceID(id).WithField("reason", reason).Warn("resource set to ERROR")
	return nil
}

// formatChain renders an error and every error it wraps, one per line.
func formatChain(err error) string {
	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		if ee, ok := err.(*EngineError); ok {
			fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), ee.Describe())
		} else {
			fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), err.Error())
		}
		err = errors.Unwrap(err)
	}
	return b.String()
}
