package orchestrator

import (
	"context"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// statuses lists the terminal statuses of one remote operation. An empty
// success list means the entity is usable as soon as the call returns.
type statuses struct {
	success []string
	failure []string
}

func (s statuses) polled() bool {
	return len(s.success) > 0
}

func (s statuses) is(list []string, status string) bool {
	for _, v := range list {
		if v == status {
			return true
		}
	}
	return false
}

// poller implements the create-then-poll and delete-then-poll patterns shared
// by every helper.
type poller struct {
	tc      *engine.TaskContext
	backend engine.BackendHandle
}

// create issues the create call once and polls until a terminal status.
func (p *poller) create(ctx context.Context, kind string, spec engine.Entity, st statuses) (string, error) {
	name := engine.SharedData(spec).String("name")

	var created engine.Entity
	err := telemetry.RecordBackendOperation(ctx, p.backend.Type(), "create_"+kind, func(ctx context.Context) error {
		var err error
		created, err = p.backend.Create(ctx, kind, spec)
		return err
	})
	if err != nil {
		if engine.KindOf(err) != "" {
			return "", err
		}
		return "", engine.NewRemoteOperationFailedError(fmt.Sprintf("Can not create %s %s", kind, name), err).
			WithOperation("create_" + kind)
	}

	id := created.ID()
	p.tc.Progress(ctx, fmt.Sprintf("%s %s create requested, remote id %s", kind, name, id))
	if !st.polled() {
		return id, nil
	}

	if err := p.wait(ctx, kind, id, created, st); err != nil {
		if engine.IsRemoteOperationFailed(err) {
			return id, engine.NewRemoteOperationFailedError(fmt.Sprintf("Can not create %s %s", kind, name), unwrapReason(err)).
				WithResource(id).WithOperation("create_" + kind)
		}
		return id, err
	}

	p.tc.Progress(ctx, fmt.Sprintf("%s %s created", kind, name))
	return id, nil
}

// remove deletes an entity. An empty id or an entity already gone counts as
// deleted. With a polled status set, the entity is watched until it is gone
// or reaches a terminal status.
func (p *poller) remove(ctx context.Context, kind, id string, st statuses) error {
	if id == "" {
		p.tc.Progress(ctx, fmt.Sprintf("%s has no remote id, nothing to delete", kind))
		return nil
	}

	err := telemetry.RecordBackendOperation(ctx, p.backend.Type(), "delete_"+kind, func(ctx context.Context) error {
		return p.backend.Delete(ctx, kind, id)
	})
	if engine.IsNotFound(err) {
		p.tc.Progress(ctx, fmt.Sprintf("%s %s already deleted", kind, id))
		return nil
	}
	if err != nil {
		if engine.KindOf(err) != "" {
			return err
		}
		return engine.NewRemoteOperationFailedError(fmt.Sprintf("Can not delete %s %s", kind, id), err).
			WithOperation("delete_" + kind)
	}

	err = p.tc.Poll(ctx, func(ctx context.Context) (bool, error) {
		e, err := p.backend.Get(ctx, kind, id)
		if engine.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		switch {
		case st.is(st.success, e.Status()):
			return true, nil
		case st.is(st.failure, e.Status()):
			return false, engine.NewRemoteOperationFailedError(
				fmt.Sprintf("Can not delete %s %s", kind, id), reasonOf(e)).WithResource(id)
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	p.tc.Progress(ctx, fmt.Sprintf("%s %s deleted", kind, id))
	return nil
}

// update issues a single update call.
func (p *poller) update(ctx context.Context, kind, id string, spec engine.Entity) error {
	if id == "" {
		return engine.NewJobError(fmt.Sprintf("%s has no remote id to update", kind), nil)
	}
	err := telemetry.RecordBackendOperation(ctx, p.backend.Type(), "update_"+kind, func(ctx context.Context) error {
		_, err := p.backend.Update(ctx, kind, id, spec)
		return err
	})
	if err != nil && engine.KindOf(err) == "" {
		return engine.NewRemoteOperationFailedError(fmt.Sprintf("Can not update %s %s", kind, id), err).
			WithResource(id).WithOperation("update_" + kind)
	}
	return err
}

// ready performs a single status read.
func (p *poller) ready(ctx context.Context, kind, id string, st statuses) (bool, error) {
	if !st.polled() {
		return true, nil
	}
	e, err := p.backend.Get(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return p.check(kind, id, e, st)
}

func (p *poller) wait(ctx context.Context, kind, id string, first engine.Entity, st statuses) error {
	if done, err := p.check(kind, id, first, st); done || err != nil {
		return err
	}
	return p.tc.Poll(ctx, func(ctx context.Context) (bool, error) {
		e, err := p.backend.Get(ctx, kind, id)
		if err != nil {
			return false, err
		}
		return p.check(kind, id, e, st)
	})
}

func (p *poller) check(kind, id string, e engine.Entity, st statuses) (bool, error) {
	status := e.Status()
	switch {
	case st.is(st.success, status):
		return true, nil
	case st.is(st.failure, status):
		return false, engine.NewRemoteOperationFailedError(
			fmt.Sprintf("%s %s reached status %s", kind, id, status), reasonOf(e)).WithResource(id)
	}
	return false, nil
}

// reasonOf wraps the backend supplied reason, if any.
func reasonOf(e engine.Entity) error {
	if r := e.Reason(); r != "" {
		return fmt.Errorf("%s", r)
	}
	return nil
}

// unwrapReason returns the backend reason carried by a status error.
func unwrapReason(err error) error {
	if ee, ok := err.(*engine.EngineError); ok {
		return ee.Err
	}
	return nil
}
