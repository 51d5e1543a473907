package tasks

import (
	"context"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
)

// Entity task key suffixes.
const (
	createEntity = "create_entity"
	updateEntity = "update_entity"
	deleteEntity = "delete_entity"
)

// EntityTaskKey returns the registry key of an entity task, e.g.
// "network.create_entity".
func EntityTaskKey(kind, action string) string {
	return kind + "." + action
}

// entityTasks builds the entity tasks of one kind.
type entityTasks struct {
	kind     Kind
	dispatch *orchestrator.Dispatch
}

// helper connects to the container of the resource and resolves its helper.
func (e entityTasks) helper(ctx context.Context, tc *engine.TaskContext, res *engine.ResourceHandle, data engine.SharedData) (orchestrator.Helper, error) {
	if res.Model.ContainerID == "" {
		return nil, engine.NewJobError(fmt.Sprintf("%s %d has no container", e.kind.Name(), res.ID()), nil)
	}
	backend, err := tc.GetContainer(ctx, res.Model.ContainerID, data.String("project"))
	if err != nil {
		return nil, err
	}
	return e.dispatch.For(tc, backend)
}

// create realizes the remote entity and records its id in the shared data
// and on the resource row.
func (e entityTasks) create(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	c, ok := e.kind.(Creatable)
	if !ok {
		return nil, engine.NewJobError(fmt.Sprintf("%s cannot be created", e.kind.Name()), nil)
	}
	h, err := e.helper(ctx, tc, res, data)
	if err != nil {
		return nil, err
	}

	extID, err := c.Create(ctx, h, res, data)
	if err != nil {
		return nil, err
	}

	data["ext_id"] = extID
	if err := tc.SetSharedData(ctx, data); err != nil {
		return nil, err
	}
	if err := res.UpdateInternal(ctx, map[string]any{"ext_id": extID}); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s created with remote id %s", e.kind.Name(), res.Model.Name, extID))
	return extID, nil
}

// update applies the staged resource to the remote entity and, for pollable
// kinds, waits for it to settle. Kinds without remote update only log.
func (e entityTasks) update(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	u, ok := e.kind.(Updatable)
	if !ok {
		tc.Progress(ctx, fmt.Sprintf("%s %s has no remote update, nothing to do", e.kind.Name(), res.Model.Name))
		return nil, nil
	}
	h, err := e.helper(ctx, tc, res, data)
	if err != nil {
		return nil, err
	}

	if err := u.Update(ctx, h, res, data); err != nil {
		return nil, err
	}
	if p, ok := e.kind.(Pollable); ok {
		err := tc.Poll(ctx, func(ctx context.Context) (bool, error) {
			return p.Ready(ctx, h, res)
		})
		if err != nil {
			return nil, err
		}
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s updated remotely", e.kind.Name(), res.Model.Name))
	return res.Model.ExtID, nil
}

// remove deletes the remote entity. A resource that never got a remote id
// skips the backend entirely.
func (e entityTasks) remove(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if res.Model.ExtID == "" {
		tc.Progress(ctx, fmt.Sprintf("%s %s has no remote id, skipping remote delete", e.kind.Name(), res.Model.Name))
		return nil, nil
	}
	d, ok := e.kind.(Deletable)
	if !ok {
		tc.Progress(ctx, fmt.Sprintf("%s %s has no remote delete, nothing to do", e.kind.Name(), res.Model.Name))
		return nil, nil
	}
	h, err := e.helper(ctx, tc, res, data)
	if err != nil {
		return nil, err
	}

	if err := d.Delete(ctx, h, res); err != nil && !engine.IsNotFound(err) {
		return nil, err
	}

	data["ext_id"] = ""
	if err := tc.SetSharedData(ctx, data); err != nil {
		return nil, err
	}
	if err := res.UpdateInternal(ctx, map[string]any{"ext_id": ""}); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s deleted remotely", e.kind.Name(), res.Model.Name))
	return nil, nil
}
