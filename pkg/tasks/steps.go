package tasks

import (
	"context"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Generic step keys bracketing every entity task.
const (
	CreateResourcePre   = "create_resource_pre"
	CreateResourcePost  = "create_resource_post"
	UpdateResourcePre   = "update_resource_pre"
	UpdateResourcePost  = "update_resource_post"
	ExpungeResourcePre  = "expunge_resource_pre"
	ExpungeResourcePost = "expunge_resource_post"
)

// stagedFields are the shared data keys update_resource_pre copies onto the
// resource row.
var stagedFields = []string{"name", "desc", "attribute", "ext_id"}

// loadResource returns the shared data and the resource its "id" names.
func loadResource(ctx context.Context, tc *engine.TaskContext) (engine.SharedData, *engine.ResourceHandle, error) {
	data, err := tc.GetSharedData(ctx)
	if err != nil {
		return nil, nil, err
	}
	id, ok := data.Int64("id")
	if !ok || id == 0 {
		return nil, nil, engine.NewJobError(fmt.Sprintf("job %s has no resource id in its shared data", tc.JobName), nil)
	}
	res, err := tc.GetResource(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}
	return data, res, nil
}

// createResourcePre moves the resource to BUILDING and applies the requested
// tags.
func createResourcePre(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := res.UpdateState(ctx, engine.ResourceStateBuilding, ""); err != nil {
		return nil, err
	}
	for _, tag := range data.Strings("tags") {
		if err := res.AddTag(ctx, tag); err != nil {
			return nil, err
		}
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s is building", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}

// createResourcePost activates the resource with the remote id and attribute
// recorded by the entity task.
func createResourcePost(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"active": true}
	if extID := data.String("ext_id"); extID != "" {
		fields["ext_id"] = extID
	}
	if attribs := data.Map("attribute"); attribs != nil {
		fields["attribute"] = attribs
	}
	if err := res.UpdateInternal(ctx, fields); err != nil {
		return nil, err
	}
	if err := res.UpdateState(ctx, engine.ResourceStateActive, ""); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s is active", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}

// updateResourcePre moves the resource to UPDATING and stages the new field
// values present in the shared data.
func updateResourcePre(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := res.UpdateState(ctx, engine.ResourceStateUpdating, ""); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	for _, key := range stagedFields {
		if v, ok := data[key]; ok {
			fields[key] = v
		}
	}
	if len(fields) > 0 {
		if err := res.UpdateInternal(ctx, fields); err != nil {
			return nil, err
		}
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s is updating", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}

func updateResourcePost(ctx context.Context, tc *engine.TaskContext) (any, error) {
	_, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := res.UpdateState(ctx, engine.ResourceStateActive, ""); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s updated", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}

func expungeResourcePre(ctx context.Context, tc *engine.TaskContext) (any, error) {
	_, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := res.UpdateState(ctx, engine.ResourceStateExpunging, ""); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s is expunging", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}

// expungeResourcePost removes the resource row for good.
func expungeResourcePost(ctx context.Context, tc *engine.TaskContext) (any, error) {
	_, res, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := res.ExpungeInternal(ctx); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%s %s expunged", res.Model.Kind, res.Model.Name))
	return res.ID(), nil
}
