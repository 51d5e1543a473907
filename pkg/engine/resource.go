package engine

import (
	"context"
	"fmt"
	"time"
)

// ResourceHandle wraps a loaded resource with the mutation operations tasks
// are allowed to perform on it.
type ResourceHandle struct {
	// Model is the resource row as last loaded or written.
	Model *Resource

	// Live is the remote entity, populated when loaded with details.
	Live Entity

	tc *TaskContext
}

func newResourceHandle(tc *TaskContext, res *Resource) *ResourceHandle {
	return &ResourceHandle{Model: res, tc: tc}
}

// ID returns the internal id of the resource.
func (h *ResourceHandle) ID() int64 {
	return h.Model.ID
}

// GetAttribs returns the attribute blob of the resource.
func (h *ResourceHandle) GetAttribs() map[string]any {
	if h.Model.Attribute == nil {
		return map[string]any{}
	}
	return h.Model.Attribute
}

// UpdateInternal updates stored fields of the resource. Recognized keys are
// name, desc, attribute, ext_id, active, container_id and parent_id.
func (h *ResourceHandle) UpdateInternal(ctx context.Context, fields map[string]any) error {
	res := h.Model
	for key, value := range fields {
		switch key {
		case "name":
			res.Name = SharedData(fields).String(key)
		case "desc":
			res.Desc = SharedData(fields).String(key)
		case "ext_id":
			res.ExtID = SharedData(fields).String(key)
		case "container_id":
			res.ContainerID = SharedData(fields).String(key)
		case "active":
			res.Active = SharedData(fields).Bool(key)
		case "parent_id":
			id, _ := toInt64(value)
			res.ParentID = id
		case "attribute":
			switch v := value.(type) {
			case nil:
				res.Attribute = nil
			case map[string]any:
				res.Attribute = v
			case SharedData:
				res.Attribute = v
			default:
				return fmt.Errorf("attribute of resource %d must be an object, got %T", res.ID, value)
			}
		default:
			return fmt.Errorf("field %s of resource %d cannot be updated", key, res.ID)
		}
	}
	res.UpdatedAt = time.Now()
	return h.tc.runner.resources.UpdateResource(ctx, res)
}

// UpdateState moves the resource to state, storing reason. Moves not allowed
// by the state machine are rejected with a JobError.
func (h *ResourceHandle) UpdateState(ctx context.Context, state ResourceState, reason string) error {
	res := h.Model
	old := res.State
	if !old.CanTransition(state) {
		return NewJobError(fmt.Sprintf("resource %d cannot move from %s to %s", res.ID, old, state), nil).
			WithResource(fmt.Sprint(res.ID))
	}

	res.State = state
	if state == ResourceStateError {
		res.Reason = reason
	} else {
		res.Reason = ""
	}
	res.UpdatedAt = time.Now()

	if err := h.tc.runner.resources.UpdateResource(ctx, res); err != nil {
		return err
	}

	h.tc.runner.recordStateChange(h.tc.JobID, res, old)
	return nil
}

// AddTag attaches a tag to the resource.
func (h *ResourceHandle) AddTag(ctx context.Context, tag string) error {
	if err := h.tc.runner.resources.AddTag(ctx, h.Model.ID, tag); err != nil {
		return err
	}
	if !h.Model.HasTag(tag) {
		h.Model.Tags = append(h.Model.Tags, tag)
	}
	return nil
}

// AddLink links the resource to another resource.
func (h *ResourceHandle) AddLink(ctx context.Context, name, linkType string, endID int64, attrs map[string]any) (*ResourceLink, error) {
	link := &ResourceLink{
		Name:            name,
		Type:            linkType,
		StartResourceID: h.Model.ID,
		EndResourceID:   endID,
		Attributes:      attrs,
		CreatedAt:       time.Now(),
	}
	if err := h.tc.runner.resources.AddLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// ExpungeInternal permanently removes the resource row.
func (h *ResourceHandle) ExpungeInternal(ctx context.Context) error {
	return h.tc.runner.resources.DeleteResource(ctx, h.Model.ID)
}

func (h *ResourceHandle) loadDetails(ctx context.Context) error {
	res := h.Model
	if res.ExtID == "" || res.ContainerID == "" {
		return nil
	}
	backend, err := h.tc.GetContainer(ctx, res.ContainerID, "")
	if err != nil {
		return err
	}
	live, err := backend.Get(ctx, res.Kind, res.ExtID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	h.Live = live
	return nil
}
