package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/policy"
)

// Request describes the desired state of a resource to create.
type Request struct {
	Kind        string         `json:"kind" yaml:"kind" validate:"required"`
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Desc        string         `json:"desc" yaml:"desc"`
	ObjID       string         `json:"objid" yaml:"objid"`
	ContainerID string         `json:"container_id" yaml:"container_id"`
	ParentID    int64          `json:"parent_id" yaml:"parent_id"`
	Attribute   map[string]any `json:"attribute" yaml:"attribute"`
	Tags        []string       `json:"tags" yaml:"tags"`

	// Params are extra shared data keys passed to the pipeline, e.g. the
	// "zones" of a provider instance or the "rules" of a security group.
	Params map[string]any `json:"params" yaml:"params"`
}

// Admitter decides whether a submission may proceed.
type Admitter interface {
	Admit(ctx context.Context, input policy.Input) error
}

// Manager is the caller side of the catalog: it creates resource rows and
// submits the jobs driving them.
type Manager struct {
	runner    *engine.Runner
	resources engine.ResourceStore
	admitter  Admitter
}

// NewManager creates a manager submitting to runner.
func NewManager(runner *engine.Runner, resources engine.ResourceStore) *Manager {
	return &Manager{runner: runner, resources: resources}
}

// UsePolicy makes every submission pass through a.
func (m *Manager) UsePolicy(a Admitter) {
	m.admitter = a
}

func (m *Manager) admit(ctx context.Context, input policy.Input) error {
	if m.admitter == nil {
		return nil
	}
	return m.admitter.Admit(ctx, input)
}

// Insert creates the resource row in PENDING state and submits its insert
// job. It returns the resource id and the job id. When the job is rejected the
// row is removed again.
func (m *Manager) Insert(ctx context.Context, user string, req Request) (int64, string, error) {
	if err := validateKind(req.Kind); err != nil {
		return 0, "", err
	}
	if req.Name == "" {
		return 0, "", engine.NewJobError("resource name is required", nil)
	}
	if req.Kind != "instance" && req.ContainerID == "" {
		return 0, "", engine.NewJobError(fmt.Sprintf("%s %s needs a container", req.Kind, req.Name), nil)
	}

	params := engine.SharedData{}
	for k, v := range req.Params {
		params[k] = v
	}
	params["name"] = req.Name
	if len(req.Tags) > 0 {
		params["tags"] = req.Tags
	}
	if req.Attribute != nil {
		params["attribute"] = req.Attribute
	}
	if err := m.admit(ctx, policy.Input{
		Operation: Insert,
		Kind:      req.Kind,
		User:      user,
		ObjID:     req.ObjID,
		Params:    params,
	}); err != nil {
		return 0, "", err
	}

	res := &engine.Resource{
		Kind:        req.Kind,
		Name:        req.Name,
		Desc:        req.Desc,
		ObjID:       req.ObjID,
		ContainerID: req.ContainerID,
		ParentID:    req.ParentID,
		Attribute:   req.Attribute,
		State:       engine.ResourceStatePending,
	}
	if err := m.resources.CreateResource(ctx, res); err != nil {
		return 0, "", fmt.Errorf("failed to create %s %s: %w", req.Kind, req.Name, err)
	}

	params["id"] = res.ID

	jobID, err := m.runner.Submit(ctx, JobName(req.Kind, Insert), engine.Options{
		User:       user,
		ObjID:      req.ObjID,
		ResourceID: res.ID,
	}, params)
	if err != nil {
		// no job will ever advance the row
		if derr := m.resources.DeleteResource(context.WithoutCancel(ctx), res.ID); derr != nil {
			return 0, "", errors.Join(err, fmt.Errorf("failed to remove pending %s %s: %w", req.Kind, req.Name, derr))
		}
		return 0, "", err
	}
	return res.ID, jobID, nil
}

// Update submits the update job of a resource. Fields are staged by the
// pipeline: name, desc, attribute and ext_id.
func (m *Manager) Update(ctx context.Context, user string, id int64, fields map[string]any) (string, error) {
	return m.submit(ctx, user, id, Update, fields)
}

// Delete submits the delete job of a resource.
func (m *Manager) Delete(ctx context.Context, user string, id int64) (string, error) {
	return m.submit(ctx, user, id, Delete, nil)
}

func (m *Manager) submit(ctx context.Context, user string, id int64, op string, fields map[string]any) (string, error) {
	res, err := m.resources.GetResource(ctx, id)
	if err != nil {
		return "", err
	}
	params := engine.SharedData{}
	for k, v := range fields {
		params[k] = v
	}
	params["id"] = res.ID

	if err := m.admit(ctx, policy.Input{
		Operation: op,
		Kind:      res.Kind,
		User:      user,
		ObjID:     res.ObjID,
		Resource:  res,
		Params:    params,
	}); err != nil {
		return "", err
	}
	return m.runner.Submit(ctx, JobName(res.Kind, op), engine.Options{
		User:       user,
		ObjID:      res.ObjID,
		ResourceID: res.ID,
	}, params)
}
