package orchestrator

import (
	"context"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// vSphere object types behind the generic entity kinds.
const (
	vsPortGroup = "dvpg"
	vsEdge      = "edge"
	vsVM        = "vm"
	vsDisk      = "disk"
	vsFlavor    = "vm_template"
	vsRule      = "firewall_rule"
	vsSecGroup  = "security_group"
)

var (
	vsTask    = statuses{success: []string{"success"}, failure: []string{"error"}}
	vsRemoved = statuses{success: []string{"removed"}, failure: []string{"error"}}
)

// VSphereHelper drives a vCenter/NSX style backend. Every remote change runs
// as a vCenter task reporting success or error.
type VSphereHelper struct {
	poller
}

// NewVSphereHelper binds a vSphere helper to a connected backend.
func NewVSphereHelper(tc *engine.TaskContext, backend engine.BackendHandle) Helper {
	return &VSphereHelper{poller{tc: tc, backend: backend}}
}

func (h *VSphereHelper) CreateNetwork(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsPortGroup, spec, vsTask)
}

func (h *VSphereHelper) DeleteNetwork(ctx context.Context, extID string) error {
	return h.remove(ctx, vsPortGroup, extID, vsRemoved)
}

func (h *VSphereHelper) CreateRouter(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsEdge, spec, vsTask)
}

func (h *VSphereHelper) DeleteRouter(ctx context.Context, extID string) error {
	return h.remove(ctx, vsEdge, extID, vsRemoved)
}

func (h *VSphereHelper) CreateServer(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsVM, spec, vsTask)
}

func (h *VSphereHelper) DeleteServer(ctx context.Context, extID string) error {
	return h.remove(ctx, vsVM, extID, vsRemoved)
}

func (h *VSphereHelper) CreateVolume(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsDisk, spec, vsTask)
}

func (h *VSphereHelper) DeleteVolume(ctx context.Context, extID string) error {
	return h.remove(ctx, vsDisk, extID, vsRemoved)
}

func (h *VSphereHelper) CreateFlavor(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsFlavor, spec, statuses{})
}

func (h *VSphereHelper) CreateRule(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsRule, spec, statuses{})
}

func (h *VSphereHelper) CreateSecurityGroup(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, vsSecGroup, spec, statuses{})
}

func (h *VSphereHelper) DeleteSecurityGroup(ctx context.Context, extID string) error {
	return h.remove(ctx, vsSecGroup, extID, vsRemoved)
}

func (h *VSphereHelper) CreateStack(ctx context.Context, spec engine.Entity) (string, error) {
	return "", unsupported("stack")
}

func (h *VSphereHelper) DeleteStack(ctx context.Context, extID string) error {
	return unsupported("stack")
}

func (h *VSphereHelper) CreateShare(ctx context.Context, spec engine.Entity) (string, error) {
	return "", unsupported("share")
}

func (h *VSphereHelper) DeleteShare(ctx context.Context, extID string) error {
	return unsupported("share")
}

func (h *VSphereHelper) Update(ctx context.Context, kind, extID string, spec engine.Entity) error {
	if kind == "stack" || kind == "share" {
		return unsupported(kind)
	}
	return h.update(ctx, VSphereKind(kind), extID, spec)
}

func (h *VSphereHelper) Ready(ctx context.Context, kind, extID string) (bool, error) {
	switch kind {
	case "stack", "share":
		return false, unsupported(kind)
	case "network":
		return h.ready(ctx, vsPortGroup, extID, vsTask)
	case "router":
		return h.ready(ctx, vsEdge, extID, vsTask)
	case "server":
		return h.ready(ctx, vsVM, extID, vsTask)
	case "volume":
		return h.ready(ctx, vsDisk, extID, vsTask)
	}
	return true, nil
}

// VSphereKind returns the vSphere object type storing entities of kind.
func VSphereKind(kind string) string {
	switch kind {
	case "network":
		return vsPortGroup
	case "router":
		return vsEdge
	case "server":
		return vsVM
	case "volume":
		return vsDisk
	case "flavor":
		return vsFlavor
	case "rule":
		return vsRule
	}
	return kind
}

func unsupported(kind string) error {
	return engine.NewJobError(fmt.Sprintf("%s is not supported by the vsphere orchestrator", kind), nil).
		WithResource(kind)
}
