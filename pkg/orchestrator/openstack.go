package orchestrator

import (
	"context"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// OpenStack entity statuses.
var (
	osActive = statuses{success: []string{"ACTIVE"}, failure: []string{"ERROR"}}
	osVolume = statuses{success: []string{"available", "in-use"}, failure: []string{"error"}}
	osShare  = statuses{success: []string{"available"}, failure: []string{"error"}}

	osStackCreate = statuses{success: []string{"CREATE_COMPLETE"}, failure: []string{"CREATE_FAILED"}}
	osStackDelete = statuses{success: []string{"DELETE_COMPLETE"}, failure: []string{"DELETE_FAILED"}}
	osVolumeGone  = statuses{success: []string{"deleted"}, failure: []string{"error_deleting"}}
	osShareGone   = statuses{success: []string{"deleted"}, failure: []string{"error_deleting"}}
	osServerGone  = statuses{success: []string{"DELETED"}, failure: []string{"ERROR"}}
	osNetworkGone = statuses{success: []string{"DELETED"}, failure: []string{"ERROR"}}
	osImmediate   = statuses{}
)

// OpenStackHelper drives a Nova/Neutron/Cinder/Heat/Manila style backend.
type OpenStackHelper struct {
	poller
}

// NewOpenStackHelper binds an OpenStack helper to a connected backend.
func NewOpenStackHelper(tc *engine.TaskContext, backend engine.BackendHandle) Helper {
	return &OpenStackHelper{poller{tc: tc, backend: backend}}
}

func (h *OpenStackHelper) CreateNetwork(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "network", spec, osActive)
}

func (h *OpenStackHelper) DeleteNetwork(ctx context.Context, extID string) error {
	return h.remove(ctx, "network", extID, osNetworkGone)
}

func (h *OpenStackHelper) CreateRouter(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "router", spec, osActive)
}

func (h *OpenStackHelper) DeleteRouter(ctx context.Context, extID string) error {
	return h.remove(ctx, "router", extID, osNetworkGone)
}

func (h *OpenStackHelper) CreateServer(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "server", spec, osActive)
}

func (h *OpenStackHelper) DeleteServer(ctx context.Context, extID string) error {
	return h.remove(ctx, "server", extID, osServerGone)
}

func (h *OpenStackHelper) CreateVolume(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "volume", spec, osVolume)
}

func (h *OpenStackHelper) DeleteVolume(ctx context.Context, extID string) error {
	return h.remove(ctx, "volume", extID, osVolumeGone)
}

// CreateFlavor registers a flavor. Flavors carry no status.
func (h *OpenStackHelper) CreateFlavor(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "flavor", spec, osImmediate)
}

// CreateRule adds a security group rule. Rules carry no status.
func (h *OpenStackHelper) CreateRule(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "rule", spec, osImmediate)
}

func (h *OpenStackHelper) CreateSecurityGroup(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "security_group", spec, osImmediate)
}

func (h *OpenStackHelper) DeleteSecurityGroup(ctx context.Context, extID string) error {
	return h.remove(ctx, "security_group", extID, osNetworkGone)
}

func (h *OpenStackHelper) CreateStack(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "stack", spec, osStackCreate)
}

func (h *OpenStackHelper) DeleteStack(ctx context.Context, extID string) error {
	return h.remove(ctx, "stack", extID, osStackDelete)
}

func (h *OpenStackHelper) CreateShare(ctx context.Context, spec engine.Entity) (string, error) {
	return h.create(ctx, "share", spec, osShare)
}

func (h *OpenStackHelper) DeleteShare(ctx context.Context, extID string) error {
	return h.remove(ctx, "share", extID, osShareGone)
}

func (h *OpenStackHelper) Update(ctx context.Context, kind, extID string, spec engine.Entity) error {
	return h.update(ctx, kind, extID, spec)
}

func (h *OpenStackHelper) Ready(ctx context.Context, kind, extID string) (bool, error) {
	return h.ready(ctx, kind, extID, openStackStatuses(kind))
}

func openStackStatuses(kind string) statuses {
	switch kind {
	case "network", "router", "server":
		return osActive
	case "volume":
		return osVolume
	case "share":
		return osShare
	case "stack":
		return statuses{success: []string{"UPDATE_COMPLETE", "CREATE_COMPLETE"}, failure: []string{"UPDATE_FAILED"}}
	}
	return osImmediate
}
