// Package orchestrator maps backend types to the helpers implementing their
// primitive operations. Provider level tasks resolve a helper per zone and
// call the same method names whatever the backend, so adding a backend means
// adding one helper and one registration.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Registered backend types.
const (
	TypeOpenStack = "openstack"
	TypeVSphere   = "vsphere"
)

// Helper realizes entities on one backend container. Create methods return
// the remote id once the entity reached a terminal success status. Delete
// methods treat an entity that is already gone as deleted.
type Helper interface {
	CreateNetwork(ctx context.Context, spec engine.Entity) (string, error)
	DeleteNetwork(ctx context.Context, extID string) error
	CreateRouter(ctx context.Context, spec engine.Entity) (string, error)
	DeleteRouter(ctx context.Context, extID string) error
	CreateServer(ctx context.Context, spec engine.Entity) (string, error)
	DeleteServer(ctx context.Context, extID string) error
	CreateVolume(ctx context.Context, spec engine.Entity) (string, error)
	DeleteVolume(ctx context.Context, extID string) error
	CreateFlavor(ctx context.Context, spec engine.Entity) (string, error)
	CreateRule(ctx context.Context, spec engine.Entity) (string, error)
	CreateSecurityGroup(ctx context.Context, spec engine.Entity) (string, error)
	DeleteSecurityGroup(ctx context.Context, extID string) error
	CreateStack(ctx context.Context, spec engine.Entity) (string, error)
	DeleteStack(ctx context.Context, extID string) error
	CreateShare(ctx context.Context, spec engine.Entity) (string, error)
	DeleteShare(ctx context.Context, extID string) error

	// Update applies spec to an existing entity of kind.
	Update(ctx context.Context, kind, extID string, spec engine.Entity) error

	// Ready reports whether an existing entity of kind settled after an
	// update. A terminal error status is returned as RemoteOperationFailed.
	Ready(ctx context.Context, kind, extID string) (bool, error)
}

// Constructor binds a helper to a connected backend for one task.
type Constructor func(tc *engine.TaskContext, backend engine.BackendHandle) Helper

// Dispatch is the orchestrator dispatch table.
type Dispatch struct {
	mu      sync.RWMutex
	helpers map[string]Constructor
}

// NewDispatch creates a table holding the openstack and vsphere helpers.
func NewDispatch() *Dispatch {
	d := &Dispatch{helpers: make(map[string]Constructor)}
	d.helpers[TypeOpenStack] = NewOpenStackHelper
	d.helpers[TypeVSphere] = NewVSphereHelper
	return d
}

// Register adds or replaces the helper of a backend type.
func (d *Dispatch) Register(typ string, c Constructor) error {
	if typ == "" {
		return fmt.Errorf("orchestrator type is required")
	}
	if c == nil {
		return fmt.Errorf("orchestrator %s: constructor is nil", typ)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.helpers[typ] = c
	return nil
}

// Get returns the helper constructor of a backend type. Unknown types fail
// with a JobError naming the type.
func (d *Dispatch) Get(typ string) (Constructor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.helpers[typ]
	if !ok {
		return nil, engine.NewJobError(fmt.Sprintf("orchestrator type %s is not supported", typ), nil).
			WithResource(typ)
	}
	return c, nil
}

// Types returns the registered backend types, sorted.
func (d *Dispatch) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.helpers))
	for t := range d.helpers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// For returns a helper bound to an already connected backend.
func (d *Dispatch) For(tc *engine.TaskContext, backend engine.BackendHandle) (Helper, error) {
	c, err := d.Get(backend.Type())
	if err != nil {
		return nil, err
	}
	return c(tc, backend), nil
}

// Connect opens a session to the orchestrator's container and returns its
// helper. The project id is read from the "project" config key.
func (d *Dispatch) Connect(ctx context.Context, tc *engine.TaskContext, orch engine.Orchestrator) (Helper, error) {
	c, err := d.Get(orch.Type)
	if err != nil {
		return nil, err
	}
	project, _ := orch.Config["project"].(string)
	backend, err := tc.GetContainer(ctx, orch.ID, project)
	if err != nil {
		return nil, err
	}
	return c(tc, backend), nil
}

// SettledStatus returns the status a healthy entity of kind reports on a
// backend of type typ, together with the kind name the backend files it
// under. ok is false for kinds that are never polled.
func SettledStatus(typ, kind string) (backendKind, status string, ok bool) {
	switch typ {
	case TypeOpenStack:
		switch kind {
		case "network", "router", "server":
			return kind, osActive.success[0], true
		case "volume":
			return kind, osVolume.success[0], true
		case "share":
			return kind, osShare.success[0], true
		case "stack":
			return kind, osStackCreate.success[0], true
		}
	case TypeVSphere:
		switch kind {
		case "network", "router", "server", "volume":
			return VSphereKind(kind), vsTask.success[0], true
		}
	}
	return "", "", false
}
