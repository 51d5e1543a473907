package tasks

import (
	"context"
	"fmt"
	"sort"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
)

// Kind is a managed resource kind. Its capabilities are expressed by the
// optional interfaces below.
type Kind interface {
	Name() string
}

// Creatable kinds create their remote entity and return its remote id.
type Creatable interface {
	Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error)
}

// Updatable kinds apply staged changes to their remote entity.
type Updatable interface {
	Update(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) error
}

// Deletable kinds remove their remote entity. Deleting an entity that is
// already gone succeeds.
type Deletable interface {
	Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error
}

// Pollable kinds report whether their remote entity settled after a change.
type Pollable interface {
	Ready(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) (bool, error)
}

// Catalog returns every resource kind with a remote entity, keyed by name.
func Catalog() map[string]Kind {
	kinds := []Kind{
		network{}, router{}, volume{}, stack{}, share{},
		securityGroup{}, server{}, flavor{},
	}
	out := make(map[string]Kind, len(kinds))
	for _, k := range kinds {
		out[k.Name()] = k
	}
	return out
}

// KindNames returns the sorted names of Catalog.
func KindNames() []string {
	names := make([]string, 0)
	for name := range Catalog() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entitySpec builds the remote spec of a resource from its row and the
// "attribute" map of the shared data.
func entitySpec(res *engine.ResourceHandle, data engine.SharedData) engine.Entity {
	spec := engine.Entity{}
	for k, v := range res.GetAttribs() {
		spec[k] = v
	}
	for k, v := range data.Map("attribute") {
		spec[k] = v
	}
	spec["name"] = res.Model.Name
	if res.Model.Desc != "" {
		spec["desc"] = res.Model.Desc
	}
	return spec
}

// ready polls the helper for kinds whose updates settle asynchronously.
func ready(ctx context.Context, h orchestrator.Helper, kind string, res *engine.ResourceHandle) (bool, error) {
	return h.Ready(ctx, kind, res.Model.ExtID)
}

func update(ctx context.Context, h orchestrator.Helper, kind string, res *engine.ResourceHandle, data engine.SharedData) error {
	return h.Update(ctx, kind, res.Model.ExtID, entitySpec(res, data))
}

type network struct{}

func (network) Name() string { return "network" }

func (network) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateNetwork(ctx, entitySpec(res, data))
}

func (k network) Update(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) error {
	return update(ctx, h, k.Name(), res, data)
}

func (network) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteNetwork(ctx, res.Model.ExtID)
}

func (k network) Ready(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) (bool, error) {
	return ready(ctx, h, k.Name(), res)
}

// router updates are not supported remotely; the update pipeline only moves
// the resource state.
type router struct{}

func (router) Name() string { return "router" }

func (router) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateRouter(ctx, entitySpec(res, data))
}

func (router) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteRouter(ctx, res.Model.ExtID)
}

type volume struct{}

func (volume) Name() string { return "volume" }

func (volume) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateVolume(ctx, entitySpec(res, data))
}

func (k volume) Update(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) error {
	return update(ctx, h, k.Name(), res, data)
}

func (volume) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteVolume(ctx, res.Model.ExtID)
}

func (k volume) Ready(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) (bool, error) {
	return ready(ctx, h, k.Name(), res)
}

// stack updates are not supported remotely either.
type stack struct{}

func (stack) Name() string { return "stack" }

func (stack) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateStack(ctx, entitySpec(res, data))
}

func (stack) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteStack(ctx, res.Model.ExtID)
}

type share struct{}

func (share) Name() string { return "share" }

func (share) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateShare(ctx, entitySpec(res, data))
}

func (k share) Update(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) error {
	return update(ctx, h, k.Name(), res, data)
}

func (share) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteShare(ctx, res.Model.ExtID)
}

func (k share) Ready(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) (bool, error) {
	return ready(ctx, h, k.Name(), res)
}

// securityGroup creates the group, then one remote rule per entry of the
// "rules" list in the shared data. Rule ids are kept in the attribute blob.
type securityGroup struct{}

func (securityGroup) Name() string { return "security_group" }

func (securityGroup) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	spec := entitySpec(res, data)
	delete(spec, "rules")

	id, err := h.CreateSecurityGroup(ctx, spec)
	if err != nil {
		return "", err
	}

	rules, _ := data["rules"].([]any)
	ruleIDs := make([]any, 0, len(rules))
	for i, r := range rules {
		rule, ok := r.(map[string]any)
		if !ok {
			return id, engine.NewJobError(fmt.Sprintf("rule %d of security group %s is not an object", i, res.Model.Name), nil)
		}
		ruleSpec := engine.Entity{"security_group": id}
		for k, v := range rule {
			ruleSpec[k] = v
		}
		if _, ok := ruleSpec["name"]; !ok {
			ruleSpec["name"] = fmt.Sprintf("%s-rule-%d", res.Model.Name, i)
		}
		ruleID, err := h.CreateRule(ctx, ruleSpec)
		if err != nil {
			return id, err
		}
		ruleIDs = append(ruleIDs, ruleID)
	}
	if len(ruleIDs) > 0 {
		attribs := data.Map("attribute")
		if attribs == nil {
			attribs = map[string]any{}
		}
		attribs["rules"] = ruleIDs
		data["attribute"] = attribs
	}
	return id, nil
}

func (securityGroup) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteSecurityGroup(ctx, res.Model.ExtID)
}

// server is the zone level twin of a provider instance.
type server struct{}

func (server) Name() string { return "server" }

func (server) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateServer(ctx, entitySpec(res, data))
}

func (server) Delete(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle) error {
	return h.DeleteServer(ctx, res.Model.ExtID)
}

// flavor has no remote delete; removing a flavor resource only drops the row.
type flavor struct{}

func (flavor) Name() string { return "flavor" }

func (flavor) Create(ctx context.Context, h orchestrator.Helper, res *engine.ResourceHandle, data engine.SharedData) (string, error) {
	return h.CreateFlavor(ctx, entitySpec(res, data))
}
