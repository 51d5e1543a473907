package tasks

import (
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
)

// Job name suffixes.
const (
	Insert = "insert"
	Update = "update"
	Delete = "delete"
)

// JobName returns the registered job name of an operation on kind, e.g.
// "network.insert".
func JobName(kind, op string) string {
	return kind + "." + op
}

// insertRules validate the params of every insert job.
var insertRules = map[string]any{
	"id":   "required",
	"name": "omitempty,min=1,max=255",
}

// idRules validate the params of update and delete jobs.
var idRules = map[string]any{
	"id": "required",
}

// Register adds the generic steps, the entity tasks of every catalog kind,
// the provider instance tasks and all job definitions to the runner.
func Register(runner *engine.Runner, dispatch *orchestrator.Dispatch) error {
	reg := runner.Tasks()

	generic := map[string]engine.TaskFunc{
		CreateResourcePre:   createResourcePre,
		CreateResourcePost:  createResourcePost,
		UpdateResourcePre:   updateResourcePre,
		UpdateResourcePost:  updateResourcePost,
		ExpungeResourcePre:  expungeResourcePre,
		ExpungeResourcePost: expungeResourcePost,
		CreateZoneInstances: createZoneInstances,
		DeleteZoneInstances: deleteZoneInstances,
	}
	for key, fn := range generic {
		if err := reg.Register(key, fn); err != nil {
			return err
		}
	}

	for _, name := range KindNames() {
		et := entityTasks{kind: Catalog()[name], dispatch: dispatch}
		for action, fn := range map[string]engine.TaskFunc{
			createEntity: et.create,
			updateEntity: et.update,
			deleteEntity: et.remove,
		} {
			if err := reg.Register(EntityTaskKey(name, action), fn); err != nil {
				return err
			}
		}
		for _, def := range Definitions(name) {
			if err := runner.Jobs().Register(def); err != nil {
				return err
			}
		}
	}

	for _, def := range instanceDefinitions() {
		if err := runner.Jobs().Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the insert, update and delete jobs of a catalog kind.
func Definitions(kind string) []engine.JobDefinition {
	return []engine.JobDefinition{
		{
			Name:        JobName(kind, Insert),
			EntityClass: kind,
			Operation:   engine.OperationInsert,
			Steps: []engine.Step{
				engine.Run(CreateResourcePre),
				engine.Run(EntityTaskKey(kind, createEntity)),
				engine.Run(CreateResourcePost),
			},
			Rules: insertRules,
		},
		{
			Name:        JobName(kind, Update),
			EntityClass: kind,
			Operation:   engine.OperationUpdate,
			Steps: []engine.Step{
				engine.Run(UpdateResourcePre),
				engine.Run(EntityTaskKey(kind, updateEntity)),
				engine.Run(UpdateResourcePost),
			},
			Rules: idRules,
		},
		{
			Name:        JobName(kind, Delete),
			EntityClass: kind,
			Operation:   engine.OperationDelete,
			Steps: []engine.Step{
				engine.Run(ExpungeResourcePre),
				engine.Run(EntityTaskKey(kind, deleteEntity)),
				engine.Run(ExpungeResourcePost),
			},
			Rules: idRules,
		},
	}
}

func instanceDefinitions() []engine.JobDefinition {
	return []engine.JobDefinition{
		{
			Name:        JobName("instance", Insert),
			EntityClass: "instance",
			Operation:   engine.OperationInsert,
			Steps: []engine.Step{
				engine.Run(CreateResourcePre),
				engine.Run(CreateZoneInstances),
				engine.Run(CreateResourcePost),
			},
			Rules: map[string]any{
				"id":    "required",
				"zones": "required",
			},
		},
		{
			Name:        JobName("instance", Delete),
			EntityClass: "instance",
			Operation:   engine.OperationDelete,
			Steps: []engine.Step{
				engine.Run(ExpungeResourcePre),
				engine.Run(DeleteZoneInstances),
				engine.Run(ExpungeResourcePost),
			},
			Rules: idRules,
		},
	}
}

// IsNoOpUpdate reports whether the update pipeline of kind only moves the
// resource state, without a remote update.
func IsNoOpUpdate(kind string) bool {
	k, ok := Catalog()[kind]
	if !ok {
		return false
	}
	_, updatable := k.(Updatable)
	return !updatable
}

// Kinds returns every kind with registered jobs, including the provider
// instance kind.
func Kinds() []string {
	return append(KindNames(), "instance")
}

func validateKind(kind string) error {
	for _, k := range Kinds() {
		if k == kind {
			return nil
		}
	}
	return engine.NewJobError(fmt.Sprintf("resource kind %s is not supported", kind), nil)
}
