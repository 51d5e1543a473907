package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Provider level task keys.
const (
	CreateZoneInstances = "instance.create_zone_instances"
	DeleteZoneInstances = "instance.delete_zone_instances"
)

// ZoneLinkType is the link type from a provider instance to its zone twins.
const ZoneLinkType = "relation.zone"

// Zone is one availability zone a provider instance is placed in.
type Zone struct {
	Name          string                `json:"name" validate:"required"`
	Main          bool                  `json:"main"`
	Orchestrators []engine.Orchestrator `json:"orchestrators" validate:"required,min=1,dive"`
}

var zoneValidator = validator.New()

// parseZones decodes the "zones" list of the shared data.
func parseZones(data engine.SharedData) ([]Zone, error) {
	raw, err := json.Marshal(data["zones"])
	if err != nil {
		return nil, engine.NewJobError("zones are not serializable", err)
	}
	var zones []Zone
	if err := json.Unmarshal(raw, &zones); err != nil {
		return nil, engine.NewJobError("zones must be a list of zone objects", err)
	}
	if len(zones) == 0 {
		return nil, engine.NewJobError("at least one zone is required", nil)
	}
	for i := range zones {
		if err := zoneValidator.Struct(zones[i]); err != nil {
			return nil, engine.NewJobError(fmt.Sprintf("zone %d is invalid", i), err)
		}
	}
	return zones, nil
}

// createZoneInstances creates one zone server per zone, submits its insert
// job and waits for every one of them. The first zone failure fails the
// task once all zone jobs have terminated.
func createZoneInstances(ctx context.Context, tc *engine.TaskContext) (any, error) {
	data, parent, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	zones, err := parseZones(data)
	if err != nil {
		return nil, err
	}

	jobs := make([]string, 0, len(zones))
	names := make([]string, 0, len(zones))
	for _, zone := range zones {
		orch := zone.Orchestrators[0]
		child, err := tc.CreateResource(ctx, &engine.Resource{
			Kind:        "server",
			Name:        fmt.Sprintf("%s-%s", parent.Model.Name, zone.Name),
			Desc:        fmt.Sprintf("zone instance of %s in %s", parent.Model.Name, zone.Name),
			ContainerID: orch.ID,
			ParentID:    parent.ID(),
			Attribute: map[string]any{
				"zone":         zone.Name,
				"main":         zone.Main,
				"orchestrator": orch.Type,
			},
		})
		if err != nil {
			return nil, err
		}
		if _, err := parent.AddLink(ctx, "zone-instance-"+zone.Name, ZoneLinkType, child.ID(), map[string]any{"main": zone.Main}); err != nil {
			return nil, err
		}

		params := engine.SharedData{
			"id":        child.ID(),
			"name":      child.Model.Name,
			"main":      zone.Main,
			"attribute": data.Map("attribute"),
		}
		if project, ok := orch.Config["project"]; ok {
			params["project"] = project
		}
		if tag := orch.Tag; tag != "" {
			params["tags"] = []string{tag}
		}
		jobID, err := tc.Submit(ctx, "server.insert", params)
		if err != nil {
			return nil, err
		}
		tc.Progress(ctx, fmt.Sprintf("zone %s instance submitted as job %s", zone.Name, jobID))
		jobs = append(jobs, jobID)
		names = append(names, zone.Name)
	}

	if err := waitAll(ctx, tc, jobs, names); err != nil {
		return nil, err
	}
	return parent.ID(), nil
}

// deleteZoneInstances submits a delete job for every zone twin of the
// provider instance and waits for them.
func deleteZoneInstances(ctx context.Context, tc *engine.TaskContext) (any, error) {
	_, parent, err := loadResource(ctx, tc)
	if err != nil {
		return nil, err
	}
	children, err := tc.ListResources(ctx, engine.ResourceFilter{ParentID: parent.ID()})
	if err != nil {
		return nil, err
	}

	jobs := make([]string, 0, len(children))
	names := make([]string, 0, len(children))
	for _, child := range children {
		jobID, err := tc.Submit(ctx, child.Model.Kind+".delete", engine.SharedData{"id": child.ID()})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, jobID)
		names = append(names, child.Model.Name)
	}

	if err := waitAll(ctx, tc, jobs, names); err != nil {
		return nil, err
	}
	tc.Progress(ctx, fmt.Sprintf("%d zone instances of %s removed", len(children), parent.Model.Name))
	return parent.ID(), nil
}

// waitAll waits for every nested job and returns the first failure.
func waitAll(ctx context.Context, tc *engine.TaskContext, jobs, names []string) error {
	var first error
	for i, jobID := range jobs {
		if _, err := tc.WaitForJobComplete(ctx, jobID); err != nil {
			tc.Update(ctx, "FAILURE", fmt.Sprintf("zone job %s for %s failed", jobID, names[i]))
			if first == nil {
				first = err
			}
			continue
		}
		tc.Progress(ctx, fmt.Sprintf("zone job %s for %s completed", jobID, names[i]))
	}
	return first
}
