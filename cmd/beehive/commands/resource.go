package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/tasks"
)

func newResourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"res"},
		Short:   "Create, update, delete and inspect resources",
		Long: `Manage resources tracked by beehive.

Create, update and delete submit a job and wait for it to terminate. The
resource row records the lifecycle state the job left it in.

Kinds: ` + strings.Join(tasks.Kinds(), ", "),
	}

	cmd.AddCommand(newResourceCreateCommand())
	cmd.AddCommand(newResourceUpdateCommand())
	cmd.AddCommand(newResourceDeleteCommand())
	cmd.AddCommand(newResourceGetCommand())
	cmd.AddCommand(newResourceListCommand())

	return cmd
}

func newResourceCreateCommand() *cobra.Command {
	var (
		req        tasks.Request
		attrs      map[string]string
		paramsFile string
	)

	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a resource",
		Long: `Create a resource row and run its insert job.

Extra pipeline parameters, such as the zones of an instance or the rules
of a security group, are read from a YAML file.`,
		Example: `  # Create a network on an OpenStack container
  beehive resource create network --name net1 --container os-1 --attr cidr=10.0.0.0/24

  # Create an instance across zones
  beehive resource create instance --name web --params zones.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Kind = args[0]
			if len(attrs) > 0 {
				req.Attribute = make(map[string]any, len(attrs))
				for k, v := range attrs {
					req.Attribute[k] = v
				}
			}
			if paramsFile != "" {
				params, err := readParams(paramsFile)
				if err != nil {
					return err
				}
				req.Params = params
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				id, jobID, err := a.manager.Insert(ctx, user, req)
				if err != nil {
					return err
				}
				log.Info().Int64("resource_id", id).Str("job_id", jobID).Msgf("Creating %s %s", req.Kind, req.Name)
				return a.finish(ctx, jobID, id)
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "resource name")
	cmd.Flags().StringVar(&req.Desc, "desc", "", "resource description")
	cmd.Flags().StringVar(&req.ContainerID, "container", "", "container the resource lives in")
	cmd.Flags().StringVar(&req.ObjID, "objid", "", "permission path of the owner")
	cmd.Flags().Int64Var(&req.ParentID, "parent", 0, "parent resource id")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "attribute key=value")
	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "YAML file with extra pipeline parameters")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newResourceUpdateCommand() *cobra.Command {
	var (
		name  string
		desc  string
		attrs map[string]string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a resource",
		Example: `  # Rename a volume
  beehive resource update 12 --name data-2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fields := map[string]any{}
			if cmd.Flags().Changed("name") {
				fields["name"] = name
			}
			if cmd.Flags().Changed("desc") {
				fields["desc"] = desc
			}
			if len(attrs) > 0 {
				attribute := make(map[string]any, len(attrs))
				for k, v := range attrs {
					attribute[k] = v
				}
				fields["attribute"] = attribute
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				jobID, err := a.manager.Update(ctx, user, id, fields)
				if err != nil {
					return err
				}
				return a.finish(ctx, jobID, id)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&desc, "desc", "", "new description")
	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "attribute key=value")

	return cmd
}

func newResourceDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a resource",
		Long: `Delete the remote entity of a resource and expunge its row.

A resource that never reached its remote platform is expunged without
contacting it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				jobID, err := a.manager.Delete(ctx, user, id)
				if err != nil {
					return err
				}
				job, err := a.runner.Wait(ctx, jobID)
				if err != nil {
					return err
				}
				return printJobSummary(job)
			})
		},
	}

	return cmd
}

func newResourceGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a resource and its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.printResource(ctx, id)
			})
		},
	}

	return cmd
}

func newResourceListCommand() *cobra.Command {
	var filter engine.ResourceFilter
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		Example: `  # List networks in ERROR
  beehive resource list --kind network --state ERROR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "" {
				filter.State = engine.ResourceState(strings.ToUpper(state))
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				rows, err := a.store.ListResources(ctx, filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(rows)
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.SetBorder(false)
				table.SetHeader([]string{"ID", "KIND", "NAME", "CONTAINER", "EXT ID", "STATE", "PARENT"})
				for _, r := range rows {
					parent := ""
					if r.ParentID != 0 {
						parent = strconv.FormatInt(r.ParentID, 10)
					}
					table.Append([]string{
						strconv.FormatInt(r.ID, 10), r.Kind, r.Name, r.ContainerID, r.ExtID, string(r.State), parent,
					})
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&filter.Tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&filter.ContainerID, "container", "", "filter by container")
	cmd.Flags().Int64Var(&filter.ParentID, "parent", 0, "filter by parent resource")
	cmd.Flags().StringVar(&state, "state", "", "filter by state")

	return cmd
}

// finish waits for jobID and prints the resource it acted on.
func (a *app) finish(ctx context.Context, jobID string, id int64) error {
	job, err := a.runner.Wait(ctx, jobID)
	if err != nil {
		return err
	}
	if err := a.printResource(ctx, id); err != nil {
		return err
	}
	if job.Status == engine.JobStatusFailure {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

func (a *app) printResource(ctx context.Context, id int64) error {
	res, err := a.store.GetResource(ctx, id)
	if err != nil {
		return err
	}
	links, err := a.store.ListLinks(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{"resource": res, "links": links})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.Append([]string{"ID", strconv.FormatInt(res.ID, 10)})
	table.Append([]string{"Kind", res.Kind})
	table.Append([]string{"Name", res.Name})
	table.Append([]string{"Container", res.ContainerID})
	table.Append([]string{"Ext ID", res.ExtID})
	table.Append([]string{"State", string(res.State)})
	if res.Reason != "" {
		table.Append([]string{"Reason", res.Reason})
	}
	table.Append([]string{"Active", strconv.FormatBool(res.Active)})
	table.Append([]string{"Tags", strings.Join(res.Tags, ", ")})
	for _, l := range links {
		table.Append([]string{"Link", fmt.Sprintf("%s (%s) -> %d", l.Name, l.Type, l.EndResourceID)})
	}
	table.Render()
	return nil
}

func readParams(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	params := map[string]any{}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params file %s: %w", path, err)
	}
	return params, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid resource id %q", s)
	}
	return id, nil
}
