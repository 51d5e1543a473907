package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

func newJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect jobs and their progress",
		Long: `Inspect the jobs recorded in the database.

A job keeps its task records and its progress trail until it is deleted.`,
	}

	cmd.AddCommand(newJobListCommand())
	cmd.AddCommand(newJobStatusCommand())
	cmd.AddCommand(newJobEventsCommand())
	cmd.AddCommand(newJobDeleteCommand())

	return cmd
}

func newJobListCommand() *cobra.Command {
	var (
		filter engine.JobFilter
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Example: `  # List failed jobs
  beehive job list --status failure

  # List the zone jobs of an instance job
  beehive job list --parent 2b9c7e4e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				filter.Status = engine.JobStatus(strings.ToUpper(status))
				if err := filter.Status.Validate(); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				jobs, err := a.store.ListJobs(ctx, filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(jobs)
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.SetBorder(false)
				table.SetHeader([]string{"ID", "NAME", "STATUS", "PROGRESS", "RESOURCE", "USER", "CREATED"})
				for _, j := range jobs {
					table.Append([]string{
						j.ID, j.Name, string(j.Status), fmt.Sprintf("%d%%", j.Progress()),
						strconv.FormatInt(j.ResourceID, 10), j.User, j.CreatedAt.Format(time.RFC3339),
					})
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, running, success, failure)")
	cmd.Flags().StringVar(&filter.Name, "name", "", "filter by job name")
	cmd.Flags().StringVar(&filter.ParentID, "parent", "", "filter by parent job")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of jobs")

	return cmd
}

func newJobStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				job, err := a.store.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				tasks, err := a.store.ListTasks(ctx, job.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]any{"job": job, "tasks": tasks})
				}

				if err := printJobSummary(job); err != nil {
					return err
				}
				fmt.Println()

				table := tablewriter.NewWriter(os.Stdout)
				table.SetBorder(false)
				table.SetHeader([]string{"STAGE", "TASK", "STATUS", "ERROR"})
				for _, t := range tasks {
					table.Append([]string{strconv.Itoa(t.Stage), t.Name, string(t.Status), t.Error})
				}
				table.Render()
				return nil
			})
		},
	}

	return cmd
}

func newJobEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <job-id>",
		Short: "Show the progress trail of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				events, err := a.store.ListEvents(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(events)
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.SetBorder(false)
				table.SetAutoWrapText(false)
				table.SetHeader([]string{"TIME", "LEVEL", "STATUS", "MESSAGE"})
				for _, e := range events {
					table.Append([]string{
						e.Timestamp.Format(time.RFC3339), string(e.Level), e.Status, e.Message,
					})
				}
				table.Render()
				return nil
			})
		},
	}

	return cmd
}

func newJobDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a terminated job and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				job, err := a.store.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				if !job.Status.IsTerminal() {
					return fmt.Errorf("job %s is %s and cannot be deleted", job.ID, job.Status)
				}
				if err := a.store.DeleteJob(ctx, job.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted job %s\n", job.ID)
				return nil
			})
		},
	}

	return cmd
}

func printJobSummary(job *engine.Job) error {
	if jsonOutput {
		return printJSON(job)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.Append([]string{"Job", job.ID})
	table.Append([]string{"Name", job.Name})
	table.Append([]string{"Status", string(job.Status)})
	table.Append([]string{"Progress", fmt.Sprintf("%d%%", job.Progress())})
	if job.ParentID != "" {
		table.Append([]string{"Parent", job.ParentID})
	}
	if len(job.Result) > 0 {
		table.Append([]string{"Result", string(job.Result)})
	}
	if job.Error != "" {
		table.Append([]string{"Error", job.Error})
	}
	table.Append([]string{"Duration", job.Duration().Round(time.Millisecond).String()})
	table.Render()
	return nil
}
