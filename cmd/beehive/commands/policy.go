package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/beehive-cloud/beehive-resource/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and test admission policies",
		Long: `Admission policies are Rego modules evaluated before a job is submitted.

Built-in policies protect resources tagged "protected", require instance
zones to name exactly one main zone and check resource names. Further
policies are loaded from the paths listed under policy.paths.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCheckCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				policies := a.policies.ListPolicies()
				if jsonOutput {
					return printJSON(policies)
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.SetBorder(false)
				table.SetHeader([]string{"NAME", "SEVERITY", "ENABLED", "SOURCE", "DESCRIPTION"})
				for _, p := range policies {
					source := p.Source
					if source == "" {
						source = "built-in"
					}
					table.Append([]string{p.Name, string(p.Severity), strconv.FormatBool(p.Enabled), source, p.Description})
				}
				table.Render()
				return nil
			})
		},
	}

	return cmd
}

func newPolicyCheckCommand() *cobra.Command {
	var input policy.Input

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the policies against an operation",
		Example: `  # Would creating this network be admitted?
  beehive policy check --operation insert --kind network --name Net_1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			input.User = user
			input.Params = map[string]any{"name": name}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				decision, err := a.policies.Evaluate(ctx, input)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(decision)
				}
				for _, w := range decision.Warnings {
					fmt.Printf("warning: %s\n", w)
				}
				for _, v := range decision.Violations {
					fmt.Printf("%s: %s: %s\n", v.Severity, v.Policy, v.Message)
				}
				if !decision.Allowed {
					return fmt.Errorf("%s %s would be denied", input.Operation, input.Kind)
				}
				fmt.Printf("%s %s admitted\n", strings.ToLower(input.Operation), input.Kind)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.Operation, "operation", "insert", "operation (insert, update, delete)")
	cmd.Flags().StringVar(&input.Kind, "kind", "", "resource kind")
	cmd.Flags().StringVar(&input.ObjID, "objid", "", "permission path of the owner")
	cmd.Flags().String("name", "", "resource name")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}
