package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Persistent flags shared by every subcommand.
var (
	configPath string
	verbose    bool
	jsonOutput bool
	user       string
)

// Execute runs the CLI until the command returns or ctx is cancelled.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beehive",
		Short: "beehive - multi-cloud resource provisioning engine",
		Long: `beehive drives infrastructure resources on OpenStack and vSphere containers
through job pipelines.

Every operation on a resource is a job: a pipeline of tasks that moves the
resource through its lifecycle states, talks to the remote platform and
polls it until the entity settles. Jobs, tasks and resources are recorded
in a SQLite database.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "admin", "acting user recorded on jobs")

	rootCmd.AddCommand(
		newResourceCommand(),
		newJobCommand(),
		newMigrateCommand(),
		newConfigCommand(),
		newPolicyCommand(),
		newDevCommand(),
	)

	return rootCmd
}
