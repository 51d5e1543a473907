package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/beehive-cloud/beehive-resource/pkg/config"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect configuration",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Example: `  # Write ./beehive.yaml
  beehive config init

  # Overwrite an existing file
  beehive config init /etc/beehive/beehive.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFilename + "." + config.DefaultFileExtension
			if len(args) == 1 {
				path = args[0]
			}

			cfg := config.Default()
			cfg.Containers = []config.ContainerConfig{
				{ID: "openstack-1", Type: orchestrator.TypeOpenStack, Driver: config.DriverMemory},
				{ID: "vsphere-1", Type: orchestrator.TypeVSphere, Driver: config.DriverMemory},
			}
			if err := config.Write(afero.NewOsFs(), path, cfg, force); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and BEEHIVE_*
environment overrides are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cfg)
			}
			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(raw))
			return nil
		},
	}

	return cmd
}
