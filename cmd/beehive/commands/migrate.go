package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beehive-cloud/beehive-resource/pkg/stores"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the embedded schema migrations.

Every other command migrates the database up on startup.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *stores.SQLiteStore) error {
				if err := s.Migrate(ctx); err != nil {
					return err
				}
				return printVersion(s)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *stores.SQLiteStore) error {
				if err := s.MigrateDown(ctx); err != nil {
					return err
				}
				log.Warn().Msg("Schema rolled back, every job and resource row is gone")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *stores.SQLiteStore) error {
				return printVersion(s)
			})
		},
	})

	return cmd
}

// withStore opens the configured database without migrating it.
func withStore(ctx context.Context, fn func(ctx context.Context, s *stores.SQLiteStore) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := stores.NewSQLiteStore(cfg.Database)
	if err != nil {
		return err
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printVersion(s *stores.SQLiteStore) error {
	v, dirty, err := s.Version()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{"version": v, "dirty": dirty})
	}
	fmt.Printf("schema version %d", v)
	if dirty {
		fmt.Print(" (dirty)")
	}
	fmt.Println()
	return nil
}
