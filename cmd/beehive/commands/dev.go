package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/beehive-cloud/beehive-resource/pkg/config"
	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
	"github.com/beehive-cloud/beehive-resource/pkg/policy"
	"github.com/beehive-cloud/beehive-resource/pkg/stores"
	"github.com/beehive-cloud/beehive-resource/pkg/tasks"
)

func newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development mode commands",
		Long: `Commands for local development and testing.

Containers declared with the memory driver are served in-process, so jobs
run end to end without a cloud.`,
	}

	cmd.AddCommand(newDevDemoCommand())
	cmd.AddCommand(newDevServeCommand())

	return cmd
}

func newDevDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run sample jobs against in-memory containers",
		Long: `Run a network, a security group and a two-zone instance through their
pipelines, then delete them. Everything lives in memory and nothing is
written to disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Database.Path = stores.MemoryPath
			cfg.Runner.PollInterval = 50 * time.Millisecond
			cfg.Runner.PollTimeout = time.Minute
			cfg.Telemetry.Metrics.Enabled = false
			cfg.Telemetry.Logging.Level = "warn"
			cfg.Containers = []config.ContainerConfig{
				{ID: "openstack-1", Type: orchestrator.TypeOpenStack, Driver: config.DriverMemory},
				{ID: "vsphere-1", Type: orchestrator.TypeVSphere, Driver: config.DriverMemory},
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			return a.demo(ctx)
		},
	}

	return cmd
}

func (a *app) demo(ctx context.Context) error {
	requests := []tasks.Request{
		{
			Kind: "network", Name: "demo-net", ContainerID: "openstack-1",
			Attribute: map[string]any{"cidr": "10.10.0.0/24"}, Tags: []string{"protected"},
		},
		{Kind: "volume", Name: "demo-disk", ContainerID: "vsphere-1", Attribute: map[string]any{"size": 10}},
		{
			Kind: "security_group", Name: "demo-sg", ContainerID: "openstack-1",
			Params: map[string]any{"rules": []any{
				map[string]any{"protocol": "tcp", "port": 22},
				map[string]any{"protocol": "tcp", "port": 443},
			}},
		},
		{
			Kind: "instance", Name: "demo-web",
			Params: map[string]any{"zones": []any{
				map[string]any{"name": "zone-a", "main": true, "orchestrators": []any{
					map[string]any{"type": orchestrator.TypeOpenStack, "id": "openstack-1", "tag": "default"},
				}},
				map[string]any{"name": "zone-b", "orchestrators": []any{
					map[string]any{"type": orchestrator.TypeVSphere, "id": "vsphere-1", "tag": "default"},
				}},
			}},
		},
	}

	var created []int64
	for _, req := range requests {
		id, jobID, err := a.manager.Insert(ctx, user, req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", req.Kind, req.Name, err)
		}
		job, err := a.runner.Wait(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("== %s %s\n", job.Name, req.Name)
		if err := printJobSummary(job); err != nil {
			return err
		}
		if err := a.printResource(ctx, id); err != nil {
			return err
		}
		created = append(created, id)
	}

	// Resources tagged protected are refused by the admission policies.
	if _, err := a.manager.Delete(ctx, user, created[0]); err != nil {
		fmt.Printf("== delete demo-net refused: %v\n", err)
	}
	for _, id := range created[1:] {
		jobID, err := a.manager.Delete(ctx, user, id)
		if err != nil {
			return err
		}
		job, err := a.runner.Wait(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("== %s\n", job.Name)
		if err := printJobSummary(job); err != nil {
			return err
		}
	}

	left, err := a.store.ListResources(ctx, engine.ResourceFilter{})
	if err != nil {
		return err
	}
	fmt.Printf("%d resources left\n", len(left))
	return nil
}

func newDevServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep a worker running with metrics and hot reload",
		Long: `Start the engine from the configuration and keep it running until
interrupted.

The Prometheus endpoint is served when telemetry.metrics.enabled is set.
Changes to the config file reload the runner's poll settings, and changes
under policy.paths reload the admission policies when policy.watch is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.serve(ctx)
			})
		},
	}

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	server, err := a.tel.Metrics.StartMetricsServer()
	if err != nil {
		return err
	}
	if server != nil {
		log.Info().Str("addr", server.Addr).Msg("Serving metrics")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	if a.loader != nil {
		a.loader.Watch(func(cfg *config.Config, err error) {
			if err != nil {
				log.Error().Err(err).Msg("Ignoring invalid config change")
				return
			}
			a.runner.SetPollSettings(cfg.Runner.PollInterval, cfg.Runner.PollTimeout)
			log.Info().
				Dur("poll_interval", cfg.Runner.PollInterval).
				Dur("poll_timeout", cfg.Runner.PollTimeout).
				Msg("Reloaded poll settings")
		})
	}

	if a.cfg.Policy.Watch && len(a.cfg.Policy.Paths) > 0 {
		loader := policy.NewLoader(afero.NewOsFs(), a.tel.Logger.Zerolog())
		if err := loader.Watch(ctx, a.cfg.Policy.Paths, a.policies.Replace); err != nil {
			return err
		}
	}

	if err := a.store.HealthCheck(ctx); err != nil {
		return err
	}

	log.Info().
		Int("workers", a.cfg.Runner.Workers).
		Int("containers", len(a.cfg.Containers)).
		Msg("Worker running, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
