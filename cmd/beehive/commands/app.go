package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/beehive-cloud/beehive-resource/pkg/backend/memory"
	"github.com/beehive-cloud/beehive-resource/pkg/config"
	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/orchestrator"
	"github.com/beehive-cloud/beehive-resource/pkg/policy"
	"github.com/beehive-cloud/beehive-resource/pkg/sharedstate"
	"github.com/beehive-cloud/beehive-resource/pkg/stores"
	"github.com/beehive-cloud/beehive-resource/pkg/tasks"
	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// app wires the engine from a loaded configuration.
type app struct {
	cfg    *config.Config
	loader *config.Loader

	tel       *telemetry.Telemetry
	store     *stores.SQLiteStore
	shared    engine.SharedStore
	connector *memory.Connector
	dispatch  *orchestrator.Dispatch
	runner    *engine.Runner
	policies  *policy.Engine
	manager   *tasks.Manager

	closers []func() error
}

func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(afero.NewOsFs())
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("Loaded config")
	}
	return cfg, loader, nil
}

// newApp builds every component from cfg. The caller must Close it.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, connector: memory.NewConnector()}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	tel, err := telemetry.NewTelemetry(&a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tel = tel
	a.closers = append(a.closers, func() error { return tel.Shutdown(context.Background()) })

	store, err := stores.Open(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	switch a.cfg.SharedState.Driver {
	case config.SharedStateRedis:
		rs, err := sharedstate.NewRedisStore(a.cfg.SharedState.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			return err
		}
		a.shared = rs
	default:
		a.shared = sharedstate.NewMemoryStore()
	}

	for _, c := range a.cfg.Containers {
		a.connector.Add(newMemoryContainer(c))
	}

	a.dispatch = orchestrator.NewDispatch()

	a.runner, err = engine.NewRunner(a.cfg.Runner.Engine(), engine.Dependencies{
		Shared:    a.shared,
		JobStore:  store,
		Resources: store,
		Connector: a.connector,
		Telemetry: tel,
	})
	if err != nil {
		return err
	}
	if err := tasks.Register(a.runner, a.dispatch); err != nil {
		return err
	}

	a.policies, err = policy.NewEngine(tel.Logger.Zerolog())
	if err != nil {
		return err
	}
	if err := a.loadPolicies(ctx); err != nil {
		return err
	}

	a.manager = tasks.NewManager(a.runner, store)
	a.manager.UsePolicy(a.policies)
	return nil
}

func (a *app) loadPolicies(ctx context.Context) error {
	if len(a.cfg.Policy.Paths) > 0 {
		if err := a.policies.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return err
		}
	}
	for _, name := range a.cfg.Policy.Disabled {
		if err := a.policies.DisablePolicy(name); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for running jobs and releases every component.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.runner != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Runner.ShutdownTimeout)
		errs = append(errs, a.runner.Shutdown(shutdownCtx))
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newMemoryContainer serves a configured container from memory. Entities
// settle on their first status read.
func newMemoryContainer(c config.ContainerConfig) *memory.Backend {
	b := memory.NewBackend(c.Type, c.ID)
	for _, kind := range tasks.KindNames() {
		if backendKind, status, ok := orchestrator.SettledStatus(c.Type, kind); ok {
			b.SetStatus(backendKind, status)
		}
	}
	return b
}

// withApp loads the configuration, builds the app and runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	a.loader = loader
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Shutdown incomplete")
		}
	}()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
