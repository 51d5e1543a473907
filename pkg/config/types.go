package config

import (
	"time"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/sharedstate"
	"github.com/beehive-cloud/beehive-resource/pkg/stores"
	"github.com/beehive-cloud/beehive-resource/pkg/telemetry"
)

// Shared state drivers.
const (
	SharedStateMemory = "memory"
	SharedStateRedis  = "redis"
)

// DriverMemory serves a container from an in-process backend.
const DriverMemory = "memory"

// Config is the complete worker configuration.
type Config struct {
	Database    stores.Config     `mapstructure:"database" yaml:"database"`
	SharedState SharedStateConfig `mapstructure:"shared_state" yaml:"shared_state"`
	Runner      RunnerConfig      `mapstructure:"runner" yaml:"runner"`
	Telemetry   telemetry.Config  `mapstructure:"telemetry" yaml:"telemetry"`
	Containers  []ContainerConfig `mapstructure:"containers" yaml:"containers" validate:"dive"`
	Policy      PolicyConfig      `mapstructure:"policy" yaml:"policy"`
}

// SharedStateConfig selects where job shared data lives.
type SharedStateConfig struct {
	Driver string                  `mapstructure:"driver" yaml:"driver" validate:"oneof=memory redis"`
	Redis  sharedstate.RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RunnerConfig configures the job runner.
type RunnerConfig struct {
	// Workers bounds the number of tasks executing at once.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=1"`

	// PollInterval is the pause between two status reads of a remote entity.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`

	// PollTimeout bounds every poll loop. A loop running longer fails with
	// a Timeout error.
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout" validate:"gtfield=PollInterval"`

	// ShutdownTimeout bounds the wait for running jobs on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
}

// Engine converts the section into the runner's own configuration.
func (c RunnerConfig) Engine() engine.RunnerConfig {
	return engine.RunnerConfig{
		Workers:      c.Workers,
		PollInterval: c.PollInterval,
		PollTimeout:  c.PollTimeout,
	}
}

// ContainerConfig declares one orchestrator container.
type ContainerConfig struct {
	ID       string `mapstructure:"id" yaml:"id" validate:"required"`
	Type     string `mapstructure:"type" yaml:"type" validate:"required,oneof=openstack vsphere"`
	Driver   string `mapstructure:"driver" yaml:"driver" validate:"omitempty,oneof=memory"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	Project  string `mapstructure:"project" yaml:"project,omitempty"`
}

// PolicyConfig configures admission policies.
type PolicyConfig struct {
	// Paths lists .rego or .json files and directories loaded on startup.
	Paths []string `mapstructure:"paths" yaml:"paths"`

	// Watch reloads policies when a file under Paths changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`

	// Disabled names policies switched off after loading.
	Disabled []string `mapstructure:"disabled" yaml:"disabled"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Database: stores.Config{
			Path:            "beehive.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SharedState: SharedStateConfig{
			Driver: SharedStateMemory,
			Redis: sharedstate.RedisConfig{
				TTL: sharedstate.DefaultTTL,
			},
		},
		Runner: RunnerConfig{
			Workers:         engine.DefaultWorkers,
			PollInterval:    engine.DefaultPollInterval,
			PollTimeout:     engine.DefaultPollTimeout,
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry:  *telemetry.DefaultConfig(),
		Containers: []ContainerConfig{},
		Policy: PolicyConfig{
			Paths:    []string{},
			Disabled: []string{},
		},
	}
}
