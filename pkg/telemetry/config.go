package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config groups the logging, tracing, metrics and event settings of a process.
type Config struct {
	ServiceName    string `mapstructure:"service_name" yaml:"service_name" validate:"required"`
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version" validate:"required"`
	Environment    string `mapstructure:"environment" yaml:"environment"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	EnableCaller bool `mapstructure:"enable_caller" yaml:"enable_caller"`

	// With sampling on, SamplingInitial messages per second are logged, then
	// one in SamplingThereafter.
	EnableSampling     bool `mapstructure:"enable_sampling" yaml:"enable_sampling"`
	SamplingInitial    int  `mapstructure:"sampling_initial" yaml:"sampling_initial" validate:"gte=0"`
	SamplingThereafter int  `mapstructure:"sampling_thereafter" yaml:"sampling_thereafter" validate:"gte=0"`

	// TimeFormat is rfc3339, unix, unixms or unixmicro.
	TimeFormat string `mapstructure:"time_format" yaml:"time_format" validate:"omitempty,oneof=rfc3339 unix unixms unixmicro"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Exporter string `mapstructure:"exporter" yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP collector address, host:port.
	Endpoint string            `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,hostname_port"`
	Headers  map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Insecure bool              `mapstructure:"insecure" yaml:"insecure"`

	SamplingRate       float64       `mapstructure:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size" yaml:"max_export_batch_size" validate:"gte=0"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout" yaml:"export_timeout" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
	Namespace     string `mapstructure:"namespace" yaml:"namespace"`

	// DefaultHistogramBuckets are latency buckets in seconds.
	DefaultHistogramBuckets []float64 `mapstructure:"histogram_buckets" yaml:"histogram_buckets,omitempty"`
}

// EventsConfig configures the EventPublisher. BufferSize only matters in
// async mode.
type EventsConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	EnableAsync bool `mapstructure:"enable_async" yaml:"enable_async"`
	BufferSize  int  `mapstructure:"buffer_size" yaml:"buffer_size" validate:"gte=0"`
}

func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "beehive-resource",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stdout",
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "beehive",
			DefaultHistogramBuckets: []float64{
				0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800,
			},
		},
		Events: EventsConfig{
			Enabled:     true,
			EnableAsync: true,
			BufferSize:  1000,
		},
	}
}

// TestConfig returns a quiet configuration: no exporters, no metrics server,
// and synchronous event delivery.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "test"
	cfg.Logging.Level = "error"
	cfg.Metrics.Enabled = false
	cfg.Events.EnableAsync = false
	return cfg
}

// Validate checks field rules plus the constraints spanning several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required by the otlp exporter")
	}
	if c.Events.Enabled && c.Events.EnableAsync && c.Events.BufferSize == 0 {
		return fmt.Errorf("event buffer size must be positive in async mode")
	}
	return nil
}
