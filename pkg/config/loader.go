package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFilename      = "beehive"
	DefaultFileExtension = "yaml"
	DefaultEnvPrefix     = "BEEHIVE"
)

// Loader reads the configuration through an afero filesystem.
type Loader struct {
	fs afero.Fs

	mu sync.Mutex
	v  *viper.Viper
}

// NewLoader creates a loader reading from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load reads filePath over the defaults and applies environment overrides.
// An empty filePath searches the default locations.
func (l *Loader) Load(filePath string) (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}

	if filePath != "" {
		if err := validateFilepath(l.fs, filePath); err != nil {
			return nil, err
		}
		v.SetConfigFile(filePath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", filePath, err)
		}
	} else {
		v.SetConfigName(DefaultFilename)
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("unable to read config file: %w", err)
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.v = v
	l.mu.Unlock()
	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.v == nil {
		return ""
	}
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the reloaded configuration whenever the file
// read by the last Load changes on disk. It does nothing when no file was
// read.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.mu.Lock()
	v := l.v
	l.mu.Unlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(v))
	})
	v.WatchConfig()
}

func (l *Loader) newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(l.fs)
	v.SetConfigType(DefaultFileExtension)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults are loaded as a document so every key is known to viper and
	// can be overridden from the environment.
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field rules and cross-section constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	if cfg.SharedState.Driver == SharedStateRedis && cfg.SharedState.Redis.URL == "" {
		return fmt.Errorf("invalid config: shared_state.redis.url is required by the redis driver")
	}
	return validateContainerDuplication(cfg.Containers)
}

func validateContainerDuplication(containers []ContainerConfig) error {
	seen := make(map[string]int)
	for _, c := range containers {
		seen[c.ID]++
	}
	var duplicates []string
	for _, c := range containers {
		if seen[c.ID] > 1 {
			duplicates = append(duplicates, c.ID)
			seen[c.ID] = 0
		}
	}
	if len(duplicates) > 0 {
		return fmt.Errorf("containers [%s] are duplicate", strings.Join(duplicates, ", "))
	}
	return nil
}

func validateFilepath(fs afero.Fs, filePath string) error {
	f, err := fs.Stat(filePath)
	if err != nil {
		return err
	}
	if !f.Mode().IsRegular() {
		return fmt.Errorf("%s is not a file", filePath)
	}
	return nil
}

func searchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+DefaultFilename))
	}
	return append(paths, filepath.Join("/etc", DefaultFilename))
}

// Write stores cfg as YAML at filePath. An existing file is kept unless
// force is set.
func Write(fs afero.Fs, filePath string, cfg *Config, force bool) error {
	if !force {
		if _, err := fs.Stat(filePath); err == nil {
			return fmt.Errorf("%s already exists", filePath)
		}
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(fs, filePath, raw, 0o644)
}
