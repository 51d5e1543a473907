package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
)

const workerConfig = `
database:
  path: /var/lib/beehive/beehive.db
shared_state:
  driver: redis
  redis:
    url: redis://localhost:6379/0
    ttl: 12h
runner:
  workers: 4
  poll_interval: 2s
  poll_timeout: 10m
containers:
- id: os-1
  type: openstack
  driver: memory
  project: admin
- id: vc-1
  type: vsphere
policy:
  paths:
  - /etc/beehive/policies
  watch: true
telemetry:
  logging:
    level: debug
`

type LoaderTestSuite struct {
	suite.Suite
	a      afero.Afero
	loader *Loader
}

func (s *LoaderTestSuite) SetupTest() {
	s.a = afero.Afero{Fs: afero.NewMemMapFs()}
	s.loader = NewLoader(s.a.Fs)
}

func TestLoader(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func (s *LoaderTestSuite) TestDefaultsWithoutFile() {
	cfg, err := s.loader.Load("")
	s.Require().NoError(err)

	s.Equal("beehive.db", cfg.Database.Path)
	s.Equal(SharedStateMemory, cfg.SharedState.Driver)
	s.Equal(10, cfg.Runner.Workers)
	s.Equal(5*time.Second, cfg.Runner.PollInterval)
	s.Equal(30*time.Minute, cfg.Runner.PollTimeout)
	s.Equal("info", cfg.Telemetry.Logging.Level)
	s.Empty(cfg.Containers)
	s.Empty(s.loader.ConfigFileUsed())
}

func (s *LoaderTestSuite) TestLoadFile() {
	s.Require().NoError(s.a.WriteFile("/etc/beehive/worker.yaml", []byte(workerConfig), 0o644))

	cfg, err := s.loader.Load("/etc/beehive/worker.yaml")
	s.Require().NoError(err)

	s.Equal("/var/lib/beehive/beehive.db", cfg.Database.Path)
	s.Equal(25, cfg.Database.MaxOpenConns)
	s.Equal(SharedStateRedis, cfg.SharedState.Driver)
	s.Equal("redis://localhost:6379/0", cfg.SharedState.Redis.URL)
	s.Equal(12*time.Hour, cfg.SharedState.Redis.TTL)
	s.Equal(4, cfg.Runner.Workers)
	s.Equal(2*time.Second, cfg.Runner.PollInterval)
	s.Equal(10*time.Minute, cfg.Runner.PollTimeout)
	s.Equal("debug", cfg.Telemetry.Logging.Level)
	s.Equal("console", cfg.Telemetry.Logging.Format)
	s.Equal([]string{"/etc/beehive/policies"}, cfg.Policy.Paths)
	s.True(cfg.Policy.Watch)

	s.Require().Len(cfg.Containers, 2)
	s.Equal(ContainerConfig{ID: "os-1", Type: "openstack", Driver: "memory", Project: "admin"}, cfg.Containers[0])
	s.Equal("vsphere", cfg.Containers[1].Type)
	s.Equal("/etc/beehive/worker.yaml", s.loader.ConfigFileUsed())

	engineCfg := cfg.Runner.Engine()
	s.Equal(4, engineCfg.Workers)
	s.Equal(10*time.Minute, engineCfg.PollTimeout)
}

func (s *LoaderTestSuite) TestEnvOverridesFile() {
	s.Require().NoError(s.a.WriteFile("beehive.yaml", []byte(workerConfig), 0o644))
	s.T().Setenv("BEEHIVE_RUNNER_WORKERS", "7")
	s.T().Setenv("BEEHIVE_RUNNER_POLL_TIMEOUT", "45m")
	s.T().Setenv("BEEHIVE_DATABASE_PATH", ":memory:")

	cfg, err := s.loader.Load("beehive.yaml")
	s.Require().NoError(err)

	s.Equal(7, cfg.Runner.Workers)
	s.Equal(45*time.Minute, cfg.Runner.PollTimeout)
	s.Equal(":memory:", cfg.Database.Path)
	s.Equal(2*time.Second, cfg.Runner.PollInterval)
}

func (s *LoaderTestSuite) TestMissingFile() {
	_, err := s.loader.Load("/nope/beehive.yaml")
	s.Error(err)
}

func (s *LoaderTestSuite) TestDirectoryIsNotAFile() {
	s.Require().NoError(s.a.MkdirAll("/etc/beehive", 0o755))
	_, err := s.loader.Load("/etc/beehive")
	s.ErrorContains(err, "is not a file")
}

func (s *LoaderTestSuite) TestInvalidConfig() {
	cases := map[string]string{
		"unknown container type": `
containers:
- id: c1
  type: kubernetes
`,
		"container without id": `
containers:
- type: openstack
`,
		"duplicate containers": `
containers:
- id: c1
  type: openstack
- id: c1
  type: vsphere
`,
		"redis without url": `
shared_state:
  driver: redis
`,
		"unknown shared state driver": `
shared_state:
  driver: etcd
`,
		"timeout shorter than interval": `
runner:
  poll_interval: 1m
  poll_timeout: 30s
`,
		"no workers": `
runner:
  workers: 0
`,
		"bad log level": `
telemetry:
  logging:
    level: loud
`,
	}

	for name, body := range cases {
		s.Run(name, func() {
			s.Require().NoError(s.a.WriteFile("bad.yaml", []byte(body), 0o644))
			_, err := s.loader.Load("bad.yaml")
			s.Error(err)
		})
	}
}

func (s *LoaderTestSuite) TestDuplicateContainersMessage() {
	err := validateContainerDuplication([]ContainerConfig{
		{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "b"}, {ID: "c"},
	})
	s.EqualError(err, "containers [a, b] are duplicate")
}

func (s *LoaderTestSuite) TestWrite() {
	cfg := Default()
	cfg.Runner.Workers = 3
	cfg.Containers = []ContainerConfig{{ID: "os-1", Type: "openstack", Driver: DriverMemory}}

	s.Require().NoError(Write(s.a.Fs, "/srv/beehive/beehive.yaml", cfg, false))

	loaded, err := s.loader.Load("/srv/beehive/beehive.yaml")
	s.Require().NoError(err)
	s.Equal(3, loaded.Runner.Workers)
	s.Equal(cfg.Runner.PollTimeout, loaded.Runner.PollTimeout)
	s.Equal(cfg.Containers, loaded.Containers)

	s.ErrorContains(Write(s.a.Fs, "/srv/beehive/beehive.yaml", cfg, false), "already exists")
	s.NoError(Write(s.a.Fs, "/srv/beehive/beehive.yaml", cfg, true))
}
