// Package config loads the settings of a beehive-resource worker.
//
// Configuration is read from a YAML file layered over built-in defaults.
// Every key can be overridden from the environment with the BEEHIVE prefix,
// dots replaced by underscores:
//
//	BEEHIVE_RUNNER_POLL_TIMEOUT=45m
//	BEEHIVE_DATABASE_PATH=/var/lib/beehive/beehive.db
//
// When no file is named, beehive.yaml is searched in the working directory,
// in ~/.beehive and in /etc/beehive. A missing file is not an error.
//
// # Example
//
//	loader := config.NewLoader(afero.NewOsFs())
//	cfg, err := loader.Load("")
//	if err != nil {
//	    return err
//	}
//	runner, err := engine.NewRunner(cfg.Runner.Engine(), deps)
//
// Poll settings can be reloaded while a worker runs:
//
//	loader.Watch(func(cfg *config.Config, err error) {
//	    if err == nil {
//	        runner.SetPollSettings(cfg.Runner.PollInterval, cfg.Runner.PollTimeout)
//	    }
//	})
package config
