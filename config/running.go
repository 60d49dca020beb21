package config

import (
	"time"

	"github.com/blang/semver"
	"github.com/pkg/errors"
)

type (
	//RunningCfg holds configuration options that are parsed at run time
	RunningCfg struct {
		Version semver.Version
		// Location is the time zone hour buckets are cut in
		Location *time.Location
	}
)

// initRunningConfig uses data in the static config to initialize
// the passed in running config
func initRunningConfig(static *StaticCfg, running *RunningCfg) error {
	if err := validateStaticConfig(static); err != nil {
		return err
	}

	version, err := semver.ParseTolerant(static.Version)
	if err != nil {
		return errors.Wrapf(err, "could not parse version '%s'", static.Version)
	}
	running.Version = version

	running.Location, err = loadLocation(static.Watch.TimeZone)
	if err != nil {
		return err
	}
	return nil
}

// loadLocation resolves a time zone name. An empty name means the local zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown time zone '%s'", name)
	}
	return loc, nil
}

// validateStaticConfig rejects settings the watcher cannot run with
func validateStaticConfig(static *StaticCfg) error {
	if static.Log.LogLevel < 0 || static.Log.LogLevel > 3 {
		return errors.Errorf("LogLevel must be between 0 and 3, got %d", static.Log.LogLevel)
	}
	if static.Watch.PollInterval <= 0 {
		return errors.New("Watch.PollInterval must be a positive duration")
	}
	if static.Watch.MaxBackoff <= 0 {
		return errors.New("Watch.MaxBackoff must be a positive duration")
	}
	if static.Reporting.Interval <= 0 {
		return errors.New("Reporting.Interval must be a positive duration")
	}
	if static.Reporting.TopHosts < 0 {
		return errors.New("Reporting.TopHosts may not be negative")
	}
	if static.Generator.Count < 0 {
		return errors.New("Generator.Count may not be negative")
	}
	return nil
}

// Validate checks the settings that may be overridden after loading,
// such as by command line flags
func (c *Config) Validate() error {
	if c.S.Watch.Host == "" {
		return errors.New("a host to report on is required")
	}
	if c.S.Watch.File == "" {
		return errors.New("a connection log file is required")
	}
	return validateStaticConfig(&c.S)
}
