package config

import (
	"github.com/creasty/defaults"
)

const testConfig = `
LogConfig:
    LogLevel: 3
    LogPath: null
    LogToFile: false
    LogToConsole: false
Watch:
    Host: Lynnsie
    PollInterval: 10ms
    MaxBackoff: 100ms
    TimeZone: UTC
Reporting:
    Interval: 50ms
    TopHosts: 3
Generator:
    Count: 5
    Interval: 10ms
`

// LoadTestingConfig loads the hard coded testing config and points the
// watcher at logFile
func LoadTestingConfig(logFile string) (*Config, error) {
	config := &Config{}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	// Deserialize the yaml file contents into the static config
	if err := parseStaticConfig([]byte(testConfig), &config.S); err != nil {
		return nil, err
	}

	config.S.Watch.File = logFile
	config.S.Version = "v0.0.0+testing"
	config.S.ExactVersion = "v0.0.0+testing"

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}
