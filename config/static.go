package config

import (
	"path/filepath"
	"reflect"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		Log          LogStaticCfg       `yaml:"LogConfig"`
		Watch        WatchStaticCfg     `yaml:"Watch"`
		Reporting    ReportingStaticCfg `yaml:"Reporting"`
		Generator    GeneratorStaticCfg `yaml:"Generator"`
		Filtering    FilteringStaticCfg `yaml:"Filtering"`
		Version      string
		ExactVersion string
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel     int    `yaml:"LogLevel" default:"2"`
		LogPath      string `yaml:"LogPath" default:"/var/lib/connwatch/logs"`
		LogToFile    bool   `yaml:"LogToFile" default:"false"`
		LogToConsole bool   `yaml:"LogToConsole" default:"true"`
	}

	//WatchStaticCfg controls the live connection log follower
	WatchStaticCfg struct {
		File         string        `yaml:"File" default:"/var/log/connections.log"`
		Host         string        `yaml:"Host" default:"Lynnsie"`
		PollInterval time.Duration `yaml:"PollInterval" default:"1s"`
		MaxBackoff   time.Duration `yaml:"MaxBackoff" default:"1m"`
		TimeZone     string        `yaml:"TimeZone" default:"Local"`
	}

	//ReportingStaticCfg controls the periodic hourly summary
	ReportingStaticCfg struct {
		Interval  time.Duration `yaml:"Interval" default:"1h"`
		TopHosts  int           `yaml:"TopHosts" default:"0"`
		Immediate bool          `yaml:"Immediate" default:"false"`
	}

	//FilteringStaticCfg lists hosts whose records are ignored. Entries may be
	//shell style patterns. A host on both lists is kept.
	FilteringStaticCfg struct {
		AlwaysInclude []string `yaml:"AlwaysInclude"`
		NeverInclude  []string `yaml:"NeverInclude"`
	}

	//GeneratorStaticCfg controls the synthetic connection log generator
	GeneratorStaticCfg struct {
		Count       int           `yaml:"Count" default:"5"`
		Interval    time.Duration `yaml:"Interval" default:"15s"`
		Destination string        `yaml:"Destination"`
	}
)

// parseStaticConfig parses the contents of a config file over
// the values already held by config
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	err := yaml.Unmarshal(cfgFile, config)
	if err != nil {
		return err
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	// clean all filepaths
	config.Log.LogPath = cleanPath(config.Log.LogPath)
	config.Watch.File = cleanPath(config.Watch.File)

	return nil
}

func cleanPath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}
