package config

import (
	"io/ioutil"
	"os"
	"os/user"
	"path"
	"reflect"

	"github.com/activecm/connwatch/util"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
)

//Version is filled at compile time with the git version of connwatch
var Version = "v0.0.0+dev"

//ExactVersion is filled at compile time with the git commit of connwatch
var ExactVersion = "undefined"

//systemConfigPath is the config file used when the user has none of their own
const systemConfigPath = "/etc/connwatch/config.yaml"

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
	}
)

//LoadConfig initializes a Config struct with values read
//from the config file at cfgPath. When cfgPath is empty the user's
//config and then the system config are tried, falling back to the
//default values if neither exists.
func LoadConfig(cfgPath string) (*Config, error) {
	config := &Config{}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, errors.Wrap(err, "could not set config defaults")
	}

	if cfgPath == "" {
		cfgPath = findConfig()
	}

	if cfgPath != "" {
		cfgFile, err := ioutil.ReadFile(cfgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", cfgPath)
		}

		// Deserialize the yaml file contents into the static config
		if err := parseStaticConfig(cfgFile, &config.S); err != nil {
			return nil, errors.Wrapf(err, "could not parse config file %s", cfgPath)
		}
	}

	// grab the version constants set by the build process
	config.S.Version = Version
	config.S.ExactVersion = ExactVersion

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}

//findConfig returns the first config file which exists in order of
//precedence, or an empty string if there is none
func findConfig() string {
	var candidates []string
	if usr, err := user.Current(); err == nil {
		candidates = append(candidates, path.Join(usr.HomeDir, ".connwatch", "config.yaml"))
	}
	candidates = append(candidates, systemConfigPath)

	for _, candidate := range candidates {
		if exists, _ := util.Exists(candidate); exists {
			return candidate
		}
	}
	return ""
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}
