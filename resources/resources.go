package resources

import (
	"github.com/activecm/connwatch/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config *config.Config
		Log    *log.Logger
	}
)

// InitResources grabs the configuration file and intitializes the configuration data
// returning a *Resources object which has all of the necessary configuration information
func InitResources(userConfig string) (*Resources, error) {
	conf, err := config.LoadConfig(userConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return newResources(conf)
}

// newResources fires up the logging system described by conf
func newResources(conf *config.Config) (*Resources, error) {
	log := initLogger(&conf.S.Log)

	if conf.S.Log.LogToFile {
		runDir, err := addFileLogger(log, conf.S.Log.LogPath)
		if err != nil {
			return nil, errors.Wrapf(err, "could not log to %s", conf.S.Log.LogPath)
		}
		log.WithField("path", runDir).Debug("Logging to files")
	}

	//bundle up the system resources
	r := &Resources{
		Config: conf,
		Log:    log,
	}
	return r, nil
}
