package resources

import (
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/activecm/connwatch/config"
	"github.com/activecm/connwatch/util"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger for logging to stdout
func initLogger(logConfig *config.LogStaticCfg) *log.Logger {
	var logs = &log.Logger{}

	logs.Formatter = &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: util.DisplayFormat,
	}

	logs.Out = ioutil.Discard
	if logConfig.LogToConsole {
		logs.Out = os.Stdout
	}
	logs.Hooks = make(log.LevelHooks)
	logs.ExitFunc = os.Exit

	switch logConfig.LogLevel {
	case 3:
		logs.Level = log.DebugLevel
	case 2:
		logs.Level = log.InfoLevel
	case 1:
		logs.Level = log.WarnLevel
	case 0:
		logs.Level = log.ErrorLevel
	}
	return logs
}

// addFileLogger writes each log level to its own file in a directory
// named after the time the process started. The directory is returned.
func addFileLogger(logger *log.Logger, logPath string) (string, error) {
	runDir := path.Join(logPath, time.Now().Format(util.TimeFormat))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	levelFiles := make(lfshook.PathMap, len(log.AllLevels))
	for _, level := range log.AllLevels {
		if level == log.TraceLevel {
			continue
		}
		levelFiles[level] = path.Join(runDir, level.String()+".log")
	}
	logger.Hooks.Add(lfshook.NewHook(levelFiles, nil))
	return runDir, nil
}
