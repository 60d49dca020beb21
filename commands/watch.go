package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/activecm/connwatch/parser"
	"github.com/activecm/connwatch/pkg/bucket"
	"github.com/activecm/connwatch/reporting"
	"github.com/activecm/connwatch/resources"
	"github.com/activecm/connwatch/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "watch",
		Usage: "Follow a connection log and report on a host's last hour of activity",
		Flags: []cli.Flag{
			configFlag,
			hostFlag,
			cli.StringFlag{
				Name:  "file, f",
				Usage: "Follow the connection log at `FILE`",
			},
			cli.DurationFlag{
				Name:  "interval, i",
				Usage: "Report every `DURATION`",
			},
			cli.StringFlag{
				Name:  "json",
				Usage: "Also write each summary as a line of JSON to `FILE` (- for stdout)",
			},
			cli.BoolFlag{
				Name:  "immediate",
				Usage: "Report once as soon as the watcher starts",
			},
		},
		Action: runWatch,
	}

	bootstrapCommands(command)
}

func runWatch(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	cfg := &res.Config.S
	if c.IsSet("file") {
		cfg.Watch.File = c.String("file")
	}
	if c.IsSet("host") {
		cfg.Watch.Host = c.String("host")
	}
	if c.IsSet("interval") {
		cfg.Reporting.Interval = c.Duration("interval")
	}
	if c.Bool("immediate") {
		cfg.Reporting.Immediate = true
	}
	if err := res.Config.Validate(); err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	var summaries io.Writer
	switch jsonPath := c.String("json"); jsonPath {
	case "":
	case "-":
		summaries = os.Stdout
	default:
		jsonFile, err := os.OpenFile(jsonPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return cli.NewExitError(errors.Wrapf(err, "could not open %s", jsonPath).Error(), -1)
		}
		defer jsonFile.Close()
		summaries = jsonFile
	}

	ctx, stop := signalContext()
	defer stop()

	if err := watch(ctx, res, summaries); err != nil {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

// sessionHook tags every log entry with the id of the watch session
type sessionHook struct {
	id string
}

func (h sessionHook) Levels() []log.Level {
	return log.AllLevels
}

func (h sessionHook) Fire(entry *log.Entry) error {
	entry.Data["session"] = h.id
	return nil
}

// tagSession runs the session hook ahead of the hooks already installed so
// the file sink sees the field too
func tagSession(logger *log.Logger, id string) {
	hooks := make(log.LevelHooks)
	hooks.Add(sessionHook{id: id})
	for level, levelHooks := range logger.Hooks {
		hooks[level] = append(hooks[level], levelHooks...)
	}
	logger.ReplaceHooks(hooks)
}

// newFilter builds the host filter from the Filtering config
func newFilter(res *resources.Resources) (*parser.Filter, error) {
	filtering := res.Config.S.Filtering
	filter, err := parser.NewFilter(filtering.AlwaysInclude, filtering.NeverInclude)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Filtering config")
	}
	return filter, nil
}

// watch follows the configured log and reports on the configured host until
// ctx is cancelled. summaries may be nil.
func watch(ctx context.Context, res *resources.Resources, summaries io.Writer) error {
	logger := res.Log
	tagSession(logger, uuid.New().String())

	watchCfg := res.Config.S.Watch
	reportCfg := res.Config.S.Reporting

	filter, err := newFilter(res)
	if err != nil {
		return err
	}

	store := bucket.NewStore(res.Config.R.Location, nil)
	tailer := parser.NewTailer(watchCfg.File, filter.Handler(store), watchCfg.PollInterval, watchCfg.MaxBackoff, logger)

	reporterOpts := []reporting.Option{reporting.WithTopHosts(reportCfg.TopHosts)}
	if summaries != nil {
		reporterOpts = append(reporterOpts, reporting.WithJSON(summaries))
	}
	reporter := reporting.NewReporter(store, watchCfg.Host, logger, reporterOpts...)

	var schedulerOpts []reporting.SchedulerOption
	if reportCfg.Immediate {
		schedulerOpts = append(schedulerOpts, reporting.WithImmediate())
	}
	scheduler := reporting.NewScheduler(reportCfg.Interval, func() { reporter.Report() }, logger, schedulerOpts...)

	logger.WithFields(log.Fields{
		"file":     watchCfg.File,
		"host":     watchCfg.Host,
		"interval": reportCfg.Interval.String(),
		"version":  res.Config.S.Version,
	}).Info("Watching connection log")

	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tailDone := make(chan error, 1)
	scheduleDone := make(chan struct{})
	go func() {
		tailDone <- tailer.Run(runCtx)
		// the reporter has nothing to report on once the tailer gives up
		cancel()
	}()
	go func() {
		scheduler.Run(runCtx)
		close(scheduleDone)
	}()

	tailErr := <-tailDone
	<-scheduleDone

	stats := tailer.Stats()
	logger.WithFields(log.Fields{
		"bytes":       stats.BytesRead,
		"lines":       stats.Lines.Lines,
		"rejected":    stats.Lines.Rejected,
		"ingested":    stats.Ingested,
		"dropped":     stats.Dropped,
		"truncations": stats.Truncations,
		"reopens":     stats.Reopens,
		"filtered":    filter.Filtered(),
		"reports":     scheduler.Runs(),
		"uptime":      util.FormatDuration(time.Since(started)),
	}).Info("Stopped watching connection log")

	if ctx.Err() != nil {
		return nil
	}
	return tailErr
}
