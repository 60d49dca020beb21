package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/activecm/connwatch/parser"
	"github.com/activecm/connwatch/parser/files"
	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/pkg/rangequery"
	"github.com/activecm/connwatch/resources"
	"github.com/activecm/connwatch/util"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

func init() {
	command := cli.Command{
		Name:      "query",
		Usage:     "Print the hosts a host talked to between two times",
		ArgsUsage: "--file <log|directory> --start <time> --end <time>",
		Flags: []cli.Flag{
			configFlag,
			hostFlag,
			humanFlag,
			cli.StringSliceFlag{
				Name:  "file, f",
				Usage: "Read connection logs from `PATH`, a file or a directory. May be repeated.",
			},
			cli.StringFlag{
				Name:  "start, s",
				Usage: "Only include connections at or after `TIME`",
			},
			cli.StringFlag{
				Name:  "end, e",
				Usage: "Only include connections at or before `TIME`",
			},
			cli.BoolFlag{
				Name:  "unique, u",
				Usage: "Print each connected host once",
			},
			cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: runQuery,
	}

	bootstrapCommands(command)
}

func runQuery(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	paths := c.StringSlice("file")
	if len(paths) == 0 {
		return cli.NewExitError("Specify at least one connection log with --file", -1)
	}

	host := res.Config.S.Watch.Host
	if c.IsSet("host") {
		host = c.String("host")
	}
	if host == "" {
		return cli.NewExitError("Specify a host with --host", -1)
	}

	query, err := parseQuery(host, c.String("start"), c.String("end"), res.Config.R.Location)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	logFiles := files.GatherLogFiles(paths, res.Log)
	if len(logFiles) == 0 {
		return cli.NewExitError("No connection logs were found", -1)
	}

	filter, err := newFilter(res)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	result, err := queryFiles(logFiles, query, filter, res.Log, os.Stderr)
	if err != nil {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}

	hosts := result.Hosts
	if c.Bool("unique") {
		hosts = rangequery.Unique(hosts)
	}

	switch {
	case c.Bool("json"):
		err = showQueryJSON(os.Stdout, result, hosts)
	case c.Bool("human-readable"):
		err = showQueryHuman(os.Stdout, result, hosts)
	default:
		err = showQuery(os.Stdout, hosts)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

// parseQuery builds a range query from the command line values. Times
// without a zone are read in loc.
func parseQuery(host, start, end string, loc *time.Location) (rangequery.Query, error) {
	query := rangequery.Query{Host: host}
	if start == "" || end == "" {
		return query, fmt.Errorf("Specify both --start and --end")
	}

	var err error
	if query.Start, err = util.ParseTime(start, loc); err != nil {
		return query, err
	}
	if query.End, err = util.ParseTime(end, loc); err != nil {
		return query, err
	}
	if query.End.Before(query.Start) {
		return query, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return query, nil
}

// queryFiles runs query over every record in logFiles that the filter keeps,
// in order, drawing a progress bar to progress
func queryFiles(logFiles []string, query rangequery.Query, filter *parser.Filter, logger *log.Logger, progress io.Writer) (*rangequery.Result, error) {
	result := rangequery.NewResult(query)

	p := mpb.New(mpb.WithWidth(20), mpb.WithOutput(progress))
	bar := p.AddBar(int64(len(logFiles)),
		mpb.PrependDecorators(
			decor.Name("\t[-] Reading Logs:", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	var err error
	for i, logFile := range logFiles {
		start := time.Now()
		counter := files.NewLineCounter(logFile, logger)
		err = files.ScanConns(logFile, counter, func(conn *pt.Conn) {
			if !filter.FilterConn(conn) {
				result.Add(conn)
			}
		})
		if err != nil {
			// complete the bar so Wait returns
			bar.IncrBy(len(logFiles) - i)
			break
		}

		stats := counter.Stats()
		logger.WithFields(log.Fields{
			"file":     logFile,
			"lines":    stats.Lines,
			"rejected": stats.Rejected,
		}).Debug("Read connection log")
		bar.IncrBy(1, time.Since(start))
	}
	p.Wait()

	if err != nil {
		return nil, err
	}
	return result, nil
}

func showQuery(w io.Writer, hosts []string) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Connected Host"})
	for _, host := range hosts {
		csvWriter.Write([]string{host})
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func showQueryHuman(w io.Writer, result *rangequery.Result, hosts []string) error {
	fmt.Fprintf(w, "For host %s found %d between %s and %s\n",
		result.Host, len(hosts),
		result.Start.Format(util.DisplayFormat), result.End.Format(util.DisplayFormat),
	)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Connected Host"})
	for i, host := range hosts {
		table.Append([]string{strconv.Itoa(i + 1), host})
	}
	table.Render()
	return nil
}

func showQueryJSON(w io.Writer, result *rangequery.Result, hosts []string) error {
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	return json.NewEncoder(w).Encode(struct {
		Host    string    `json:"host"`
		Start   time.Time `json:"start"`
		End     time.Time `json:"end"`
		Records int64     `json:"records"`
		Hosts   []string  `json:"hosts"`
	}{
		Host:    result.Host,
		Start:   result.Start,
		End:     result.End,
		Records: result.Records,
		Hosts:   hosts,
	})
}
