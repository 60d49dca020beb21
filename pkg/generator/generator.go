package generator

import (
	"bufio"
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/activecm/connwatch/parser/files"
	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/pkg/data"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrTooFewHosts is returned when a log does not name enough hosts to
// draw a source and a distinct destination from
var ErrTooFewHosts = errors.New("at least two distinct hosts are required")

type (
	// Option configures a Generator
	Option func(*Generator)

	// Generator appends synthetic connection records to an existing log,
	// drawing host names from the records already in it
	Generator struct {
		path        string
		count       int
		destination string
		rand        *rand.Rand
		clock       func() time.Time
		log         *log.Logger
	}
)

// WithCount sets how many records each round appends
func WithCount(n int) Option {
	return func(g *Generator) {
		g.count = n
	}
}

// WithDestination sends every generated record to host instead of a
// random destination
func WithDestination(host string) Option {
	return func(g *Generator) {
		g.destination = host
	}
}

// WithRand sets the source of randomness
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		g.rand = r
	}
}

// WithClock sets the time source used to stamp records
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(g *Generator) {
		g.log = logger
	}
}

// New creates a Generator which appends to the log at path
func New(path string, opts ...Option) *Generator {
	g := &Generator{
		path:  path,
		count: 5,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		clock: time.Now,
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HostsInFile returns the distinct hosts named by well formed records in
// the log, sorted
func (g *Generator) HostsInFile() ([]string, error) {
	hosts := data.NewStringSet()
	err := files.ScanConns(g.path, files.NewLineCounter(g.path, nil), func(conn *pt.Conn) {
		hosts.Insert(conn.Source)
		hosts.Insert(conn.Destination)
	})
	if err != nil {
		return nil, err
	}
	return hosts.SortedItems(), nil
}

// Append writes n records stamped with the current time to the end of the
// log and returns them
func (g *Generator) Append(n int) ([]*pt.Conn, error) {
	hosts, err := g.HostsInFile()
	if err != nil {
		return nil, err
	}

	sources := hosts
	if g.destination != "" {
		sources = without(hosts, g.destination)
	}
	if len(hosts) < 2 || len(sources) == 0 {
		return nil, errors.Wrapf(ErrTooFewHosts, "found %d in %s", len(hosts), g.path)
	}

	conns := make([]*pt.Conn, 0, n)
	for i := 0; i < n; i++ {
		source := g.pick(sources)
		destination := g.destination
		if destination == "" {
			destination = g.pick(without(hosts, source))
		}
		conns = append(conns, &pt.Conn{
			Time:        pt.TimeFromMillis(pt.Millis(g.clock())),
			Source:      source,
			Destination: destination,
		})
	}

	if err := g.write(conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// Run appends a round of records every interval until ctx is cancelled or,
// when iterations is positive, that many rounds have been written
func (g *Generator) Run(ctx context.Context, interval time.Duration, iterations int) error {
	for round := 1; ; round++ {
		conns, err := g.Append(g.count)
		if err != nil {
			return err
		}
		g.log.WithFields(log.Fields{
			"file":  g.path,
			"round": round,
			"added": len(conns),
		}).Info("Added random entries")

		if iterations > 0 && round >= iterations {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *Generator) write(conns []*pt.Conn) error {
	fileHandle, err := os.OpenFile(g.path, os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrapf(err, "could not open %s for appending", g.path)
	}

	writer := bufio.NewWriter(fileHandle)

	// finish an unterminated last line so the first record stands alone
	if info, err := fileHandle.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := fileHandle.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			writer.WriteByte('\n')
		}
	}
	for _, conn := range conns {
		writer.WriteString(conn.Line())
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		fileHandle.Close()
		return errors.Wrapf(err, "could not append to %s", g.path)
	}
	return fileHandle.Close()
}

func (g *Generator) pick(hosts []string) string {
	return hosts[g.rand.Intn(len(hosts))]
}

func without(hosts []string, host string) []string {
	rest := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h != host {
			rest = append(rest, h)
		}
	}
	return rest
}
