package files

import (
	"strconv"
	"strings"
	"sync/atomic"

	pt "github.com/activecm/connwatch/parser/parsetypes"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrFieldCount is returned for lines which do not split into exactly
	// three whitespace separated fields
	ErrFieldCount = errors.New("line doesn't follow connection log format")

	// ErrTimestamp is returned for lines whose first field is not an integer
	// count of milliseconds since the epoch
	ErrTimestamp = errors.New("invalid timestamp")

	// ErrLineLength is used for lines which grew past the reader's limit
	// before their terminator arrived
	ErrLineLength = errors.New("line too long")
)

// ParseLine turns a raw connection log line into a Conn. Rejected lines
// return an error whose cause is ErrFieldCount or ErrTimestamp.
func ParseLine(line string) (*pt.Conn, error) {
	fields := strings.Fields(line)
	if len(fields) != pt.FieldCount {
		return nil, errors.Wrapf(ErrFieldCount, "expected %d fields, got %d", pt.FieldCount, len(fields))
	}

	timestampMS, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrTimestamp, "could not parse '%s'", fields[0])
	}

	return pt.NewConn(timestampMS, fields[1], fields[2]), nil
}

// IsRejected returns true if err marks a malformed line
func IsRejected(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrFieldCount || cause == ErrTimestamp || cause == ErrLineLength
}

type (
	// LineCounter parses lines while keeping track of how many lines were
	// seen, accepted, and rejected. It is safe for concurrent use.
	LineCounter struct {
		lines    int64
		accepted int64
		rejected int64
		source   string
		logger   *log.Logger
	}

	// LineStats is a point in time copy of a LineCounter's totals
	LineStats struct {
		Lines    int64
		Accepted int64
		Rejected int64
	}
)

// NewLineCounter creates a LineCounter which reports rejected lines for
// the given source (usually a file path) to logger
func NewLineCounter(source string, logger *log.Logger) *LineCounter {
	return &LineCounter{
		source: source,
		logger: logger,
	}
}

// Parse parses the next line of the source. Malformed lines are logged along
// with their line number and nil is returned so the caller may move on to
// the next line.
func (c *LineCounter) Parse(line string) *pt.Conn {
	conn, err := ParseLine(line)
	if err != nil {
		c.Reject(err)
		return nil
	}

	atomic.AddInt64(&c.lines, 1)
	atomic.AddInt64(&c.accepted, 1)
	return conn
}

// Reject counts the next line of the source as malformed without parsing it
func (c *LineCounter) Reject(reason error) {
	lineNumber := atomic.AddInt64(&c.lines, 1)
	atomic.AddInt64(&c.rejected, 1)
	if c.logger != nil {
		c.logger.WithFields(log.Fields{
			"file":  c.source,
			"line":  lineNumber,
			"error": reason.Error(),
		}).Warn("Skipping malformed line")
	}
}

// Stats returns the current totals
func (c *LineCounter) Stats() LineStats {
	return LineStats{
		Lines:    atomic.LoadInt64(&c.lines),
		Accepted: atomic.LoadInt64(&c.accepted),
		Rejected: atomic.LoadInt64(&c.rejected),
	}
}
