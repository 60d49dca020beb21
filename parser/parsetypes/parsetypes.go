package parsetypes

import (
	"fmt"
	"time"
)

// FieldCount is the number of whitespace separated fields in a well formed
// connection log line: <timestamp_ms> <source> <destination>
const FieldCount = 3

type (
	// Conn is a single connection record read from a connection log.
	// Conns are never modified after the parser creates them.
	Conn struct {
		// Time is the instant the connection was logged
		Time time.Time `json:"ts"`
		// Source is the host which initiated the connection
		Source string `json:"src"`
		// Destination is the host which received the connection
		Destination string `json:"dst"`
	}
)

// NewConn creates a Conn from a millisecond epoch timestamp
func NewConn(timestampMS int64, source, destination string) *Conn {
	return &Conn{
		Time:        TimeFromMillis(timestampMS),
		Source:      source,
		Destination: destination,
	}
}

// TimeFromMillis converts milliseconds since the epoch into a local instant
func TimeFromMillis(timestampMS int64) time.Time {
	return time.Unix(timestampMS/1000, (timestampMS%1000)*int64(time.Millisecond))
}

// Millis converts an instant back into milliseconds since the epoch
func Millis(t time.Time) int64 {
	return t.Unix()*1000 + int64(t.Nanosecond())/int64(time.Millisecond)
}

// Line renders the Conn in the connection log format without the trailing newline
func (c *Conn) Line() string {
	return fmt.Sprintf("%d %s %s", Millis(c.Time), c.Source, c.Destination)
}

// Involves returns true if host is the source or the destination of the Conn
func (c *Conn) Involves(host string) bool {
	return c.Source == host || c.Destination == host
}
