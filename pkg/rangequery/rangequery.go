package rangequery

import (
	"time"

	pt "github.com/activecm/connwatch/parser/parsetypes"
)

type (
	// Query selects the peers of Host seen between Start and End, inclusive
	Query struct {
		Host  string
		Start time.Time
		End   time.Time
	}

	// Result holds the peers matched by a Query. Hosts keeps one entry per
	// matching record in the order the records were read.
	Result struct {
		Query
		Records int64
		Hosts   []string
	}
)

// Matches reports whether conn falls in the query's time range
// and involves its host
func (q Query) Matches(conn *pt.Conn) bool {
	if conn.Time.Before(q.Start) || conn.Time.After(q.End) {
		return false
	}
	return conn.Involves(q.Host)
}

// NewResult creates an empty Result for q
func NewResult(q Query) *Result {
	return &Result{Query: q}
}

// Add accumulates conn into the result. A record from the host contributes
// its destination and a record to the host contributes its source.
func (r *Result) Add(conn *pt.Conn) {
	r.Records++
	if !r.Matches(conn) {
		return
	}
	if conn.Source == r.Host {
		r.Hosts = append(r.Hosts, conn.Destination)
	}
	if conn.Destination == r.Host {
		r.Hosts = append(r.Hosts, conn.Source)
	}
}

// ConnectedHosts returns the peers of host across records between start and
// end, inclusive, in record order and with repeats kept
func ConnectedHosts(records []*pt.Conn, host string, start, end time.Time) []string {
	result := NewResult(Query{Host: host, Start: start, End: end})
	for _, record := range records {
		result.Add(record)
	}
	return result.Hosts
}

// Unique removes repeated hosts, keeping the first occurrence of each
func Unique(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	unique := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		unique = append(unique, host)
	}
	return unique
}
