package bucket

import (
	"sort"
	"sync"
	"time"

	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/pkg/data"
)

// Window is the lookback used both for accepting records and for summaries.
//
// Records are grouped into calendar hour buckets rather than kept in a
// continuously sliding window, so a summary may include up to two hours of
// records (the hour containing now-Window and the current hour) and a record
// drops out all at once when its bucket is evicted.
const Window = time.Hour

type (
	// Clock reports the current time
	Clock func() time.Time

	// Store holds the hour buckets for a single watch session.
	// Every method is safe for concurrent use.
	Store struct {
		mu       sync.Mutex
		buckets  map[string]*HourBucket
		clock    Clock
		location *time.Location
		// evictedThrough is the newest hour key whose bucket has been
		// evicted. Records for that hour or older are dropped.
		evictedThrough string
	}
)

// NewStore creates an empty Store. Hour keys are computed in loc and the
// current time is read from clock. Nil arguments fall back to time.Local
// and time.Now.
func NewStore(loc *time.Location, clock Clock) *Store {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		buckets:  make(map[string]*HourBucket),
		clock:    clock,
		location: loc,
	}
}

// Record adds a connection to the bucket for its hour. The connection is
// dropped unless now-Window <= conn.Time <= now. Connections for hours which
// have already been evicted are dropped as well. Record returns whether the
// connection was kept.
func (s *Store) Record(conn *pt.Conn) bool {
	now := s.clock()
	if conn.Time.Before(now.Add(-Window)) || conn.Time.After(now) {
		return false
	}
	key := HourKey(conn.Time, s.location)

	s.mu.Lock()
	defer s.mu.Unlock()

	if key <= s.evictedThrough {
		return false
	}

	hourBucket, ok := s.buckets[key]
	if !ok {
		hourBucket = newHourBucket(key)
		s.buckets[key] = hourBucket
	}
	hourBucket.add(conn)
	return true
}

// EvictOlderThanCurrentHour removes every bucket older than the current
// hour and returns the removed hour keys in ascending order
func (s *Store) EvictOlderThanCurrentHour() []string {
	current := HourKey(s.clock(), s.location)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for key := range s.buckets {
		if key < current {
			delete(s.buckets, key)
			evicted = append(evicted, key)
		}
	}
	sort.Strings(evicted)
	if n := len(evicted); n > 0 && evicted[n-1] > s.evictedThrough {
		s.evictedThrough = evicted[n-1]
	}
	return evicted
}

// Ingest evicts stale buckets and then records the connection. Evicting
// first keeps a record which opens a new hour from being pruned by its own
// arrival.
func (s *Store) Ingest(conn *pt.Conn) bool {
	s.EvictOlderThanCurrentHour()
	return s.Record(conn)
}

// Summarize builds the Summary for host over every bucket at or after the
// hour containing now-Window
func (s *Store) Summarize(host string) Summary {
	now := s.clock()
	start := now.Add(-Window)
	startKey := HourKey(start, s.location)

	summary := Summary{
		Host:        host,
		WindowStart: start,
		WindowEnd:   now,
		Counts:      make(map[string]int64),
	}
	connectedTo := make(data.StringSet)
	receivedFrom := make(data.StringSet)

	s.mu.Lock()
	for key, hourBucket := range s.buckets {
		if key < startKey {
			continue
		}
		summary.Buckets = append(summary.Buckets, key)
		for countedHost, count := range hourBucket.Counts {
			summary.Counts[countedHost] += count
		}
		connectedTo.Merge(hourBucket.Incoming[host])
		receivedFrom.Merge(hourBucket.Outgoing[host])
	}
	s.mu.Unlock()

	sort.Strings(summary.Buckets)
	summary.ConnectedToHost = connectedTo.SortedItems()
	summary.ReceivedFromHost = receivedFrom.SortedItems()

	if len(summary.Counts) == 0 {
		summary.NoData = true
		return summary
	}
	summary.Busiest = busiest(summary.Counts)
	return summary
}

// Buckets returns the hour keys currently held, in ascending order
func (s *Store) Buckets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.buckets))
	for key := range s.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Bucket returns a copy of the bucket for key, or nil if there is none
func (s *Store) Bucket(key string) *HourBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	hourBucket, ok := s.buckets[key]
	if !ok {
		return nil
	}

	cp := newHourBucket(key)
	for host, peers := range hourBucket.Incoming {
		cp.Incoming[host] = peers.Copy()
	}
	for host, peers := range hourBucket.Outgoing {
		cp.Outgoing[host] = peers.Copy()
	}
	for host, count := range hourBucket.Counts {
		cp.Counts[host] = count
	}
	return cp
}
