package bucket

import (
	"time"

	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/pkg/data"
	"github.com/activecm/connwatch/util"
)

// HourBucket holds the connectivity aggregates for one calendar hour
type HourBucket struct {
	// Key is the HourKey shared by every record in the bucket
	Key string
	// Incoming maps a host to the hosts which connected to it
	Incoming map[string]data.StringSet
	// Outgoing maps a host to the hosts it connected to
	Outgoing map[string]data.StringSet
	// Counts maps a host to the number of records it appears in as
	// either the source or the destination
	Counts map[string]int64
}

// HourKey truncates t to the hour in loc and formats it so that string
// order matches time order
func HourKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(util.HourFormat)
}

func newHourBucket(key string) *HourBucket {
	return &HourBucket{
		Key:      key,
		Incoming: make(map[string]data.StringSet),
		Outgoing: make(map[string]data.StringSet),
		Counts:   make(map[string]int64),
	}
}

// add folds a single connection into the bucket
func (b *HourBucket) add(conn *pt.Conn) {
	insertPeer(b.Incoming, conn.Destination, conn.Source)
	insertPeer(b.Outgoing, conn.Source, conn.Destination)
	b.Counts[conn.Source]++
	b.Counts[conn.Destination]++
}

func insertPeer(peers map[string]data.StringSet, host, peer string) {
	set, ok := peers[host]
	if !ok {
		set = make(data.StringSet)
		peers[host] = set
	}
	set.Insert(peer)
}
