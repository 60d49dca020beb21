package parser

import (
	"path"
	"sync/atomic"

	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/pkg/errors"
)

type (
	// Filter decides which records are kept based on the hosts they involve.
	// Entries are host names or shell style patterns such as "scanner-*".
	Filter struct {
		alwaysIncluded []string
		neverIncluded  []string
		filtered       int64
	}

	// filteredHandler passes only records the filter keeps on to next
	filteredHandler struct {
		filter *Filter
		next   RecordHandler
	}
)

// NewFilter creates a Filter from the always and never included host lists
func NewFilter(alwaysIncluded, neverIncluded []string) (*Filter, error) {
	for _, pattern := range append(append([]string{}, alwaysIncluded...), neverIncluded...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, errors.Wrapf(err, "invalid host pattern '%s'", pattern)
		}
	}
	return &Filter{
		alwaysIncluded: alwaysIncluded,
		neverIncluded:  neverIncluded,
	}, nil
}

// FilterConn returns true if the record should be ignored. A record is
// ignored when either host is never included, unless that host is also
// always included.
func (f *Filter) FilterConn(conn *pt.Conn) (ignore bool) {
	ignore = f.isExcluded(conn.Source) || f.isExcluded(conn.Destination)
	if ignore {
		atomic.AddInt64(&f.filtered, 1)
	}
	return
}

// Filtered returns how many records have been ignored
func (f *Filter) Filtered() int64 {
	return atomic.LoadInt64(&f.filtered)
}

// Handler wraps next so that ignored records never reach it
func (f *Filter) Handler(next RecordHandler) RecordHandler {
	return &filteredHandler{filter: f, next: next}
}

func (h *filteredHandler) Ingest(conn *pt.Conn) bool {
	if h.filter.FilterConn(conn) {
		return false
	}
	return h.next.Ingest(conn)
}

// if a host is on both lists it is kept
func (f *Filter) isExcluded(host string) bool {
	return matchAny(f.neverIncluded, host) && !matchAny(f.alwaysIncluded, host)
}

func matchAny(patterns []string, host string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, host); ok {
			return true
		}
	}
	return false
}
