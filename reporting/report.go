package reporting

import (
	"io"
	"strings"
	"sync"

	"github.com/activecm/connwatch/pkg/bucket"
	"github.com/activecm/connwatch/util"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

type (
	// Summarizer builds the hourly summary for a host
	Summarizer interface {
		Summarize(host string) bucket.Summary
	}

	// Option configures a Reporter
	Option func(*Reporter)

	// Reporter renders the last hour of activity around one host
	Reporter struct {
		store    Summarizer
		host     string
		log      *log.Logger
		topHosts int
		jsonMu   sync.Mutex
		json     io.Writer
	}
)

// WithJSON additionally writes every summary to w as a single line of JSON
func WithJSON(w io.Writer) Option {
	return func(r *Reporter) {
		r.json = w
	}
}

// WithTopHosts lists the n busiest hosts alongside the summary
func WithTopHosts(n int) Option {
	return func(r *Reporter) {
		r.topHosts = n
	}
}

// NewReporter creates a Reporter for host which reads from store and
// writes to logger
func NewReporter(store Summarizer, host string, logger *log.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		store: store,
		host:  host,
		log:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report summarizes the last hour and writes the result out.
// The store is only read.
func (r *Reporter) Report() bucket.Summary {
	summary := r.store.Summarize(r.host)

	entry := r.log.WithFields(log.Fields{
		"host":         r.host,
		"window_start": summary.WindowStart.Format(util.DisplayFormat),
		"window_end":   summary.WindowEnd.Format(util.DisplayFormat),
	})

	if summary.NoData {
		entry.Info("No activity in the last hour")
	} else {
		entry = entry.WithField("buckets", strings.Join(summary.Buckets, ", "))

		entry.WithField("hosts", strings.Join(summary.ConnectedToHost, ", ")).
			Infof("Hosts that connected to %s", r.host)
		entry.WithField("hosts", strings.Join(summary.ReceivedFromHost, ", ")).
			Infof("Hosts that received connections from %s", r.host)
		entry.WithFields(log.Fields{
			"busiest": summary.Busiest.Host,
			"count":   summary.Busiest.Count,
		}).Info("Busiest host")

		if r.topHosts > 0 {
			for i, top := range summary.TopHosts(r.topHosts) {
				entry.WithFields(log.Fields{
					"rank":  i + 1,
					"top":   top.Host,
					"count": top.Count,
				}).Info("Top host")
			}
		}
	}

	if r.json != nil {
		if err := r.writeJSON(summary); err != nil {
			r.log.WithFields(log.Fields{
				"host":  r.host,
				"error": err.Error(),
			}).Error("Could not write summary as JSON")
		}
	}
	return summary
}

func (r *Reporter) writeJSON(summary bucket.Summary) error {
	r.jsonMu.Lock()
	defer r.jsonMu.Unlock()

	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	return json.NewEncoder(r.json).Encode(summary)
}
