package bucket

import (
	"sort"
	"time"
)

type (
	// HostCount pairs a host with the number of records it appeared in
	HostCount struct {
		Host  string `json:"host"`
		Count int64  `json:"count"`
	}

	// Summary describes the activity seen during the one hour lookback
	// ending at WindowEnd
	Summary struct {
		// Host is the distinguished host the summary was built for
		Host        string    `json:"host"`
		WindowStart time.Time `json:"window_start"`
		WindowEnd   time.Time `json:"window_end"`
		// Buckets lists the hour keys which contributed to the summary
		Buckets []string `json:"buckets"`
		// Counts holds the per host record totals across Buckets
		Counts map[string]int64 `json:"counts"`
		// Busiest is the host with the highest count. Ties go to the
		// lexicographically smallest host.
		Busiest HostCount `json:"busiest"`
		// ConnectedToHost lists the hosts which connected to Host
		ConnectedToHost []string `json:"connected_to_host"`
		// ReceivedFromHost lists the hosts which Host connected to
		ReceivedFromHost []string `json:"received_from_host"`
		// NoData is set when no records fell inside the window
		NoData bool `json:"no_data"`
	}
)

// TopHosts returns up to n hosts ordered by count, highest first. Hosts with
// equal counts are ordered by name. A non positive n returns every host.
func (s Summary) TopHosts(n int) []HostCount {
	hosts := make([]HostCount, 0, len(s.Counts))
	for host, count := range s.Counts {
		hosts = append(hosts, HostCount{Host: host, Count: count})
	}
	sortHostCounts(hosts)
	if n > 0 && n < len(hosts) {
		hosts = hosts[:n]
	}
	return hosts
}

func sortHostCounts(hosts []HostCount) {
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Count > hosts[j].Count ||
			(hosts[i].Count == hosts[j].Count && hosts[i].Host < hosts[j].Host)
	})
}

// busiest picks the host with the highest count, breaking ties with the
// smallest host name so that repeated summaries agree
func busiest(counts map[string]int64) HostCount {
	var top HostCount
	found := false
	for host, count := range counts {
		if !found || count > top.Count || (count == top.Count && host < top.Host) {
			top = HostCount{Host: host, Count: count}
			found = true
		}
	}
	return top
}
