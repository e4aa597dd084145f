// Package monitoring keeps in-memory counters of XTRA fetch attempts.
package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/sells-group/xtrafetch/internal/fetcher"
)

// ServerStats holds counters for one mirror.
type ServerStats struct {
	URL         string         `json:"url" yaml:"url"`
	Attempts    int            `json:"attempts" yaml:"attempts"`
	Successes   int            `json:"successes" yaml:"successes"`
	Failures    int            `json:"failures" yaml:"failures"`
	Reasons     map[string]int `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	LastStatus  int            `json:"last_status,omitempty" yaml:"last_status,omitempty"`
	LastSuccess time.Time      `json:"last_success,omitzero" yaml:"last_success,omitempty"`
	LastFailure time.Time      `json:"last_failure,omitzero" yaml:"last_failure,omitempty"`
	TotalBytes  int64          `json:"total_bytes" yaml:"total_bytes"`
}

// MetricsSnapshot holds a point-in-time view of fetch activity.
type MetricsSnapshot struct {
	Servers     []ServerStats `json:"servers" yaml:"servers"`
	Attempts    int           `json:"attempts" yaml:"attempts"`
	Failures    int           `json:"failures" yaml:"failures"`
	FailRate    float64       `json:"fail_rate" yaml:"fail_rate"`
	CollectedAt time.Time     `json:"collected_at" yaml:"collected_at"`
}

// Collector aggregates fetch results per server. It satisfies xtra.Observer.
type Collector struct {
	mu      sync.Mutex
	servers map[string]*ServerStats

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		servers: make(map[string]*ServerStats),
		nowFunc: time.Now,
	}
}

// Record counts one fetch attempt.
func (c *Collector) Record(res fetcher.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.servers[res.URL]
	if !ok {
		s = &ServerStats{URL: res.URL, Reasons: make(map[string]int)}
		c.servers[res.URL] = s
	}

	now := c.nowFunc().UTC()
	s.Attempts++
	s.LastStatus = res.StatusCode
	s.Reasons[res.Reason.String()]++
	if res.OK() {
		s.Successes++
		s.LastSuccess = now
		s.TotalBytes += int64(len(res.Data))
		return
	}
	s.Failures++
	s.LastFailure = now
}

// Snapshot returns a copy of the current counters, ordered by URL.
func (c *Collector) Snapshot() *MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &MetricsSnapshot{
		Servers:     make([]ServerStats, 0, len(c.servers)),
		CollectedAt: c.nowFunc().UTC(),
	}
	for _, s := range c.servers {
		cp := *s
		cp.Reasons = make(map[string]int, len(s.Reasons))
		for k, v := range s.Reasons {
			cp.Reasons[k] = v
		}
		snap.Servers = append(snap.Servers, cp)
		snap.Attempts += s.Attempts
		snap.Failures += s.Failures
	}
	sort.Slice(snap.Servers, func(i, j int) bool {
		return snap.Servers[i].URL < snap.Servers[j].URL
	})
	if snap.Attempts > 0 {
		snap.FailRate = float64(snap.Failures) / float64(snap.Attempts)
	}
	return snap
}
