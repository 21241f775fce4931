// Package metrics provides Prometheus metrics for interceptor activity
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Event kinds
const (
	KindException     = "exception"
	KindErrorPromoted = "error_promoted"
	KindErrorIgnored  = "error_ignored"
	KindFatal         = "fatal"
)

// Log write results
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Recorder tracks interceptor events and syncs them with Prometheus
type Recorder struct {
	events    map[string]int64
	logWrites map[string]int64
	responses int64
	mu        sync.RWMutex
}

// NewRecorder creates a new recorder
func NewRecorder() *Recorder {
	return &Recorder{
		events:    make(map[string]int64),
		logWrites: make(map[string]int64),
	}
}

// RecordEvent records a handled condition of the given kind
func (r *Recorder) RecordEvent(kind string) {
	r.mu.Lock()
	r.events[kind]++
	r.mu.Unlock()
	eventsTotal.WithLabelValues(kind).Inc()
}

// RecordLogWrite records a fatal log write attempt
func (r *Recorder) RecordLogWrite(ok bool) {
	result := ResultOK
	if !ok {
		result = ResultFailed
	}

	r.mu.Lock()
	r.logWrites[result]++
	r.mu.Unlock()
	logWritesTotal.WithLabelValues(result).Inc()
}

// RecordResponse records an emitted failure response
func (r *Recorder) RecordResponse() {
	r.mu.Lock()
	r.responses++
	r.mu.Unlock()
	responsesTotal.Inc()
}

// Reset clears local counts (useful for testing)
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = make(map[string]int64)
	r.logWrites = make(map[string]int64)
	r.responses = 0
	r.mu.Unlock()
}

// GetSnapshot returns a snapshot of local counts
func (r *Recorder) GetSnapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := map[string]int64{
		KindException:       r.events[KindException],
		KindErrorPromoted:   r.events[KindErrorPromoted],
		KindErrorIgnored:    r.events[KindErrorIgnored],
		KindFatal:           r.events[KindFatal],
		"log_writes_ok":     r.logWrites[ResultOK],
		"log_writes_failed": r.logWrites[ResultFailed],
		"responses":         r.responses,
	}
	return snap
}

// Collectors returns every collector owned by this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{eventsTotal, logWritesTotal, responsesTotal}
}

// Register adds the collectors to reg. Collectors that are already registered
// are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errguard_events_total",
			Help: "Total number of conditions seen by the interceptor",
		},
		[]string{"kind"},
	)

	logWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errguard_log_writes_total",
			Help: "Total number of fatal log write attempts",
		},
		[]string{"result"},
	)

	responsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "errguard_responses_total",
			Help: "Total number of failure responses emitted",
		},
	)
)
