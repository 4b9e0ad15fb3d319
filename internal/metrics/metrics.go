// Package metrics exposes Prometheus collectors for the batch issuer and an
// optional HTTP endpoint to scrape them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Issue outcomes used as the "outcome" label.
const (
	OutcomeIssued   = "issued"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Recorder is the metrics surface the issuer service depends on.
type Recorder interface {
	ObserveIssue(outcome string, elapsed time.Duration)
	RequestSkipped()
	PublishFailed()
	SetTrackedRequests(n int)
}

// IssuerMetrics holds the collectors for one issuer runtime.
type IssuerMetrics struct {
	requests        *prometheus.CounterVec
	publishFailures prometheus.Counter
	issueDuration   prometheus.Histogram
	tracked         prometheus.Gauge
}

// NewIssuerMetrics creates and registers the issuer collectors on reg.
func NewIssuerMetrics(reg prometheus.Registerer) (*IssuerMetrics, error) {
	m := &IssuerMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "atlas_issuer",
				Name:      "requests_total",
				Help:      "Credential requests processed, by outcome.",
			},
			[]string{"outcome"},
		),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas_issuer",
			Name:      "publish_failures_total",
			Help:      "Issuance events that at least one publisher failed to deliver.",
		}),
		issueDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atlas_issuer",
			Name:      "issue_duration_seconds",
			Help:      "Latency of issue calls that produced a response.",
			Buckets:   prometheus.DefBuckets,
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "atlas_issuer",
			Name:      "tracked_requests",
			Help:      "Request keys held by the dedupe store.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.publishFailures, m.issueDuration, m.tracked} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *IssuerMetrics) ObserveIssue(outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	if outcome != OutcomeFailed {
		m.issueDuration.Observe(elapsed.Seconds())
	}
}

func (m *IssuerMetrics) RequestSkipped()          { m.requests.WithLabelValues(OutcomeSkipped).Inc() }
func (m *IssuerMetrics) PublishFailed()           { m.publishFailures.Inc() }
func (m *IssuerMetrics) SetTrackedRequests(n int) { m.tracked.Set(float64(n)) }

// Nop discards observations.
type Nop struct{}

func (Nop) ObserveIssue(string, time.Duration) {}
func (Nop) RequestSkipped()                    {}
func (Nop) PublishFailed()                     {}
func (Nop) SetTrackedRequests(int)             {}
