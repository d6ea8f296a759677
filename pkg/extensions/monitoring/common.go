package monitoring

import (
	"time"
)

const metricsNamespace = "zarc"

// MetricServer records the outcome of an evaluation run.
type MetricServer interface {
	IsEnabled() bool
	// ObserveRepository records one evaluated repository.
	ObserveRepository(repo string, scanned, eligible int, eligibleBytes int64, took time.Duration)
	IncRepositoryFailure(repo string)
	IncDecision(policy, reason string)
	SetTransferEstimate(seconds float64)
	// WriteTextfile dumps all collected metrics in the prometheus text format.
	WriteTextfile(path string) error
}
