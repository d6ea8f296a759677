package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	zlog "zotregistry.dev/zarc/pkg/log"
)

type metricServer struct {
	enabled  bool
	registry *prometheus.Registry
	log      zlog.Logger

	repositories     *prometheus.CounterVec
	imagesScanned    *prometheus.CounterVec
	imagesEligible   *prometheus.CounterVec
	eligibleBytes    *prometheus.GaugeVec
	decisions        *prometheus.CounterVec
	evaluationTime   prometheus.Histogram
	transferEstimate prometheus.Gauge
}

func NewMetricsServer(enabled bool, log zlog.Logger) MetricServer {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metricServer{
		enabled:  enabled,
		registry: registry,
		log:      log.Component("monitoring"),
		repositories: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "repositories_total",
				Help:      "Total number of repositories evaluated, by status",
			},
			[]string{"status"},
		),
		imagesScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "images_scanned_total",
				Help:      "Total number of images classified",
			},
			[]string{"repo"},
		),
		imagesEligible: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "images_eligible_total",
				Help:      "Total number of images eligible for migration",
			},
			[]string{"repo"},
		),
		eligibleBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "eligible_bytes",
				Help:      "Bytes eligible for migration",
			},
			[]string{"repo"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "decisions_total",
				Help:      "Classifications by policy and reason",
			},
			[]string{"policy", "reason"},
		),
		evaluationTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "repository_evaluation_seconds",
				Help:      "Time spent listing and evaluating one repository",
				Buckets:   prometheus.DefBuckets,
			},
		),
		transferEstimate: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "transfer_estimate_seconds",
				Help:      "Estimated time needed to migrate all eligible bytes",
			},
		),
	}
}

func (ms *metricServer) IsEnabled() bool {
	return ms.enabled
}

func (ms *metricServer) ObserveRepository(repo string, scanned, eligible int, eligibleBytes int64,
	took time.Duration,
) {
	if !ms.enabled {
		return
	}

	ms.repositories.WithLabelValues("ok").Inc()
	ms.imagesScanned.WithLabelValues(repo).Add(float64(scanned))
	ms.imagesEligible.WithLabelValues(repo).Add(float64(eligible))
	ms.eligibleBytes.WithLabelValues(repo).Set(float64(eligibleBytes))
	ms.evaluationTime.Observe(took.Seconds())
}

func (ms *metricServer) IncRepositoryFailure(repo string) {
	if !ms.enabled {
		return
	}

	ms.repositories.WithLabelValues("failed").Inc()
}

func (ms *metricServer) IncDecision(policy, reason string) {
	if !ms.enabled {
		return
	}

	ms.decisions.WithLabelValues(policy, reason).Inc()
}

func (ms *metricServer) SetTransferEstimate(seconds float64) {
	if !ms.enabled {
		return
	}

	ms.transferEstimate.Set(seconds)
}

func (ms *metricServer) WriteTextfile(path string) error {
	if !ms.enabled || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, ms.registry); err != nil {
		ms.log.Error().Err(err).Str("path", path).Msg("failed to write metrics textfile")

		return err
	}

	ms.log.Info().Str("path", path).Msg("metrics written")

	return nil
}
