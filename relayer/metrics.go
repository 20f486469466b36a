package relayer

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "relayer"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Latest height received from the sequencer.
	SequencerHeight metrics.Gauge
	// Highest height handed to the DA layer.
	LastSubmittedHeight metrics.Gauge
	// Commit pointer.
	LastConfirmedHeight metrics.Gauge
	// Number of heights between the commit pointer and the last submitted height.
	PendingHeights metrics.Gauge

	// Heights relayed without a DA blob (filtered or read-only mode).
	SkippedHeights metrics.Counter
	// Batches dispatched.
	Batches metrics.Counter
	// Heights per batch.
	BatchHeights metrics.Histogram
	// Blob bytes per batch.
	BatchSizeBytes metrics.Histogram

	// Submit attempts, successful or not.
	SubmitAttempts metrics.Counter
	// Failed submit attempts.
	SubmitFailures metrics.Counter
	// Resubmissions after a batch was not found on DA.
	Resubmissions metrics.Counter
	// Duration of a submit call.
	SubmitDuration metrics.Histogram
	// Time from first dispatch to confirmation at depth.
	ConfirmationLatency metrics.Histogram
	// Failed confirm queries.
	ConfirmFailures metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	gauge := func(name, help string) metrics.Gauge {
		return prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, labels).With(labelsAndValues...)
	}
	counter := func(name, help string) metrics.Counter {
		return prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, labels).With(labelsAndValues...)
	}
	histogram := func(name, help string, buckets []float64) metrics.Histogram {
		return prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels).With(labelsAndValues...)
	}

	return &Metrics{
		SequencerHeight:     gauge("sequencer_height", "Latest height received from the sequencer."),
		LastSubmittedHeight: gauge("last_submitted_height", "Highest sequencer height handed to the DA layer."),
		LastConfirmedHeight: gauge("last_confirmed_height", "Highest sequencer height confirmed on the DA layer without gaps."),
		PendingHeights:      gauge("pending_heights", "Sequencer heights submitted but not yet confirmed."),
		SkippedHeights:      counter("skipped_heights_total", "Sequencer heights relayed without a DA blob."),
		Batches:             counter("batches_total", "Batches dispatched to the DA layer."),
		BatchHeights:        histogram("batch_heights", "Sequencer heights per batch.", stdprometheus.LinearBuckets(1, 1, 10)),
		BatchSizeBytes:      histogram("batch_size_bytes", "Blob bytes per batch.", stdprometheus.ExponentialBuckets(256, 4, 10)),
		SubmitAttempts:      counter("submit_attempts_total", "Submit attempts."),
		SubmitFailures:      counter("submit_failures_total", "Failed submit attempts."),
		Resubmissions:       counter("resubmissions_total", "Batches resubmitted after not being found on the DA layer."),
		SubmitDuration:      histogram("submit_duration_seconds", "Duration of a DA submit call.", stdprometheus.DefBuckets),
		ConfirmationLatency: histogram("confirmation_latency_seconds", "Time from first dispatch to confirmation at depth.", stdprometheus.ExponentialBuckets(0.5, 2, 12)),
		ConfirmFailures:     counter("confirm_failures_total", "Failed DA confirmation queries."),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		SequencerHeight:     discard.NewGauge(),
		LastSubmittedHeight: discard.NewGauge(),
		LastConfirmedHeight: discard.NewGauge(),
		PendingHeights:      discard.NewGauge(),
		SkippedHeights:      discard.NewCounter(),
		Batches:             discard.NewCounter(),
		BatchHeights:        discard.NewHistogram(),
		BatchSizeBytes:      discard.NewHistogram(),
		SubmitAttempts:      discard.NewCounter(),
		SubmitFailures:      discard.NewCounter(),
		Resubmissions:       discard.NewCounter(),
		SubmitDuration:      discard.NewHistogram(),
		ConfirmationLatency: discard.NewHistogram(),
		ConfirmFailures:     discard.NewCounter(),
	}
}
