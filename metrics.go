package ctclient

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation a Monitor reports against,
// the way filippo.io/sunlight instruments its own sequencing loop with
// prometheus/client_golang counters and gauges. A Metrics value is shared
// across every Update call on the Monitor it's attached to via WithMetrics;
// callers monitoring several logs typically construct one Metrics per log,
// labeled by the log's name, and register all of them on a common
// *prometheus.Registry.
type Metrics struct {
	// FetchErrors counts get-sth calls that failed at the transport or
	// HTTP-status level.
	FetchErrors prometheus.Counter
	// SignatureErrors counts STHs whose signature failed verification.
	SignatureErrors prometheus.Counter
	// ConsistencyErrors counts consistency proofs (including the
	// per-subtree leaf recomputation) that failed to verify.
	ConsistencyErrors prometheus.Counter
	// LeavesVerified counts individual leaves whose certificate chain
	// (and, for precerts, TBS reconstruction) has been checked.
	LeavesVerified prometheus.Counter
	// TreeSize reports the size of the most recently trusted tree head.
	TreeSize prometheus.Gauge
	// UpdateDuration observes the wall-clock time of each Update call.
	UpdateDuration prometheus.Histogram
}

// NewMetrics builds a Metrics instance with the given logName as a constant
// label on every series, and registers it on reg.
func NewMetrics(reg prometheus.Registerer, logName string) *Metrics {
	constLabels := prometheus.Labels{"log": logName}
	m := &Metrics{
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ctclient_fetch_errors_total",
			Help:        "STH fetches that failed at the transport or HTTP-status level.",
			ConstLabels: constLabels,
		}),
		SignatureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ctclient_signature_errors_total",
			Help:        "Signed tree heads whose signature failed verification.",
			ConstLabels: constLabels,
		}),
		ConsistencyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ctclient_consistency_errors_total",
			Help:        "Consistency proofs (including leaf recomputation) that failed to verify.",
			ConstLabels: constLabels,
		}),
		LeavesVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ctclient_leaves_verified_total",
			Help:        "Leaves whose certificate chain has been checked against the log.",
			ConstLabels: constLabels,
		}),
		TreeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ctclient_tree_size",
			Help:        "Size of the most recently trusted tree head.",
			ConstLabels: constLabels,
		}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ctclient_update_duration_seconds",
			Help:        "Wall-clock duration of each Update call.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.FetchErrors, m.SignatureErrors, m.ConsistencyErrors, m.LeavesVerified, m.TreeSize, m.UpdateDuration)
	return m
}
