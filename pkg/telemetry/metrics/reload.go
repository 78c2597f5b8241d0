package metrics

import (
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ReloadMetrics tracks hot reload activity.
//
// Metrics:
//   - par_replacer_file_changes_total: Watched file changes by kind
//   - par_replacer_rescans_total: Scheduled directory rescans by status
type ReloadMetrics struct {
	changesTotal *prometheus.CounterVec
	rescansTotal *prometheus.CounterVec
}

// NewReloadMetrics creates and registers reload metrics with the provided registry.
func NewReloadMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReloadMetrics {
	rl := &ReloadMetrics{
		changesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "file_changes_total",
				Help:      "Total number of debounced rule file changes",
			},
			[]string{"kind"},
		),
		rescansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rescans_total",
				Help:      "Total number of scheduled directory rescans",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(rl.changesTotal, rl.rescansTotal)
	return rl
}

// RecordChange counts a file change of the given kind.
func (rl *ReloadMetrics) RecordChange(kind string) {
	rl.changesTotal.WithLabelValues(kind).Inc()
}

// RecordRescan counts a rescan. A nil error is recorded as "success".
func (rl *ReloadMetrics) RecordRescan(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	rl.rescansTotal.WithLabelValues(status).Inc()
}
