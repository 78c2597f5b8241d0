package metrics

import (
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ReplacerMetrics tracks rule loading and the evaluation and apply passes.
//
// Metrics:
//   - par_replacer_loads_total: Rule file loads by outcome
//   - par_replacer_active_rules: Rules currently installed
//   - par_replacer_group_rules: Rules per group after a directory load
//   - par_replacer_evaluation_duration_seconds: Evaluation pass duration
//   - par_replacer_evaluated_subjects: Subjects seen by the last evaluation
//   - par_replacer_assigned_subjects: Subjects with at least one rule
//   - par_replacer_evaluations_total: Evaluation passes
//   - par_replacer_apply_duration_seconds: Apply pass duration
//   - par_replacer_applied_total: Subjects whose pose was modified
type ReplacerMetrics struct {
	loadsTotal *prometheus.CounterVec

	activeRules prometheus.Gauge
	groupRules  *prometheus.GaugeVec

	evaluationDuration prometheus.Histogram
	evaluatedSubjects  prometheus.Gauge
	assignedSubjects   prometheus.Gauge
	evaluationsTotal   prometheus.Counter

	applyDuration prometheus.Histogram
	appliedTotal  prometheus.Counter
}

// NewReplacerMetrics creates and registers replacer metrics with the provided registry.
func NewReplacerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReplacerMetrics {
	rm := &ReplacerMetrics{
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "loads_total",
				Help:      "Total number of rule file loads by outcome",
			},
			[]string{"outcome"},
		),

		activeRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_rules",
			Help:      "Number of rules currently installed",
		}),

		groupRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "group_rules",
				Help:      "Number of rules loaded per group",
			},
			[]string{"group"},
		),

		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of an evaluation pass in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
		}),

		evaluatedSubjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluated_subjects",
			Help:      "Number of subjects seen by the last evaluation pass",
		}),

		assignedSubjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "assigned_subjects",
			Help:      "Number of subjects assigned at least one rule by the last evaluation pass",
		}),

		evaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluations_total",
			Help:      "Total number of evaluation passes",
		}),

		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "apply_duration_seconds",
			Help:      "Duration of an apply pass in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 16), // 1µs to 32ms
		}),

		appliedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "applied_total",
			Help:      "Total number of subjects whose pose was modified",
		}),
	}

	registry.MustRegister(
		rm.loadsTotal,
		rm.activeRules,
		rm.groupRules,
		rm.evaluationDuration,
		rm.evaluatedSubjects,
		rm.assignedSubjects,
		rm.evaluationsTotal,
		rm.applyDuration,
		rm.appliedTotal,
	)

	return rm
}

// RecordLoad counts a rule file load with the given outcome.
func (rm *ReplacerMetrics) RecordLoad(outcome string) {
	rm.loadsTotal.WithLabelValues(outcome).Inc()
}

// UpdateActiveRules sets the installed rule count.
func (rm *ReplacerMetrics) UpdateActiveRules(active int) {
	rm.activeRules.Set(float64(active))
}

// UpdateGroupRules sets the rule count of a group.
func (rm *ReplacerMetrics) UpdateGroupRules(group string, count int) {
	rm.groupRules.WithLabelValues(group).Set(float64(count))
}

// RecordEvaluation records one evaluation pass.
func (rm *ReplacerMetrics) RecordEvaluation(d time.Duration, subjects, assigned int) {
	rm.evaluationsTotal.Inc()
	rm.evaluationDuration.Observe(d.Seconds())
	rm.evaluatedSubjects.Set(float64(subjects))
	rm.assignedSubjects.Set(float64(assigned))
}

// RecordApply records one apply pass.
func (rm *ReplacerMetrics) RecordApply(d time.Duration, applied int) {
	rm.applyDuration.Observe(d.Seconds())
	rm.appliedTotal.Add(float64(applied))
}
