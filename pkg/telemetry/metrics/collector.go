package metrics

import (
	"sync"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherGroup collects group labels past the cardinality limit.
const otherGroup = "other"

// Collector owns every replacer metric. It implements manager.Recorder, so
// it can be handed straight to the manager configuration.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	replacerMetrics *ReplacerMetrics
	reloadMetrics   *ReloadMetrics

	// Rule groups are directory names and therefore unbounded.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a new registry
// is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "par",
//		Subsystem: "replacer",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		replacerMetrics:    NewReplacerMetrics(cfg, registry),
		reloadMetrics:      NewReloadMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(256),
	}
}

// RecordLoad counts a rule file load.
//
// Parameters:
//   - outcome: "loaded", "invalid", "failed" or "retracted"
func (c *Collector) RecordLoad(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.replacerMetrics.RecordLoad(outcome)
}

// RecordRules sets the number of installed rules.
func (c *Collector) RecordRules(active int) {
	if !c.config.Enabled {
		return
	}
	c.replacerMetrics.UpdateActiveRules(active)
}

// RecordGroups sets the per-group rule counts of a directory load. Groups
// past the cardinality limit are summed into "other".
func (c *Collector) RecordGroups(groups map[string]int) {
	if !c.config.Enabled {
		return
	}

	overflow := 0
	for group, count := range groups {
		if !c.cardinalityLimiter.Allow(group) {
			overflow += count
			continue
		}
		c.replacerMetrics.UpdateGroupRules(group, count)
	}
	if overflow > 0 {
		c.replacerMetrics.UpdateGroupRules(otherGroup, overflow)
	}
}

// RecordEvaluation records an evaluation pass.
//
// Parameters:
//   - d: pass duration
//   - subjects: subjects considered
//   - assigned: subjects that received at least one rule
func (c *Collector) RecordEvaluation(d time.Duration, subjects, assigned int) {
	if !c.config.Enabled {
		return
	}
	c.replacerMetrics.RecordEvaluation(d, subjects, assigned)
}

// RecordApply records an apply pass that modified applied subjects.
func (c *Collector) RecordApply(d time.Duration, applied int) {
	if !c.config.Enabled {
		return
	}
	c.replacerMetrics.RecordApply(d, applied)
}

// RecordChange counts a debounced file change ("written" or "removed").
func (c *Collector) RecordChange(kind string) {
	if !c.config.Enabled {
		return
	}
	c.reloadMetrics.RecordChange(kind)
}

// RecordRescan counts a scheduled directory rescan.
func (c *Collector) RecordRescan(err error) {
	if !c.config.Enabled {
		return
	}
	c.reloadMetrics.RecordRescan(err)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether label may be used. Known labels are always allowed;
// new ones are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(label string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[label]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[label]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[label] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
