// Package decision selects the target profile for a broker load snapshot.
package decision

import (
	"fmt"

	"github.com/guimove/rmqscaler/internal/model"
)

// QueueDepthMetric selects which queue-depth figure is compared against
// queue thresholds.
type QueueDepthMetric string

const (
	// QueueDepthMax compares the deepest single queue.
	QueueDepthMax QueueDepthMetric = "max_queue"
	// QueueDepthTotal compares the sum of messages across all queues.
	QueueDepthTotal QueueDepthMetric = "total"
)

// Valid reports whether m is a known metric.
func (m QueueDepthMetric) Valid() bool {
	return m == QueueDepthMax || m == QueueDepthTotal
}

// Value extracts the selected queue depth from s.
func (m QueueDepthMetric) Value(s model.Snapshot) float64 {
	if m == QueueDepthTotal {
		return s.TotalMessages
	}
	return s.MaxQueueDepth
}

// DetermineTargetProfile returns the highest-priority profile whose queue or
// rate threshold is exceeded, or the lowest profile when none is. The lowest
// profile is never tested. Thresholds compare strictly, so a metric equal to
// its threshold does not trigger.
func DetermineTargetProfile(s model.Snapshot, table *model.ProfileTable, depth QueueDepthMetric) string {
	queueDepth := depth.Value(s)

	for i := table.Len() - 1; i > 0; i-- {
		p := table.At(i)
		if p.QueueThreshold != nil && queueDepth > *p.QueueThreshold {
			return p.Name
		}
		if p.RateThreshold != nil && s.PublishRate > *p.RateThreshold {
			return p.Name
		}
	}
	return table.Lowest().Name
}

// Engine binds a profile table and queue-depth choice.
type Engine struct {
	table *model.ProfileTable
	depth QueueDepthMetric
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueueDepthMetric sets the queue-depth figure used for queue thresholds.
func WithQueueDepthMetric(m QueueDepthMetric) Option {
	return func(e *Engine) { e.depth = m }
}

// NewEngine creates an Engine. The default compares the deepest queue.
func NewEngine(table *model.ProfileTable, opts ...Option) *Engine {
	e := &Engine{table: table, depth: QueueDepthMax}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Target returns the recommended profile for s.
func (e *Engine) Target(s model.Snapshot) string {
	return DetermineTargetProfile(s, e.table, e.depth)
}

// Table returns the engine's profile table.
func (e *Engine) Table() *model.ProfileTable {
	return e.table
}

// Describe returns a one-line load summary for a recommended profile.
func (e *Engine) Describe(profile string) string {
	idx := e.table.Priority(profile)
	n := e.table.Len()

	switch {
	case idx < 0:
		return fmt.Sprintf("%s load detected - profile not configured", profile)
	case idx == 0:
		return fmt.Sprintf("%s load detected - minimal resources", profile)
	case idx == n-1:
		return fmt.Sprintf("%s load detected - scaling to maximum resources", profile)
	case float64(idx) >= float64(n)/2:
		return fmt.Sprintf("%s load detected - scaling up resources", profile)
	default:
		return fmt.Sprintf("%s load detected - moderate scaling", profile)
	}
}
