// Package stability implements the debounce state machine that decides when a
// profile recommendation has held long enough to act on.
//
// The tracker is pure: it takes the persisted record and returns the record
// that should be persisted next. The caller owns storage.
package stability

import (
	"fmt"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

// State is the per-tick outcome of a stability evaluation.
type State string

const (
	// StateReportedChanged means the recommendation differs from the tracked
	// profile; the timer restarts.
	StateReportedChanged State = "reported_changed"
	// StateAlreadyAtTarget means the resource already runs the recommendation.
	StateAlreadyAtTarget State = "already_at_target"
	// StateWaitingDebounce means the recommendation is stable but not for long
	// enough yet.
	StateWaitingDebounce State = "waiting_debounce"
	// StateEligibleToScale means the debounce window has elapsed.
	StateEligibleToScale State = "eligible_to_scale"
)

// Default debounce windows.
const (
	DefaultScaleUpDebounce   = 30 * time.Second
	DefaultScaleDownDebounce = 120 * time.Second
)

// Result describes one stability evaluation.
type Result struct {
	State    State
	Eligible bool

	// Record is the stability record to keep. When Persist is true it differs
	// from the input record and must be written back.
	Record  model.StabilityRecord
	Persist bool

	Direction model.Direction
	Elapsed   time.Duration
	Required  time.Duration
	Remaining time.Duration

	// Reason is a human-readable explanation; Eligible is the contract.
	Reason string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithScaleUpDebounce sets how long a higher profile must be recommended
// before scaling up.
func WithScaleUpDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.scaleUp = d }
}

// WithScaleDownDebounce sets how long a lower profile must be recommended
// before scaling down.
func WithScaleDownDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.scaleDown = d }
}

// WithRefreshAtTarget controls whether reaching the target refreshes the
// record's timestamp. Enabled by default.
func WithRefreshAtTarget(enabled bool) Option {
	return func(t *Tracker) { t.refreshAtTarget = enabled }
}

// Tracker evaluates recommendation stability against direction-dependent
// debounce windows.
type Tracker struct {
	table           *model.ProfileTable
	scaleUp         time.Duration
	scaleDown       time.Duration
	refreshAtTarget bool
}

// NewTracker creates a Tracker for the given profile ladder.
func NewTracker(table *model.ProfileTable, opts ...Option) *Tracker {
	t := &Tracker{
		table:           table,
		scaleUp:         DefaultScaleUpDebounce,
		scaleDown:       DefaultScaleDownDebounce,
		refreshAtTarget: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Required returns the debounce window for a direction.
func (t *Tracker) Required(d model.Direction) time.Duration {
	if d == model.DirectionUp {
		return t.scaleUp
	}
	return t.scaleDown
}

// Evaluate runs one step of the state machine. Elapsed time is measured in
// whole seconds and the boundary is inclusive.
func (t *Tracker) Evaluate(current, target string, rec model.StabilityRecord, now time.Time) Result {
	now = now.Truncate(time.Second)

	if rec.Profile != target {
		fresh := model.StabilityRecord{Profile: target, Since: now}
		from := rec.Profile
		if from == "" {
			from = "<none>"
		}
		return Result{
			State:     StateReportedChanged,
			Record:    fresh,
			Persist:   true,
			Direction: t.table.Direction(current, target),
			Reason:    fmt.Sprintf("recommendation changed from %s to %s, restarting stability timer", from, target),
		}
	}

	if current == target {
		res := Result{
			State:     StateAlreadyAtTarget,
			Eligible:  true,
			Record:    rec,
			Direction: model.DirectionNone,
			Reason:    fmt.Sprintf("already at recommended profile %s", target),
		}
		if t.refreshAtTarget && !rec.Since.Equal(now) {
			res.Record = model.StabilityRecord{Profile: target, Since: now}
			res.Persist = true
		}
		return res
	}

	dir := t.table.Direction(current, target)
	required := t.Required(dir).Truncate(time.Second)
	elapsed := time.Duration(now.Unix()-rec.Since.Unix()) * time.Second

	res := Result{
		Record:    rec,
		Direction: dir,
		Elapsed:   elapsed,
		Required:  required,
	}

	if elapsed < required {
		res.State = StateWaitingDebounce
		res.Remaining = required - elapsed
		res.Reason = fmt.Sprintf("scale-%s debounce: %s stable for %s, need %s (%s remaining)",
			dir, target, elapsed, required, res.Remaining)
		return res
	}

	res.State = StateEligibleToScale
	res.Eligible = true
	res.Reason = fmt.Sprintf("%s has been stable for %s (required %s)", target, elapsed, required)
	return res
}
