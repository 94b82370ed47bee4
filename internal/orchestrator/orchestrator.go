// Package orchestrator runs the vertical scaling control loop. Each tick maps
// broker load to a profile and patches the target resource once the move has
// held through its debounce window and no cooldown is active.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/guimove/rmqscaler/internal/cooldown"
	"github.com/guimove/rmqscaler/internal/decision"
	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/stability"
	"github.com/guimove/rmqscaler/internal/telemetry"
)

var (
	// ErrTransientFetch marks a tick aborted because metrics, the resource
	// or the state record could not be read. Nothing was mutated.
	ErrTransientFetch = errors.New("transient fetch failure")
	// ErrApply marks a failed resource patch. The stability record is left
	// alone so the next tick retries without waiting again.
	ErrApply = errors.New("applying profile")
)

// Outcome labels how a tick ended.
type Outcome string

const (
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeReadFailed  Outcome = "read_failed"
	OutcomeNotStable   Outcome = "not_stable"
	OutcomeCooldown    Outcome = "cooldown"
	OutcomeAtTarget    Outcome = "at_target"
	OutcomeApplied     Outcome = "applied"
	OutcomeDryRun      Outcome = "dry_run"
	OutcomeApplyFailed Outcome = "apply_failed"
)

// MetricsSource yields broker load snapshots.
type MetricsSource interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
}

// ResourceController reads and patches the managed resource.
type ResourceController interface {
	Current(ctx context.Context) (model.Resources, error)
	Apply(ctx context.Context, res model.Resources, dryRun bool) error
}

// StateStore persists the stability record and the last scale event.
type StateStore interface {
	Load(ctx context.Context) (model.PersistedState, error)
	SaveStability(ctx context.Context, rec model.StabilityRecord) error
	SaveScaleEvent(ctx context.Context, ev model.ScaleEvent) error
}

// Orchestrator owns the control loop. Exported fields may be replaced
// before Run; they must not change while it runs.
type Orchestrator struct {
	Source    MetricsSource
	Resource  ResourceController
	Store     StateStore
	Engine    *decision.Engine
	Tracker   *stability.Tracker
	Guard     *cooldown.Guard
	Interval  time.Duration
	DryRun    bool
	Log       zerolog.Logger
	Telemetry *telemetry.Telemetry
	Clock     func() time.Time

	lastScale *model.ScaleEvent
}

// New creates an orchestrator with the given collaborators.
func New(src MetricsSource, res ResourceController, store StateStore, engine *decision.Engine, tracker *stability.Tracker, guard *cooldown.Guard, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		Source:   src,
		Resource: res,
		Store:    store,
		Engine:   engine,
		Tracker:  tracker,
		Guard:    guard,
		Interval: interval,
		Log:      zerolog.Nop(),
		Clock:    time.Now,
	}
}

// Evaluation is everything one tick learns before deciding to act.
type Evaluation struct {
	EvaluatedAt      time.Time
	Snapshot         model.Snapshot
	Target           string
	Load             string
	Current          string
	CurrentResources model.Resources
	Direction        model.Direction
	Stability        stability.Result
	LastScale        *model.ScaleEvent
	CooldownOK       bool
	CooldownReason   string
}

// WouldApply reports whether the evaluation leads to a resource patch.
func (e Evaluation) WouldApply() bool {
	return e.Stability.Eligible && e.CooldownOK && e.Current != e.Target
}

// TickResult summarises one tick.
type TickResult struct {
	Outcome    Outcome
	Evaluation Evaluation
	Err        error
}

// Run ticks every Interval until ctx is cancelled. Cancellation is checked
// before each tick; a tick already running completes.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Interval <= 0 {
		return fmt.Errorf("orchestrator interval must be positive, got %v", o.Interval)
	}

	o.Log.Info().
		Dur("interval", o.Interval).
		Bool("dry_run", o.DryRun).
		Strs("profiles", o.Engine.Table().Names()).
		Msg("starting control loop")

	for {
		if ctx.Err() != nil {
			o.Log.Info().Msg("control loop stopped")
			return nil
		}

		o.Tick(context.WithoutCancel(ctx))

		timer := time.NewTimer(o.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.Log.Info().Msg("control loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Evaluate performs the read-only part of a tick. It writes no state, patches
// nothing and leaves telemetry untouched.
func (o *Orchestrator) Evaluate(ctx context.Context) (Evaluation, error) {
	ev, _, err := o.evaluate(ctx)
	return ev, err
}

// Tick runs one full iteration of the loop.
func (o *Orchestrator) Tick(ctx context.Context) TickResult {
	ev, outcome, err := o.evaluate(ctx)
	o.observe(ev, outcome)
	if err != nil {
		o.Log.Warn().Err(err).Str("outcome", string(outcome)).Msg("tick aborted, retrying next interval")
		return o.finish(TickResult{Outcome: outcome, Evaluation: ev, Err: err})
	}

	sr := ev.Stability
	if sr.Persist {
		if err := o.Store.SaveStability(ctx, sr.Record); err != nil {
			o.Log.Warn().Err(err).Msg("failed to persist stability record")
		}
	}

	if !sr.Eligible {
		o.Log.Info().
			Str("state", string(sr.State)).
			Str("current", ev.Current).
			Str("target", ev.Target).
			Msg(sr.Reason)
		return o.finish(TickResult{Outcome: OutcomeNotStable, Evaluation: ev})
	}

	if !ev.CooldownOK {
		o.Log.Info().Str("current", ev.Current).Str("target", ev.Target).Msg(ev.CooldownReason)
		return o.finish(TickResult{Outcome: OutcomeCooldown, Evaluation: ev})
	}

	if ev.Current == ev.Target {
		o.Log.Debug().Str("profile", ev.Current).Msg("already at target profile")
		return o.finish(TickResult{Outcome: OutcomeAtTarget, Evaluation: ev})
	}

	profile, _ := o.Engine.Table().Lookup(ev.Target)
	res := profile.Resources()

	if err := o.Resource.Apply(ctx, res, o.DryRun); err != nil {
		err = fmt.Errorf("%w: %s -> %s: %w", ErrApply, ev.Current, ev.Target, err)
		o.Log.Error().Err(err).Msg("scaling failed")
		return o.finish(TickResult{Outcome: OutcomeApplyFailed, Evaluation: ev, Err: err})
	}

	if o.DryRun {
		o.Log.Info().
			Str("from", ev.Current).
			Str("to", ev.Target).
			Str("cpu", res.CPU).
			Str("memory", res.Memory).
			Msg("dry run: would scale")
		return o.finish(TickResult{Outcome: OutcomeDryRun, Evaluation: ev})
	}

	now := ev.EvaluatedAt
	event := model.ScaleEvent{Profile: ev.Target, AppliedAt: now}
	o.lastScale = &event
	if err := o.Store.SaveScaleEvent(ctx, event); err != nil {
		o.Log.Warn().Err(err).Msg("failed to persist scale event")
	}
	if err := o.Store.SaveStability(ctx, model.StabilityRecord{Profile: ev.Target, Since: now}); err != nil {
		o.Log.Warn().Err(err).Msg("failed to reset stability record")
	}
	if o.Telemetry != nil {
		o.Telemetry.ObserveScale(ev.Direction)
	}

	o.Log.Info().
		Str("from", ev.Current).
		Str("to", ev.Target).
		Str("direction", ev.Direction.String()).
		Str("cpu", res.CPU).
		Str("memory", res.Memory).
		Msg("scaling completed")
	return o.finish(TickResult{Outcome: OutcomeApplied, Evaluation: ev})
}

func (o *Orchestrator) evaluate(ctx context.Context) (Evaluation, Outcome, error) {
	var ev Evaluation

	snap, err := o.Source.Fetch(ctx)
	if err != nil {
		return ev, OutcomeFetchFailed, fmt.Errorf("%w: metrics: %w", ErrTransientFetch, err)
	}
	ev.Snapshot = snap

	ev.Target = o.Engine.Target(snap)
	ev.Load = o.Engine.Describe(ev.Target)
	o.Log.Info().
		Float64("total_messages", snap.TotalMessages).
		Float64("max_queue_depth", snap.MaxQueueDepth).
		Float64("publish_rate", snap.PublishRate).
		Float64("consume_rate", snap.ConsumeRate).
		Float64("backlog_rate", snap.BacklogRate).
		Str("target", ev.Target).
		Msg(ev.Load)

	current, err := o.Resource.Current(ctx)
	if err != nil {
		return ev, OutcomeReadFailed, fmt.Errorf("%w: resource: %w", ErrTransientFetch, err)
	}
	ev.CurrentResources = current
	ev.Current = o.Engine.Table().ProfileForCPU(current.CPU)

	st, err := o.Store.Load(ctx)
	if err != nil {
		return ev, OutcomeReadFailed, fmt.Errorf("%w: state: %w", ErrTransientFetch, err)
	}

	ev.EvaluatedAt = o.Clock().Truncate(time.Second)
	ev.Direction = o.Engine.Table().Direction(ev.Current, ev.Target)
	ev.LastScale = latest(o.lastScale, st.LastScale)
	ev.Stability = o.Tracker.Evaluate(ev.Current, ev.Target, st.Stability, ev.EvaluatedAt)
	ev.CooldownOK, ev.CooldownReason = o.Guard.Allow(ev.LastScale, ev.Direction, ev.EvaluatedAt)

	return ev, "", nil
}

// observe publishes whatever the evaluation got as far as reading.
func (o *Orchestrator) observe(ev Evaluation, outcome Outcome) {
	if o.Telemetry == nil || outcome == OutcomeFetchFailed {
		return
	}
	o.Telemetry.ObserveSnapshot(ev.Snapshot)
	o.Telemetry.SetProfiles(ev.Current, ev.Target)
}

func (o *Orchestrator) finish(r TickResult) TickResult {
	if o.Telemetry != nil {
		o.Telemetry.ObserveTick(string(r.Outcome), o.Clock())
	}
	return r
}

// latest returns the more recent of two scale events.
func latest(a, b *model.ScaleEvent) *model.ScaleEvent {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.AppliedAt.After(a.AppliedAt):
		return b
	default:
		return a
	}
}
