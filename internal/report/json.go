package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/orchestrator"
)

// JSONReporter outputs evaluations as JSON.
type JSONReporter struct {
	w io.Writer
}

type evaluationOutput struct {
	Meta        Meta              `json:"meta"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
	Snapshot    model.Snapshot    `json:"snapshot"`
	Current     string            `json:"current_profile"`
	CurrentCPU  string            `json:"current_cpu"`
	CurrentMem  string            `json:"current_memory"`
	Target      string            `json:"target_profile"`
	Load        string            `json:"load"`
	Direction   string            `json:"direction"`
	Stability   stabilityOutput   `json:"stability"`
	Cooldown    cooldownOutput    `json:"cooldown"`
	LastScale   *model.ScaleEvent `json:"last_scale,omitempty"`
	WouldApply  bool              `json:"would_apply"`
}

type stabilityOutput struct {
	State            string  `json:"state"`
	Eligible         bool    `json:"eligible"`
	TrackedProfile   string  `json:"tracked_profile"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RequiredSeconds  float64 `json:"required_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Reason           string  `json:"reason"`
}

type cooldownOutput struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type profileOutput struct {
	Priority       int      `json:"priority"`
	Name           string   `json:"name"`
	CPU            string   `json:"cpu"`
	Memory         string   `json:"memory"`
	QueueThreshold *float64 `json:"queue_threshold,omitempty"`
	RateThreshold  *float64 `json:"rate_threshold,omitempty"`
}

func (r *JSONReporter) ReportEvaluation(ctx context.Context, ev orchestrator.Evaluation, meta Meta) error {
	sr := ev.Stability
	return r.encode(evaluationOutput{
		Meta:        meta,
		EvaluatedAt: ev.EvaluatedAt,
		Snapshot:    ev.Snapshot,
		Current:     ev.Current,
		CurrentCPU:  ev.CurrentResources.CPU,
		CurrentMem:  ev.CurrentResources.Memory,
		Target:      ev.Target,
		Load:        ev.Load,
		Direction:   ev.Direction.String(),
		Stability: stabilityOutput{
			State:            string(sr.State),
			Eligible:         sr.Eligible,
			TrackedProfile:   sr.Record.Profile,
			ElapsedSeconds:   sr.Elapsed.Seconds(),
			RequiredSeconds:  sr.Required.Seconds(),
			RemainingSeconds: sr.Remaining.Seconds(),
			Reason:           sr.Reason,
		},
		Cooldown: cooldownOutput{
			Allowed: ev.CooldownOK,
			Reason:  ev.CooldownReason,
		},
		LastScale:  ev.LastScale,
		WouldApply: ev.WouldApply(),
	})
}

func (r *JSONReporter) ReportProfiles(ctx context.Context, profiles []model.Profile, meta Meta) error {
	out := make([]profileOutput, len(profiles))
	for i, p := range profiles {
		out[i] = profileOutput{
			Priority:       i,
			Name:           p.Name,
			CPU:            p.CPU,
			Memory:         p.Memory,
			QueueThreshold: p.QueueThreshold,
			RateThreshold:  p.RateThreshold,
		}
	}
	return r.encode(struct {
		Meta     Meta            `json:"meta"`
		Profiles []profileOutput `json:"profiles"`
	}{meta, out})
}

func (r *JSONReporter) encode(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
