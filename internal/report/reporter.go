package report

import (
	"context"
	"io"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/orchestrator"
)

// Reporter formats evaluations and the profile ladder for humans or tools.
type Reporter interface {
	ReportEvaluation(ctx context.Context, ev orchestrator.Evaluation, meta Meta) error
	ReportProfiles(ctx context.Context, profiles []model.Profile, meta Meta) error
}

// Meta contains contextual metadata for the report.
type Meta struct {
	Resource    string    `json:"resource"`
	Backend     string    `json:"backend"`
	DryRun      bool      `json:"dry_run"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewReporter creates a reporter for the given format writing to w.
func NewReporter(format string, w io.Writer) Reporter {
	switch format {
	case "json":
		return &JSONReporter{w: w}
	case "markdown":
		return &MarkdownReporter{w: w}
	default:
		return &TableReporter{w: w}
	}
}

// verdict is the one-line conclusion shared by the text reporters.
func verdict(ev orchestrator.Evaluation) string {
	switch {
	case !ev.Stability.Eligible:
		return "wait: " + ev.Stability.Reason
	case !ev.CooldownOK:
		return "wait: " + ev.CooldownReason
	case ev.Current == ev.Target:
		return "no change: already at " + ev.Target
	default:
		return "scale " + ev.Direction.String() + " from " + ev.Current + " to " + ev.Target
	}
}

func threshold(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmtInt(int64(v))
	}
	return fmtFixed(v)
}
