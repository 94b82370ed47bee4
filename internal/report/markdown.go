package report

import (
	"context"
	"fmt"
	"io"

	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/orchestrator"
)

// MarkdownReporter outputs GitHub-flavoured markdown, handy for PR comments
// and runbooks.
type MarkdownReporter struct {
	w io.Writer
}

func (r *MarkdownReporter) ReportEvaluation(ctx context.Context, ev orchestrator.Evaluation, meta Meta) error {
	s := ev.Snapshot

	fmt.Fprintf(r.w, "## RabbitMQ scaling evaluation\n\n")
	fmt.Fprintf(r.w, "**Resource:** `%s` · **Backend:** %s", meta.Resource, meta.Backend)
	if meta.DryRun {
		fmt.Fprintf(r.w, " · dry run")
	}
	fmt.Fprintf(r.w, "\n\n")

	fmt.Fprintf(r.w, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Total messages | %s |\n", formatFloat(s.TotalMessages))
	fmt.Fprintf(r.w, "| Deepest queue | %s |\n", formatFloat(s.MaxQueueDepth))
	fmt.Fprintf(r.w, "| Publish rate | %.1f msg/s |\n", s.PublishRate)
	fmt.Fprintf(r.w, "| Consume rate | %.1f msg/s |\n", s.ConsumeRate)
	fmt.Fprintf(r.w, "| Backlog rate | %+.1f msg/s |\n\n", s.BacklogRate)

	fmt.Fprintf(r.w, "- Current profile: **%s**\n", ev.Current)
	fmt.Fprintf(r.w, "- Target profile: **%s** (%s)\n", ev.Target, ev.Load)
	fmt.Fprintf(r.w, "- Stability: `%s`\n", ev.Stability.State)
	fmt.Fprintf(r.w, "\n> %s\n", verdict(ev))
	return nil
}

func (r *MarkdownReporter) ReportProfiles(ctx context.Context, profiles []model.Profile, meta Meta) error {
	fmt.Fprintf(r.w, "| Priority | Profile | CPU | Memory | Queue > | Rate > |\n")
	fmt.Fprintf(r.w, "|---:|---|---|---|---:|---:|\n")
	for i, p := range profiles {
		fmt.Fprintf(r.w, "| %d | %s | %s | %s | %s | %s |\n",
			i, p.Name, p.CPU, p.Memory, threshold(p.QueueThreshold), threshold(p.RateThreshold))
	}
	return nil
}
