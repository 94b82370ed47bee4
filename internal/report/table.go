package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/orchestrator"
)

// TableReporter outputs evaluations as aligned terminal text.
type TableReporter struct {
	w io.Writer
}

func (r *TableReporter) ReportEvaluation(ctx context.Context, ev orchestrator.Evaluation, meta Meta) error {
	s := ev.Snapshot

	fmt.Fprintf(r.w, "\n")
	fmt.Fprintf(r.w, "RabbitMQ Scaling Evaluation\n")
	fmt.Fprintf(r.w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(r.w, "Resource:    %s\n", meta.Resource)
	fmt.Fprintf(r.w, "Backend:     %s\n", meta.Backend)
	if meta.DryRun {
		fmt.Fprintf(r.w, "Mode:        dry run\n")
	}
	fmt.Fprintf(r.w, "Evaluated:   %s\n", ev.EvaluatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(r.w, "%s\n\n", strings.Repeat("=", 60))

	fmt.Fprintf(r.w, "Broker load\n")
	fmt.Fprintf(r.w, "  Total messages:   %s\n", formatFloat(s.TotalMessages))
	fmt.Fprintf(r.w, "  Deepest queue:    %s\n", formatFloat(s.MaxQueueDepth))
	fmt.Fprintf(r.w, "  Publish rate:     %.1f msg/s\n", s.PublishRate)
	fmt.Fprintf(r.w, "  Consume rate:     %.1f msg/s\n", s.ConsumeRate)
	fmt.Fprintf(r.w, "  Backlog rate:     %+.1f msg/s\n\n", s.BacklogRate)

	fmt.Fprintf(r.w, "Profiles\n")
	fmt.Fprintf(r.w, "  Current:          %s (cpu=%s, memory=%s)\n", ev.Current, orDash(ev.CurrentResources.CPU), orDash(ev.CurrentResources.Memory))
	fmt.Fprintf(r.w, "  Target:           %s (%s)\n", ev.Target, ev.Load)
	fmt.Fprintf(r.w, "  Stability:        %s\n", ev.Stability.State)
	if ev.LastScale != nil {
		fmt.Fprintf(r.w, "  Last scale:       %s at %s\n", ev.LastScale.Profile, ev.LastScale.AppliedAt.Format("2006-01-02 15:04:05 MST"))
	}

	fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 60))
	fmt.Fprintf(r.w, "Verdict: %s\n\n", verdict(ev))
	return nil
}

func (r *TableReporter) ReportProfiles(ctx context.Context, profiles []model.Profile, meta Meta) error {
	if len(profiles) == 0 {
		fmt.Fprintf(r.w, "No profiles configured.\n")
		return nil
	}

	fmt.Fprintf(r.w, "%-4s %-16s %8s %8s %14s %12s\n", "Prio", "Profile", "CPU", "Memory", "Queue >", "Rate >")
	fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 68))
	for i, p := range profiles {
		fmt.Fprintf(r.w, "%-4d %-16s %8s %8s %14s %12s\n",
			i, p.Name, p.CPU, p.Memory, threshold(p.QueueThreshold), threshold(p.RateThreshold))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func fmtFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
