package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
	"github.com/guimove/rmqscaler/internal/orchestrator"
	"github.com/guimove/rmqscaler/internal/stability"
)

func sampleEvaluation() orchestrator.Evaluation {
	at := time.Unix(1700000000, 0).UTC()
	return orchestrator.Evaluation{
		EvaluatedAt:      at,
		Snapshot:         model.NewSnapshot(15000, 12000, 500, 450),
		Target:           "HIGH",
		Load:             "scaling up resources",
		Current:          "LOW",
		CurrentResources: model.Resources{CPU: "330m", Memory: "2Gi"},
		Direction:        model.DirectionUp,
		Stability: stability.Result{
			State:     stability.StateWaitingDebounce,
			Record:    model.StabilityRecord{Profile: "HIGH", Since: at.Add(-10 * time.Second)},
			Elapsed:   10 * time.Second,
			Required:  30 * time.Second,
			Remaining: 20 * time.Second,
			Reason:    "scale-up debounce: HIGH stable for 10s, need 30s (20s remaining)",
		},
		CooldownOK:     true,
		CooldownReason: "no previous scale event",
	}
}

func sampleProfiles() []model.Profile {
	return []model.Profile{
		{Name: "LOW", CPU: "330m", Memory: "2Gi"},
		{Name: "MEDIUM", CPU: "800m", Memory: "3Gi", QueueThreshold: model.Threshold(2000), RateThreshold: model.Threshold(200.5)},
	}
}

var meta = Meta{Resource: "rabbitmqclusters prod/rmq", Backend: "management"}

func TestTableReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("table", &buf)

	if err := r.ReportEvaluation(context.Background(), sampleEvaluation(), meta); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Deepest queue:    12000", "Target:           HIGH", "Verdict: wait: scale-up debounce", "+50.0 msg/s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := r.ReportProfiles(context.Background(), sampleProfiles(), meta); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "200.50") || !strings.Contains(buf.String(), "LOW") {
		t.Errorf("unexpected profile table:\n%s", buf.String())
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("json", &buf)

	if err := r.ReportEvaluation(context.Background(), sampleEvaluation(), meta); err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out["target_profile"] != "HIGH" || out["would_apply"] != false {
		t.Errorf("unexpected output %v", out)
	}
	stab := out["stability"].(map[string]any)
	if stab["remaining_seconds"] != float64(20) {
		t.Errorf("remaining_seconds = %v", stab["remaining_seconds"])
	}

	buf.Reset()
	if err := r.ReportProfiles(context.Background(), sampleProfiles(), meta); err != nil {
		t.Fatal(err)
	}
	var profiles struct {
		Profiles []map[string]any `json:"profiles"`
	}
	if err := json.Unmarshal(buf.Bytes(), &profiles); err != nil {
		t.Fatal(err)
	}
	if len(profiles.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles.Profiles))
	}
	if _, ok := profiles.Profiles[0]["queue_threshold"]; ok {
		t.Error("lowest profile should omit thresholds")
	}
}

func TestMarkdownReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("markdown", &buf)

	ev := sampleEvaluation()
	ev.Stability.Eligible = true
	ev.Stability.State = stability.StateEligibleToScale
	if err := r.ReportEvaluation(context.Background(), ev, meta); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "> scale up from LOW to HIGH") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}

	buf.Reset()
	if err := r.ReportProfiles(context.Background(), sampleProfiles(), meta); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "| 1 | MEDIUM | 800m | 3Gi | 2000 | 200.50 |") {
		t.Errorf("unexpected markdown profiles:\n%s", buf.String())
	}
}

func TestVerdict(t *testing.T) {
	ev := sampleEvaluation()
	ev.Stability.Eligible = true
	ev.CooldownOK = false
	ev.CooldownReason = "scale-up cooldown"
	if got := verdict(ev); got != "wait: scale-up cooldown" {
		t.Errorf("verdict = %q", got)
	}

	ev.CooldownOK = true
	ev.Current = "HIGH"
	if got := verdict(ev); got != "no change: already at HIGH" {
		t.Errorf("verdict = %q", got)
	}
}
