package stability

import (
	"strings"
	"testing"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

var now = time.Unix(1_700_000_000, 0)

func newTracker(t *testing.T, opts ...Option) *Tracker {
	t.Helper()
	table, err := model.NewProfileTable([]model.Profile{
		{Name: "LOW", CPU: "330m", Memory: "2Gi"},
		{Name: "MEDIUM", CPU: "800m", Memory: "3Gi", QueueThreshold: model.Threshold(2000), RateThreshold: model.Threshold(200)},
		{Name: "HIGH", CPU: "1600m", Memory: "4Gi", QueueThreshold: model.Threshold(10000), RateThreshold: model.Threshold(1000)},
		{Name: "CRITICAL", CPU: "2400m", Memory: "8Gi", QueueThreshold: model.Threshold(50000), RateThreshold: model.Threshold(2000)},
	})
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithScaleUpDebounce(30 * time.Second), WithScaleDownDebounce(120 * time.Second)}, opts...)
	return NewTracker(table, opts...)
}

func ago(seconds int) time.Time {
	return now.Add(-time.Duration(seconds) * time.Second)
}

func TestEvaluate_RecommendationChanged(t *testing.T) {
	tr := newTracker(t)

	for _, rec := range []model.StabilityRecord{
		{},
		{Profile: "HIGH", Since: ago(1000)},
		{Profile: "LOW", Since: ago(5)},
	} {
		res := tr.Evaluate("LOW", "MEDIUM", rec, now)
		if res.Eligible {
			t.Errorf("record %+v: expected not eligible", rec)
		}
		if res.State != StateReportedChanged {
			t.Errorf("record %+v: state = %s, want %s", rec, res.State, StateReportedChanged)
		}
		if !res.Persist {
			t.Errorf("record %+v: reset record must be persisted", rec)
		}
		if res.Record.Profile != "MEDIUM" || !res.Record.Since.Equal(now) {
			t.Errorf("record %+v: reset to %+v, want {MEDIUM %v}", rec, res.Record, now)
		}
	}
}

func TestEvaluate_ScaleUpEligible(t *testing.T) {
	tr := newTracker(t)
	res := tr.Evaluate("LOW", "MEDIUM", model.StabilityRecord{Profile: "MEDIUM", Since: ago(35)}, now)

	if !res.Eligible {
		t.Fatalf("expected eligible, reason: %s", res.Reason)
	}
	if res.State != StateEligibleToScale {
		t.Errorf("state = %s, want %s", res.State, StateEligibleToScale)
	}
	if res.Direction != model.DirectionUp {
		t.Errorf("direction = %s, want up", res.Direction)
	}
	if res.Persist {
		t.Error("eligible evaluation should not rewrite the record")
	}
}

func TestEvaluate_ScaleUpWaiting(t *testing.T) {
	tr := newTracker(t)
	res := tr.Evaluate("LOW", "MEDIUM", model.StabilityRecord{Profile: "MEDIUM", Since: ago(10)}, now)

	if res.Eligible {
		t.Fatal("expected not eligible")
	}
	if res.State != StateWaitingDebounce {
		t.Errorf("state = %s, want %s", res.State, StateWaitingDebounce)
	}
	if res.Remaining != 20*time.Second {
		t.Errorf("remaining = %s, want 20s", res.Remaining)
	}
	if !strings.Contains(res.Reason, "20s remaining") {
		t.Errorf("reason should report remaining time, got %q", res.Reason)
	}
}

func TestEvaluate_ScaleDownWaiting(t *testing.T) {
	tr := newTracker(t)
	res := tr.Evaluate("HIGH", "MEDIUM", model.StabilityRecord{Profile: "MEDIUM", Since: ago(60)}, now)

	if res.Eligible {
		t.Fatal("expected not eligible")
	}
	if res.Direction != model.DirectionDown {
		t.Errorf("direction = %s, want down", res.Direction)
	}
	if res.Required != 120*time.Second {
		t.Errorf("required = %s, want 120s", res.Required)
	}
	if res.Remaining != 60*time.Second {
		t.Errorf("remaining = %s, want 60s", res.Remaining)
	}
}

func TestEvaluate_BoundaryInclusive(t *testing.T) {
	tr := newTracker(t)

	tests := []struct {
		name    string
		current string
		target  string
		elapsed int
		want    bool
	}{
		{"up at boundary", "LOW", "HIGH", 30, true},
		{"up one second short", "LOW", "HIGH", 29, false},
		{"down at boundary", "CRITICAL", "LOW", 120, true},
		{"down one second short", "CRITICAL", "LOW", 119, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.StabilityRecord{Profile: tt.target, Since: ago(tt.elapsed)}
			if got := tr.Evaluate(tt.current, tt.target, rec, now).Eligible; got != tt.want {
				t.Errorf("eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_SubSecondClockIgnored(t *testing.T) {
	tr := newTracker(t)
	rec := model.StabilityRecord{Profile: "MEDIUM", Since: ago(30)}

	if !tr.Evaluate("LOW", "MEDIUM", rec, now.Add(900*time.Millisecond)).Eligible {
		t.Error("fractional seconds should not change the outcome")
	}
}

func TestEvaluate_AlreadyAtTarget(t *testing.T) {
	tr := newTracker(t)
	rec := model.StabilityRecord{Profile: "MEDIUM", Since: ago(500)}
	res := tr.Evaluate("MEDIUM", "MEDIUM", rec, now)

	if !res.Eligible {
		t.Error("already at target should be eligible")
	}
	if res.State != StateAlreadyAtTarget {
		t.Errorf("state = %s, want %s", res.State, StateAlreadyAtTarget)
	}
	if !res.Persist || !res.Record.Since.Equal(now) {
		t.Errorf("expected refreshed record at %v, got %+v (persist=%v)", now, res.Record, res.Persist)
	}
}

func TestEvaluate_AlreadyAtTarget_NoRefresh(t *testing.T) {
	tr := newTracker(t, WithRefreshAtTarget(false))
	rec := model.StabilityRecord{Profile: "MEDIUM", Since: ago(500)}
	res := tr.Evaluate("MEDIUM", "MEDIUM", rec, now)

	if res.Persist {
		t.Error("refresh disabled: record should not be rewritten")
	}
	if !res.Record.Since.Equal(rec.Since) {
		t.Errorf("record changed: %+v", res.Record)
	}
}

func TestEvaluate_UnknownCurrentScalesUp(t *testing.T) {
	tr := newTracker(t)
	rec := model.StabilityRecord{Profile: "LOW", Since: ago(30)}
	res := tr.Evaluate(model.Unknown, "LOW", rec, now)

	if res.State == StateAlreadyAtTarget {
		t.Fatal("UNKNOWN must never count as already at target")
	}
	if res.Direction != model.DirectionUp {
		t.Errorf("direction = %s, want up", res.Direction)
	}
	if !res.Eligible {
		t.Errorf("expected eligible after scale-up debounce, reason: %s", res.Reason)
	}
}

func TestNewTracker_Defaults(t *testing.T) {
	table, _ := model.NewProfileTable([]model.Profile{{Name: "A", CPU: "1", Memory: "1Gi"}})
	tr := NewTracker(table)
	if tr.Required(model.DirectionUp) != DefaultScaleUpDebounce {
		t.Errorf("scale-up default = %s", tr.Required(model.DirectionUp))
	}
	if tr.Required(model.DirectionDown) != DefaultScaleDownDebounce {
		t.Errorf("scale-down default = %s", tr.Required(model.DirectionDown))
	}
}
