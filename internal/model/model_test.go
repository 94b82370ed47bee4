package model

import (
	"errors"
	"testing"
)

func ladder() []Profile {
	return []Profile{
		{Name: "LOW", CPU: "330m", Memory: "2Gi"},
		{Name: "MEDIUM", CPU: "800m", Memory: "3Gi", QueueThreshold: Threshold(2000), RateThreshold: Threshold(200)},
		{Name: "HIGH", CPU: "1600m", Memory: "4Gi", QueueThreshold: Threshold(10000), RateThreshold: Threshold(1000)},
		{Name: "CRITICAL", CPU: "2400m", Memory: "8Gi", QueueThreshold: Threshold(50000), RateThreshold: Threshold(2000)},
	}
}

func TestNewProfileTable(t *testing.T) {
	table, err := NewProfileTable(ladder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 4 {
		t.Errorf("expected 4 profiles, got %d", table.Len())
	}
	if table.Lowest().Name != "LOW" || table.Highest().Name != "CRITICAL" {
		t.Errorf("unexpected bounds: %s..%s", table.Lowest().Name, table.Highest().Name)
	}
	if got := table.Priority("HIGH"); got != 2 {
		t.Errorf("Priority(HIGH) = %d, want 2", got)
	}
	if got := table.Priority(Unknown); got != -1 {
		t.Errorf("Priority(UNKNOWN) = %d, want -1", got)
	}
}

func TestNewProfileTable_Errors(t *testing.T) {
	tests := []struct {
		name     string
		profiles []Profile
		want     error
	}{
		{"empty", nil, ErrNoProfiles},
		{"duplicate", []Profile{{Name: "A", CPU: "1", Memory: "1Gi"}, {Name: "A", CPU: "2", Memory: "2Gi"}}, ErrDuplicateProfile},
		{"reserved", []Profile{{Name: Unknown, CPU: "1", Memory: "1Gi"}}, ErrReservedProfile},
		{"lowest with thresholds", []Profile{{Name: "A", CPU: "1", Memory: "1Gi", RateThreshold: Threshold(5)}}, ErrLowestThresholds},
		{"bad cpu", []Profile{{Name: "A", CPU: "lots", Memory: "1Gi"}}, ErrInvalidQuantity},
		{"bad memory", []Profile{{Name: "A", CPU: "1", Memory: "big"}}, ErrInvalidQuantity},
		{"negative", []Profile{{Name: "A", CPU: "1", Memory: "1Gi"}, {Name: "B", CPU: "2", Memory: "2Gi", QueueThreshold: Threshold(-1)}}, ErrNegativeThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfileTable(tt.profiles)
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewProfileTable_EmptyName(t *testing.T) {
	if _, err := NewProfileTable([]Profile{{CPU: "1", Memory: "1Gi"}}); err == nil {
		t.Error("expected error for empty profile name")
	}
}

func TestProfileForCPU(t *testing.T) {
	table, err := NewProfileTable(ladder())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		cpu  string
		want string
	}{
		{"800m", "MEDIUM"},
		{"1.6", "HIGH"},
		{"2400m", "CRITICAL"},
		{"999m", Unknown},
		{"", Unknown},
		{"garbage", Unknown},
	}
	for _, tt := range tests {
		if got := table.ProfileForCPU(tt.cpu); got != tt.want {
			t.Errorf("ProfileForCPU(%q) = %q, want %q", tt.cpu, got, tt.want)
		}
	}
}

func TestProfileForCPU_LaterDeclarationWins(t *testing.T) {
	table, err := NewProfileTable([]Profile{
		{Name: "SMALL", CPU: "500m", Memory: "1Gi"},
		{Name: "SMALL_MORE_MEM", CPU: "500m", Memory: "4Gi", QueueThreshold: Threshold(100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := table.ProfileForCPU("500m"); got != "SMALL_MORE_MEM" {
		t.Errorf("expected later profile to win, got %q", got)
	}
}

func TestDirection(t *testing.T) {
	table, _ := NewProfileTable(ladder())

	if d := table.Direction("LOW", "HIGH"); d != DirectionUp {
		t.Errorf("LOW->HIGH = %s, want up", d)
	}
	if d := table.Direction("CRITICAL", "MEDIUM"); d != DirectionDown {
		t.Errorf("CRITICAL->MEDIUM = %s, want down", d)
	}
	if d := table.Direction("MEDIUM", "MEDIUM"); d != DirectionNone {
		t.Errorf("MEDIUM->MEDIUM = %s, want none", d)
	}
	if d := table.Direction(Unknown, "LOW"); d != DirectionUp {
		t.Errorf("UNKNOWN->LOW = %s, want up", d)
	}
}

func TestProfileTable_CopiesInput(t *testing.T) {
	profiles := ladder()
	table, _ := NewProfileTable(profiles)
	profiles[0].Name = "MUTATED"

	if table.Lowest().Name != "LOW" {
		t.Error("table should not alias the caller's slice")
	}
	out := table.Profiles()
	out[1].Name = "MUTATED"
	if table.At(1).Name != "MEDIUM" {
		t.Error("Profiles() should return a copy")
	}
}

func TestNewSnapshot_Backlog(t *testing.T) {
	s := NewSnapshot(10, 5, 100, 150)
	if s.BacklogRate != -50 {
		t.Errorf("BacklogRate = %v, want -50", s.BacklogRate)
	}
}

func TestStabilityRecord_IsZero(t *testing.T) {
	if !(StabilityRecord{}).IsZero() {
		t.Error("empty record should be zero")
	}
	if (StabilityRecord{Profile: "LOW"}).IsZero() {
		t.Error("record with profile should not be zero")
	}
}
