package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

// StaticSource serves a snapshot from a JSON file or a fixed value.
// Used for dry runs, offline decisions, and tests.
type StaticSource struct {
	filePath string
	snapshot *model.Snapshot
}

// NewStaticSource creates a source that re-reads filePath on every Fetch,
// so the file can be edited while the loop runs.
func NewStaticSource(filePath string) *StaticSource {
	return &StaticSource{filePath: filePath}
}

// NewStaticSourceFromSnapshot creates a source that always returns s.
func NewStaticSourceFromSnapshot(s model.Snapshot) *StaticSource {
	return &StaticSource{snapshot: &s}
}

// Ping checks that the file exists.
func (s *StaticSource) Ping(ctx context.Context) error {
	if s.snapshot != nil {
		return nil
	}
	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("%w: static metrics file: %v", ErrBrokerUnreachable, err)
	}
	return nil
}

func (s *StaticSource) BackendType() string {
	return "static"
}

// Fetch returns the configured snapshot. BacklogRate is always recomputed
// from the publish and consume rates.
func (s *StaticSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	if s.snapshot != nil {
		snap := model.NewSnapshot(s.snapshot.TotalMessages, s.snapshot.MaxQueueDepth, s.snapshot.PublishRate, s.snapshot.ConsumeRate)
		if !s.snapshot.CollectedAt.IsZero() {
			snap.CollectedAt = s.snapshot.CollectedAt
		}
		return snap, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading static metrics file: %w", err)
	}

	var raw model.Snapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Snapshot{}, fmt.Errorf("parsing static metrics file: %w", err)
	}

	snap := model.NewSnapshot(raw.TotalMessages, raw.MaxQueueDepth, raw.PublishRate, raw.ConsumeRate)
	if !raw.CollectedAt.IsZero() {
		snap.CollectedAt = raw.CollectedAt
	} else {
		snap.CollectedAt = time.Now()
	}
	return snap, nil
}
