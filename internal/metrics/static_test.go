package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guimove/rmqscaler/internal/model"
)

func TestStaticSource_FromSnapshot(t *testing.T) {
	src := NewStaticSourceFromSnapshot(model.Snapshot{
		TotalMessages: 100,
		MaxQueueDepth: 60,
		PublishRate:   10,
		ConsumeRate:   4,
	})

	if err := src.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if src.BackendType() != "static" {
		t.Errorf("expected backend type 'static', got %q", src.BackendType())
	}

	snap, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.MaxQueueDepth != 60 || snap.BacklogRate != 6 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.CollectedAt.IsZero() {
		t.Error("expected CollectedAt to be set")
	}
}

func TestStaticSource_FromFile(t *testing.T) {
	content := `{
		"total_messages": 12000,
		"max_queue_depth": 11000,
		"publish_rate": 500,
		"consume_rate": 700,
		"backlog_rate": 999
	}`

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewStaticSource(path)
	if err := src.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	snap, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.TotalMessages != 12000 || snap.MaxQueueDepth != 11000 {
		t.Errorf("unexpected depth %+v", snap)
	}
	if snap.BacklogRate != -200 {
		t.Errorf("BacklogRate should be recomputed, got %v", snap.BacklogRate)
	}
}

func TestStaticSource_Errors(t *testing.T) {
	missing := NewStaticSource("/nonexistent/snapshot.json")
	if err := missing.Ping(context.Background()); err == nil {
		t.Error("expected Ping error for missing file")
	}
	if _, err := missing.Fetch(context.Background()); err == nil {
		t.Error("expected Fetch error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStaticSource(path).Fetch(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

type flakySource struct {
	StaticSource
	failures int
	pings    int
}

func (f *flakySource) Ping(ctx context.Context) error {
	f.pings++
	if f.pings <= f.failures {
		return ErrBrokerUnreachable
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	src := &flakySource{failures: 2}
	err := WaitReady(context.Background(), src, 10*time.Millisecond, 5*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if src.pings != 3 {
		t.Errorf("expected 3 pings, got %d", src.pings)
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	src := &flakySource{failures: 1 << 30}
	err := WaitReady(context.Background(), src, 10*time.Millisecond, 50*time.Millisecond, zerolog.Nop())
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
