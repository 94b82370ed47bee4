package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const overviewJSON = `{
	"queue_totals": {"messages": 1500, "messages_ready": 1400, "messages_unacknowledged": 100},
	"message_stats": {
		"publish": 90000, "publish_details": {"rate": 250.5},
		"deliver_get": 80000, "deliver_get_details": {"rate": 200.25}
	}
}`

func newManagementServer(t *testing.T, queuesJSON string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "guest" || pass != "guest" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/overview":
			w.Write([]byte(overviewJSON))
		case "/api/queues":
			w.Write([]byte(queuesJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManagementSource_Fetch(t *testing.T) {
	srv := newManagementServer(t, `[
		{"name": "orders", "vhost": "/", "messages": 1200},
		{"name": "emails", "vhost": "/", "messages": 300},
		{"name": "idle", "vhost": "/", "messages": 0}
	]`)

	src, err := NewManagementSource(srv.URL, "guest", "guest")
	if err != nil {
		t.Fatalf("NewManagementSource: %v", err)
	}
	if src.BackendType() != "management" {
		t.Errorf("expected backend type 'management', got %q", src.BackendType())
	}

	snap, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.TotalMessages != 1500 {
		t.Errorf("TotalMessages = %v, want 1500", snap.TotalMessages)
	}
	if snap.MaxQueueDepth != 1200 {
		t.Errorf("MaxQueueDepth = %v, want 1200", snap.MaxQueueDepth)
	}
	if snap.PublishRate != 250.5 || snap.ConsumeRate != 200.25 {
		t.Errorf("rates = %v/%v, want 250.5/200.25", snap.PublishRate, snap.ConsumeRate)
	}
	if snap.BacklogRate != 50.25 {
		t.Errorf("BacklogRate = %v, want 50.25", snap.BacklogRate)
	}
}

func TestManagementSource_EmptyQueueList(t *testing.T) {
	srv := newManagementServer(t, `[]`)
	src, err := NewManagementSource(srv.URL, "guest", "guest")
	if err != nil {
		t.Fatal(err)
	}

	snap, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("empty queue list should not fail: %v", err)
	}
	if snap.MaxQueueDepth != 0 {
		t.Errorf("MaxQueueDepth = %v, want 0", snap.MaxQueueDepth)
	}
}

func TestManagementSource_Unreachable(t *testing.T) {
	srv := newManagementServer(t, `[]`)
	src, err := NewManagementSource(srv.URL, "guest", "wrong")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrBrokerUnreachable) {
		t.Errorf("expected ErrBrokerUnreachable, got %v", err)
	}
	if err := src.Ping(context.Background()); !errors.Is(err, ErrBrokerUnreachable) {
		t.Errorf("expected ErrBrokerUnreachable from Ping, got %v", err)
	}
}

func TestManagementSource_CancelledContext(t *testing.T) {
	srv := newManagementServer(t, `[]`)
	src, err := NewManagementSource(srv.URL, "guest", "guest")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
