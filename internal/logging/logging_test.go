package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/guimove/rmqscaler/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Str("profile", "HIGH").Msg("tick")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["profile"] != "HIGH" || entry["message"] != "tick" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["component"] != "rmqscaler" {
		t.Errorf("missing component field: %v", entry)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "DEBUG", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(config.LogConfig{Level: "loud", Format: "json"}, &buf); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for bad level, got %v", err)
	}
	if _, err := New(config.LogConfig{Level: "info", Format: "xml"}, &buf); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for bad format, got %v", err)
	}
}
