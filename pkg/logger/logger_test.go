package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithContext_AddsRequestAndSessionIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, SessionIDKey, "sess-1")
	log.WithContext(ctx).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if record["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", record["request_id"])
	}
	if record["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", record["session_id"])
	}
	if record["message"] != "hello" {
		t.Errorf("message = %v, want hello", record["message"])
	}
	if _, ok := record["timestamp"]; !ok {
		t.Errorf("missing timestamp field in %v", record)
	}
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("loud", &buf)

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record emitted at info level: %q", buf.String())
	}
	log.Info("shown")
	if buf.Len() == 0 {
		t.Fatalf("info record not emitted")
	}
}
