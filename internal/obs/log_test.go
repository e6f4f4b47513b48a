package obs

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLogRequestFillsDefaults(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogRequest(map[string]any{
		"msg":    "http_request",
		"method": "GET",
		"path":   "/healthz",
		"status": 200,
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["msg"] != "http_request" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected default level info, got %v", entry["level"])
	}
	ts, ok := entry["ts"].(string)
	if !ok || ts == "" {
		t.Fatalf("expected timestamp to be filled in, got %v", entry["ts"])
	}
	if entry["status"] != float64(200) {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
}

func TestLogRequestKeepsExplicitLevel(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogRequest(map[string]any{"msg": "slow_request", "level": "warn"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("explicit level overwritten: %v", entry["level"])
	}
}
