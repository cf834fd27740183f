package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func parseLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("server started")

	entry := parseLogLine(t, &buf)
	if entry["msg"] != "server started" {
		t.Errorf("msg = %v, want server started", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info message was logged at warn level: %q", buf.String())
	}

	logger.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("warn message was dropped at warn level")
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"contract_id": 42,
		"org_id":      7,
	}).Info("contract completed")

	entry := parseLogLine(t, &buf)
	if entry["contract_id"] != float64(42) {
		t.Errorf("contract_id = %v, want 42", entry["contract_id"])
	}
	if entry["org_id"] != float64(7) {
		t.Errorf("org_id = %v, want 7", entry["org_id"])
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("connection refused")).Error("ledger sync failed")

	entry := parseLogLine(t, &buf)
	if entry["error"] != "connection refused" {
		t.Errorf("error = %v, want connection refused", entry["error"])
	}
}

func TestLoggerWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	// nil error should not add a field
	logger.WithError(nil).Info("all good")

	entry := parseLogLine(t, &buf)
	if _, ok := entry["error"]; ok {
		t.Error("nil error added an error field")
	}
}

func TestContextRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %v, want req-123", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %v, want empty", got)
	}
}

func TestContextOrgID(t *testing.T) {
	ctx := WithOrgID(context.Background(), 55)

	if got := GetOrgID(ctx); got != 55 {
		t.Errorf("GetOrgID() = %v, want 55", got)
	}
	if got := GetOrgID(context.Background()); got != 0 {
		t.Errorf("GetOrgID() on empty context = %v, want 0", got)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-abc")
	ctx = WithOrgID(ctx, 9)

	FromContext(ctx).Info("handling request")

	entry := parseLogLine(t, &buf)
	if entry["request_id"] != "req-abc" {
		t.Errorf("request_id = %v, want req-abc", entry["request_id"])
	}
	if entry["org_id"] != float64(9) {
		t.Errorf("org_id = %v, want 9", entry["org_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"info", InfoLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %v, want %v", tt.level, got, tt.want)
		}
	}
}
