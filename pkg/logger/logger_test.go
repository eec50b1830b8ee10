package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// captureJSON reinitializes the logger with JSON output into a buffer.
func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	if err := Initialize(level, "json", "stdout", ""); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	return entry
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		output     string
		outputFile string
		wantErr    bool
	}{
		{"json stdout debug", "debug", "json", "stdout", "", false},
		{"text stderr info", "info", "text", "stderr", "", false},
		{"text stdout warn", "warn", "text", "stdout", "", false},
		{"invalid level", "loud", "json", "stdout", "", true},
		{"invalid format", "info", "xml", "stdout", "", true},
		{"invalid output", "info", "json", "syslog", "", true},
		{"file without path", "info", "json", "file", "", true},
		{"file in missing directory", "info", "json", "file", "/nonexistent/dir/x.log", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Initialize(tt.level, tt.format, tt.output, tt.outputFile)
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitializeWithFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "selfheal.log")

	if err := Initialize("info", "json", "file", logFile); err != nil {
		t.Fatalf("Failed to initialize with file: %v", err)
	}
	Infof("pass %s finished", "abc")

	if err := Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if err := Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Log file is not valid JSON: %v", err)
	}
	if entry["msg"] != "pass abc finished" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}

func TestLevelsFilter(t *testing.T) {
	tests := []struct {
		level        string
		logFunc      func(string, ...interface{})
		shouldAppear bool
	}{
		{"debug", Debugf, true},
		{"info", Debugf, false},
		{"info", Infof, true},
		{"warn", Infof, false},
		{"warn", Warnf, true},
		{"error", Warnf, false},
		{"error", Errorf, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureJSON(t, tt.level)
			tt.logFunc("message")
			if got := buf.Len() > 0; got != tt.shouldAppear {
				t.Errorf("output present = %v, want %v", got, tt.shouldAppear)
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	if err := Initialize("info", "text", "stdout", ""); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Infof("hello")
	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "level=info") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestWithFieldsAndError(t *testing.T) {
	buf := captureJSON(t, "info")
	WithFields(logrus.Fields{"system": "Linux", "platform": "Linux"}).Info("triggered")
	entry := decode(t, buf)
	if entry["system"] != "Linux" || entry["platform"] != "Linux" {
		t.Errorf("missing fields: %v", entry)
	}

	buf.Reset()
	WithError(errors.New("boom")).Error("failed")
	entry = decode(t, buf)
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}

	buf.Reset()
	WithField("pass", "p1").Warn("slow")
	entry = decode(t, buf)
	if entry["pass"] != "p1" || entry["level"] != "warning" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestForComponent(t *testing.T) {
	buf := captureJSON(t, "debug")

	l := ForComponent("executor")
	l.Warnf("action %s simulated", "restart")
	entry := decode(t, buf)
	if entry["component"] != "executor" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["msg"] != "action restart simulated" || entry["level"] != "warning" {
		t.Errorf("unexpected entry %v", entry)
	}

	buf.Reset()
	scoped := l.With(logrus.Fields{"system": "Mac"})
	scoped.Errorf("failed")
	entry = decode(t, buf)
	if entry["system"] != "Mac" || entry["component"] != "executor" || entry["level"] != "error" {
		t.Errorf("unexpected entry %v", entry)
	}

	buf.Reset()
	l.Infof("unscoped")
	entry = decode(t, buf)
	if _, ok := entry["system"]; ok {
		t.Error("With must not mutate the parent logger")
	}
}

func TestForComponentFollowsReinitialize(t *testing.T) {
	l := ForComponent("orchestrator")
	buf := captureJSON(t, "error")

	l.Infof("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at error level: %s", buf.String())
	}
	l.Errorf("shown")
	if buf.Len() == 0 {
		t.Error("expected error output")
	}
}

func TestSetAndGetLevel(t *testing.T) {
	SetLevel(logrus.DebugLevel)
	if GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected DebugLevel, got %v", GetLevel())
	}
	SetLevel(logrus.WarnLevel)
	if GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected WarnLevel, got %v", GetLevel())
	}
	if Get() == nil {
		t.Error("Get() returned nil")
	}
}
