package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", LevelString(level), err)
		}
		if parsed != level {
			t.Errorf("round trip of %v gave %v", level, parsed)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
	if FormatJSON.String() != "json" || FormatText.String() != "text" {
		t.Error("Format.String mismatch")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected LevelInfo, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected stderr output, got %s", cfg.Output)
	}
	if cfg.Component != "scriptrec" {
		t.Errorf("expected component scriptrec, got %s", cfg.Component)
	}
	if !cfg.MaskInput {
		t.Error("input masking should be on by default")
	}
	if !strings.Contains(cfg.FilePath, "scriptrec") {
		t.Errorf("default log path %s should live under scriptrec", cfg.FilePath)
	}
}

func newBufferLogger(t *testing.T, format Format, mask bool) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = format
	cfg.Writer = &buf
	cfg.MaskInput = mask
	cfg.Level = LevelDebug
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, &buf
}

func TestJSONFormat(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON, true)
	l.Info("converted", "lines", 12)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "converted" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "scriptrec" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["lines"] != float64(12) {
		t.Errorf("lines = %v", entry["lines"])
	}
}

func TestMaskInput(t *testing.T) {
	l, buf := newBufferLogger(t, FormatText, true)
	l.Warn("event skipped", "key", "p", "text", "hunter2", "session_id", "abc", "api_token", "x")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "key=p") {
		t.Errorf("typed input leaked: %s", out)
	}
	if strings.Contains(out, "api_token=x") {
		t.Errorf("token leaked: %s", out)
	}
	if !strings.Contains(out, "session_id=abc") {
		t.Errorf("session id should not be masked: %s", out)
	}
}

func TestMaskInputDisabled(t *testing.T) {
	l, buf := newBufferLogger(t, FormatText, false)
	l.Warn("event skipped", "key", "p")

	if !strings.Contains(buf.String(), "key=p") {
		t.Errorf("expected key in output: %s", buf.String())
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"user_password", true},
		{"API_KEY", true},
		{"auth_header", true},
		{"session_id", false},
		{"file", false},
		{"seq", false},
	}

	for _, test := range tests {
		if got := shouldRedact(test.key); got != test.expected {
			t.Errorf("shouldRedact(%q) = %v, want %v", test.key, got, test.expected)
		}
	}
}

func TestWithSessionAndComponent(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON, true)
	l.WithSession("s-1").WithComponent("capture").Info("shot")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["session_id"] != "s-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["component"] != "capture" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestSessionIDContext(t *testing.T) {
	if SessionIDFromContext(nil) != "" { //nolint:staticcheck
		t.Error("nil context should yield empty ID")
	}
	if SessionIDFromContext(context.Background()) != "" {
		t.Error("empty context should yield empty ID")
	}

	ctx := ContextWithSessionID(context.Background(), "s-2")
	if got := SessionIDFromContext(ctx); got != "s-2" {
		t.Errorf("got %q", got)
	}

	l, buf := newBufferLogger(t, FormatText, true)
	l.WithContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "session_id=s-2") {
		t.Errorf("context session missing: %s", buf.String())
	}

	if l.WithContext(context.Background()) != l {
		t.Error("WithContext without a session should return the same logger")
	}
}

func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(dir, "nested", "scriptrec.log")

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("to file")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFileRotatorRotate(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{FilePath: filepath.Join(dir, "test.log"), MaxBackups: 2}

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.opened = base
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		r.now = func() time.Time { return at }
		if _, err := r.Write([]byte("line\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := r.Rotate(); err != nil {
			t.Fatalf("Rotate: %v", err)
		}
	}

	files := r.LogFiles()
	if files[0] != cfg.FilePath {
		t.Errorf("first entry should be the active file, got %s", files[0])
	}
	if len(files) != 3 {
		t.Errorf("expected active file plus 2 backups, got %v", files)
	}
}

func TestFileRotatorDailyRollover(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{FilePath: filepath.Join(dir, "day.log"), Compress: true}

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	if _, err := r.Write([]byte("yesterday\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	if _, err := r.Write([]byte("today\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "day-*.log.gz"))
	if len(matches) != 1 {
		t.Fatalf("expected one compressed backup, got %v", matches)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, _ := io.ReadAll(gz)
	if string(data) != "yesterday\n" {
		t.Errorf("backup content = %q", data)
	}

	current, _ := os.ReadFile(cfg.FilePath)
	if string(current) != "today\n" {
		t.Errorf("active content = %q", current)
	}
}
