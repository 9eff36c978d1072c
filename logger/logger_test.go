package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "asrgate", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	l.Info("hello", Fields("k", "v"))

	m := decodeLine(t, &buf)
	if m["message"] != "hello" {
		t.Errorf("expected message 'hello', got %v", m["message"])
	}
	if m["service"] != "asrgate" {
		t.Errorf("expected service field, got %v", m["service"])
	}
	if m["k"] != "v" {
		t.Errorf("expected k=v, got %v", m["k"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Info("still logged")
	if !strings.Contains(buf.String(), "still logged") {
		t.Error("invalid level should fall back to info")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("keystore")
	if l.service != "asrgate" {
		t.Errorf("service should be preserved, got %q", l.service)
	}
	l.Info("loaded")
	if m := decodeLine(t, &buf); m[FieldComponent] != "keystore" {
		t.Errorf("expected component=keystore, got %v", m[FieldComponent])
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-42")
	jsonLogger(&buf, "info").WithContext(ctx).Info("x")

	if m := decodeLine(t, &buf); m[FieldRequestID] != "req-42" {
		t.Errorf("expected request_id=req-42, got %v", m[FieldRequestID])
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	l := NewDefault("test")
	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected same logger when context carries no request id")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithError(fmt.Errorf("boom")).Error("failed")
	if m := decodeLine(t, &buf); m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.WithComponent("x").Warn("nothing")
}

func TestInit(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	Init(&Config{Level: "debug", Format: "json"}, "init-svc")
	if got := GetGlobalLogger(); got.service != "init-svc" {
		t.Errorf("expected global service 'init-svc', got %q", got.service)
	}
}

func TestFileOutput(t *testing.T) {
	cfg := &Config{Output: "file", File: filepath.Join(t.TempDir(), "out.log")}
	cfg.ApplyDefaults()
	if _, ok := outputWriter(cfg).(interface{ Rotate() error }); !ok {
		t.Error("expected rotating file writer for file output")
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("reg")
	Register("custom", l)
	if Get("custom") != l {
		t.Error("expected registered logger")
	}
	if Get("unregistered") == nil {
		t.Error("expected fallback logger for unknown name")
	}
}

func TestRegisterComponents_LevelOverrides(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf, "info")
	RegisterComponents(base, map[string]string{"audio": "debug", "pipeline": "warn"},
		"audio.probe", "pipeline", "params")

	Get("audio.probe").Debug("probe detail")
	if !strings.Contains(buf.String(), "probe detail") {
		t.Error("audio override should enable debug for audio.probe")
	}
	m := decodeLine(t, &buf)
	if m[FieldComponent] != "audio.probe" {
		t.Errorf("expected component field, got %v", m[FieldComponent])
	}

	buf.Reset()
	Get("pipeline").Info("quiet")
	Get("params").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	Get("params").Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("components without override keep the base level")
	}
}

func TestConfigValidate_ComponentLevels(t *testing.T) {
	cfg := &Config{Components: map[string]string{"audio": "loud"}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown component level")
	}
	cfg.Components["audio"] = "debug"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if cfg.MaxSize != 100 || cfg.MaxBackups != 3 || cfg.MaxAge != 28 {
		t.Errorf("unexpected rotation defaults: %d/%d/%d", cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp true")
	}

	fileCfg := &Config{Output: "file"}
	fileCfg.ApplyDefaults()
	if fileCfg.File == "" {
		t.Error("expected default file path for file output")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"file output", Config{Level: "debug", Format: "console", Output: "file"}, false},
		{"bad level", Config{Level: "verbose", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "syslog"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields: %v", f)
	}
	if len(f) != 2 {
		t.Errorf("expected 2 fields, got %d", len(f))
	}
}

func TestErrorFields(t *testing.T) {
	f := ErrorFields("convert", fmt.Errorf("exit 1"))
	if f[FieldOperation] != "convert" || f[FieldError] != "exit 1" {
		t.Errorf("unexpected fields: %v", f)
	}
}

func TestDurationFields(t *testing.T) {
	f := DurationFields("probe", 1500*time.Millisecond)
	if f[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", f[FieldDuration])
	}
}

func TestMergeWithError(t *testing.T) {
	f := MergeWithError(nil, fmt.Errorf("x"))
	if f[FieldError] != "x" {
		t.Errorf("expected error field, got %v", f)
	}
}
