package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/asrgate/audio"
	"github.com/kbukum/asrgate/bootstrap"
	"github.com/kbukum/asrgate/config"
	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/keystore"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/process"
	"github.com/kbukum/asrgate/transcription"
)

const apiKey = "integration-key"

type stubEngine struct{}

func (stubEngine) Name() string                     { return "stub" }
func (stubEngine) Model() string                    { return "tiny" }
func (stubEngine) IsAvailable(context.Context) bool { return true }

func (stubEngine) Transcribe(context.Context, string, transcription.Options) (*transcription.Result, error) {
	return &transcription.Result{Text: "good morning", Language: "en"}, nil
}

func (stubEngine) TranscribeLongForm(context.Context, string, transcription.Options) (transcription.SegmentIterator, error) {
	return transcription.NewSliceIterator([]transcription.Segment{{Text: "good"}, {Text: "morning"}}), nil
}

// stubTools answers ffprobe with a 5s mp3 and writes ffmpeg output.
func stubTools(_ context.Context, cmd process.Command) (*process.Result, error) {
	switch cmd.Binary {
	case "ffprobe":
		if strings.Contains(strings.Join(cmd.Args, " "), "format=duration") {
			return &process.Result{Stdout: []byte("5.0\n")}, nil
		}
		return &process.Result{Stdout: []byte(`{"streams":[{"codec_name":"mp3","channels":2,"sample_rate":"44100"}]}`)}, nil
	case "ffmpeg":
		return &process.Result{}, os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("RIFF"), 0o600)
	}
	return nil, fmt.Errorf("unexpected binary %s", cmd.Binary)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	keys := filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(keys, []byte(apiKey+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmp := filepath.Join(dir, "tmp")
	if err := os.Mkdir(tmp, 0o700); err != nil {
		t.Fatal(err)
	}
	return &Config{
		Keys:   keystore.Config{File: keys, Reload: keystore.ReloadManual},
		Engine: transcription.Config{Name: "stub", Model: "tiny"},
		Audio:  audio.Config{TempDir: tmp},
	}
}

func newService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	registry := transcription.NewRegistry()
	registry.Register("stub", func(transcription.Config) (transcription.Engine, error) { return stubEngine{}, nil })
	svc, err := New(cfg,
		WithRegistry(registry),
		WithRunner(process.RunnerFunc(stubTools)),
		WithAppOptions(bootstrap.WithLogger(logger.Nop())),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Name != ServiceName || cfg.Server.Port != 9854 {
		t.Errorf("unexpected defaults name=%s port=%d", cfg.Name, cfg.Server.Port)
	}
	if cfg.Keys.File != "keys.txt" || cfg.Keys.Header != "X-API-Key" || cfg.Keys.Reload != keystore.ReloadWatch {
		t.Errorf("unexpected key defaults %+v", cfg.Keys)
	}
	if cfg.Engine.Name != "whisper" || cfg.Engine.Model != "turbo" || cfg.Engine.Device != "cpu" {
		t.Errorf("unexpected engine defaults %+v", cfg.Engine)
	}
	if cfg.Transcription.MaxConcurrent != 2 || cfg.Transcription.Timeout != 30*time.Minute {
		t.Errorf("unexpected transcription defaults %+v", cfg.Transcription)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad reload mode", func(c *Config) { c.Keys.Reload = "sometimes" }},
		{"bad port", func(c *Config) { c.Server.Port = 99999 }},
		{"engine timeout shorter than request", func(c *Config) { c.Transcription.Timeout = time.Hour }},
		{"negative concurrency", func(c *Config) { c.Transcription.MaxConcurrent = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYS_FILE", "/etc/asrgate/keys.txt")
	t.Setenv("DEFAULT_MODEL", "large-v3")
	t.Setenv("MODEL_DEVICE", "cuda")
	t.Setenv("PORT", "9000")
	t.Setenv("TRANSCRIPTION_MAX_CONCURRENT", "4")

	cfg, err := Load(
		config.WithConfigFile(filepath.Join(dir, "none.yml")),
		config.WithEnvFile(filepath.Join(dir, "none.env")),
	)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Keys.File != "/etc/asrgate/keys.txt" || cfg.Engine.Model != "large-v3" || cfg.Engine.Device != "cuda" {
		t.Errorf("legacy aliases not applied: keys=%s engine=%+v", cfg.Keys.File, cfg.Engine)
	}
	if cfg.Server.Port != 9000 || cfg.Transcription.MaxConcurrent != 4 {
		t.Errorf("env overrides not applied: port=%d concurrency=%d", cfg.Server.Port, cfg.Transcription.MaxConcurrent)
	}
	if cfg.Audio.ConversionTimeout != 5*time.Minute {
		t.Errorf("expected duration default, got %v", cfg.Audio.ConversionTimeout)
	}
}

func TestNew_EmptyKeyFileFails(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Keys.File, []byte("\n\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := New(cfg, WithAppOptions(bootstrap.WithLogger(logger.Nop())))
	if !errors.HasCode(err, errors.ErrCodeEmptyKeyStore) {
		t.Fatalf("expected EMPTY_KEY_STORE, got %v", err)
	}
}

func TestNew_WatcherOnlyInWatchMode(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	if _, ok := svc.Components.Get("keystore-watcher"); ok {
		t.Error("manual mode should not register a watcher")
	}

	cfg = testConfig(t)
	cfg.Keys.Reload = keystore.ReloadWatch
	svc = newService(t, cfg)
	if _, ok := svc.Components.Get("keystore-watcher"); !ok {
		t.Error("watch mode should register a watcher")
	}
}

func TestNew_RegistersComponentLoggers(t *testing.T) {
	svc := newService(t, testConfig(t))
	if svc.Pipeline.Log != logger.Get("pipeline") {
		t.Error("pipeline should use the registered component logger")
	}
	for _, name := range componentLoggers {
		if logger.Get(name) != logger.Get(name) {
			t.Errorf("component logger %q is not registered", name)
		}
	}
}

func TestService_TranscribeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	handler := svc.Server.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["model_loaded"] != false {
		t.Errorf("expected model_loaded=false before load, got %v", health)
	}

	req := transcribeRequest(t)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the engine loads, got %d %s", rr.Code, rr.Body.String())
	}

	if err := svc.Engines.Load(context.Background(), cfg.Engine); err != nil {
		t.Fatal(err)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, transcribeRequest(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["text"] != "good morning" {
		t.Errorf("unexpected response %v", body)
	}

	entries, err := os.ReadDir(cfg.Audio.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir cleaned, found %d entries", len(entries))
	}
}

func transcribeRequest(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("audio_file", "hello.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("ID3-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/transcribe", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-API-Key", apiKey)
	return req
}
