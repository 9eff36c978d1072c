package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/asrgate/component"
	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/format"
	"github.com/kbukum/asrgate/keystore"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/pipeline"
	"github.com/kbukum/asrgate/transcription"
)

const testKey = "secret-key"

// echoTranscriber authorizes, decodes and echoes the upload as the
// transcript, mirroring the pipeline's ordering.
type echoTranscriber struct {
	keys    KeyManager
	decodes int
	params  map[string][]string
}

func (e *echoTranscriber) Run(_ context.Context, req pipeline.Request) (*pipeline.Outcome, error) {
	out := &pipeline.Outcome{}
	if err := e.keys.Authorize(req.APIKey); err != nil {
		return out, err
	}
	e.decodes++
	if err := req.Decode(&req); err != nil {
		return out, err
	}
	e.params = req.Params
	if req.Upload == nil {
		return out, errors.MissingField("audio_file")
	}
	rc, err := req.Upload.Open()
	if err != nil {
		return out, err
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	res := &transcription.Result{Text: string(data)}
	mode := format.ParseMode(req.Params.Get("format"))
	out.Strategy = transcription.ShortForm
	out.Response = format.Render(res, nil, format.Meta{Strategy: out.Strategy}, mode)
	return out, nil
}

type models struct {
	loaded bool
	name   string
}

func (m models) Loaded() (bool, string) { return m.loaded, m.name }

type testEnv struct {
	router *gin.Engine
	keys   *keystore.Store
	tx     *echoTranscriber
	path   string
}

func newEnv(t *testing.T, loaded bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "keys.txt")
	if err := os.WriteFile(path, []byte(testKey+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	keys := keystore.New(path, keystore.WithReloadMode(keystore.ReloadManual), keystore.WithLogger(logger.Nop()))
	if _, err := keys.Reload(); err != nil {
		t.Fatal(err)
	}

	tx := &echoTranscriber{keys: keys}
	h := NewHandler(Config{ServiceName: "asrgate"}, tx, keys, models{loaded: loaded, name: "turbo"}, logger.Nop())
	r := gin.New()
	h.Register(r, func(context.Context) []component.Health {
		if !loaded {
			return []component.Health{{Name: "engine", Status: component.StatusDegraded}}
		}
		return []component.Health{{Name: "engine", Status: component.StatusHealthy}}
	})
	return &testEnv{router: r, keys: keys, tx: tx, path: path}
}

func multipartBody(t *testing.T, field, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if field != "" {
		fw, err := w.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Code
}

func TestTranscribe_FullJSON(t *testing.T) {
	env := newEnv(t, true)
	body, ct := multipartBody(t, "audio_file", "clip.mp3", "hello world", map[string]string{"language": "en"})
	req := httptest.NewRequest(http.MethodPost, "/transcribe?beam_size=3", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-API-Key", testKey)

	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["text"] != "hello world" {
		t.Errorf("unexpected text %v", got["text"])
	}
	if rr.Header().Get("X-Transcription-Strategy") != transcription.ShortForm.String() {
		t.Errorf("expected strategy header, got %q", rr.Header().Get("X-Transcription-Strategy"))
	}
	if env.tx.params["beam_size"][0] != "3" || env.tx.params["language"][0] != "en" {
		t.Errorf("expected query and form params merged, got %v", env.tx.params)
	}
}

func TestTranscribe_PlainTextAndFileAlias(t *testing.T) {
	env := newEnv(t, true)
	body, ct := multipartBody(t, "file", "clip.wav", "plain words", map[string]string{"format": "text"})
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-API-Key", testKey)

	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain, got %s", rr.Header().Get("Content-Type"))
	}
	if rr.Body.String() != "plain words" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestTranscribe_AuthBeforeDecode(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		status int
		code   errors.ErrorCode
	}{
		{"missing key", "", http.StatusUnauthorized, errors.ErrCodeUnauthenticated},
		{"unknown key", "nope", http.StatusForbidden, errors.ErrCodeForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t, true)
			body, ct := multipartBody(t, "audio_file", "clip.mp3", "x", nil)
			req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
			req.Header.Set("Content-Type", ct)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rr := env.do(req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if code := errorCode(t, rr); code != tc.code {
				t.Errorf("expected %s, got %s", tc.code, code)
			}
			if env.tx.decodes != 0 {
				t.Error("body must not be decoded before authentication")
			}
		})
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	env := newEnv(t, true)
	body, ct := multipartBody(t, "", "", "", map[string]string{"language": "en"})
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-API-Key", testKey)

	rr := env.do(req)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != errors.ErrCodeMissingField {
		t.Fatalf("expected 400 MISSING_FIELD, got %d %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader("raw"))
	req.Header.Set("X-API-Key", testKey)
	rr = env.do(req)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != errors.ErrCodeMissingField {
		t.Fatalf("expected 400 MISSING_FIELD for non-multipart body, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestTranscribe_BodyTooLarge(t *testing.T) {
	env := newEnv(t, true)
	body, ct := multipartBody(t, "audio_file", "clip.mp3", strings.Repeat("a", 4096), nil)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-API-Key", testKey)

	rr := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rr, req.Body, 1024)
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHealth_ModelStatus(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		status string
		model  any
	}{
		{"loaded", true, "healthy", "turbo"},
		{"not loaded", false, "degraded", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t, tc.loaded)
			rr := env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tc.status || body["model_loaded"] != tc.loaded || body["current_model"] != tc.model {
				t.Errorf("unexpected health body %v", body)
			}
			if _, ok := body["timestamp"]; !ok {
				t.Error("expected timestamp")
			}
		})
	}
}

func TestKeys_ReloadAndCount(t *testing.T) {
	env := newEnv(t, true)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/keys/count", http.NoBody))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rr.Code)
	}

	if err := os.WriteFile(env.path, []byte(testKey+"\nsecond\nthird\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/keys/reload", http.NoBody)
	req.Header.Set("X-API-Key", testKey)
	rr = env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var reload struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &reload); err != nil {
		t.Fatal(err)
	}
	if reload.Count != 3 || reload.Message != "reloaded 3 keys" {
		t.Errorf("unexpected reload body %+v", reload)
	}

	req = httptest.NewRequest(http.MethodGet, "/keys/count", http.NoBody)
	req.Header.Set("X-API-Key", "second")
	rr = env.do(req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":3`) {
		t.Errorf("unexpected count response %d %s", rr.Code, rr.Body.String())
	}
}

func TestKeys_ReloadFailureKeepsPreviousSet(t *testing.T) {
	env := newEnv(t, true)
	if err := os.WriteFile(env.path, []byte("\n  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/keys/reload", http.NoBody)
	req.Header.Set("X-API-Key", testKey)
	rr := env.do(req)
	if code := errorCode(t, rr); code != errors.ErrCodeEmptyKeyStore {
		t.Fatalf("expected EMPTY_KEY_STORE, got %s", code)
	}
	if !env.keys.Verify(testKey) {
		t.Error("previous key set should stay active")
	}
}
