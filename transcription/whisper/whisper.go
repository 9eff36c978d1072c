// Package whisper implements transcription.Engine against a faster-whisper
// HTTP sidecar.
package whisper

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/resilience"
	"github.com/kbukum/asrgate/transcription"
)

const (
	// EngineName is the registered name for the sidecar engine.
	EngineName = "whisper"

	defaultURL     = "http://localhost:8387"
	defaultModel   = "turbo"
	defaultTimeout = 30 * time.Minute

	maxErrorBody = 4 << 10
	maxLineSize  = 1 << 20
)

// Engine talks to the sidecar over HTTP. Calls pass through a circuit
// breaker so a dead sidecar fails fast instead of tying up workers.
type Engine struct {
	cfg     transcription.Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

var _ transcription.Engine = (*Engine)(nil)

// New creates a sidecar engine.
func New(cfg transcription.Config) *Engine {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log := logger.Get("whisper")
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        EngineName,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure:   isSidecarFailure,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("circuit state changed", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
			},
		}),
		log: log,
	}
}

// Factory builds engines for transcription.Registry.
func Factory(cfg transcription.Config) (transcription.Engine, error) {
	return New(cfg), nil
}

// Register adds the sidecar engine to r.
func Register(r *transcription.Registry) {
	r.Register(EngineName, Factory)
}

func (e *Engine) Name() string  { return EngineName }
func (e *Engine) Model() string { return e.cfg.Model }

// IsAvailable reports whether the sidecar answers its health check.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Transcribe posts the audio and decodes a complete result.
func (e *Engine) Transcribe(ctx context.Context, path string, opts transcription.Options) (*transcription.Result, error) {
	var result *transcription.Result
	err := e.call(ctx, func() error {
		resp, err := e.post(ctx, "/transcribe", path, opts)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var wr sidecarResult
		if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
			return errors.TranscriptionFailed(EngineName, fmt.Errorf("decode response: %w", err))
		}
		result = wr.toResult()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TranscribeLongForm posts the audio to the streaming endpoint and returns
// an iterator over the NDJSON segment lines. The response body stays open
// until the iterator is closed.
func (e *Engine) TranscribeLongForm(ctx context.Context, path string, opts transcription.Options) (transcription.SegmentIterator, error) {
	var it *streamIterator
	err := e.call(ctx, func() error {
		resp, err := e.post(ctx, "/transcribe/stream", path, opts)
		if err != nil {
			return err
		}
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
		it = &streamIterator{body: resp.Body, scanner: sc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (e *Engine) call(ctx context.Context, fn func() error) error {
	err := e.breaker.Execute(fn)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.EngineUnavailable(EngineName).WithCause(err)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Timeout("transcription").WithCause(err)
	}
	return err
}

// post streams the audio file as multipart without buffering it in memory.
func (e *Engine) post(ctx context.Context, endpoint, path string, opts transcription.Options) (*http.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InternalIO("open audio", err)
	}

	optionsJSON, err := json.Marshal(sidecarOptions{Options: opts, Model: e.cfg.Model})
	if err != nil {
		f.Close()
		return nil, errors.Internal(err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(writeMultipart(mw, f, filepath.Base(path), optionsJSON))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, errors.Internal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		pr.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.EngineUnavailable(EngineName).WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("sidecar status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, errors.EngineUnavailable(EngineName).WithCause(cause)
		}
		return nil, errors.TranscriptionFailed(EngineName, cause)
	}
	return resp, nil
}

func writeMultipart(mw *multipart.Writer, audio io.Reader, filename string, optionsJSON []byte) error {
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	if err := mw.WriteField("options", string(optionsJSON)); err != nil {
		return err
	}
	return mw.Close()
}

// isSidecarFailure counts only errors that say the sidecar itself is
// unhealthy. Bad audio and cancelled requests do not trip the breaker.
func isSidecarFailure(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code == errors.ErrCodeEngineUnavailable
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

type sidecarOptions struct {
	transcription.Options
	Model string `json:"model"`
}

type sidecarWord struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Word        string  `json:"word"`
	Probability float64 `json:"probability"`
}

type sidecarSegment struct {
	ID               int           `json:"id"`
	Start            float64       `json:"start"`
	End              float64       `json:"end"`
	Text             string        `json:"text"`
	AvgLogProb       float64       `json:"avg_logprob"`
	CompressionRatio float64       `json:"compression_ratio"`
	NoSpeechProb     float64       `json:"no_speech_prob"`
	Temperature      float64       `json:"temperature"`
	Words            []sidecarWord `json:"words"`
}

type sidecarResult struct {
	Text                string           `json:"text"`
	Segments            []sidecarSegment `json:"segments"`
	Language            string           `json:"language"`
	LanguageProbability float64          `json:"language_probability"`
	Duration            float64          `json:"duration"`
}

func (s sidecarSegment) toSegment() transcription.Segment {
	seg := transcription.Segment{
		ID:               s.ID,
		Start:            s.Start,
		End:              s.End,
		Text:             s.Text,
		AvgLogProb:       s.AvgLogProb,
		CompressionRatio: s.CompressionRatio,
		NoSpeechProb:     s.NoSpeechProb,
		Temperature:      s.Temperature,
	}
	for _, w := range s.Words {
		seg.Words = append(seg.Words, transcription.Word(w))
	}
	return seg
}

func (r *sidecarResult) toResult() *transcription.Result {
	res := &transcription.Result{
		Language:            r.Language,
		LanguageProbability: r.LanguageProbability,
		Duration:            r.Duration,
	}
	for _, s := range r.Segments {
		res.Segments = append(res.Segments, s.toSegment())
	}
	if len(res.Segments) > 0 {
		res.Text = transcription.JoinSegments(res.Segments)
		if res.Duration == 0 {
			res.Duration = res.Segments[len(res.Segments)-1].End
		}
	} else {
		res.Text = strings.TrimSpace(r.Text)
	}
	return res
}

// streamIterator reads one JSON segment per line. Blank lines are skipped.
// A line carrying an "error" field ends the stream with TranscriptionFailed.
type streamIterator struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

type streamLine struct {
	sidecarSegment
	Error string `json:"error"`
}

func (it *streamIterator) Next(ctx context.Context) (transcription.Segment, bool, error) {
	if it.done {
		return transcription.Segment{}, false, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			it.done = true
			if stderrors.Is(err, context.DeadlineExceeded) {
				return transcription.Segment{}, false, errors.Timeout("transcription").WithCause(err)
			}
			return transcription.Segment{}, false, err
		}
		if !it.scanner.Scan() {
			it.done = true
			if err := it.scanner.Err(); err != nil {
				return transcription.Segment{}, false, errors.TranscriptionFailed(EngineName, fmt.Errorf("read stream: %w", err))
			}
			return transcription.Segment{}, false, nil
		}
		line := strings.TrimSpace(it.scanner.Text())
		if line == "" {
			continue
		}
		var sl streamLine
		if err := json.Unmarshal([]byte(line), &sl); err != nil {
			it.done = true
			return transcription.Segment{}, false, errors.TranscriptionFailed(EngineName, fmt.Errorf("decode segment: %w", err))
		}
		if sl.Error != "" {
			it.done = true
			return transcription.Segment{}, false, errors.TranscriptionFailed(EngineName, stderrors.New(sl.Error))
		}
		return sl.toSegment(), true, nil
	}
}

func (it *streamIterator) Close() error {
	it.done = true
	return it.body.Close()
}
