// Package pipeline runs a single transcription request from authentication
// through cleanup.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/format"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/observability"
	"github.com/kbukum/asrgate/resilience"
	"github.com/kbukum/asrgate/tempfile"
	"github.com/kbukum/asrgate/transcription"
)

// Authorizer checks API keys.
type Authorizer interface {
	Authorize(candidate string) error
}

// EngineSource provides the engine for a request.
type EngineSource interface {
	Current() (transcription.Engine, error)
}

// AudioNormalizer converts staged audio into engine format.
type AudioNormalizer interface {
	Normalize(ctx context.Context, input string, arena *tempfile.Arena, speed float64) (string, bool, error)
}

// DurationProber reports audio length in seconds, 0 when unknown.
type DurationProber interface {
	Duration(ctx context.Context, path string) float64
}

// ParamNormalizer resolves request parameters.
type ParamNormalizer interface {
	Normalize(values url.Values) transcription.Options
}

// Upload is the uploaded audio. Open is only called after authentication.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Request is one transcription request. When Decode is set it runs right
// after authentication to fill Upload and Params from the transport, so an
// unauthenticated body is never parsed.
type Request struct {
	ID     string
	APIKey string
	Upload *Upload
	Params url.Values
	Decode func(*Request) error
}

// Outcome describes a finished request. On failure only States and the
// fields reached before the failure are set.
type Outcome struct {
	Response      format.Response
	Result        *transcription.Result
	Metrics       observability.RequestMetrics
	Strategy      transcription.Strategy
	Mode          format.Mode
	Converted     bool
	AudioDuration float64
	States        []State
}

// Last returns the final state reached.
func (o *Outcome) Last() State {
	if len(o.States) == 0 {
		return Received
	}
	return o.States[len(o.States)-1]
}

// Config bounds the slow steps.
type Config struct {
	TempDir              string
	ConversionTimeout    time.Duration
	TranscriptionTimeout time.Duration
}

// Pipeline wires the request stages together. All fields except Metrics,
// Bulkhead and Now are required.
type Pipeline struct {
	Keys       Authorizer
	Engines    EngineSource
	Normalizer AudioNormalizer
	Prober     DurationProber
	Params     ParamNormalizer
	Metrics    *observability.Metrics
	Bulkhead   *resilience.Bulkhead
	Config     Config
	Now        func() time.Time
	Log        *logger.Logger
}

// Run processes req. Temp files allocated along the way are always removed
// before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (out *Outcome, err error) {
	out = &Outcome{States: []State{Received}}
	if req.ID != "" && logger.RequestIDFromContext(ctx) == "" {
		ctx = logger.ContextWithRequestID(ctx, req.ID)
	}
	metrics := p.metrics()
	log := p.log().WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, "transcribe", attribute.String(observability.AttrRequestID, req.ID))
	defer func() { observability.EndSpan(span, err) }()

	// Nothing has been allocated yet, so early failures go straight through
	// Cleaned to Failed.
	if err = p.Keys.Authorize(req.APIKey); err != nil {
		out.States = append(out.States, Cleaned, Failed)
		metrics.ErrorRecorded(ctx, string(codeOf(err)), Authenticated.String())
		return out, err
	}
	out.States = append(out.States, Authenticated)

	if req.Decode != nil {
		if err = req.Decode(&req); err != nil {
			out.States = append(out.States, Cleaned, Failed)
			metrics.ErrorRecorded(ctx, string(codeOf(err)), Staged.String())
			return out, err
		}
	}

	if req.Upload == nil || req.Upload.Open == nil {
		err = errors.MissingField("audio_file")
		out.States = append(out.States, Cleaned, Failed)
		metrics.ErrorRecorded(ctx, string(codeOf(err)), Staged.String())
		return out, err
	}

	opts := p.Params.Normalize(req.Params)
	out.Mode = format.ParseMode(modeParam(req.Params))

	metrics.RequestStarted(ctx)
	started := time.Now()
	recorder := observability.NewRecorder(p.Now)
	recorder.Start()

	arena := tempfile.NewArena(p.Config.TempDir, log)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Internal(fmt.Errorf("panic after %s: %v", out.Last(), r))
			}
		}()
		err = p.process(ctx, req, opts, arena, recorder, out)
	}()

	// The stage that failed is the one after the last state reached.
	stage := out.Last() + 1
	arena.ReleaseAll()
	out.States = append(out.States, Cleaned)

	if err != nil {
		out.States = append(out.States, Failed)
		code := string(codeOf(err))
		metrics.ErrorRecorded(ctx, code, stage.String())
		metrics.RequestFinished(ctx, out.Strategy.String(), out.Mode.String(), "error", time.Since(started), nil)
		span.SetAttributes(attribute.String(observability.AttrErrorCode, code))
		log.Error("transcription failed", logger.MergeWithError(logger.Fields(
			logger.FieldStage, stage.String(),
			"code", code,
		), err))
		return out, err
	}

	out.States = append(out.States, Completed)
	metrics.RequestFinished(ctx, out.Strategy.String(), out.Mode.String(), "ok", time.Since(started), &out.Metrics)
	log.Info("transcription completed", logger.Fields(
		logger.FieldStrategy, out.Strategy.String(),
		"audio_seconds", out.AudioDuration,
		"processing_seconds", out.Metrics.ProcessingTime,
		"converted", out.Converted,
	))
	return out, nil
}

// Slots reports inference slots in use and the limit. Without a bulkhead
// both are 0.
func (p *Pipeline) Slots() (inUse, limit int) {
	if p.Bulkhead == nil {
		return 0, 0
	}
	return p.Bulkhead.InUse(), p.Bulkhead.MaxConcurrent()
}

// process runs the stages between authentication and cleanup, appending
// each state to out as it is reached.
func (p *Pipeline) process(ctx context.Context, req Request, opts transcription.Options, arena *tempfile.Arena,
	recorder *observability.Recorder, out *Outcome) error {
	input, err := p.stage(ctx, req.Upload, arena)
	if err != nil {
		return err
	}
	out.States = append(out.States, Staged)

	audioPath, err := p.normalize(ctx, input, arena, opts.Speed, out)
	if err != nil {
		return err
	}
	out.States = append(out.States, Normalized)

	out.AudioDuration = p.Prober.Duration(ctx, audioPath)
	out.Strategy = transcription.ChooseStrategy(out.AudioDuration)
	out.States = append(out.States, Dispatched)

	res, err := p.transcribe(ctx, audioPath, opts, out.Strategy)
	if err != nil {
		return err
	}
	out.Result = res
	out.States = append(out.States, Transcribed)

	recorder.Stop(res.Text, out.AudioDuration)
	out.Metrics = recorder.Summarize()
	out.Response = format.Render(res, &out.Metrics, format.Meta{
		Strategy:      out.Strategy,
		Converted:     out.Converted,
		AudioDuration: out.AudioDuration,
	}, out.Mode)
	out.States = append(out.States, Formatted)
	return nil
}

func (p *Pipeline) stage(ctx context.Context, up *Upload, arena *tempfile.Arena) (path string, err error) {
	_, span := observability.StartSpan(ctx, "stage", attribute.String(observability.AttrStage, Staged.String()))
	defer func() { observability.EndSpan(span, err) }()

	h, err := arena.Acquire(tempfile.SafeSuffix(up.Filename))
	if err != nil {
		return "", errors.InternalIO("allocate input", err)
	}
	src, err := up.Open()
	if err != nil {
		return "", errors.InternalIO("open upload", err)
	}
	defer src.Close()

	f, err := os.OpenFile(h.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", errors.InternalIO("create input", err)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if err := stderrors.Join(copyErr, closeErr); err != nil {
		return "", errors.InternalIO("write input", err)
	}
	if n == 0 {
		return "", errors.InvalidParameter("audio_file", "uploaded file is empty")
	}
	return h.Path, nil
}

func (p *Pipeline) normalize(ctx context.Context, input string, arena *tempfile.Arena, speed float64, out *Outcome) (path string, err error) {
	ctx, span := observability.StartSpan(ctx, "normalize", attribute.String(observability.AttrStage, Normalized.String()))
	defer func() { observability.EndSpan(span, err) }()

	metrics := p.metrics()
	if p.Config.ConversionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Config.ConversionTimeout)
		defer cancel()
	}

	path, converted, err := p.Normalizer.Normalize(ctx, input, arena, speed)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.HasCode(err, errors.ErrCodeTimeout) {
			err = errors.Timeout("conversion").WithCause(err)
		}
		if !errors.HasCode(err, errors.ErrCodeInvalidParameter) {
			metrics.ConversionRecorded(ctx, "failed")
		}
		return "", err
	}
	out.Converted = converted
	span.SetAttributes(attribute.Bool(observability.AttrConverted, converted))
	if converted {
		metrics.ConversionRecorded(ctx, "converted")
	} else {
		metrics.ConversionRecorded(ctx, "skipped")
	}
	return path, nil
}

func (p *Pipeline) transcribe(ctx context.Context, path string, opts transcription.Options, strategy transcription.Strategy) (res *transcription.Result, err error) {
	ctx, span := observability.StartSpan(ctx, "transcription",
		attribute.String(observability.AttrStage, Transcribed.String()),
		attribute.String(observability.AttrStrategy, strategy.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	engine, err := p.Engines.Current()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(observability.AttrEngine, engine.Name()))

	if p.Bulkhead != nil {
		release, err := p.Bulkhead.Acquire(ctx)
		if err != nil {
			if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
				return nil, errors.ServiceUnavailable("transcription capacity reached").WithCause(err)
			}
			return nil, err
		}
		defer release()
	}

	if p.Config.TranscriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Config.TranscriptionTimeout)
		defer cancel()
	}
	return transcription.Run(ctx, engine, strategy, path, opts)
}

func (p *Pipeline) log() *logger.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logger.Get("pipeline")
}

func (p *Pipeline) metrics() *observability.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return observability.NopMetrics()
}

func modeParam(v url.Values) string {
	if m := v.Get("format"); m != "" {
		return m
	}
	return v.Get("mode")
}

func codeOf(err error) errors.ErrorCode {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code
	}
	return errors.ErrCodeInternal
}
