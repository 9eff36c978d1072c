package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a periodic OTLP meter provider as the global provider.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Metrics holds the service's OTel instruments.
type Metrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	audioSecs   metric.Float64Histogram
	rtf         metric.Float64Histogram
	active      metric.Int64UpDownCounter
	conversions metric.Int64Counter
	errors      metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.requests, err = meter.Int64Counter("transcription.requests",
		metric.WithDescription("Transcription requests by strategy, mode and status")); err != nil {
		return nil, fmt.Errorf("creating transcription.requests: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("transcription.duration",
		metric.WithDescription("End-to-end request processing time"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating transcription.duration: %w", err)
	}
	if m.audioSecs, err = meter.Float64Histogram("transcription.audio_seconds",
		metric.WithDescription("Duration of submitted audio"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating transcription.audio_seconds: %w", err)
	}
	if m.rtf, err = meter.Float64Histogram("transcription.realtime_factor",
		metric.WithDescription("Audio seconds per processing second")); err != nil {
		return nil, fmt.Errorf("creating transcription.realtime_factor: %w", err)
	}
	if m.active, err = meter.Int64UpDownCounter("transcription.active",
		metric.WithDescription("Requests currently in the pipeline")); err != nil {
		return nil, fmt.Errorf("creating transcription.active: %w", err)
	}
	if m.conversions, err = meter.Int64Counter("audio.conversions",
		metric.WithDescription("Audio normalisation runs by outcome")); err != nil {
		return nil, fmt.Errorf("creating audio.conversions: %w", err)
	}
	if m.errors, err = meter.Int64Counter("errors",
		metric.WithDescription("Failed requests by error code and stage")); err != nil {
		return nil, fmt.Errorf("creating errors: %w", err)
	}
	return &m, nil
}

// NopMetrics returns instruments backed by a no-op provider.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(tracerName))
	return m
}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted(ctx context.Context) {
	m.active.Add(ctx, 1)
}

// RequestFinished decrements the in-flight gauge and records the outcome.
// Throughput histograms are only recorded for successful requests.
func (m *Metrics) RequestFinished(ctx context.Context, strategy, mode, status string, elapsed time.Duration, rm *RequestMetrics) {
	m.active.Add(ctx, -1)
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	if rm == nil {
		return
	}
	stratAttr := metric.WithAttributes(attribute.String("strategy", strategy))
	m.audioSecs.Record(ctx, rm.AudioDuration, stratAttr)
	if rm.RealTimeFactor > 0 {
		m.rtf.Record(ctx, rm.RealTimeFactor, stratAttr)
	}
}

// ConversionRecorded counts an audio normalisation outcome: "skipped",
// "converted" or "failed".
func (m *Metrics) ConversionRecorded(ctx context.Context, outcome string) {
	m.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ErrorRecorded counts a failed request.
func (m *Metrics) ErrorRecorded(ctx context.Context, code, stage string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("stage", stage),
	))
}
