package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/asrgate/component"
	"github.com/kbukum/asrgate/logger"
)

// Telemetry owns the OTel providers for the process lifetime.
type Telemetry struct {
	cfg     Config
	meterP  *sdkmetric.MeterProvider
	tracerP *sdktrace.TracerProvider
	metrics *Metrics
	log     *logger.Logger
}

var _ component.Component = (*Telemetry)(nil)

// NewTelemetry creates the component. Instruments are usable immediately and
// become exporting instruments once Start installs the providers.
func NewTelemetry(cfg Config) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg, metrics: NopMetrics(), log: logger.Get("telemetry")}
}

// Metrics returns the service instruments.
func (t *Telemetry) Metrics() *Metrics {
	return t.metrics
}

func (t *Telemetry) Name() string { return "telemetry" }

// Start installs OTLP providers when enabled; otherwise it keeps no-op
// instruments.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	mp, err := InitMeter(ctx, t.cfg)
	if err != nil {
		return err
	}
	tp, err := InitTracer(ctx, t.cfg)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return err
	}
	m, err := NewMetrics(otel.Meter(tracerName))
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return err
	}
	t.meterP, t.tracerP = mp, tp
	*t.metrics = *m
	t.log.Info("telemetry exporting", logger.Fields(
		"endpoint", t.cfg.Endpoint,
		"interval", t.cfg.Interval.String(),
		"sample_rate", t.cfg.SampleRate,
	))
	return nil
}

// Stop flushes and shuts down the providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tracerP != nil {
		errs = append(errs, t.tracerP.Shutdown(ctx))
	}
	if t.meterP != nil {
		errs = append(errs, t.meterP.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) Health(ctx context.Context) component.Health {
	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	if !t.cfg.Enabled {
		h.Message = "export disabled"
	}
	return h
}

func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = "otlp http " + t.cfg.Endpoint
	}
	return component.Description{Name: "Telemetry", Type: "observability", Details: details}
}
