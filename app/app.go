// Package app assembles the gateway from configuration: key store, engine,
// audio tools, request pipeline, and HTTP server.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/asrgate/api"
	"github.com/kbukum/asrgate/audio"
	"github.com/kbukum/asrgate/bootstrap"
	"github.com/kbukum/asrgate/component"
	"github.com/kbukum/asrgate/keystore"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/observability"
	"github.com/kbukum/asrgate/params"
	"github.com/kbukum/asrgate/pipeline"
	"github.com/kbukum/asrgate/process"
	"github.com/kbukum/asrgate/resilience"
	"github.com/kbukum/asrgate/server"
	"github.com/kbukum/asrgate/transcription"
	"github.com/kbukum/asrgate/transcription/whisper"
)

// componentLoggers are registered at startup so logging.components can
// raise or lower their levels.
var componentLoggers = []string{
	"telemetry", "keystore", "keystore.watcher", "tempfile", "params",
	"audio.probe", "audio.normalize", "engine", "whisper", "pipeline", "api",
}

// Service is the assembled gateway.
type Service struct {
	*bootstrap.App[*Config]

	Keys      *keystore.Store
	Engines   *transcription.Holder
	Pipeline  *pipeline.Pipeline
	Server    *server.Server
	Telemetry *observability.Telemetry

	describables []component.Describable
}

// Option customises assembly, mostly for tests.
type Option func(*options)

type options struct {
	runner   process.Runner
	registry *transcription.Registry
	app      []bootstrap.Option
}

// WithRunner replaces the subprocess runner used for ffmpeg and ffprobe.
func WithRunner(r process.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithRegistry replaces the engine registry.
func WithRegistry(r *transcription.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithAppOptions passes options through to bootstrap.NewApp.
func WithAppOptions(opts ...bootstrap.Option) Option {
	return func(o *options) { o.app = append(o.app, opts...) }
}

// New validates cfg and wires every component. The key file is loaded here
// so an empty key store stops startup.
func New(cfg *Config, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	base, err := bootstrap.NewApp(cfg, o.app...)
	if err != nil {
		return nil, err
	}
	log := base.Logger
	logger.RegisterComponents(log, cfg.Logging.Components, componentLoggers...)
	svc := &Service{App: base}

	svc.Telemetry = observability.NewTelemetry(cfg.Observability)

	svc.Keys = keystore.New(cfg.Keys.File,
		keystore.WithReloadMode(cfg.Keys.Reload),
		keystore.WithLogger(logger.Get("keystore")),
	)
	n, err := svc.Keys.Reload()
	if err != nil {
		return nil, fmt.Errorf("load keys from %s: %w", cfg.Keys.File, err)
	}
	log.Info("api keys loaded", logger.Fields("count", n, logger.FieldPath, cfg.Keys.File, "reload", string(cfg.Keys.Reload)))

	registry := o.registry
	if registry == nil {
		registry = transcription.NewRegistry()
		whisper.Register(registry)
	}
	svc.Engines = transcription.NewHolder(registry, cfg.Engine, resilience.DefaultRetryConfig())

	runner := o.runner
	if runner == nil {
		runner = &process.ExecRunner{GracePeriod: 5 * time.Second}
	}
	prober := audio.NewProber(cfg.Audio, runner)

	svc.Pipeline = &pipeline.Pipeline{
		Keys:       svc.Keys,
		Engines:    svc.Engines,
		Normalizer: audio.NewNormalizer(cfg.Audio, runner, prober),
		Prober:     prober,
		Params:     params.New(cfg.Transcription.Defaults),
		Metrics:    svc.Telemetry.Metrics(),
		Bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "transcription",
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
			MaxWait:       cfg.Transcription.MaxWait,
			OnReject: func(name string) {
				log.Warn("inference slots exhausted", logger.Fields("bulkhead", name))
			},
		}),
		Config: pipeline.Config{
			TempDir:              cfg.Audio.TempDir,
			ConversionTimeout:    cfg.Audio.ConversionTimeout,
			TranscriptionTimeout: cfg.Transcription.Timeout,
		},
		Log: logger.Get("pipeline"),
	}

	svc.Server = server.New(cfg.Server, log)
	handler := api.NewHandler(api.Config{
		ServiceName: cfg.Name,
		KeyHeader:   cfg.Keys.Header,
		MaxBodySize: cfg.Server.MaxBodySize,
	}, svc.Pipeline, svc.Keys, svc.Engines, logger.Get("api"))
	handler.Register(svc.Server.GinEngine(), svc.Components.HealthAll)

	comps := []component.Component{svc.Telemetry}
	if cfg.Keys.Reload == keystore.ReloadWatch {
		comps = append(comps, keystore.NewWatcher(svc.Keys))
	}
	comps = append(comps, svc.Engines, svc.Server)
	for _, c := range comps {
		if err := svc.RegisterComponent(c); err != nil {
			return nil, err
		}
		if d, ok := c.(component.Describable); ok {
			svc.describables = append(svc.describables, d)
		}
	}

	svc.OnReady(svc.logSummary)
	return svc, nil
}

func (s *Service) logSummary(context.Context) error {
	for _, d := range s.describables {
		desc := d.Describe()
		s.Logger.Info(desc.Name, logger.Fields("type", desc.Type, "details", desc.Details))
	}
	return nil
}
