package transcription

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/asrgate/component"
	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/resilience"
)

// Holder owns the process-wide default engine. Readers get the current
// engine lock-free; loading is serialised and swaps the pointer atomically,
// so in-flight requests keep the engine they started with.
type Holder struct {
	registry *Registry
	cfg      Config
	retry    resilience.RetryConfig
	log      *logger.Logger

	current atomic.Pointer[Engine]
	loadMu  sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ component.Component = (*Holder)(nil)

// NewHolder creates a holder that loads cfg through registry on Start.
func NewHolder(registry *Registry, cfg Config, retry resilience.RetryConfig) *Holder {
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = 500 * time.Millisecond
	}
	if retry.BackoffFactor <= 0 {
		retry.BackoffFactor = 2.0
	}
	if retry.MaxBackoff <= 0 {
		retry.MaxBackoff = 30 * time.Second
	}
	return &Holder{
		registry: registry,
		cfg:      cfg,
		retry:    retry,
		log:      logger.Get("engine"),
	}
}

// Load builds the engine described by cfg, waits until it reports available,
// and installs it as current.
func (h *Holder) Load(ctx context.Context, cfg Config) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	engine, err := h.registry.Create(cfg)
	if err != nil {
		return err
	}
	err = resilience.RetryFunc(ctx, h.retry, func() error {
		if !engine.IsAvailable(ctx) {
			return errors.EngineUnavailable(engine.Name())
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.current.Store(&engine)
	h.log.Info("engine loaded", logger.Fields(logger.FieldEngine, engine.Name(), "model", engine.Model()))
	return nil
}

// Set installs engine directly.
func (h *Holder) Set(engine Engine) {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if engine == nil {
		h.current.Store(nil)
		return
	}
	h.current.Store(&engine)
}

// Current returns the loaded engine or EngineUnavailable.
func (h *Holder) Current() (Engine, error) {
	p := h.current.Load()
	if p == nil {
		return nil, errors.EngineUnavailable(h.cfg.Name)
	}
	return *p, nil
}

// Loaded reports whether an engine is installed, and its model.
func (h *Holder) Loaded() (bool, string) {
	p := h.current.Load()
	if p == nil {
		return false, ""
	}
	return true, (*p).Model()
}

func (h *Holder) Name() string { return "engine" }

// Start loads the configured engine. If it is not reachable yet, loading
// continues in the background and the service runs degraded.
func (h *Holder) Start(ctx context.Context) error {
	if h.current.Load() != nil {
		return nil
	}
	bg, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	err := h.Load(ctx, h.cfg)
	if err == nil {
		return nil
	}
	h.log.Warn("engine not available yet, retrying in background", logger.ErrorFields("load", err))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loadUntilReady(bg)
	}()
	return nil
}

func (h *Holder) loadUntilReady(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		wait := resilience.Backoff(attempt, h.retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := h.Load(ctx, h.cfg); err == nil {
			return
		}
	}
}

// Stop cancels background loading.
func (h *Holder) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Holder) Health(ctx context.Context) component.Health {
	loaded, model := h.Loaded()
	if !loaded {
		return component.Health{Name: h.Name(), Status: component.StatusDegraded, Message: "no model loaded"}
	}
	return component.Health{Name: h.Name(), Status: component.StatusHealthy, Message: model}
}

func (h *Holder) Describe() component.Description {
	return component.Description{Name: "Engine", Type: "transcription", Details: h.cfg.Name + " model=" + h.cfg.Model}
}
