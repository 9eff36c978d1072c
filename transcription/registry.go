package transcription

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config selects and configures the default engine.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	URL         string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	ModelRoot   string        `yaml:"model_root" mapstructure:"model_root"`
	Device      string        `yaml:"device" mapstructure:"device"`
	ComputeType string        `yaml:"compute_type" mapstructure:"compute_type"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Factory builds an engine from config.
type Factory func(cfg Config) (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create builds the engine named by cfg.Name.
func (r *Registry) Create(cfg Config) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transcription: unknown engine %q (registered: %v)", cfg.Name, r.Names())
	}
	return f(cfg)
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
