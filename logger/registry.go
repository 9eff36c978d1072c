package logger

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// registry holds the component loggers built at startup.
var registry = &componentRegistry{
	loggers: make(map[string]*Logger),
}

type componentRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register stores l under a component name.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the logger registered for a component. Unknown names get the
// global logger tagged with the name.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterComponents registers a tagged child of base for each name.
// levels overrides the level per component. A key matches the name itself
// or any dotted child of it, so "audio" also covers "audio.probe".
func RegisterComponents(base *Logger, levels map[string]string, names ...string) {
	for _, name := range names {
		l := base.WithComponent(name)
		if lvl, ok := levelFor(levels, name); ok {
			l = l.WithLevel(lvl)
		}
		Register(name, l)
	}
}

func levelFor(levels map[string]string, name string) (zerolog.Level, bool) {
	for key := name; key != ""; {
		if s, ok := levels[key]; ok {
			lvl, err := zerolog.ParseLevel(strings.ToLower(s))
			return lvl, err == nil && s != ""
		}
		i := strings.LastIndexByte(key, '.')
		if i < 0 {
			break
		}
		key = key[:i]
	}
	return zerolog.NoLevel, false
}
