package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// Named loggers and per-component level overrides.
var (
	namedMu sync.RWMutex
	named   = map[string]*Logger{}
	levels  = map[string]zerolog.Level{}
)

// Register stores a named logger. Get returns it in place of the derived
// component logger.
func Register(name string, l *Logger) {
	namedMu.Lock()
	defer namedMu.Unlock()
	named[name] = l
}

// Unregister removes a named logger.
func Unregister(name string) {
	namedMu.Lock()
	defer namedMu.Unlock()
	delete(named, name)
}

// Get returns the logger registered under name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	namedMu.RLock()
	l, ok := named[name]
	namedMu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// SetLevels replaces the per-component level overrides, e.g.
// {"scheduler": "debug"}. Loggers derived with WithComponent afterwards use
// the override instead of their parent's level. Unparsable levels are skipped.
func SetLevels(overrides map[string]string) {
	next := make(map[string]zerolog.Level, len(overrides))
	for name, lvl := range overrides {
		if parsed, err := zerolog.ParseLevel(lvl); err == nil && lvl != "" {
			next[name] = parsed
		}
	}
	namedMu.Lock()
	levels = next
	namedMu.Unlock()
}

func levelFor(component string) (zerolog.Level, bool) {
	namedMu.RLock()
	defer namedMu.RUnlock()
	lvl, ok := levels[component]
	return lvl, ok
}
