package daemon

import (
	"io"
	"log/slog"

	"github.com/1broseidon/layerctl/internal/config"
)

// Logs hands out one logger per debug scope. Each scope has its own level so
// debug_scopes can be changed on reload without rebuilding loggers.
type Logs struct {
	w      io.Writer
	base   slog.LevelVar
	scopes map[string]*slog.LevelVar
}

// NewLogs creates scoped loggers writing text records to w.
func NewLogs(w io.Writer, cfg *config.Config) *Logs {
	l := &Logs{w: w, scopes: make(map[string]*slog.LevelVar, len(config.DebugScopes))}
	for _, scope := range config.DebugScopes {
		l.scopes[scope] = new(slog.LevelVar)
	}
	l.Apply(cfg)
	return l
}

// Apply sets levels from cfg.
func (l *Logs) Apply(cfg *config.Config) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	l.base.Set(level)
	for scope, v := range l.scopes {
		if cfg.DebugEnabled(scope) {
			v.Set(slog.LevelDebug)
		} else {
			v.Set(level)
		}
	}
}

// Logger returns the logger of a debug scope. Unknown scopes follow the
// base level.
func (l *Logs) Logger(scope string) *slog.Logger {
	var lv slog.Leveler = &l.base
	if v, ok := l.scopes[scope]; ok {
		lv = v
	}
	return slog.New(slog.NewTextHandler(l.w, &slog.HandlerOptions{Level: lv})).With("scope", scope)
}
