package ambient

import (
	"time"

	"github.com/rs/zerolog"
)

// GuardLogEvent describes one guard evaluation for logging.
type GuardLogEvent struct {
	Engine   string
	Expr     string
	ScopeID  string
	Duration time.Duration
	Err      error
}

// GuardLogger records guard evaluations.
type GuardLogger interface {
	LogGuard(GuardLogEvent)
}

// GuardLoggerFunc adapts a function to GuardLogger.
type GuardLoggerFunc func(GuardLogEvent)

// LogGuard implements GuardLogger.
func (f GuardLoggerFunc) LogGuard(event GuardLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopGuardLogger struct{}

func (noopGuardLogger) LogGuard(GuardLogEvent) {}

// ZerologGuardLogger records guard evaluations on logger at debug level.
func ZerologGuardLogger(logger zerolog.Logger) GuardLogger {
	return GuardLoggerFunc(func(event GuardLogEvent) {
		evt := logger.Debug().
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Str("scope_id", event.ScopeID).
			Dur("duration", event.Duration)
		if event.Err != nil {
			evt = evt.AnErr("error", event.Err)
		}
		evt.Msg("guard evaluated")
	})
}
