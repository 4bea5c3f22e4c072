// Package zerologsink ships scope lifecycle events to a zerolog logger.
package zerologsink

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-ambient/pkg/lifecycle"
)

// Hook writes lifecycle events to Logger at Level.
type Hook struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

// New constructs a hook logging at debug level.
func New(logger zerolog.Logger) Hook {
	return Hook{Logger: logger, Level: zerolog.DebugLevel}
}

// Notify implements lifecycle.Hook.
func (h Hook) Notify(event lifecycle.Event) error {
	evt := h.Logger.WithLevel(h.Level).
		Str("kind", string(event.Kind)).
		Str("scope_id", event.ScopeID).
		Uint64("root", event.Root)
	if event.Task != 0 {
		evt = evt.Uint64("task", event.Task)
	}
	if event.Key != "" {
		evt = evt.Str("key", event.Key)
	}
	if event.Err != nil {
		evt = evt.AnErr("error", event.Err)
	}
	if len(event.Metadata) > 0 {
		evt = evt.Interface("metadata", event.Metadata)
	}
	evt.Time("occurred_at", event.OccurredAt).Msg("scope event")
	return nil
}
