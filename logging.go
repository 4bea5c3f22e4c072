package ambient

import "github.com/rs/zerolog"

// LogHook is a zerolog hook that stamps the active scope's correlation id,
// plus any configured key fields, onto every event logged inside a scope.
// Events logged outside a scope pass through untouched.
type LogHook struct {
	scopeField string
	fields     []logField
}

type logField struct {
	field    string
	accessor Accessor
}

// LogHookOption configures a LogHook.
type LogHookOption func(*LogHook)

// LogWithScopeField overrides the field name used for the scope id. The
// default is "scope_id".
func LogWithScopeField(field string) LogHookOption {
	return func(h *LogHook) {
		if field != "" {
			h.scopeField = field
		}
	}
}

// LogWithField stamps accessor's live value under field. Keys the scope never
// entered are skipped silently.
func LogWithField(field string, accessor Accessor) LogHookOption {
	return func(h *LogHook) {
		if field == "" || accessor == nil {
			return
		}
		h.fields = append(h.fields, logField{field: field, accessor: accessor})
	}
}

// NewLogHook constructs a LogHook. Attach it via zerolog's Logger.Hook.
func NewLogHook(opts ...LogHookOption) LogHook {
	hook := LogHook{scopeField: "scope_id"}
	for _, opt := range opts {
		if opt != nil {
			opt(&hook)
		}
	}
	return hook
}

// Run implements zerolog.Hook.
func (h LogHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	store, ok := currentStore()
	if !ok {
		return
	}
	e.Str(h.scopeField, store.ID())
	for _, field := range h.fields {
		value, err := field.accessor.Load()
		if err != nil {
			continue
		}
		e.Interface(field.field, value)
	}
}
