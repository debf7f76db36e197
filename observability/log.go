package observability

import (
	"log/slog"

	"stablecore/core/events"
	"stablecore/core/types"
)

// LogEmitter writes every engine event to the structured logger. It is the
// usual terminal sink behind the metrics bridge.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter logs events through logger, falling back to the process
// default when nil.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the event type and, when available, its flattened attributes.
func (l *LogEmitter) Emit(event events.Event) {
	if l == nil || event == nil {
		return
	}
	args := []any{slog.String("event", event.EventType())}
	if carrier, ok := event.(interface{ Event() *types.Event }); ok {
		if evt := carrier.Event(); evt != nil {
			for key, value := range evt.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	l.logger.Info("engine event", args...)
}
