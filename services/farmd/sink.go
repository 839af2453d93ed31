package farmd

import (
	"log/slog"

	"stakefarm/core/events"
	"stakefarm/observability"
)

// eventSink logs every published event and counts it.
type eventSink struct {
	logger *slog.Logger
}

func (s eventSink) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	rec := evt.Record()
	if rec == nil {
		return
	}
	observability.Events().RecordEvent(rec.Type)
	if s.logger != nil {
		s.logger.Debug("event published", slog.String("type", rec.Type), slog.Any("attributes", rec.Attributes))
	}
}
