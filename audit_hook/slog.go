package audithook

import (
	"context"
	"log/slog"
)

// SlogRecorder writes audit events as structured log records.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder returns a Recorder that logs through l.
func NewSlogRecorder(l *slog.Logger) *SlogRecorder {
	if l == nil {
		l = slog.Default()
	}
	return &SlogRecorder{logger: l}
}

// Record implements Recorder.
func (r *SlogRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	attrs := []slog.Attr{
		slog.String("action", evt.Action),
		slog.String("resource", evt.Resource),
		slog.String("resource_id", evt.ResourceID),
		slog.String("category", evt.Category),
		slog.String("outcome", evt.Outcome),
	}
	if len(evt.Metadata) > 0 {
		meta := make([]any, 0, len(evt.Metadata))
		for k, v := range evt.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	r.logger.LogAttrs(ctx, levelOf(evt.Severity), "audit", attrs...)
	return nil
}

func levelOf(severity string) slog.Level {
	switch severity {
	case SeverityCritical:
		return slog.LevelError
	case SeverityWarning:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
